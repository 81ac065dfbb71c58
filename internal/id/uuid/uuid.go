// Package uuid generates identifiers for crawl runs and API requests.
package uuid

import (
	"github.com/google/uuid"
)

// NewRunID returns a time-ordered UUIDv7 so run IDs sort by start time.
// It falls back to a random UUIDv4 if the v7 clock source fails.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewRequestID returns a random UUIDv4 for correlating one HTTP request.
func NewRequestID() string {
	return uuid.NewString()
}
