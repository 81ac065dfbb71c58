package crawler

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned by the fetch pipeline while the circuit breaker
// rejects requests. It ends the current phase but not the run.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ConfigurationError reports malformed or missing crawl configuration.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "invalid configuration"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErr(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// SecurityError reports a target or output path the engine refuses to touch.
type SecurityError struct {
	Target string
	Reason string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security: %s: %s", e.Reason, e.Target)
}

// FetchError is the soft failure returned once every attempt for a URL failed.
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s failed after %d attempt(s): status %d", e.URL, e.Attempts, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s failed after %d attempt(s)", e.URL, e.Attempts)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsPreflight reports whether err is a configuration or security error.
func IsPreflight(err error) bool {
	var cfgErr *ConfigurationError
	var secErr *SecurityError
	return errors.As(err, &cfgErr) || errors.As(err, &secErr)
}
