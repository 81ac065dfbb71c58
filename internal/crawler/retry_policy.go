package crawler

import (
	"crypto/rand"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	maxJitter     = time.Second
	maxBackoffExp = 16
)

// backoffPolicy computes the wait between fetch attempts:
// base * 2^attempt plus a uniform jitter in [0, 1s).
type backoffPolicy struct {
	base   time.Duration
	jitter func(limit time.Duration) time.Duration
}

func newBackoffPolicy(base time.Duration) backoffPolicy {
	return backoffPolicy{base: base, jitter: randomJitter}
}

// Delay returns the wait after the given zero-based attempt failed.
func (p backoffPolicy) Delay(attempt int) time.Duration {
	if attempt > maxBackoffExp {
		attempt = maxBackoffExp
	}
	delay := time.Duration(float64(p.base) * math.Pow(2, float64(attempt)))
	if p.jitter != nil {
		delay += p.jitter(maxJitter)
	}
	return delay
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// retryAfter reads the Retry-After header as delta-seconds or an HTTP date,
// falling back to def when it is missing or malformed.
func retryAfter(h http.Header, now time.Time, def time.Duration) time.Duration {
	raw := strings.TrimSpace(h.Get("Retry-After"))
	if raw == "" {
		return def
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if secs < 0 {
			return 0
		}
		return seconds(secs)
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return def
}
