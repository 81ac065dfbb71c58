package crawler

import (
	"context"
	"net/netip"
	"time"
)

// Transport performs a single HTTP GET.
type Transport interface {
	Do(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// Parser reads markup.
type Parser interface {
	// Links returns the raw href of every anchor, in document order.
	Links(body string) ([]string, error)
	// Text returns the visible text with non-content elements removed and
	// whitespace collapsed. A non-empty selector restricts extraction to the
	// matching elements.
	Text(body string, selector string) (string, error)
}

// Hasher computes content digests for deduplication.
type Hasher interface {
	Hash(data []byte) string
}

// Resolver resolves host names for the private-address guard.
// *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// CircuitBreaker is the fail-fast guard shared by every fetch of a run.
type CircuitBreaker interface {
	IsOpen() bool
	RecordSuccess()
	RecordFailure()
}

// RateLimiter paces requests per host.
type RateLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// pauser sleeps between attempts and crawl levels.
type pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}
