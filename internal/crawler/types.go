package crawler

import (
	"net/http"
	"net/url"
	"time"
)

// FetchRequest is one HTTP GET handed to the Transport.
type FetchRequest struct {
	URL     string
	Header  http.Header
	Proxy   *url.URL
	Timeout time.Duration
	// MaxBytes caps how much of the body is read. Zero means unlimited.
	MaxBytes int64
}

// FetchResponse is the raw result of a FetchRequest.
type FetchResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   string
}

// Page is a successfully fetched and decoded document.
type Page struct {
	URL      string
	FinalURL string
	Status   int
	Text     string
	Encoding string
}

// Row is one line of the output CSV.
type Row struct {
	URL         string
	Content     string
	ChunkNumber int
}

// Summary describes a finished run.
type Summary struct {
	RunID         string
	OutputPath    string
	Discovered    int
	PagesFetched  int
	PagesFailed   int
	RowsWritten   int
	DuplicateRows int
	CircuitOpened bool
}
