package crawler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitescraper/internal/metrics"
)

// rowWriter receives the rows that survive deduplication.
type rowWriter interface {
	Write(row Row) error
}

// contentStats summarizes the content phase.
type contentStats struct {
	Fetched       int
	Failed        int
	Rows          int
	Duplicates    int
	CircuitOpened bool
}

// contentPipeline re-fetches discovered pages and writes their text chunks.
type contentPipeline struct {
	fetcher     pageFetcher
	parser      Parser
	hashes      *contentHashSet
	out         rowWriter
	breaker     CircuitBreaker
	pauser      pauser
	splitLength int
	selector    string
	delay       time.Duration
	logger      *zap.Logger
}

// run processes urls sequentially, pacing page fetches by the configured delay.
// A write failure aborts the phase; fetch failures only skip the page.
func (c *contentPipeline) run(ctx context.Context, urls []string) (contentStats, error) {
	var stats contentStats
	for i, target := range urls {
		if i > 0 {
			c.pauser.Pause(ctx, c.delay)
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if c.breaker.IsOpen() {
			stats.CircuitOpened = true
			c.logger.Warn("circuit open, stopping content extraction", zap.Int("remaining", len(urls)-i))
			break
		}

		logger := c.logger.With(zap.String("url", target))
		page, err := c.fetcher.Fetch(ctx, target)
		if err != nil {
			if isCircuitOpen(err) {
				stats.CircuitOpened = true
				c.logger.Warn("circuit opened, stopping content extraction", zap.Int("remaining", len(urls)-i))
				break
			}
			stats.Failed++
			metrics.ObservePage(metrics.PhaseContent, "failed")
			logger.Warn("content fetch failed", zap.Error(err))
			continue
		}
		stats.Fetched++
		metrics.ObservePage(metrics.PhaseContent, "ok")

		text, err := c.parser.Text(page.Text, c.selector)
		if err != nil {
			logger.Warn("extract text failed", zap.Error(err))
			continue
		}
		written := 0
		for idx, chunk := range splitText(text, c.splitLength) {
			if !c.hashes.Add(chunk) {
				stats.Duplicates++
				metrics.ObserveDuplicateChunk()
				continue
			}
			if err := c.out.Write(Row{URL: target, Content: chunk, ChunkNumber: idx + 1}); err != nil {
				return stats, err
			}
			written++
			stats.Rows++
			metrics.ObserveRowWritten()
		}
		logger.Debug("page processed", zap.Int("chars", len([]rune(text))), zap.Int("rows", written))
	}
	return stats, nil
}

// splitText cuts text into chunks of size runes, preserving order. An empty
// text yields no chunks; a non-positive size yields the whole text.
func splitText(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
