// Package crawler implements the crawl engine: configuration validation,
// the retrying fetch pipeline, the breadth-first URL frontier, and the
// content pipeline that turns fetched pages into deduplicated CSV rows.
//
// A run is driven by Engine. Discovery walks the site level by level up to
// the configured depth, collecting every link that passes the URL filter.
// The content pass then re-fetches each discovered URL, extracts visible
// text, splits it into chunks, drops chunks already written during the run,
// and appends the rest to scraped_data.csv inside a directory named after the
// seed host.
//
// Network, markup parsing, and DNS are reached through the Transport,
// Parser, and Resolver interfaces so tests can substitute them.
package crawler
