// Package cmd defines and implements the CLI commands for the sitescraper
// executable.
//
//   - crawl runs one crawl from the config file plus flag overrides and prints
//     the path of the CSV it wrote.
//   - serve starts the HTTP front-end that runs crawls on request.
//
// Configuration comes from an optional YAML file (--config) and SCRAPER_*
// environment variables, e.g. SCRAPER_SERVER_PORT=9090 or
// SCRAPER_CRAWL_DOMAIN=https://example.com.
package cmd
