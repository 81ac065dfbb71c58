package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type crawlFlags struct {
	domain      string
	maxDepth    int
	unbounded   bool
	splitLength int
	include     []string
	exclude     []string
	startWith   string
}

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var f crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl and print the CSV path",
		Long: `Runs discovery and content extraction once using the "crawl" section of
the config file. Flags override individual keys of that section.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, f)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.domain, "domain", "", "seed URL (http or https)")
	flags.IntVar(&f.maxDepth, "max-depth", 3, "maximum link distance from the seed")
	flags.BoolVar(&f.unbounded, "unbounded", false, "crawl without a depth limit")
	flags.IntVar(&f.splitLength, "split-length", 2000, "characters per CSV chunk")
	flags.StringSliceVar(&f.include, "include", nil, "keep only URLs containing one of these keywords")
	flags.StringSliceVar(&f.exclude, "exclude", nil, "drop URLs containing any of these keywords")
	flags.StringVar(&f.startWith, "start-with", "", "keep only URLs with this prefix")
	cmd.MarkFlagsMutuallyExclusive("max-depth", "unbounded")
	return cmd
}

// overrides returns the crawl keys set explicitly on the command line.
func (f crawlFlags) overrides(cmd *cobra.Command) map[string]any {
	out := map[string]any{}
	changed := cmd.Flags().Changed
	if changed("domain") {
		out["domain"] = f.domain
	}
	if changed("max-depth") {
		out["max_depth"] = f.maxDepth
	}
	if f.unbounded {
		out["max_depth"] = nil
	}
	if changed("split-length") {
		out["split_length"] = f.splitLength
	}
	if changed("include") {
		out["include_keywords"] = f.include
	}
	if changed("exclude") {
		out["exclude_keywords"] = f.exclude
	}
	if changed("start-with") {
		out["start_with"] = f.startWith
	}
	return out
}

func runCrawl(cmd *cobra.Command, f crawlFlags) error {
	s, err := sessionFrom(cmd.Context())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := s.runner.Scrape(ctx, s.cfg.CrawlMap(f.overrides(cmd)))
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	if summary.CircuitOpened {
		s.runner.Logger().Warn("crawl stopped early by the circuit breaker", zap.String("output", summary.OutputPath))
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), summary.OutputPath)
	return err
}
