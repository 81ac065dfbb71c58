package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitescraper/internal/app"
	"github.com/JakeFAU/sitescraper/internal/config"
	"github.com/JakeFAU/sitescraper/internal/crawler"
	"github.com/JakeFAU/sitescraper/internal/logging"
)

// Runner is what the commands need from the application services.
type Runner interface {
	Scrape(ctx context.Context, raw map[string]any) (crawler.Summary, error)
	Logger() *zap.Logger
	Close()
}

// newApp is the application factory. Tests replace it.
var newApp = func(cfg config.Config, logger *zap.Logger) Runner {
	return app.New(logger, app.WithWorkDir(cfg.Output.WorkDir))
}

type sessionKeyType struct{}

// session is what PersistentPreRunE hands to subcommands.
type session struct {
	cfg    config.Config
	runner Runner
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		dev     bool
	)
	cmd := &cobra.Command{
		Use:   "sitescraper",
		Short: "Crawl a website and export its text as CSV chunks.",
		Long: `sitescraper walks a site breadth-first from a seed URL, follows the links
that pass its filters, and writes the visible text of every discovered page
to scraped_data.csv in a per-site directory.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if dev {
				cfg.Logging.Development = true
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			s := &session{cfg: cfg, runner: newApp(cfg, logger)}
			cmd.SetContext(context.WithValue(cmd.Context(), sessionKeyType{}, s))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if s, ok := cmd.Context().Value(sessionKeyType{}).(*session); ok && s != nil {
				s.runner.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().BoolVar(&dev, "dev", false, "human-readable development logging")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func sessionFrom(ctx context.Context) (*session, error) {
	s, ok := ctx.Value(sessionKeyType{}).(*session)
	if !ok || s == nil {
		return nil, errors.New("application services not initialized")
	}
	return s, nil
}

// Execute is the main entry point. Configuration and security problems exit
// with status 2, every other failure with status 1.
func Execute() {
	cmd := newRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if crawler.IsPreflight(err) {
		return 2
	}
	return 1
}
