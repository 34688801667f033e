package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/pageloader/internal/config"
	"github.com/nao1215/pageloader/internal/fetcher"
	"github.com/nao1215/pageloader/internal/filename"
	"github.com/nao1215/pageloader/internal/loader"
	applog "github.com/nao1215/pageloader/internal/log"
	"github.com/nao1215/pageloader/internal/persist"
	"github.com/nao1215/pageloader/internal/report"
	"github.com/nao1215/pageloader/internal/ui"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the page-loader command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page-loader [flags] <pageUrl>",
		Short: "Download a web page for offline viewing",
		Long: `page-loader downloads a web page and the images, stylesheets and scripts
it embeds from its own origin. Resources are saved next to the page in a
"<name>_files" directory and the page is rewritten to reference them.

Resources on other hosts are left untouched. A resource that cannot be
downloaded keeps its original reference and does not fail the run.

Examples:
  # Save into the current directory
  page-loader https://ru.hexlet.io/courses

  # Save into /var/tmp and print a summary
  page-loader -o /var/tmp -s text https://ru.hexlet.io/courses

  # Print only the failures, then the same summary as JSON
  page-loader -s text,json --failed-only https://ru.hexlet.io/courses

Configuration file (.page-loader.yaml) example:
  defaults:
    userAgent: "Mozilla/5.0"
  sites:
    ru.hexlet.io:
      cookie: "session=abc123"
      headers:
        Accept-Language: "ru"
  mimeTypes:
    application/x-font-woff: .woff`,
		Version:       getVersion(),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRootCmd,
	}
	cmd.SetVersionTemplate(versionTemplate())

	cmd.Flags().StringP("output", "o", "",
		"Output directory (default: current directory)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .page-loader.yaml, then XDG config, then home directory)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().IntP("concurrency", "j", config.DefaultConcurrency,
		"Number of resources downloaded at once")
	cmd.Flags().Float64("rate", config.DefaultRateLimit,
		"Maximum requests per second (0 = unlimited)")
	cmd.Flags().Int("burst", config.DefaultRateBurst,
		"Request burst allowed by --rate")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum bytes read from a response (0 = unlimited)")
	cmd.Flags().StringP("summary", "s", config.SummaryNone,
		"Print resource summaries: text, markdown, json or a comma-separated list")
	cmd.Flags().Bool("failed-only", false,
		"List only resources that were not saved in the text summary")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON")
	cmd.Flags().BoolP("verbose", "v", false,
		"Enable verbose logging")

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		ui.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

// runRootCmd executes a page load.
func runRootCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return err
	}
	logger := setupLogger(cmd, cfg.Verbose, logJSON)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runLoad(ctx, cmd, cfg, logger)
}

// buildConfig creates a Config from command flags and the configuration
// file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Target = args[0]

	var err error
	flags := cmd.Flags()

	if cfg.OutputDir, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = flags.GetInt("burst"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.Summary, err = flags.GetString("summary"); err != nil {
		return nil, err
	}
	if cfg.FailedOnly, err = flags.GetBool("failed-only"); err != nil {
		return nil, err
	}
	if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
		return nil, err
	}

	// An explicitly named config file must exist; otherwise a missing
	// file means defaults only.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		if cfg.File, err = config.LoadConfigFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	return cfg, nil
}

// setupLogger creates the secure logger on the command's error stream.
func setupLogger(cmd *cobra.Command, verbose, jsonFormat bool) *slog.Logger {
	if jsonFormat {
		return applog.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return applog.NewSecureLogger(cmd.ErrOrStderr(), verbose)
}

// runLoad downloads the page and prints the result.
func runLoad(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	var progress *ui.Progress
	if stderr, ok := cmd.ErrOrStderr().(*os.File); ok && !cfg.Verbose && ui.IsTerminal(stderr) {
		progress = ui.NewProgress(stderr)
	}

	l, err := newLoader(cfg, logger, progress, cmd.Flags().Changed("user-agent"))
	if err != nil {
		return err
	}

	result, err := l.Load(ctx, cfg.Target, cfg.OutputDir)
	progress.Finish()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.Filepath)

	if failed := result.Failed(); len(failed) > 0 {
		ui.PrintWarning(cmd.ErrOrStderr(), "%d of %d resource(s) could not be saved",
			len(failed), len(result.Resources))
	}

	if formats := cfg.SummaryFormats(); len(formats) > 0 {
		w, err := report.NewWriters(formats, out, report.WithShowSaved(!cfg.FailedOnly))
		if err != nil {
			return err
		}
		if _, err := w.Write(report.NewSummary(result)); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	return nil
}

// newLoader builds a Loader for cfg, applying the site configuration of the
// target host. A user agent given on the command line beats the site's.
func newLoader(cfg *config.Config, logger *slog.Logger, progress *ui.Progress, userAgentFlag bool) (*loader.Loader, error) {
	target, err := loader.ParseTarget(cfg.Target)
	if err != nil {
		return nil, err
	}

	site := cfg.File.GetSiteConfig(target.Hostname())
	userAgent := cfg.UserAgent
	if site.UserAgent != "" && !userAgentFlag {
		userAgent = site.UserAgent
	}

	f := fetcher.New(
		fetcher.WithTimeout(cfg.Timeout),
		fetcher.WithUserAgent(userAgent),
		fetcher.WithCookie(site.Cookie),
		fetcher.WithHeaders(site.Headers),
		fetcher.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithLogger(logger),
	)

	return loader.New(
		loader.WithFetcher(f),
		loader.WithStore(persist.New(persist.WithLogger(logger))),
		loader.WithResolver(filename.DefaultTable().Merge(cfg.File.MIMETypes)),
		loader.WithConcurrency(cfg.Concurrency),
		loader.WithLogger(logger),
		loader.WithOnDiscover(progress.Start),
		loader.WithOnSettle(progress.Settle),
	), nil
}
