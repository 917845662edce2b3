package main

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/acirtautas/genmetrika-gallery/config"
)

// rootOptions carries the resolved configuration to subcommands.
type rootOptions struct {
	configFile string
	flags      *config.Config
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&rootOptions{flags: config.DefaultConfig()})
}

func newRootCmdWith(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "Crawl paginated photo galleries and browse them in the terminal",
		Long: `Gallery crawls a paginated thumbnail gallery, resolves the full-size image
behind every detail page and either exports the collection or opens it in
an interactive viewer with zoom, pan and rotation.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional
			_ = godotenv.Load()

			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			opts.cfg = cfg

			slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.Verbose))
			return nil
		},
	}

	flags := opts.flags
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "YAML configuration file")
	pf.StringVar(&flags.Fetcher, "fetcher", flags.Fetcher, "Page fetcher: http or chrome")
	pf.IntVar(&flags.Parallelism, "parallel", flags.Parallelism, "Number of concurrent requests")
	pf.DurationVar(&flags.Timeout, "timeout", flags.Timeout, "Per-request timeout, 0 waits indefinitely")
	pf.StringVar(&flags.UserAgent, "user-agent", flags.UserAgent, "User-Agent header")
	pf.IntVar(&flags.CacheSize, "cache-size", flags.CacheSize, "Page cache entries (0 disables)")
	pf.StringSliceVar(&flags.AllowedDomains, "allowed-domains", nil, "Restrict fetches to these domains")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(newCrawlCmd(opts), newViewCmd(opts))
	return cmd
}

// resolveConfig layers defaults, the YAML file, the environment and the
// flags set on the command line, in that order.
func resolveConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configFile != "" {
		loaded, err := config.LoadFile(opts.configFile, cfg)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	flags := cmd.Flags()
	set := opts.flags
	if flags.Changed("fetcher") {
		cfg.Fetcher = set.Fetcher
	}
	if flags.Changed("parallel") {
		cfg.Parallelism = set.Parallelism
	}
	if flags.Changed("timeout") {
		cfg.Timeout = set.Timeout
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = set.UserAgent
	}
	if flags.Changed("cache-size") {
		cfg.CacheSize = set.CacheSize
	}
	if flags.Changed("allowed-domains") {
		cfg.AllowedDomains = set.AllowedDomains
	}
	if flags.Changed("verbose") {
		cfg.Verbose = set.Verbose
	}
	if flags.Changed("output") {
		cfg.OutputFile = set.OutputFile
	}
	if flags.Changed("format") {
		cfg.OutputFormat = set.OutputFormat
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = set.MetricsAddr
	}
	if flags.Changed("sidebar-width") {
		cfg.SidebarWidth = set.SidebarWidth
	}
	return cfg, nil
}

// originFromArgs takes the gallery URL from the first argument, falling
// back to the configured origin.
func originFromArgs(cfg *config.Config, args []string) error {
	if len(args) > 0 {
		cfg.OriginURL = args[0]
	}
	if err := cfg.ValidateOrigin(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
