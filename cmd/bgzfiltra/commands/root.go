package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bgzfiltra/internal/bugzilla"
	"bgzfiltra/internal/cache"
	"bgzfiltra/internal/config"
	"bgzfiltra/internal/logging"
	"bgzfiltra/internal/metrics"
	"bgzfiltra/internal/pipeline"
	"bgzfiltra/internal/questdb"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose     bool
	useCache    bool
	configPath  string
	schedule    string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "bgzfiltra",
	Short: "bgzfiltra aggregates Bugzilla statistics into QuestDB",
	Long: `Fetches all bugs of the configured Bugzilla products, aggregates them by status,
component, L3 escalation, priority and assignee, and appends the counts to QuestDB
time-series tables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Init(verbose)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("config", cfg.Path).
			Strs("products", cfg.Products).
			Msg("bgzfiltra starting")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if schedule != "" {
			return runScheduled(ctx, cfg, schedule, metricsAddr)
		}
		return runOnce(ctx, cfg, nil)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bgzfiltra %s (commit %s, built %s)\n", Version, Commit, BuildDate)
	},
}

// runOnce opens the sink, runs every product once and closes the sink.
func runOnce(ctx context.Context, cfg *config.AppConfig, m *metrics.Metrics) error {
	runner, closeFn, err := newRunner(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer closeFn()
	return runner.Run(ctx)
}

func newRunner(ctx context.Context, cfg *config.AppConfig, m *metrics.Metrics) (*pipeline.Runner, func(), error) {
	db, err := questdb.Open(ctx, cfg.QuestDB)
	if err != nil {
		return nil, nil, err
	}
	sink := questdb.NewSink(db)

	store := cache.NewStore(bugzilla.NewClient(cfg.Bugzilla), cfg.CacheDir)
	runner := pipeline.NewRunner(store, sink, pipeline.Options{
		Products: cfg.Products,
		UseCache: useCache,
		Metrics:  m,
	})

	closeFn := func() {
		if err := sink.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close QuestDB connection")
		}
	}
	return runner, closeFn, nil
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.Flags().BoolVar(&useCache, "use-cache", false, "reuse per-product snapshot files instead of querying Bugzilla")
	rootCmd.Flags().StringVar(&configPath, "config", "", "settings file to try before the default locations")
	rootCmd.Flags().StringVar(&schedule, "schedule", "", `run repeatedly on a cron expression (e.g. "@hourly") instead of once`)
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address in scheduled mode")
	rootCmd.AddCommand(versionCmd)
}
