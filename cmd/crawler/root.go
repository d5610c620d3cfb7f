package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alvmarrod/wiki-weaver/internal/config"
	"github.com/alvmarrod/wiki-weaver/internal/crawler"
	"github.com/alvmarrod/wiki-weaver/internal/metrics"
	"github.com/alvmarrod/wiki-weaver/internal/storage"
	"github.com/alvmarrod/wiki-weaver/internal/version"
	"github.com/alvmarrod/wiki-weaver/internal/wiki"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath   string
	seeds        []string
	maxDepth     int
	maxNewTopics int
	workers      int
	verbose      bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wiki-weaver",
		Short: "Resumable crawler of the encyclopedia topic graph",
		Long: `wiki-weaver walks article-to-article links from seed topics, keeps the
links whose targets pass the topic policy and appends them to CSV and JSON
edge files. Work left over when the new-topic budget runs out is saved per
seed and picked up by the next run.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogging(opts.verbose)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runCrawl(cfg)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "config.json", "Path to a JSON or YAML config file")
	cmd.Flags().StringArrayVarP(&opts.seeds, "seed", "s", nil, "Seed topic (repeatable, replaces configured seeds)")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "Maximum traversal depth")
	cmd.Flags().IntVar(&opts.maxNewTopics, "max-new-topics", 0, "Maximum new topics admitted per seed run")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Parallel workers per batch")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewVersionCmd())

	return cmd
}

func setupLogging(verbose bool) {
	logrus.SetLevel(logrus.InfoLevel)
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// loadConfig reads the config file and applies flag overrides. A missing
// default config file falls back to built-in defaults.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	flags := cmd.Flags()

	cfg, err := config.LoadConfig(opts.configPath)
	if errors.Is(err, os.ErrNotExist) && !flags.Changed("config") {
		logrus.Infof("No %s found, using defaults", opts.configPath)
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if flags.Changed("seed") {
		cfg.Seeds = opts.seeds
	}
	if flags.Changed("max-depth") {
		cfg.MaxDepth = opts.maxDepth
	}
	if flags.Changed("max-new-topics") {
		cfg.MaxNewTopics = opts.maxNewTopics
	}
	if flags.Changed("workers") {
		cfg.ConcurrentWorkers = opts.workers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCrawl(cfg *config.Config) error {
	logrus.Infof("Wiki Weaver v%s starting...", version.Version)
	logrus.Infof("Configuration loaded: seeds=%v, depth=%d, max_new_topics=%d, workers=%d, policy=%s",
		cfg.Seeds, cfg.MaxDepth, cfg.MaxNewTopics, cfg.ConcurrentWorkers, cfg.TopicPolicy)

	sink := &storage.EdgeSink{
		Rows:  storage.NewCSVEdgeFile(cfg.EdgesCSVPath),
		Array: storage.NewJSONEdgeFile(cfg.EdgesJSONPath),
	}
	if cfg.DBPath != "" {
		store, err := storage.NewStorage(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()
		sink.Mirror = store
		logrus.Infof("Database initialized: %s", cfg.DBPath)
	}
	frontier := storage.NewFrontierStore(cfg.FrontierDir, cfg.LegacyFrontierFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		sig := <-sigChan
		logrus.Infof("Received signal: %v, finishing in-flight batch before saving...", sig)
		cancel()

		// Second signal = force quit; the previous checkpoint stays valid
		sig = <-sigChan
		logrus.Warnf("Received second signal (%v) - forcing immediate exit!", sig)
		os.Exit(1)
	}()

	start := time.Now()
	var runs []storage.Metrics
	var runErr error

	for _, seed := range cfg.Seeds {
		logrus.Infof("Processing seed topic: %s", seed)

		tracker := metrics.NewTracker(seed)
		result, err := crawlSeed(ctx, cfg, seed, tracker, sink, frontier)
		if err != nil {
			runs = append(runs, tracker.Finish("error"))
			runErr = fmt.Errorf("seed %q: %w", seed, err)
			break
		}
		runs = append(runs, tracker.Finish(result.Reason))
		logrus.Info("Final stats: " + tracker.LogProgress())

		if result.Reason == crawler.ReasonSignal {
			logrus.Info("Interrupted, remaining seeds skipped")
			break
		}
	}

	if err := metrics.WriteToFile(cfg.MetricsPath, runs); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", cfg.MetricsPath)
	}

	logrus.Infof("Total execution time: %.2f seconds", time.Since(start).Seconds())
	return runErr
}

// crawlSeed runs one seed with its own engine state and a progress logger
func crawlSeed(ctx context.Context, cfg *config.Config, seed string, tracker *metrics.Tracker,
	sink *storage.EdgeSink, frontier *storage.FrontierStore) (*crawler.Result, error) {
	client, err := wiki.NewClient(cfg, tracker)
	if err != nil {
		return nil, err
	}

	engine := crawler.NewEngine(client, client, sink, frontier,
		crawler.WithWorkers(cfg.ConcurrentWorkers),
		crawler.WithRecorder(tracker),
	)

	stopProgress := make(chan struct{})
	defer close(stopProgress)
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				logrus.Info(tracker.LogProgress())
			case <-stopProgress:
				return
			}
		}
	}()

	return engine.Run(ctx, seed, cfg.MaxDepth, cfg.MaxNewTopics)
}
