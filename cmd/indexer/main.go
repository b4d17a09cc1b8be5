package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alvmarrod/index-weaver/internal/audit"
	"github.com/alvmarrod/index-weaver/internal/checker"
	"github.com/alvmarrod/index-weaver/internal/config"
	"github.com/alvmarrod/index-weaver/internal/credentials"
	"github.com/alvmarrod/index-weaver/internal/metrics"
	"github.com/alvmarrod/index-weaver/internal/pipeline"
	"github.com/alvmarrod/index-weaver/internal/storage"
	"github.com/alvmarrod/index-weaver/internal/urllist"
	"github.com/alvmarrod/index-weaver/internal/version"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "Batch-submit URLs to the Google Indexing API with credential rotation",
	Long: `Reads a newline-delimited URL list, checks each URL's reachability,
submits it to the Google Indexing API under a rotating set of service
accounts, and records a per-domain CSV audit trail of outcomes.`,
	Run: func(cmd *cobra.Command, args []string) {
		run()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "config.json", "path to config file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() {
	// Configure logging
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	logrus.Infof("Indexer v%s starting...", version.Version)

	// Load configuration
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Mirror the log to a per-run file
	logPath := filepath.Join(cfg.LogDir, fmt.Sprintf("indexing_%s.log", time.Now().Format("20060102_150405")))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		logrus.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()
	logrus.SetOutput(io.MultiWriter(os.Stdout, logFile))

	runID := uuid.NewString()
	logrus.Infof("Configuration loaded: input=%s, accounts=%d, quota=%d, run=%s",
		cfg.InputFile, len(cfg.KeyFiles), cfg.URLLimitPerAccount, runID)

	// Initialize run-history storage
	store, err := storage.NewStorage(cfg.HistoryDBPath)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	logrus.Infof("Database initialized: %s", cfg.HistoryDBPath)

	// Load the URL list - a missing input file aborts the run
	urls, err := urllist.Load(cfg.InputFile)
	if err != nil {
		logrus.Fatalf("Failed to read input file: %v", err)
	}

	domains := urllist.Authorities(urls)
	logrus.Infof("Found %d unique domains across %d URLs", len(domains), len(urls))

	// One audit file slot per domain, opened on first write
	auditSet := audit.NewSet(cfg.OutputDir, domains)
	defer auditSet.CloseAll()

	chk := checker.New(
		time.Duration(cfg.RequestTimeoutMs)*time.Millisecond,
		cfg.RetryAttempts,
		time.Duration(cfg.RetryDelayMs)*time.Millisecond,
	)

	rotator := credentials.NewRotator(cfg.KeyFiles, cfg.URLLimitPerAccount, nil)

	tracker := metrics.NewTracker(runID)
	tracker.SetTotalURLs(len(urls))

	startedAt := time.Now()
	if err := store.StartRun(&storage.Run{
		RunID:     runID,
		StartedAt: startedAt,
		InputFile: cfg.InputFile,
		TotalURLs: len(urls),
	}); err != nil {
		logrus.Errorf("Failed to record run start: %v", err)
	}

	p := pipeline.New(rotator, chk, auditSet, store, tracker, runID,
		time.Duration(cfg.SubmitDelayMs)*time.Millisecond)

	// Interrupt triggers orderly file closure before exit
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, runErr := p.Run(ctx, urls)
	if runErr != nil {
		logrus.Errorf("Run aborted: %v", runErr)
	}

	// Print summary
	logrus.Info("============================================================")
	logrus.Info("PROCESSING COMPLETE")
	logrus.Infof("Total URLs: %d", sum.TotalURLs)
	logrus.Infof("Successful submissions: %d", sum.Successes)
	logrus.Infof("Failed/Skipped: %d", sum.Failures)
	logrus.Infof("Termination reason: %s", sum.Reason)
	logrus.Info("============================================================")

	logrus.Info("Final stats: " + tracker.LogProgress())

	// Write metrics to file
	if err := tracker.WriteToFile(cfg.MetricsPath, sum.Reason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", cfg.MetricsPath)
	}

	if err := store.FinishRun(&storage.Run{
		RunID:             runID,
		StartedAt:         startedAt,
		FinishedAt:        time.Now(),
		TotalURLs:         sum.TotalURLs,
		Successes:         sum.Successes,
		Failures:          sum.Failures,
		TerminationReason: sum.Reason,
	}); err != nil {
		logrus.Errorf("Failed to record run finish: %v", err)
	}

	// Close all open audit files before exiting
	auditSet.CloseAll()

	logrus.Info("Run finished. Goodbye!")
}
