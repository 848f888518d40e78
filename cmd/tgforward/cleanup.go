package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "tgforward/internal/config"
	"tgforward/internal/downloader"
	"tgforward/internal/history"
	"tgforward/internal/logging"
)

// cleanupCmd is the explicit-call-only entry point for history and
// temp-artifact retention (spec §4.3: "history cleanup runs only on
// explicit request, never automatically"). It never runs as part of
// `tgforward run`.
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove history entries and temp artifacts older than their retention window.",
	Run:   runCleanup,
}

func init() {
	cfgpkg.SetFlags(cleanupCmd)
	cleanupCmd.Flags().Int("max-age-days", 30, "drop history entries older than this many days")
	cleanupCmd.Flags().Int("temp-max-age-hours", 24, "remove downloaded artifacts older than this many hours")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) {
	log := logging.New(logging.Options{Dev: false, Level: "info"})
	mainLogger := log.Named("Main")

	cfg, err := cfgpkg.Load(log, cmd)
	if err != nil {
		mainLogger.Fatal("failed to load configuration", zap.Error(err))
	}
	log = logging.New(logging.Options{Dev: cfg.Secrets.Dev, Level: cfg.Secrets.LogLevel})
	mainLogger = log.Named("Main")

	store, err := history.Open(history.DefaultPaths(cfg.Storage.TmpPath), log)
	if err != nil {
		mainLogger.Fatal("failed to open history store", zap.Error(err))
	}
	defer store.Close()

	maxAgeDays, _ := cmd.Flags().GetInt("max-age-days")
	removedHistory, err := store.Cleanup(maxAgeDays)
	if err != nil {
		mainLogger.Error("history cleanup failed", zap.Error(err))
	} else {
		mainLogger.Info("history cleanup complete", zap.Int("removed", removedHistory))
	}

	downloadOpts := downloader.DefaultOptions(cfg.Download.Directory)
	d, err := downloader.New(nil, store, downloadOpts, log)
	if err != nil {
		mainLogger.Fatal("failed to init downloader for temp cleanup", zap.Error(err))
	}

	tempMaxAgeHours, _ := cmd.Flags().GetInt("temp-max-age-hours")
	removedTemp, err := d.CleanupTemp(time.Duration(tempMaxAgeHours) * time.Hour)
	if err != nil {
		mainLogger.Error("temp artifact cleanup failed", zap.Error(err))
	} else {
		mainLogger.Info("temp artifact cleanup complete", zap.Int("removed", removedTemp))
	}
}
