package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tgforward/internal/capability"
	cfgpkg "tgforward/internal/config"
	"tgforward/internal/downloader"
	"tgforward/internal/engine"
	"tgforward/internal/history"
	"tgforward/internal/logging"
	"tgforward/internal/model"
	"tgforward/internal/pipeline"
	"tgforward/internal/platform/gotdclient"
	"tgforward/internal/ratelimit"
	"tgforward/internal/resolver"
	"tgforward/internal/status"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a forwarding pass over the configured channel pairs.",
	Run:   runApp,
}

var startTime = time.Now()

func init() {
	cfgpkg.SetFlags(runCmd)
	runCmd.Flags().Int("status-port", 8181, "port the /status JSON endpoint listens on")
}

func runApp(cmd *cobra.Command, args []string) {
	log := logging.New(logging.Options{Dev: false, Level: "info"})
	mainLogger := log.Named("Main")
	mainLogger.Info("starting tgforward", zap.String("version", versionString))

	cfg, err := cfgpkg.Load(log, cmd)
	if err != nil {
		mainLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	log = logging.New(logging.Options{Dev: cfg.Secrets.Dev, Level: cfg.Secrets.LogLevel, FilePath: "logs/tgforward.log"})
	mainLogger = log.Named("Main")

	client := gotdclient.New(gotdclient.Options{
		APIID:       int(cfg.Secrets.APIID),
		APIHash:     cfg.Secrets.APIHash,
		BotToken:    cfg.Secrets.BotToken,
		SessionName: cfg.Secrets.SessionName,
		UseSQLite:   cfg.Secrets.UseSessionFile,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		mainLogger.Fatal("failed to connect to Telegram", zap.Error(err))
	}
	defer client.Disconnect(context.Background())

	store, err := history.Open(history.DefaultPaths(cfg.Storage.TmpPath), log)
	if err != nil {
		mainLogger.Fatal("failed to open history store", zap.Error(err))
	}
	defer store.Close()
	store.StartAutoSave(ctx, 30*time.Second)

	res := resolver.New(client, log, 10*time.Minute)
	prober := capability.New(client, log, capability.DefaultTTL)
	rl := ratelimit.New(ratelimit.DefaultOptions(), log)
	eng := engine.New(client, res, prober, store, rl, log)

	reporter := status.NewReporter(startTime)
	statusPort, _ := cmd.Flags().GetInt("status-port")
	statusRouter := status.Router(log, cfg.Secrets.Dev, reporter)
	go func() {
		addr := fmt.Sprintf(":%d", statusPort)
		mainLogger.Info("status server listening", zap.String("addr", addr))
		if err := statusRouter.Run(addr); err != nil {
			mainLogger.Error("status server stopped", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		mainLogger.Info("received shutdown signal")
		cancel()
	}()

	engCfg := buildEngineConfig(cfg)

	reporter.SetRunning(true)
	stats := eng.Run(ctx, engCfg)
	reporter.SetRunning(false)
	reporter.Update(stats)

	mainLogger.Info("run complete",
		zap.Int("total", stats.Total),
		zap.Int("success", stats.Success),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("error_overflow", stats.ErrorOverflow))

	if len(stats.ErrorMessages) > 0 {
		for _, msg := range stats.ErrorMessages {
			mainLogger.Warn("forwarding error", zap.String("detail", msg))
		}
	}
}

// buildEngineConfig translates the structured configuration sections
// (spec §10) into the Forwarding Engine's run input.
func buildEngineConfig(cfg *cfgpkg.Config) engine.Config {
	pairs := make([]engine.Pair, len(cfg.Forward.ForwardChannelPairs))
	for i, p := range cfg.Forward.ForwardChannelPairs {
		pairs[i] = engine.Pair{Source: p.SourceChannel, Targets: p.TargetChannels}
	}

	mediaTypes := map[model.MediaKind]bool{}
	for _, kind := range cfgpkg.SplitMediaTypes(cfg.Forward.MediaTypes) {
		mediaTypes[model.MediaKind(kind)] = true
	}

	downloadOpts := downloader.DefaultOptions(cfg.Download.Directory)
	if cfg.Download.RetryCount > 0 {
		downloadOpts.RetryCount = cfg.Download.RetryCount
	}
	if cfg.Download.RetryDelaySeconds > 0 {
		downloadOpts.RetryDelay = time.Duration(cfg.Download.RetryDelaySeconds) * time.Second
	}
	if cfg.Download.ConcurrentDownloads > 0 {
		downloadOpts.Concurrency = cfg.Download.ConcurrentDownloads
	}

	pipelineOpts := pipeline.DefaultOptions()
	if cfg.Upload.ConcurrentUploads > 0 {
		pipelineOpts.UploadWorkers = cfg.Upload.ConcurrentUploads
	}
	if cfg.Forward.TimeoutSeconds > 0 {
		pipelineOpts.Timeout = time.Duration(cfg.Forward.TimeoutSeconds) * time.Second
	}

	return engine.Config{
		Pairs:           pairs,
		StartID:         cfg.Forward.StartID,
		EndID:           cfg.Forward.EndID,
		Limit:           cfg.Forward.Limit,
		MediaTypes:      mediaTypes,
		RemoveCaptions:  cfg.Forward.RemoveCaptions,
		CaptionTemplate: cfg.Forward.CaptionTemplate,
		Attribution:     cfg.Forward.Attribution,
		ForwardDelay:    time.Duration(cfg.Forward.ForwardDelaySeconds * float64(time.Second)),
		MaxRetries:      cfg.Forward.MaxRetries,
		PipelineOptions: pipelineOpts,
		DownloadOptions: downloadOpts,
	}
}
