package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/goldmansoap/findmycat-agent/internal/cache"
	"github.com/goldmansoap/findmycat-agent/internal/models"
	"github.com/goldmansoap/findmycat-agent/internal/services"
	"github.com/goldmansoap/findmycat-agent/internal/session"
	"github.com/goldmansoap/findmycat-agent/internal/utils"
	"github.com/goldmansoap/findmycat-agent/pkg/api"
	"github.com/goldmansoap/findmycat-agent/pkg/credentials"
	"github.com/goldmansoap/findmycat-agent/pkg/file"
)

func main() {
	var (
		configPath string
		serverURL  string
		cachePath  string
		interval   time.Duration
		pairCode   string
		once       bool
		verbose    bool
	)

	pflag.StringVar(&configPath, "config", "configs/config.yaml", "path to the agent config file")
	pflag.StringVar(&serverURL, "server", "", "server URL, overrides config and saved credentials")
	pflag.StringVar(&cachePath, "cache-path", "", "path to the Find My cache file")
	pflag.DurationVar(&interval, "interval", 0, "polling interval")
	pflag.StringVar(&pairCode, "pair-code", "", "pair this machine using a code from the web UI")
	pflag.BoolVar(&once, "once", false, "run a single poll cycle and exit")
	pflag.BoolVar(&verbose, "verbose", false, "enable debug logging")
	pflag.Parse()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file; defaults apply when it is absent
	config, err := utils.LoadConfig(configPath, fileClient)
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := buildLogger(config, verbose)

	// Load saved pairing credentials
	creds := credentials.NewStore(file.ExpandHome(config.Credentials.File), fileClient)
	if err := creds.Load(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load credentials")
	}

	// Server resolution: explicit flag wins, then the server saved during
	// pairing, then the config default.
	server := config.Server.URL
	if creds.GetServer() != "" {
		server = creds.GetServer()
	}
	if pflag.CommandLine.Changed("server") {
		server = serverURL
	}

	if cachePath == "" {
		cachePath = config.Cache.Path
	}
	cachePath = file.ExpandHome(cachePath)
	if interval <= 0 {
		interval = time.Duration(config.Sync.Interval) * time.Second
	}
	httpTimeout := time.Duration(config.Server.Timeout) * time.Second

	apiClient := api.NewClient(server, httpTimeout, logger)

	sess := session.NewSession(logger)
	if err := sess.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start session")
	}

	if creds.IsPaired() {
		apiClient.SetToken(creds.GetToken())
		sess.SetPaired(creds.GetPairCode())
		logger.Info().Msg("Auth token loaded; client will send authenticated updates")
	}

	reader := cache.NewReader(fileClient, sess, logger)
	sender := services.NewSenderService(config.Sync.BatchSize, apiClient, sess, logger)
	syncService := services.NewSyncService(interval, cachePath, apiClient, reader, sender, sess, logger)
	pairingService := services.NewPairingService(apiClient, creds, sess, syncService, logger)

	logger.Info().
		Str("server", apiClient.BaseURL()).
		Str("cache_path", cachePath).
		Dur("interval", interval).
		Msg("FindMyCat agent starting")

	if pairCode != "" {
		ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
		err := pairingService.Pair(ctx, pairCode)
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("Pairing failed")
		}
	}

	if once {
		syncService.RunOnce(context.Background())
		sender.Wait()
		snap := sess.Snapshot()
		if snap.Status == models.StatusError {
			logger.Error().Str("last_error", snap.LastError).Msg("Single cycle finished with errors")
			os.Exit(1)
		}
		logger.Info().Int("devices", len(snap.Devices)).Msg("Single cycle completed")
		return
	}

	if err := syncService.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start sync service")
	}

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	if err := syncService.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop sync service")
	}
	sender.Wait()
	if err := sess.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop session")
	}
}

// buildLogger sets up zerolog with console output and an optional log file.
func buildLogger(config *utils.Config, verbose bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(config.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}}
	if config.Logging.File != "" {
		logFile, err := os.OpenFile(file.ExpandHome(config.Logging.File), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			writers = append(writers, logFile)
		}
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
}
