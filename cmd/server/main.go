// Package main provides the audio daemon entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/bgmbox/internal/api/connect"
	"github.com/osa030/bgmbox/internal/app/notification"
	"github.com/osa030/bgmbox/internal/app/playback"
	"github.com/osa030/bgmbox/internal/app/settings"
	"github.com/osa030/bgmbox/internal/domain/track"
	"github.com/osa030/bgmbox/internal/infra/config"
	"github.com/osa030/bgmbox/internal/infra/device"
	"github.com/osa030/bgmbox/internal/infra/logger"
	"github.com/osa030/bgmbox/internal/infra/store"
)

var (
	app        = kingpin.New("bgmbox-server", "bgmbox audio playback daemon")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-tracks command
	listTracksCmd = app.Command("list-tracks", "List the track catalog and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output:  "stdout",
		Level:   "info",
		Service: "bgmbox-server",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == listTracksCmd.FullCommand() {
		printTracks(track.NewCatalog(cfg.Playback.AssetDir))
		return
	}

	// Run server (defer ensures shutdown hook is called)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	settingsStore, err := store.Open(cfg.Settings)
	if err != nil {
		return errors.Wrap(err, "failed to open settings store")
	}
	defer func() {
		if err := settingsStore.Close(); err != nil {
			zlog.Error().Msgf("Failed to close settings store: %v", err)
		}
	}()

	factory, err := device.NewFactory(cfg.Device)
	if err != nil {
		return errors.Wrap(err, "failed to create device factory")
	}

	catalog := track.NewCatalog(cfg.Playback.AssetDir)
	controller := playback.NewController(
		playback.Config{
			Catalog:             catalog,
			FadeSteps:           cfg.Playback.FadeSteps,
			DefaultFadeDuration: cfg.FadeDuration(),
		},
		factory,
		settings.NewPersister(settingsStore, cfg.Settings.Key),
	)

	notifier := notification.NewManager()
	forwardCtx, stopForward := context.WithCancel(context.Background())
	defer stopForward()
	go notifier.Forward(forwardCtx, controller.Events())

	playbackService := apiconnect.NewPlaybackService(controller, notifier, catalog)

	mux := http.NewServeMux()
	authInterceptor := apiconnect.NewControlAuthInterceptor(cfg)
	path, handler := apiconnect.NewPlaybackServiceHandler(
		playbackService,
		connect.WithInterceptors(authInterceptor),
	)
	mux.Handle(path, handler)
	if !cfg.IsControlProtected() {
		zlog.Warn().Msg("Control token not configured, mutating procedures are open")
	}

	serverAddr := cfg.Server.Addr
	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    serverAddr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s device=%s settings=%s", serverAddr, cfg.Device.Type, cfg.Settings.Backend)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	// Execute startup hook if configured (after server is running)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close the controller first to release devices and end subscriber streams
	controller.Close()
	notifier.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// printTracks prints the track catalog.
func printTracks(catalog track.Catalog) {
	fmt.Println("Available Tracks:")
	for _, id := range track.All() {
		fmt.Printf("  %-10s %s\n", id, catalog.MustURI(id))
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
