// Package main implements the entry point for the braille display server.
// The server bridges browser pages to a refreshable braille display: it keeps
// the bridge connection alive, runs reading activities over lesson content,
// and serves the browser-facing event feed and API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/edequartel/BrailleServer/activity"
	"github.com/edequartel/BrailleServer/activity/activities"
	"github.com/edequartel/BrailleServer/braille"
	"github.com/edequartel/BrailleServer/component"
	"github.com/edequartel/BrailleServer/config"
	"github.com/edequartel/BrailleServer/content"
	"github.com/edequartel/BrailleServer/device"
	"github.com/edequartel/BrailleServer/gateway"
	"github.com/edequartel/BrailleServer/metric"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "brailleserver"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	slog.Info("Starting braille display server",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"language", cfg.Language,
		"cells", cfg.Cells)

	manager, err := assemble(cfg, logger)
	if err != nil {
		return err
	}

	return runWithSignalHandling(context.Background(), manager, cliCfg.ShutdownTimeout)
}

// initializeCLI parses and validates flags
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, true, nil
	}

	return cliCfg, false, nil
}

// initializeConfiguration loads the config file over the defaults and applies
// flag overrides
func initializeConfiguration(cliCfg *CLIConfig) (config.Config, error) {
	cfg := config.DefaultConfig()
	if cliCfg.ConfigPath != "" {
		loaded, err := config.Load(cliCfg.ConfigPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if cliCfg.LogLevel != "" {
		cfg.LogLevel = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.LogFormat = cliCfg.LogFormat
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// assemble wires the components together and registers them with the
// lifecycle manager in start order: device, runner, gateway.
func assemble(cfg config.Config, logger *slog.Logger) (*component.Manager, error) {
	metricsRegistry := metric.NewMetricsRegistry()
	metricsRegistry.Metrics.ServiceStatus.Set(1)

	deviceClient, err := device.NewClient(cfg.DeviceConfig(), metricsRegistry, logger)
	if err != nil {
		return nil, fmt.Errorf("create device client: %w", err)
	}

	position, err := loadContent(cfg.ContentDir, logger)
	if err != nil {
		return nil, err
	}

	runner, err := setupRunner(cfg, deviceClient, position, metricsRegistry, logger)
	if err != nil {
		return nil, err
	}
	runner.SetAutoRun(cfg.AutoRun)

	// thumb keys and cursor routing come in over the same event channel
	deviceClient.Subscribe(dispatchDeviceEvents(runner, position))

	manager := component.NewManager(logger)

	line := braille.NewLine(braille.WithCells(cfg.Cells))
	gatewayServer, err := gateway.New(
		cfg.GatewayAddr(),
		deviceClient,
		runner,
		manager,
		metricsRegistry.Handler(),
		line,
		braille.Lang(cfg.Language),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("create gateway: %w", err)
	}

	for _, c := range []component.Component{deviceClient, runner, gatewayServer} {
		if err := manager.Register(c); err != nil {
			return nil, fmt.Errorf("register %s: %w", c.Meta().Name, err)
		}
	}
	return manager, nil
}

// loadContent loads the lesson library and positions at its start. An empty
// content directory is allowed; the server then runs without activities until
// content arrives in a later deployment.
func loadContent(dir string, logger *slog.Logger) (*content.Position, error) {
	if dir == "" {
		logger.Warn("no content directory configured, activities disabled")
		return content.NewPosition(&content.Library{}), nil
	}

	library, err := content.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	logger.Info("content loaded", "dir", dir, "lessons", len(library.Lessons()))
	return content.NewPosition(library), nil
}

// setupRunner registers the built-in activity modules and creates the runner
// with the auto-advance callback.
func setupRunner(
	cfg config.Config,
	deviceClient *device.Client,
	position *content.Position,
	metricsRegistry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*activity.Runner, error) {
	registry := activity.NewRegistry()
	if err := registry.Register("wordline", activities.NewWordLine(deviceClient, cfg.Cells, logger)); err != nil {
		return nil, fmt.Errorf("register wordline: %w", err)
	}
	if err := registry.Register("flash", activities.NewFlash(deviceClient, cfg.Cells, cfg.FlashInterval(), logger)); err != nil {
		return nil, fmt.Errorf("register flash: %w", err)
	}

	var runner *activity.Runner
	advance := func() {
		position.NextRecord()
		runner.StartActivity(true)
	}

	runner, err := activity.NewRunner(
		registry,
		&runSource{position: position},
		metricsRegistry,
		logger,
		activity.WithCells(cfg.Cells),
		activity.WithAdvance(advance),
	)
	if err != nil {
		return nil, fmt.Errorf("create runner: %w", err)
	}
	return runner, nil
}

// runSource adapts the content position to the runner's context source
type runSource struct {
	position *content.Position
}

func (s *runSource) Current() (activity.Context, bool) {
	_, record, index, act, ok := s.position.Current()
	if !ok {
		return activity.Context{}, false
	}
	return activity.Context{
		Activity:    act,
		Caption:     record.Caption,
		Record:      record,
		RecordIndex: index,
	}, true
}

// dispatchDeviceEvents routes inbound device events: cursor keys go to the
// active activity, thumb keys drive record navigation and activity control.
func dispatchDeviceEvents(runner *activity.Runner, position *content.Position) func(device.Event) {
	return func(ev device.Event) {
		switch e := ev.(type) {
		case device.CursorEvent:
			runner.ForwardCursor(e)
		case device.ThumbKeyEvent:
			if !e.Pressed {
				return
			}
			switch e.Name {
			case "start", "enter":
				runner.StartActivity(false)
			case "next", "right":
				position.NextRecord()
				runner.StartActivity(false)
			case "previous", "left":
				position.PrevRecord()
				runner.StartActivity(false)
			}
		}
	}
}

// runWithSignalHandling starts the components and blocks until shutdown
func runWithSignalHandling(ctx context.Context, manager *component.Manager, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := manager.StartAll(signalCtx); err != nil {
		return fmt.Errorf("start components: %w", err)
	}
	slog.Info("Braille display server started")

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := manager.StopAll(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("Shutdown complete")
	return nil
}
