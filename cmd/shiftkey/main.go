// Command shiftkey bridges a Wahoo KICKR BIKE SHIFT's buttons to the
// host keyboard over BLE. It scans for the bike, subscribes to button
// notifications, and injects the configured key per button, with tap or
// hold-until-release behavior and optional typematic repeat.
//
// The configured hotkey toggles connect/disconnect; Ctrl+C exits and
// releases any held keys.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/shiftkey/internal/ble"
	"github.com/chaz8081/shiftkey/internal/bridge"
	"github.com/chaz8081/shiftkey/internal/config"
	"github.com/chaz8081/shiftkey/internal/frame"
	"github.com/chaz8081/shiftkey/internal/hotkey"
	"github.com/chaz8081/shiftkey/internal/keys"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/shiftkey/config.yaml)")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	setLogLevel(cfg.LogLevel)
	printBanner(cfg)

	prefixes, err := cfg.PrefixMap()
	if err != nil {
		log.Fatalf("config buttons: %v", err)
	}

	// Assemble the pipeline: decoder → dispatcher → key injector.
	injector := keys.NewRobotgo()
	decoder := frame.NewDecoder(prefixes)
	dispatcher := bridge.NewDispatcher(injector, cfg.ButtonsByName())

	adapter := ble.NewNativeAdapter()
	if err := adapter.Enable(); err != nil {
		log.Fatalf("Failed to enable BLE adapter: %v\n\nEnsure Bluetooth is on and this app has Bluetooth permission.", err)
	}
	log.Println("BLE adapter ready")

	sup := bridge.NewSupervisor(adapter, cfg, decoder, dispatcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Supervisor runs in the background; runDone reports each Run exit so
	// the hotkey can restart it.
	runDone := make(chan error, 1)
	startRun := func() {
		go func() { runDone <- sup.Run(ctx) }()
	}
	startRun()
	state := &runState{running: true}

	// Hotkey toggles connect/disconnect (optional).
	var toggles <-chan struct{}
	if len(cfg.Hotkey) > 0 {
		listener := hotkey.NewListener(cfg.Hotkey)
		go listener.Start()
		toggles = listener.Toggles()
		log.Printf("Hotkey ready (%s toggles connect/disconnect)", strings.Join(cfg.Hotkey, "+"))
	}

	// Signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Println("Ready! Keys go to the foreground app. Ctrl+C to quit.")

	for {
		select {
		case _, ok := <-toggles:
			if !ok {
				toggles = nil
				continue
			}
			switch state.onToggle() {
			case toggleStop:
				log.Println("Hotkey: disconnecting")
				sup.Disconnect()
			case toggleStart:
				log.Println("Hotkey: connecting")
				startRun()
			case toggleNone:
				log.Println("Hotkey: disconnect in progress, reconnecting after it completes")
			}

		case err := <-runDone:
			if err != nil {
				log.Printf("ERROR: supervisor: %v", err)
			}
			if state.onRunExit() == toggleStart {
				log.Println("Hotkey: connecting")
				startRun()
			} else {
				log.Println("Disconnected. Press the hotkey to reconnect.")
			}

		case sig := <-sigCh:
			log.Printf("Received %s, shutting down...", sig)
			sup.Disconnect()
			cancel()
			if state.running {
				select {
				case <-runDone:
				case <-time.After(3 * time.Second):
					log.Println("Supervisor slow to stop, forcing exit")
				}
			}
			// Belt and braces: the session teardown already released held
			// keys, but releasing again is idempotent and covers the case
			// where the supervisor never got to its cleanup.
			dispatcher.ReleaseAll()
			log.Println("Goodbye!")
			// Exit directly to avoid gohook's C cleanup crash.
			// The OS reclaims the event hook on process exit.
			os.Exit(0)
		}
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// setLogLevel applies the configured slog level process-wide.
func setLogLevel(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetLogLoggerLevel(l)
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== shiftkey ===")
	fmt.Printf("  Device:    %s*\n", cfg.DeviceNamePrefix)
	fmt.Printf("  Buttons:   %d mapped\n", len(cfg.Buttons))
	fmt.Printf("  Scan:      %.1fs timeout, %.1fs reconnect delay\n", cfg.ScanTimeoutS, cfg.ReconnectDelayS)
	if len(cfg.Hotkey) > 0 {
		fmt.Printf("  Hotkey:    %s\n", strings.Join(cfg.Hotkey, "+"))
	}
	fmt.Printf("  Log:       %s\n", cfg.LogLevel)
	fmt.Println("================")
}
