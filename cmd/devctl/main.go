// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Command devctl binds the devices described in a configuration file and
// serves their attributes.
//
// Usage:
//
//	devctl -config <file> [flags]
//
// Flags:
//
//	-config string     Configuration file path (required)
//	-sim               Bind to simulated hardware rather than the real thing
//	-shell             Run an interactive shell on the terminal
//	-log-level string  Override the configured log level
//
// The attributes are exposed over MQTT if a broker is configured.
//
// SIGUSR1 suspends the board to RAM and SIGUSR2 resumes it.
// SIGINT and SIGTERM unbind the devices and exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/warthog618/go-devctl"
	"github.com/warthog618/go-devctl/mqttsurface"
	"github.com/warthog618/go-devctl/simhw"
)

func main() {
	cfgPath := flag.String("config", "", "Configuration file path")
	sim := flag.Bool("sim", false, "Bind to simulated hardware")
	shell := flag.Bool("shell", false, "Run an interactive shell")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	if *cfgPath == "" {
		fmt.Fprintln(os.Stderr, "devctl: -config is required")
		flag.Usage()
		os.Exit(2)
	}
	cfg, err := devctl.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devctl: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := run(cfg, *sim, *shell); err != nil {
		fmt.Fprintf(os.Stderr, "devctl: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *devctl.Config, sim, shell bool) error {
	var sh *shellSession
	out := io.Writer(os.Stderr)
	if shell {
		var err error
		if sh, err = newShell(); err != nil {
			return err
		}
		defer sh.Close()
		out = sh.Stderr()
	}
	logger := newLogger(cfg.Logging, out)

	var hw devctl.Hardware = &devctl.LinuxHardware{}
	if sim {
		hw = simhw.FromBindings(cfg.Devices)
		logger.Info("using simulated hardware")
	}
	board, err := devctl.NewBoard(
		devctl.WithHardware(hw),
		devctl.WithConfig(cfg),
		devctl.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer board.Close()
	logger.Info("board bound", "devices", len(board.Devices))

	if cfg.MQTT.Broker != "" {
		client, err := mqttsurface.Dial(cfg.MQTT)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		s := mqttsurface.New(client, board.Devices,
			mqttsurface.WithPrefix(cfg.MQTT.Prefix),
			mqttsurface.WithQoS(cfg.MQTT.QoS),
			mqttsurface.WithLogger(logger.With("component", "mqtt")),
		)
		if err := s.Start(); err != nil {
			return err
		}
		defer s.Stop()
		logger.Info("mqtt surface started", "broker", cfg.MQTT.Broker, "prefix", cfg.MQTT.Prefix)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if sh != nil {
		go sh.Run(ctx, cancel, board)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGUSR1:
				if err := board.Suspend(devctl.SuspendToRAM); err != nil {
					logger.Error("suspend failed", "error", err)
				}
			case syscall.SIGUSR2:
				if err := board.Resume(); err != nil {
					logger.Error("resume failed", "error", err)
				}
			default:
				logger.Info("shutting down", "signal", sig.String())
				return nil
			}
		}
	}
}

// newLogger creates the logger described by cfg, writing to w.
func newLogger(cfg devctl.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// parseLevel converts a log level name to an slog.Level.
//
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
