// Package servecmder provides the serve command for running the capture
// replay server.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xenophobed/isastream/pkg/config"
	"github.com/xenophobed/isastream/pkg/logger"
	"github.com/xenophobed/isastream/pkg/replay"
)

type serveCommander struct {
	listen  string
	capture string
	delayMs uint
	logFile string
	debug   bool

	logger *slog.Logger
}

// serveFlags defines every configurable flag the serve command exposes.
var serveFlags = config.FlagSet{
	config.FlagReplayListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "replay.listen",
		Description: "Address for the replay server to listen on",
	},
	config.FlagCapture: {
		Name:        "capture",
		Shorthand:   "c",
		ViperKey:    "replay.capture",
		Description: "Capture file to replay",
	},
	config.FlagDelayMs: {
		Name:        "delay-ms",
		ViperKey:    "replay.delay_ms",
		Description: "Delay between replayed frames in milliseconds",
	},
}

const serveLongDesc string = `Run the capture replay server.

The server answers every POST /api/chat/stream request by replaying a
recorded capture file as a server-sent event stream, pacing frames with the
configured delay. It stands in for the real backend in development and tests.

Captures are recorded with "isastream chat --capture".

Examples:
  isastream serve --capture run.sse
  isastream serve --capture run.sse --listen :9000 --delay-ms 50`

const serveShortDesc string = "Run the capture replay server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, serveFlags, []string{
				config.FlagReplayListen,
				config.FlagCapture,
				config.FlagDelayMs,
			})

			cmder.listen = v.GetString("replay.listen")
			cmder.capture = v.GetString("replay.capture")
			cmder.delayMs = v.GetUint("replay.delay_ms")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			if cmder.capture == "" {
				return fmt.Errorf("no capture file configured (set --capture or replay.capture)")
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagReplayListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagCapture, &cmder.capture)
	config.AddUintFlag(cmd, serveFlags, config.FlagDelayMs, &cmder.delayMs)

	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *serveCommander) run() error {
	opts := []logger.Option{logger.WithPretty(true)}
	if c.debug {
		opts = append(opts, logger.WithDebug(true))
	}
	c.logger = logger.New(opts...)

	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()

		fileOpts := []logger.Option{logger.WithJSON(true), logger.WithWriter(f)}
		if c.debug {
			fileOpts = append(fileOpts, logger.WithDebug(true))
		}
		c.logger = logger.Multi(c.logger, logger.New(fileOpts...))
	}

	server, err := replay.New(replay.Config{
		ListenAddr:  c.listen,
		CapturePath: c.capture,
		Delay:       time.Duration(c.delayMs) * time.Millisecond,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating replay server: %w", err)
	}
	defer server.Close()

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("replay server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	}
}
