// Package replay serves recorded stream capture files back over HTTP as
// server-sent events. A capture file is the raw line mirror produced by the
// decoder's capture option; the replay server makes those recordings usable
// as a stand-in backend for development and tests.
package replay

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Config is the configuration for the replay server.
type Config struct {
	// ListenAddr is the address the server listens on, e.g. ":8000".
	ListenAddr string

	// CapturePath is the capture file replayed for every stream request.
	CapturePath string

	// Delay is the pause between replayed frames. Zero replays as fast as
	// the client consumes.
	Delay time.Duration
}

// Server replays a capture file as an SSE response.
type Server struct {
	config Config
	server *fiber.App
	logger *slog.Logger
}

// New creates a new replay server.
func New(config Config, logger *slog.Logger) (*Server, error) {
	if config.CapturePath == "" {
		return nil, errors.New("capture path is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		server: app,
		logger: logger,
	}

	app.Post("/api/chat/stream", s.handleStream)

	return s, nil
}

// Run starts the replay server on the configured listening address.
func (s *Server) Run() error {
	s.logger.Info("starting replay server",
		"listen", s.config.ListenAddr,
		"capture", s.config.CapturePath,
	)

	return s.server.Listen(s.config.ListenAddr)
}

// RunWithListener starts the replay server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting replay server",
		"listen", listener.Addr().String(),
		"capture", s.config.CapturePath,
	)

	return s.server.Listener(listener)
}

// Close gracefully shuts down the replay server.
func (s *Server) Close() error {
	return s.server.Shutdown()
}

// handleStream replays the capture file to the client.
func (s *Server) handleStream(c *fiber.Ctx) error {
	f, err := os.Open(s.config.CapturePath)
	if err != nil {
		s.logger.Error("could not open capture file",
			"capture", s.config.CapturePath,
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "capture file unavailable",
		})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	// io.Pipe keeps frame pacing intact: each write blocks until the client
	// consumes it, so the configured delay is observed end to end.
	pr, pw := io.Pipe()

	go s.replayCapture(f, pw)

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// replayCapture writes capture lines to the pipe with the configured delay
// between frames. Always closes the file and the pipe writer.
func (s *Server) replayCapture(f *os.File, pw *io.PipeWriter) {
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	first := true
	for scanner.Scan() {
		if !first && s.config.Delay > 0 {
			time.Sleep(s.config.Delay)
		}
		first = false

		if _, err := pw.Write(append(scanner.Bytes(), '\n')); err != nil {
			// Client went away; nothing left to replay.
			s.logger.Debug("replay aborted", "error", err)
			pw.CloseWithError(err)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		s.logger.Error("reading capture file", "error", err)
		pw.CloseWithError(err)
		return
	}

	pw.Close()
}
