// Package chatcmder provides the chat command for interactive chat with
// live stream decoding.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenophobed/isastream/pkg/backend"
	"github.com/xenophobed/isastream/pkg/chat"
	"github.com/xenophobed/isastream/pkg/cliui"
	"github.com/xenophobed/isastream/pkg/config"
	"github.com/xenophobed/isastream/pkg/dotdir"
	"github.com/xenophobed/isastream/pkg/eventstream"
	"github.com/xenophobed/isastream/pkg/eventstream/kafka"
	"github.com/xenophobed/isastream/pkg/logger"
	"github.com/xenophobed/isastream/pkg/storage"
	"github.com/xenophobed/isastream/pkg/storage/inmemory"
	"github.com/xenophobed/isastream/pkg/storage/postgres"
	"github.com/xenophobed/isastream/pkg/storage/sqlite"
	"github.com/xenophobed/isastream/pkg/stream"
	"github.com/xenophobed/isastream/pkg/utils"
	"github.com/xenophobed/isastream/pkg/worker"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	target        string
	model         string
	storageDriver string
	sqlitePath    string
	postgresDSN   string
	publish       bool
	brokers       []string
	topic         string
	capturePath   string
	render        bool
	fresh         bool
	debug         bool
	configDir     string

	logger *zap.Logger
}

// chatFlags defines every configurable flag the chat command exposes.
var chatFlags = config.FlagSet{
	config.FlagBackendTarget: {
		Name:        "target",
		Shorthand:   "t",
		ViperKey:    "backend.target",
		Description: "Chat backend base URL",
	},
	config.FlagModel: {
		Name:        "model",
		Shorthand:   "m",
		ViperKey:    "backend.model",
		Description: "Model name recorded with stored messages",
	},
	config.FlagStorageDriver: {
		Name:        "storage-driver",
		ViperKey:    "storage.driver",
		Description: "Message store driver (sqlite, postgres, memory)",
	},
	config.FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to the SQLite message store",
	},
	config.FlagPostgresDSN: {
		Name:        "postgres-dsn",
		ViperKey:    "storage.postgres_dsn",
		Description: "Postgres connection string for the message store",
	},
	config.FlagPublish: {
		Name:        "publish",
		ViperKey:    "eventstream.enabled",
		Description: "Publish newly stored messages to the event stream",
	},
	config.FlagBrokers: {
		Name:        "brokers",
		ViperKey:    "eventstream.brokers",
		Description: "Kafka broker addresses",
	},
	config.FlagTopic: {
		Name:        "topic",
		ViperKey:    "eventstream.topic",
		Description: "Kafka topic for message events",
	},
	config.FlagCapture: {
		Name:        "capture",
		Shorthand:   "c",
		ViperKey:    "replay.capture",
		Description: "Append raw stream lines to this capture file",
	},
}

const chatLongDesc string = `Start an interactive chat session against the configured backend.

Each turn streams the backend's server-sent events through the decoder:
escaped token fragments are reassembled into clean text as they arrive,
workflow and tool progress is shown inline, and the completed message is
persisted to the configured message store in the background.

Session identity is remembered in the .isastream/ directory, so repeated
runs continue the same backend session. Use --new to start fresh.

With --capture, every raw stream line is mirrored to a file that
"isastream replay" can later serve as a stand-in backend.

Examples:
  isastream chat
  isastream chat --target http://localhost:8089 --capture run.sse
  isastream chat --storage-driver memory --render`

const chatShortDesc string = "Interactive chat with live stream decoding"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, chatFlags, []string{
				config.FlagBackendTarget,
				config.FlagModel,
				config.FlagStorageDriver,
				config.FlagSQLite,
				config.FlagPostgresDSN,
				config.FlagPublish,
				config.FlagBrokers,
				config.FlagTopic,
				config.FlagCapture,
			})

			cmder.target = v.GetString("backend.target")
			cmder.model = v.GetString("backend.model")
			cmder.storageDriver = v.GetString("storage.driver")
			cmder.sqlitePath = v.GetString("storage.sqlite_path")
			cmder.postgresDSN = v.GetString("storage.postgres_dsn")
			cmder.publish = v.GetBool("eventstream.enabled")
			cmder.brokers = v.GetStringSlice("eventstream.brokers")
			cmder.topic = v.GetString("eventstream.topic")
			cmder.capturePath = v.GetString("replay.capture")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, chatFlags, config.FlagBackendTarget, &cmder.target)
	config.AddStringFlag(cmd, chatFlags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, chatFlags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, chatFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, chatFlags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddBoolFlag(cmd, chatFlags, config.FlagPublish, &cmder.publish)
	config.AddStringSliceFlag(cmd, chatFlags, config.FlagBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, chatFlags, config.FlagTopic, &cmder.topic)
	config.AddStringFlag(cmd, chatFlags, config.FlagCapture, &cmder.capturePath)

	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Start a new session instead of resuming")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render the finished response as markdown instead of streaming raw tokens")

	return cmd
}

func (c *chatCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	ddm := dotdir.NewManager()
	if c.fresh {
		if err := ddm.ClearSession(c.configDir); err != nil {
			return fmt.Errorf("clearing session state: %w", err)
		}
	}

	state, err := ddm.LoadSessionState(c.configDir)
	if err != nil {
		return fmt.Errorf("loading session state: %w", err)
	}

	var sessionID string
	fmt.Println()
	if state != nil {
		sessionID = state.SessionID
		fmt.Printf("  %s Resuming session %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(utils.Truncate(sessionID, 16)),
		)
	} else {
		sessionID = uuid.NewString()
		fmt.Printf("  %s New session %s\n",
			cliui.DimStyle.Render("●"),
			cliui.NameStyle.Render(utils.Truncate(sessionID, 16)),
		)
	}

	fmt.Printf("  %s %s\n",
		cliui.KeyStyle.Render("Backend:"),
		cliui.ValueStyle.Render(c.target),
	)
	fmt.Printf("  %s %s\n\n",
		cliui.KeyStyle.Render("Model:"),
		cliui.NameStyle.Render(c.model),
	)
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	var store storage.Store
	err = cliui.Step(os.Stdout, "Opening message store", func() error {
		var openErr error
		store, openErr = c.openStore()
		return openErr
	})
	if err != nil {
		return err
	}
	defer store.Close()
	fmt.Println()

	var publisher eventstream.Publisher
	if c.publish {
		if len(c.brokers) == 0 {
			return errors.New("eventstream publishing enabled but no brokers configured")
		}
		publisher = kafka.NewPublisher(c.brokers, c.topic)
		defer publisher.Close()
	}

	pool, err := worker.NewPool(&worker.Config{
		Store:     store,
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("starting worker pool: %w", err)
	}
	defer pool.Close()

	var capture *os.File
	if c.capturePath != "" {
		capture, err = os.OpenFile(c.capturePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening capture file: %w", err)
		}
		defer capture.Close()
	}

	client := backend.NewClient(c.target, c.logger)
	source := eventstream.EventSource{
		SessionID: sessionID,
		Model:     c.model,
		Backend:   c.target,
	}

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		if err := c.streamTurn(client, pool, source, sessionID, input, capture); err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			continue
		}

		fmt.Println()
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	// Remember the session so the next run resumes it.
	saveErr := ddm.SaveSession(&dotdir.SessionState{
		SessionID: sessionID,
		Model:     c.model,
	}, c.configDir)
	if saveErr != nil {
		return fmt.Errorf("saving session state: %w", saveErr)
	}

	fmt.Println()
	return nil
}

// streamTurn sends one message and decodes the streamed response, printing
// deltas and progress as they arrive. The completed message is handed to the
// worker pool for storage.
func (c *chatCommander) streamTurn(client *backend.Client, pool *worker.Pool, source eventstream.EventSource, sessionID, input string, capture io.Writer) error {
	body, err := client.Stream(context.Background(), sessionID, input)
	if err != nil {
		return err
	}
	defer body.Close()

	var final *chat.Message
	sink := stream.SinkFuncs{
		OnStreamingStart: func() {
			if !c.render {
				fmt.Print(assistantPrompt)
			}
		},
		OnTokenReceived: func(tok string) {
			if !c.render {
				fmt.Print(tok)
			}
		},
		OnStreamingStatus: func(status stream.Status) {
			label := status.Node
			if label == "" {
				label = status.Type
			}
			fmt.Printf("  %s\n", cliui.StatusStyle.Render(fmt.Sprintf("%s: %s", label, status.Status)))
		},
		OnToolImagesFound: func(urls []string, _ string, _ map[string]any) {
			for _, u := range urls {
				fmt.Printf("\n  %s %s\n", cliui.DimStyle.Render("image:"), cliui.ValueStyle.Render(u))
			}
		},
		OnMessageReceived: func(msg chat.Message) {
			final = &msg
		},
	}

	var opts []stream.Option
	if capture != nil {
		opts = append(opts, stream.WithCapture(capture))
	}

	decoder := stream.NewDecoder(sink, c.logger, opts...)
	if err := decoder.Run(context.Background(), body); err != nil {
		return err
	}

	if final == nil {
		return errors.New("stream ended without a message")
	}

	if c.render {
		rendered, err := cliui.RenderMarkdown(final.Content)
		if err != nil {
			rendered = final.Content
		}
		fmt.Print(assistantPrompt)
		fmt.Print(rendered)
	} else if final.Metadata.HasMedia {
		for _, item := range final.Metadata.MediaItems {
			fmt.Printf("\n  %s %s\n", cliui.DimStyle.Render("media:"), cliui.ValueStyle.Render(item.URL))
		}
	}

	pool.Enqueue(worker.Job{
		SessionID: sessionID,
		Source:    source,
		Message:   *final,
	})

	return nil
}

// openStore creates the message store selected by the storage driver config.
func (c *chatCommander) openStore() (storage.Store, error) {
	switch c.storageDriver {
	case "sqlite", "":
		path := c.sqlitePath
		if path == "" {
			target, err := dotdir.NewManager().Target(c.configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving storage path: %w", err)
			}
			if target == "" {
				return nil, errors.New("no .isastream directory available for the message store")
			}
			path = filepath.Join(target, "messages.db")
		}
		return sqlite.NewStore(path)

	case "postgres":
		if c.postgresDSN == "" {
			return nil, errors.New("postgres storage driver requires storage.postgres_dsn")
		}
		return postgres.NewStore(context.Background(), c.postgresDSN)

	case "memory":
		return inmemory.NewStore(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", c.storageDriver)
	}
}
