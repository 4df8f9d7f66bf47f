// Package replaycmder provides the replay command for decoding recorded
// capture files offline.
package replaycmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenophobed/isastream/pkg/chat"
	"github.com/xenophobed/isastream/pkg/cliui"
	"github.com/xenophobed/isastream/pkg/logger"
	"github.com/xenophobed/isastream/pkg/stream"
	"github.com/xenophobed/isastream/pkg/utils"
)

type replayCommander struct {
	json  bool
	debug bool

	logger *zap.Logger
}

const replayLongDesc string = `Decode a recorded capture file offline.

Runs the capture through the stream decoder without any network I/O and
prints the emitted event trace: workflow and tool status updates, content
deltas as they would have streamed, and a summary of the assembled message.

With --json the final message record is printed as JSON instead of the
event trace.

Captures are recorded with "isastream chat --capture".

Examples:
  isastream replay run.sse
  isastream replay run.sse --json`

const replayShortDesc string = "Decode a recorded capture file offline"

func NewReplayCmd() *cobra.Command {
	cmder := &replayCommander{}

	cmd := &cobra.Command{
		Use:   "replay <capture-file>",
		Short: replayShortDesc,
		Long:  replayLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(args[0])
		},
	}

	cmd.Flags().BoolVar(&cmder.json, "json", false, "Print the final message record as JSON")

	return cmd
}

func (c *replayCommander) run(path string) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening capture file: %w", err)
	}
	defer f.Close()

	var final *chat.Message
	sink := stream.SinkFuncs{
		OnStreamingStart: func() {
			if !c.json {
				fmt.Printf("  %s streaming started\n", cliui.DimStyle.Render("●"))
			}
		},
		OnTokenReceived: func(tok string) {
			if !c.json {
				fmt.Print(tok)
			}
		},
		OnStreamingStatus: func(status stream.Status) {
			if c.json {
				return
			}
			label := status.Node
			if label == "" {
				label = status.Type
			}
			fmt.Printf("  %s\n", cliui.StatusStyle.Render(fmt.Sprintf("%s: %s", label, status.Status)))
		},
		OnToolResult: func(result chat.ToolResult) {
			if !c.json {
				fmt.Printf("  %s %s (%s)\n", cliui.DimStyle.Render("tool:"), result.Action, result.Status)
			}
		},
		OnStreamingEnd: func() {
			if !c.json {
				fmt.Println()
			}
		},
		OnMessageReceived: func(msg chat.Message) {
			final = &msg
		},
	}

	decoder := stream.NewDecoder(sink, c.logger)
	if err := decoder.Run(context.Background(), f); err != nil {
		return err
	}

	if final == nil {
		return errors.New("capture ended without a message")
	}

	if c.json {
		data, err := json.MarshalIndent(final, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding message: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("\n  %s message %s %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(utils.Truncate(final.ID, 16)),
		cliui.DimStyle.Render(fmt.Sprintf("(%d chars)", len(final.Content))),
	)
	return nil
}
