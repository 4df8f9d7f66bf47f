// Package isastreamcmder
package isastreamcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/xenophobed/isastream/cmd/isastream/chat"
	configcmder "github.com/xenophobed/isastream/cmd/isastream/config"
	replaycmder "github.com/xenophobed/isastream/cmd/isastream/replay"
	servecmder "github.com/xenophobed/isastream/cmd/isastream/serve"
	versioncmder "github.com/xenophobed/isastream/cmd/version"
)

const isastreamLongDesc string = `Isastream is a streaming response decoder for AI chat backends.

It consumes server-sent event streams, reconstructs clean message text from
escaped token fragments, and persists the resulting message records.

Common commands:
  isastream chat      Interactive chat with live stream decoding
  isastream replay    Decode a recorded capture file offline
  isastream serve     Serve a recorded capture as a stand-in backend
  isastream config    Manage persistent configuration`

const isastreamShortDesc string = "Isastream - Streaming Chat Decoder"

func NewIsastreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "isastream",
		Short: isastreamShortDesc,
		Long:  isastreamLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .isastream/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(replaycmder.NewReplayCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
