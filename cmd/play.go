package cmd

import (
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Play an audio file",
	Long: `Play an audio file with the configured player, or the first of
ffplay, afplay, mpv and vlc found on PATH.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newPlayer().Play(cmd.Context(), args[0])
	},
}
