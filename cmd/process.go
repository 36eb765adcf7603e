package cmd

import (
	"fmt"

	"github.com/audiolibrelab/miccapture/internal/service"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Validate an existing audio file",
	Long:  `Validate an audio file and print its metadata without recording anything.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := newService(nil)
		result, err := svc.ProcessAudio(cmd.Context(), service.Options{InputFile: args[0]})
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("error marshaling result: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}
