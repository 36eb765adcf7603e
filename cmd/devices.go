package cmd

import (
	"fmt"

	"github.com/audiolibrelab/miccapture/internal/apperror"
	"github.com/audiolibrelab/miccapture/internal/audio"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available audio input devices",
	Long:  `List the audio input devices ffmpeg can record from, in order of preference.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := newCatalog()
		devices := catalog.ListDevices(cmd.Context())
		if len(devices) == 0 {
			return apperror.NoDevicesAvailable()
		}

		saved, _ := newPrefsStore().Load()

		fmt.Printf("Audio input devices (%d found):\n", len(devices))
		for _, d := range audio.RankDevices(devices, keywords()) {
			marker := " "
			if saved != nil && saved.AudioDevice == d.Index {
				marker = "*"
			}
			fmt.Printf(" %s [%s] %s\n", marker, d.Index, d.Name)
		}
		if saved != nil {
			fmt.Printf("\n* saved device (%s)\n", newPrefsStore().Path())
		}
		return nil
	},
}

var devicesSelectCmd = &cobra.Command{
	Use:   "select <index>",
	Short: "Save the device to record from by default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index := args[0]
		info := newCatalog().GetDeviceInfo(cmd.Context(), index)
		if info == nil {
			return apperror.InvalidDevice(index)
		}

		store := newPrefsStore()
		if err := store.Save(*info); err != nil {
			return fmt.Errorf("failed to save device: %w", err)
		}
		fmt.Printf("Selected [%s] %s\n", info.AudioDevice, info.AudioDeviceName)
		return nil
	},
}

var devicesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the saved device and auto-detect again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newPrefsStore().Clear(); err != nil {
			return err
		}
		fmt.Println("Saved device cleared")
		return nil
	},
}

var devicesTestCmd = &cobra.Command{
	Use:   "test <index>",
	Short: "Check that a device can be recorded from",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index := args[0]
		info := newCatalog().GetDeviceInfo(cmd.Context(), index)
		if info == nil {
			return apperror.DeviceNotAccessible(index, fmt.Errorf("probe recording failed"))
		}

		fmt.Printf("[%s] %s: OK\n", info.AudioDevice, info.AudioDeviceName)
		if info.SampleRate > 0 {
			fmt.Printf("  sample rate: %d Hz\n", info.SampleRate)
		}
		if info.Channels > 0 {
			fmt.Printf("  channels: %d (%s)\n", info.Channels, info.ChannelLayout)
		}
		return nil
	},
}

var devicesDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Find the best working device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := newCatalog()
		index := catalog.DetectBestDevice(cmd.Context())
		fmt.Printf("Best device: %s\n", index)

		save, _ := cmd.Flags().GetBool("save")
		if !save {
			return nil
		}
		info := catalog.GetDeviceInfo(cmd.Context(), index)
		if info == nil {
			return apperror.DeviceNotAccessible(index, fmt.Errorf("probe recording failed"))
		}
		if err := newPrefsStore().Save(*info); err != nil {
			return fmt.Errorf("failed to save device: %w", err)
		}
		fmt.Printf("Selected [%s] %s\n", info.AudioDevice, info.AudioDeviceName)
		return nil
	},
}

func keywords() []string {
	if len(cfg.Devices.PreferenceKeywords) > 0 {
		return cfg.Devices.PreferenceKeywords
	}
	return audio.DefaultPreferenceKeywords
}

func init() {
	devicesDetectCmd.Flags().Bool("save", false, "save the detected device as the default")

	devicesCmd.AddCommand(devicesSelectCmd)
	devicesCmd.AddCommand(devicesClearCmd)
	devicesCmd.AddCommand(devicesTestCmd)
	devicesCmd.AddCommand(devicesDetectCmd)
}
