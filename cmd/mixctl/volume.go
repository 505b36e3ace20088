package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var volumeCmd = &cobra.Command{
	Use:   "volume",
	Short: "Get or set source volume",
}

var volumeGetCmd = &cobra.Command{
	Use:   "get <source-id>",
	Short: "Print a source's current volume",
	Args:  cobra.ExactArgs(1),
	RunE:  runVolumeGet,
}

var volumeSetCmd = &cobra.Command{
	Use:   "set <source-id> <0-100>",
	Short: "Set a source's volume",
	Long: `Set one source's volume. How the other sources react depends on the
active coordination mode: independent leaves them alone, linked scales
them proportionally, inverse rebalances them to keep the total constant.

Examples:
  mixctl volume set tab-42 80
  mixctl volume get tab-42`,
	Args: cobra.ExactArgs(2),
	RunE: runVolumeSet,
}

var volumeMasterCmd = &cobra.Command{
	Use:   "master <0-100>",
	Short: "Set every source to the same volume",
	Args:  cobra.ExactArgs(1),
	RunE:  runVolumeMaster,
}

func init() {
	rootCmd.AddCommand(volumeCmd)
	volumeCmd.AddCommand(volumeGetCmd)
	volumeCmd.AddCommand(volumeSetCmd)
	volumeCmd.AddCommand(volumeMasterCmd)
}

func runVolumeGet(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	volume, err := daemonClient.Volume(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(volume)
	return nil
}

func runVolumeSet(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	volume, err := parseVolume(args[1])
	if err != nil {
		return err
	}
	return daemonClient.SetVolume(ctx, args[0], volume)
}

func runVolumeMaster(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	volume, err := parseVolume(args[0])
	if err != nil {
		return err
	}
	return daemonClient.SetMasterVolume(ctx, volume)
}

// parseVolume parses and range-checks a volume argument.
func parseVolume(arg string) (int, error) {
	volume, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("volume must be an integer, got %q", arg)
	}
	if volume < 0 || volume > 100 {
		return 0, fmt.Errorf("volume must be between 0 and 100, got %d", volume)
	}
	return volume, nil
}
