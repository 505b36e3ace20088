package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var muteCmd = &cobra.Command{
	Use:   "mute",
	Short: "Mute and unmute sources",
}

var muteOnCmd = &cobra.Command{
	Use:   "on <source-id>",
	Short: "Mute a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setMute(args[0], true)
	},
}

var muteOffCmd = &cobra.Command{
	Use:   "off <source-id>",
	Short: "Unmute a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setMute(args[0], false)
	},
}

var muteAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Toggle global mute",
	Long: `Toggle mute across every tracked source. If all sources are muted
they are all unmuted; otherwise they are all muted.`,
	Args: cobra.NoArgs,
	RunE: runMuteAll,
}

func init() {
	rootCmd.AddCommand(muteCmd)
	muteCmd.AddCommand(muteOnCmd)
	muteCmd.AddCommand(muteOffCmd)
	muteCmd.AddCommand(muteAllCmd)
}

func setMute(sourceID string, muted bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return daemonClient.SetMute(ctx, sourceID, muted)
}

func runMuteAll(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	muted, err := daemonClient.ToggleMuteAll(ctx)
	if err != nil {
		return err
	}
	if muted {
		fmt.Println("All sources muted")
	} else {
		fmt.Println("All sources unmuted")
	}
	return nil
}
