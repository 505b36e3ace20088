package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mixctl/mixctl/internal/protocol"
)

var modeCmd = &cobra.Command{
	Use:   "mode [independent|linked|inverse]",
	Short: "Get or set the volume coordination mode",
	Long: `Without an argument, prints the active coordination mode.

With an argument, switches the mode. Switching normalizes current
volumes so the new mode starts from a consistent state: linked sets all
sources to their average, inverse gives each source an equal share of
the volume budget, independent leaves volumes as they are.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMode,
}

func init() {
	rootCmd.AddCommand(modeCmd)
}

func runMode(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if len(args) == 0 {
		mode, err := daemonClient.Mode(ctx)
		if err != nil {
			return err
		}
		fmt.Println(mode)
		return nil
	}

	mode, err := protocol.ParseMode(args[0])
	if err != nil {
		return err
	}
	return daemonClient.SetMode(ctx, mode)
}
