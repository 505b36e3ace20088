package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusOpts struct {
	format string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon liveness and summary state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusOpts.format, "format", "f", "plain",
		"Output format (plain, json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := daemonClient.Ping(ctx)
	if err != nil {
		return err
	}

	if statusOpts.format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		return encoder.Encode(st)
	}

	started := time.Now().Add(-time.Duration(st.UptimeMillis) * time.Millisecond)
	fmt.Println("mixd: running")
	fmt.Printf("  Up since: %s\n", humanize.Time(started))
	fmt.Printf("  Sources: %d\n", st.Sources)
	fmt.Printf("  Mode: %s\n", st.Mode)
	return nil
}
