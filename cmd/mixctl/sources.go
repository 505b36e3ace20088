package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var sourcesOpts struct {
	format string
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the audio sources tracked by the daemon",
	Long: `List every audio source the daemon is currently tracking, with its
volume, mute state and when it last reported activity.

Examples:
  # Table output
  mixctl sources

  # JSON for scripting
  mixctl sources --format json`,
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)

	sourcesCmd.Flags().StringVarP(&sourcesOpts.format, "format", "f", "table",
		"Output format (table, json)")
}

func runSources(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sources, err := daemonClient.Sources(ctx)
	if err != nil {
		return err
	}

	if sourcesOpts.format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(sources)
	}

	if len(sources) == 0 {
		fmt.Println("No audio sources tracked")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVOLUME\tMUTED\tLAST SEEN")
	for _, src := range sources {
		muted := "no"
		if src.Muted {
			muted = "yes"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", src.ID, src.Volume, muted, humanize.Time(src.LastSeenAt))
	}
	return w.Flush()
}
