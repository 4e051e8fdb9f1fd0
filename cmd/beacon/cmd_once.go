package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"beacon/internal/api"
	"beacon/internal/model"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Fetch the upcoming events once and print them",
	Long:  "Load the event list from the configured source, print it as a table and exit. Exits non-zero when the fetch fails.",
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(onceCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	src, err := newEventSource(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*api.Timeout)
	defer cancel()

	events, err := src.FetchEvents(ctx)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}
	return printEvents(cmd.OutOrStdout(), events)
}

func printEvents(w io.Writer, events []model.Event) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTIME\tTITLE\tLOCATION\tIMAGE")
	for _, ev := range events {
		img := "-"
		if ev.HasImage() {
			img = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ev.Date, ev.TimeRange(), ev.Title, ev.Location, img)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d events\n", len(events))
	return err
}
