package main

import (
	"github.com/spf13/cobra"

	"beacon/internal/capture"
	appLog "beacon/internal/log"
)

var (
	captureURL string
	captureOut string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture a PNG of the slide page with headless Chromium",
	Long:  "Render the slide page (by default the one served by a running beacon) and write a screenshot.",
	RunE:  runCapture,
}

func init() {
	captureCmd.Flags().StringVar(&captureURL, "url", "", "Page to capture (default: this instance's slide page)")
	captureCmd.Flags().StringVar(&captureOut, "out", "", "Output PNG path (default: preview_path from config)")
	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	target := captureURL
	if target == "" {
		target = localURL(cfg)
	}
	opts := previewOptions(cfg, target)
	if captureOut != "" {
		opts.OutputPath = captureOut
	}

	if err := capture.CapturePNG(cmd.Context(), opts); err != nil {
		return err
	}
	appLog.Info("capture written", "path", opts.OutputPath, "url", redactUser(target))
	return nil
}
