package main

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/robfig/cron/v3"

	"beacon/internal/capture"
	"beacon/internal/config"
	appLog "beacon/internal/log"
	"beacon/internal/slideshow"
)

// newScheduler registers the periodic status log and, when configured,
// the preview capture job. Jobs stop running once ctx is cancelled.
func newScheduler(ctx context.Context, cfg *config.Config, engine *slideshow.Engine) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	if cfg.StatusCron != "" {
		if _, err := c.AddFunc(cfg.StatusCron, func() { logStatus(engine.Snapshot()) }); err != nil {
			return nil, fmt.Errorf("status_cron %q: %w", cfg.StatusCron, err)
		}
	}

	if cfg.PreviewCron != "" {
		opts := previewOptions(cfg, localURL(cfg))
		if _, err := c.AddFunc(cfg.PreviewCron, func() {
			if ctx.Err() != nil {
				return
			}
			if err := capture.CapturePNG(ctx, opts); err != nil {
				appLog.Error("preview capture failed", err, "url", redactUser(opts.URL))
				return
			}
			appLog.Info("preview captured", "path", opts.OutputPath)
		}); err != nil {
			return nil, fmt.Errorf("preview_cron %q: %w", cfg.PreviewCron, err)
		}
	}

	appLog.Info("scheduler configured", "jobs", len(c.Entries()),
		"status_cron", cfg.StatusCron, "preview_cron", cfg.PreviewCron)
	return c, nil
}

// logStatus writes a one-line summary of the slideshow state.
func logStatus(snap *slideshow.Snapshot) {
	kv := []any{
		"events", snap.Count(),
		"index", snap.Index,
		"images", snap.ImageCount(),
		"generation", snap.Generation,
		"fetch_in_flight", snap.FetchInFlight,
		"last_refresh", snap.LastRefresh.Format("2006-01-02T15:04:05Z07:00"),
	}
	if cur, ok := snap.Current(); ok {
		kv = append(kv, "current", cur.Title)
	}
	if snap.LastError != "" {
		kv = append(kv, "last_error", snap.LastError)
	}
	appLog.Info("slideshow status", kv...)
}

// localURL is the address of this process's own slide page, with basic
// auth credentials embedded when enabled.
func localURL(cfg *config.Config) string {
	host, port, err := net.SplitHostPort(cfg.Listen)
	if err != nil {
		host, port = "127.0.0.1", "8080"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(host, port), Path: "/"}
	if ba := cfg.BasicAuth; ba != nil && ba.Username != "" && ba.Password != "" {
		u.User = url.UserPassword(ba.Username, ba.Password)
	}
	return u.String()
}

func previewOptions(cfg *config.Config, target string) capture.Options {
	return capture.Options{
		URL:        target,
		OutputPath: cfg.PreviewPath,
		Width:      cfg.WindowWidth,
		Height:     cfg.WindowHeight,
	}
}

// redactUser drops credentials from u for logging.
func redactUser(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	return parsed.Redacted()
}
