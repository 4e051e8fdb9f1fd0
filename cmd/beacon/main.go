package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"beacon/internal/api"
	"beacon/internal/config"
	"beacon/internal/ics"
	"beacon/internal/imagefetch"
	appLog "beacon/internal/log"
	"beacon/internal/slideshow"
	"beacon/internal/web"
)

// Persistent flag values shared by every command.
var (
	flagConfigPath string
	flagListen     string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "beacon",
	Short: "Beacon - event slideshow for lobby and hallway displays",
	Long: "Beacon periodically loads upcoming events, cycles through them as full-screen " +
		"slides and keeps their images cached in memory.",
	SilenceUsage: true,
	RunE:         runKiosk,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", config.DefaultPath(), "Path to config file (.toml or .yaml)")
	rootCmd.PersistentFlags().StringVar(&flagListen, "listen", "", "HTTP listen address (overrides config if set)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config if set)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file and applies flag overrides and the log
// level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flagListen != "" {
		cfg.Listen = flagListen
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// newEventSource builds the configured event source.
func newEventSource(cfg *config.Config) (slideshow.EventSource, error) {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Warn("unknown timezone; using UTC", "timezone", cfg.Timezone, "error", err.Error())
	}

	switch cfg.Source {
	case config.SourceICS:
		feeds := make([]ics.Feed, 0, len(cfg.ICS))
		for _, c := range cfg.ICS {
			if c.URL == "" {
				continue
			}
			id := c.ID
			if id == "" {
				id = c.Name
			}
			feeds = append(feeds, ics.Feed{ID: id, URL: c.URL, Category: c.Category})
		}
		if len(feeds) == 0 {
			return nil, errors.New("source is ics but no ics feeds are configured")
		}
		return ics.NewSource(feeds, ics.SourceOptions{
			Horizon:  cfg.Horizon(),
			Location: loc,
		}), nil
	default:
		return api.NewClient(cfg.APIURL, loc), nil
	}
}

func runKiosk(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	appLog.Info("beacon starting",
		"source", cfg.Source,
		"api_url", cfg.APIURL,
		"ics_count", len(cfg.ICS),
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"slide_interval", cfg.SlideInterval().String(),
		"refresh_interval", cfg.RefreshInterval().String(),
		"tick_interval", cfg.TickInterval().String(),
	)

	src, err := newEventSource(cfg)
	if err != nil {
		return err
	}

	engine := slideshow.New(src, imagefetch.NewFetcher(), slideshow.Options{
		SlideInterval:   cfg.SlideInterval(),
		RefreshInterval: cfg.RefreshInterval(),
		TickInterval:    cfg.TickInterval(),
	})
	server := web.NewServer(cfg, engine)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobs, err := newScheduler(ctx, cfg, engine)
	if err != nil {
		return err
	}
	jobs.Start()
	defer func() { <-jobs.Stop().Done() }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		appLog.Error("beacon stopped with error", err)
		return err
	}
	appLog.Info("beacon exiting")
	return nil
}
