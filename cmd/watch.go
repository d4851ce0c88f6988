package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"scrollfeed/config"
	"scrollfeed/events"
	"scrollfeed/feed"
	"scrollfeed/gateway"
	"scrollfeed/tui"
	"scrollfeed/viewport"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Show the feed in the terminal",
		Description: `Shows the feed in the terminal.

Loads the first page right away and the next one whenever you scroll near the
end. Items created while watching are put at the top.`,
		Flags: []cli.Flag{
			serverFlag(),
			configFlag(),
			&cli.IntFlag{
				Name:    "threshold",
				Value:   5,
				Usage:   "Lines from the end of the feed that trigger loading the next page. Overrides feed.threshold.",
				EnvVars: []string{"SCROLLFEED_WATCH_THRESHOLD"},
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "Write logs to this file. Logs are discarded when empty.",
				EnvVars: []string{"SCROLLFEED_LOG_FILE"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := watchConfig(ctx)
			if err != nil {
				return err
			}

			// The terminal belongs to the view
			log.SetOutput(io.Discard)
			if path := ctx.String("log-file"); path != "" {
				f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				defer f.Close()
				log.SetOutput(f)
			}

			return watch(ctx.Context, cfg)
		},
	}
}

// watchConfig loads the config file and applies the watch flags over it.
// The view measures in lines, so its threshold does not come from the file
// unless --threshold is left at zero.
func watchConfig(ctx *cli.Context) (*config.TomlConfig, error) {
	cfg, err := config.LoadConfig(ctx.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if ctx.IsSet("server") || ctx.String("config") == "" {
		cfg.Client.Server = ctx.String("server")
	}
	if threshold := ctx.Int("threshold"); threshold > 0 {
		cfg.Feed.Threshold = threshold
	}
	return cfg, nil
}

func watch(ctx context.Context, cfg *config.TomlConfig) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	bus := events.NewBus()
	pos := viewport.New()
	signals := tui.NewSignals()

	client := gateway.NewClient(gateway.ClientConfig{
		BaseURL:           cfg.Client.Server,
		RequestsPerSecond: cfg.Client.RequestsPerSecond,
		Timeout:           cfg.Client.Timeout,
		UserAgent:         "scrollfeed-cli",
		PageSize:          cfg.Feed.PageSize,
	})

	ctrl := feed.New(feed.Config{
		Gateway:   client,
		Bus:       bus,
		Viewport:  pos,
		PageSize:  cfg.Feed.PageSize,
		Threshold: cfg.Feed.Threshold,
		Debounce:  cfg.Feed.Debounce,
		Notifier:  signals,
		OnChange:  signals.OnChange,
	})

	stream := events.NewStream(events.StreamConfig{
		Hosts:     []string{cfg.Client.Server},
		UserAgent: "scrollfeed-cli",
	}, bus)

	g, gctx := errgroup.WithContext(runCtx)

	ctrl.Activate(gctx)
	defer func() {
		ctrl.Deactivate()
		ctrl.Wait()
	}()

	g.Go(func() error {
		err := stream.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		// Quitting the view ends the stream too
		defer cancel()

		program := tea.NewProgram(
			tui.NewModel(ctrl, pos, signals),
			tea.WithAltScreen(),
			tea.WithMouseCellMotion(),
			tea.WithContext(gctx),
		)
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})

	return g.Wait()
}
