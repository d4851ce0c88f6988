/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scrollfeed/config"
	"scrollfeed/moderation"
	"scrollfeed/server"
	"scrollfeed/store"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the content feed",
		Description: `Starts the content server.

Migrates the database, then serves items newest first a page at a time,
accepts new items and announces them to event stream subscribers.`,
		Flags: []cli.Flag{
			databaseFlag(),
			configFlag(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"SCROLLFEED_PORT"},
			},
			&cli.StringFlag{
				Name:    "hostname",
				Aliases: []string{"n"},
				Usage:   "The hostname where the server is running",
				EnvVars: []string{"SCROLLFEED_HOSTNAME"},
			},
			&cli.DurationFlag{
				Name:    "retention",
				Usage:   "Periodically remove items older than this. 0 keeps everything.",
				EnvVars: []string{"SCROLLFEED_RETENTION"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if ctx.IsSet("database") {
				cfg.Server.Database = ctx.String("database")
			}
			if ctx.IsSet("port") {
				cfg.Server.Port = ctx.Int("port")
			}
			if ctx.IsSet("hostname") {
				cfg.Server.Hostname = ctx.String("hostname")
			}

			if err := store.Migrate(cfg.Server.Database); err != nil {
				return err
			}
			s, err := store.Open(cfg.Server.Database)
			if err != nil {
				return err
			}
			defer s.Close()

			bc := server.NewBroadcaster()
			app := server.Server(&server.ServerConfig{
				Hostname:     cfg.Server.Hostname,
				Store:        s,
				Broadcaster:  bc,
				Detector:     moderation.NewDetector(cfg.Server.Languages),
				AllowOrigins: cfg.Server.AllowOrigins,
			})

			done := make(chan struct{})
			if retention := ctx.Duration("retention"); retention > 0 {
				go tidyPeriodically(s, retention, done)
			}

			// Graceful shutdown
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sig
				log.Info("Gracefully shutting down...")
				close(done)
				bc.Shutdown()
				if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
					log.WithFields(log.Fields{
						"error": err,
					}).Error("Error shutting down server")
				}
			}()

			log.WithFields(log.Fields{
				"port":     cfg.Server.Port,
				"hostname": cfg.Server.Hostname,
				"database": cfg.Server.Database,
			}).Info("Starting server")

			return app.Listen(fmt.Sprintf(":%d", cfg.Server.Port))
		},
	}
}

func tidyPeriodically(s *store.Store, retention time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			removed, err := s.Tidy(context.Background(), retention)
			if err != nil {
				log.WithFields(log.Fields{
					"error": err,
				}).Error("Error tidying database")
				continue
			}
			log.WithFields(log.Fields{
				"removed": removed,
			}).Info("Tidied database")
		}
	}
}
