/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "scrollfeed",
		Usage: "An incrementally loading content feed",
		Description: `A content server and a terminal feed that pages through it.

		The server keeps items in an SQLite database, serves them newest first
		one page at a time and announces newly created items on an event stream.
		The watch command shows the feed in the terminal, loads the next page as
		you scroll toward the end and puts new items at the top as they arrive.

		Flags can generally be set via environment variables, e.g.:

		--database => SCROLLFEED_DATABASE=feed.db
		--port => SCROLLFEED_PORT=3000
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"SCROLLFEED_LOG_LEVEL"},
			},
		},
		Before: func(ctx *cli.Context) error {
			level, err := log.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			rollbackCmd(),
			tidyCmd(),
			seedCmd(),
			postCmd(),
			subscribeCmd(),
			watchCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func databaseFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "database",
		Aliases: []string{"d"},
		Value:   "feed.db",
		Usage:   "SQLite database file location",
		EnvVars: []string{"SCROLLFEED_DATABASE"},
	}
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the TOML configuration file",
		EnvVars: []string{"SCROLLFEED_CONFIG"},
	}
}

func serverFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Value:   "http://localhost:3000",
		Usage:   "URL of the content server",
		EnvVars: []string{"SCROLLFEED_SERVER"},
	}
}
