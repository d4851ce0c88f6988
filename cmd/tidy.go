/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"time"

	"scrollfeed/store"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the database",
		Description: `Tidy up the database by removing items that are old.

		Removes items older than --older-than (90 days by default) from the
		database. This keeps the database small and the feed fresh.`,
		Flags: []cli.Flag{
			databaseFlag(),
			&cli.DurationFlag{
				Name:    "older-than",
				Value:   90 * 24 * time.Hour,
				Usage:   "Remove items created longer ago than this",
				EnvVars: []string{"SCROLLFEED_TIDY_OLDER_THAN"},
			},
		},
		Action: func(ctx *cli.Context) error {
			database := ctx.String("database")
			fmt.Println("Database configured: ", database)

			s, err := store.Open(database)
			if err != nil {
				return err
			}
			defer s.Close()

			removed, err := s.Tidy(ctx.Context, ctx.Duration("older-than"))
			if err != nil {
				return err
			}

			log.WithFields(log.Fields{
				"removed": removed,
			}).Info("Tidied database")
			return nil
		},
	}
}
