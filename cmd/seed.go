package cmd

import (
	"fmt"
	"time"

	"scrollfeed/models"
	"scrollfeed/store"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var seedTopics = []string{"harbour", "mountains", "coffee", "trains", "gardening", "the weather", "jazz", "bicycles"}

// seedItems generates count items, one minute apart and ending at now
func seedItems(count int, now time.Time) []models.Item {
	return lo.Times(count, func(i int) models.Item {
		topic := seedTopics[i%len(seedTopics)]
		return models.Item{
			Title:     fmt.Sprintf("Notes on %s #%d", topic, i+1),
			Body:      fmt.Sprintf("A few thoughts about %s, written for the sample feed.", topic),
			Author:    "seed",
			Language:  "en",
			CreatedAt: now.Add(-time.Duration(count-i) * time.Minute),
		}
	})
}

func seedCmd() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Fill the database with sample items",
		Description: `Inserts generated items so the feed has something to page through.

The default count gives two full pages and a short third one.`,
		Flags: []cli.Flag{
			databaseFlag(),
			&cli.IntFlag{
				Name:    "count",
				Value:   45,
				Usage:   "Number of items to create",
				EnvVars: []string{"SCROLLFEED_SEED_COUNT"},
			},
		},
		Action: func(ctx *cli.Context) error {
			database := ctx.String("database")
			if err := store.Migrate(database); err != nil {
				return err
			}
			s, err := store.Open(database)
			if err != nil {
				return err
			}
			defer s.Close()

			for _, item := range seedItems(ctx.Int("count"), time.Now()) {
				if _, err := s.Create(ctx.Context, item); err != nil {
					return fmt.Errorf("failed to seed item: %w", err)
				}
			}

			total, err := s.Count(ctx.Context)
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{
				"created": ctx.Int("count"),
				"total":   total,
			}).Info("Seeded database")
			return nil
		},
	}
}
