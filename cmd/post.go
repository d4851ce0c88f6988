package cmd

import (
	"fmt"

	"scrollfeed/gateway"
	"scrollfeed/models"

	"github.com/cqroot/prompt"
	"github.com/cqroot/prompt/input"
	"github.com/urfave/cli/v2"
)

// askIfEmpty prompts for value unless it was given on the command line
func askIfEmpty(value string, question string, defaultValue string, opts ...input.Option) (string, error) {
	if value != "" {
		return value, nil
	}
	return prompt.New().Ask(question).Input(defaultValue, opts...)
}

func postCmd() *cli.Command {
	return &cli.Command{
		Name:  "post",
		Usage: "Create a new item",
		Description: `Creates an item on the content server. Watching feeds put it at the top.

Asks for the title, body and author when they are not given as flags.`,
		Flags: []cli.Flag{
			serverFlag(),
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Item title"},
			&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "Item body"},
			&cli.StringFlag{
				Name:    "author",
				Aliases: []string{"a"},
				Usage:   "Item author",
				EnvVars: []string{"SCROLLFEED_AUTHOR"},
			},
			&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Usage: "ISO 639-1 code. Detected by the server when omitted."},
		},
		Action: func(ctx *cli.Context) error {
			title, err := askIfEmpty(ctx.String("title"), "Title:", "")
			if err != nil {
				return err
			}
			body, err := askIfEmpty(ctx.String("body"), "Body:", "")
			if err != nil {
				return err
			}
			author, err := askIfEmpty(ctx.String("author"), "Author:", "anonymous")
			if err != nil {
				return err
			}

			client := gateway.NewClient(gateway.ClientConfig{
				BaseURL:   ctx.String("server"),
				UserAgent: "scrollfeed-cli",
			})
			item, err := client.CreateItem(ctx.Context, models.CreateItemRequest{
				Title:    title,
				Body:     body,
				Author:   author,
				Language: ctx.String("language"),
			})
			if err != nil {
				return fmt.Errorf("could not post item: %w", err)
			}

			fmt.Println("Posted item", item.ID)
			return nil
		},
	}
}
