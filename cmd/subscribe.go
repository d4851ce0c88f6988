/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"scrollfeed/events"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func subscribeCmd() *cli.Command {
	return &cli.Command{
		Name:  "subscribe",
		Usage: "Log all feed events to the command line",
		Description: `Subscribe to the content server's event stream and log every event
to the command line.

Returns each event as a JSON object on a single line. Use a tool like jq to process
the output.

Prints all other log messages to stderr.`,
		Flags: []cli.Flag{
			serverFlag(),
		},
		Action: func(ctx *cli.Context) error {
			// Keep stdout for events
			log.SetOutput(os.Stderr)

			runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt)
			defer stop()

			bus := events.NewBus()
			bus.Subscribe(printEvent)

			stream := events.NewStream(events.StreamConfig{
				Hosts:     []string{ctx.String("server")},
				UserAgent: "scrollfeed-cli",
			}, bus)

			err := stream.Run(runCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func printEvent(evt events.Event) {
	eventJson, err := json.Marshal(evt)
	if err == nil {
		fmt.Println(string(eventJson))
	}
}
