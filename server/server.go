// Package server is the content server the feed pages through. It serves
// items newest first, accepts new items and announces them on an event
// stream.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"scrollfeed/events"
	"scrollfeed/models"
	"scrollfeed/moderation"
	"scrollfeed/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// DefaultPingInterval is how often idle event streams get a keep-alive
const DefaultPingInterval = 5 * time.Second

var (
	itemsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrollfeed_server_items_created_total",
		Help: "Items accepted by the content server",
	})

	itemsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrollfeed_server_items_rejected_total",
		Help: "Items rejected by moderation by reason",
	}, []string{"reason"})

	sseClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scrollfeed_server_sse_clients",
		Help: "Connected event stream clients",
	})
)

// ItemStore is the storage the server reads and writes items through
type ItemStore interface {
	Page(ctx context.Context, page int, limit int) ([]models.Item, error)
	ByIDs(ctx context.Context, ids []string) ([]models.Item, error)
	Create(ctx context.Context, item models.Item) (models.Item, error)
}

type ServerConfig struct {

	// The hostname the server is reachable on, used for logging only
	Hostname string

	// The store to read and write items
	Store ItemStore

	// Broadcast channels to pass events to SSE clients
	Broadcaster *Broadcaster

	// Detects the language of items created without one. Optional.
	Detector *moderation.Detector

	// Comma separated list of origins allowed by CORS. Defaults to "*".
	AllowOrigins string

	// Keep-alive interval of event streams. Defaults to DefaultPingInterval.
	PingInterval time.Duration
}

// Returns a fiber.App instance to be used as the HTTP content server
func Server(config *ServerConfig) *fiber.App {

	bc := config.Broadcaster
	if bc == nil {
		bc = NewBroadcaster()
	}

	pingInterval := config.PingInterval
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}

	allowOrigins := config.AllowOrigins
	if allowOrigins == "" {
		allowOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))

	// Compressing the event stream would hold frames back
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/api/events"
		},
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowHeaders: "Cache-Control, Content-Type",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	api.Get("/items", func(c *fiber.Ctx) error {
		page, ok := parsePage(c.Query("page"))
		if !ok {
			return fail(c, fiber.StatusBadRequest, "Invalid page")
		}
		limit := safeParseLimit(c.Query("limit", "20"))

		items, err := config.Store.Page(c.UserContext(), page, limit)
		if err != nil {
			log.WithFields(log.Fields{
				"page":  page,
				"limit": limit,
				"error": err,
			}).Error("Error getting page")
			return fail(c, fiber.StatusInternalServerError, "Error getting items")
		}

		return c.JSON(models.ItemsResponse{Items: items, Page: page})
	})

	api.Get("/items/by-id", func(c *fiber.Ctx) error {
		ids := parseIDs(c.Query("ids"))
		if len(ids) > store.MaxLimit {
			return fail(c, fiber.StatusBadRequest, fmt.Sprintf("At most %d ids per request", store.MaxLimit))
		}
		if len(ids) == 0 {
			return c.JSON(models.ItemsResponse{Items: []models.Item{}})
		}

		items, err := config.Store.ByIDs(c.UserContext(), ids)
		if err != nil {
			log.WithFields(log.Fields{
				"ids":   ids,
				"error": err,
			}).Error("Error getting items by id")
			return fail(c, fiber.StatusInternalServerError, "Error getting items")
		}

		return c.JSON(models.ItemsResponse{Items: items})
	})

	api.Post("/items", func(c *fiber.Ctx) error {
		var req models.CreateItemRequest
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid body")
		}

		req.Title = strings.TrimSpace(req.Title)
		req.Body = strings.TrimSpace(req.Body)
		req.Author = strings.TrimSpace(req.Author)
		if req.Title == "" || req.Body == "" {
			return fail(c, fiber.StatusBadRequest, "Title and body are required")
		}
		if req.Author == "" {
			req.Author = "anonymous"
		}

		text := req.Title + " " + req.Body
		if err := moderation.Check(text); err != nil {
			itemsRejected.WithLabelValues(rejectReason(err)).Inc()
			return fail(c, fiber.StatusUnprocessableEntity, err.Error())
		}

		language := req.Language
		if language == "" && config.Detector != nil {
			language = config.Detector.Detect(text)
		}

		item, err := config.Store.Create(c.UserContext(), models.Item{
			Title:    req.Title,
			Body:     req.Body,
			Author:   req.Author,
			Language: language,
		})
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error creating item")
			return fail(c, fiber.StatusInternalServerError, "Error creating item")
		}
		itemsCreated.Inc()

		log.WithFields(log.Fields{
			"id":       item.ID,
			"author":   item.Author,
			"language": item.Language,
		}).Info("Created item")

		bc.Broadcast(events.Event{Type: events.ItemCreated, Payload: []string{item.ID}})

		return c.Status(fiber.StatusCreated).JSON(item)
	})

	api.Delete("/events", func(c *fiber.Ctx) error {
		bc.RemoveClient(c.Query("key", ""))
		return c.SendString("OK")
	})

	api.Get("/events", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")

		// Unique client key
		key := uuid.New().String()
		client := make(chan events.Event, 10) // Buffered channel

		bc.AddClient(key, client)

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			alive := time.NewTicker(pingInterval)
			defer alive.Stop()
			defer bc.RemoveClient(key)

			// Send initial event with client key
			fmt.Fprintf(w, "event: init\ndata: %s\n\n", key)
			if err := w.Flush(); err != nil {
				log.WithFields(log.Fields{
					"key":   key,
					"error": err,
				}).Warn("Failed to send init event")
				return
			}

			for {
				select {
				case <-alive.C:
					fmt.Fprintf(w, "event: ping\ndata: \n\n")
					if err := w.Flush(); err != nil {
						log.WithFields(log.Fields{
							"key":   key,
							"error": err,
						}).Info("Event stream client went away")
						return
					}

				case evt, ok := <-client:
					if !ok {
						return
					}
					data, err := json.Marshal(evt)
					if err != nil {
						log.WithFields(log.Fields{
							"key":   key,
							"error": err,
						}).Error("Error marshalling event")
						continue
					}
					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
					if err := w.Flush(); err != nil {
						log.WithFields(log.Fields{
							"key":   key,
							"error": err,
						}).Info("Event stream client went away")
						return
					}
				}
			}
		}))

		return nil
	})

	log.WithFields(log.Fields{
		"hostname":      config.Hostname,
		"allow_origins": allowOrigins,
	}).Debug("Configured content server")

	return app
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(models.ErrorResponse{Message: message})
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, moderation.ErrTooShort):
		return "too_short"
	case errors.Is(err, moderation.ErrTooFewLetters):
		return "too_few_letters"
	case errors.Is(err, moderation.ErrRepetitive):
		return "repetitive"
	case errors.Is(err, moderation.ErrSpam):
		return "spam"
	default:
		return "other"
	}
}
