// Package http serves a read-only view of the cache.
package http

import (
	"errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-mirror/cache"
	"github.com/fuad-daoud/discord-mirror/logger/dlog"
	"github.com/fuad-daoud/discord-mirror/sharding"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
	"strconv"
	"time"
)

type Handler struct {
	cache   *cache.Cache
	started time.Time
}

func NewHandler(c *cache.Cache) *Handler {
	return &Handler{cache: c, started: time.Now()}
}

func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/status", h.status)
	app.Get("/stats", h.stats)
	app.Get("/shards/:id/stats", h.shardStats)
	app.Get("/guilds", h.guilds)
	app.Get("/users/:id", h.user)
}

// New returns an app with request logging and the cache routes.
func New(c *cache.Cache) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(logRequest)
	NewHandler(c).RegisterRoutes(app)
	return app
}

// Serve listens on addr until ctx is done, then shuts the app down.
func Serve(ctx context.Context, app *fiber.App, addr string) error {
	errs := make(chan error, 1)
	go func() {
		errs <- app.Listen(addr)
	}()
	dlog.Info("Serving status API", "addr", addr)
	select {
	case err := <-errs:
		dlog.Error("Could not serve", "addr", addr, "err", err)
		return err
	case <-ctx.Done():
		return app.Shutdown()
	}
}

// status answers health checks. A probe may ask for a specific status code
// with ?code=, which is honoured when it is a valid HTTP status.
func (h *Handler) status(c *fiber.Ctx) error {
	if code, err := strconv.Atoi(c.Query("code")); err == nil && code >= 200 && code < 600 {
		c.Status(code)
	}
	return c.JSON(fiber.Map{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *Handler) stats(c *fiber.Ctx) error {
	return c.JSON(h.cache.Stats())
}

func (h *Handler) shardStats(c *fiber.Ctx) error {
	shardID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return badRequest(c, errors.New("shard id must be a number"))
	}
	count, err := shardCount(c)
	if err != nil {
		return badRequest(c, err)
	}
	partition := sharding.Partition{ShardID: uint32(shardID), ShardCount: count}
	if err := partition.Validate(); err != nil {
		return badRequest(c, err)
	}
	return c.JSON(fiber.Map{
		"shard": partition.String(),
		"stats": h.cache.StatsForShard(partition.ShardID, partition.ShardCount),
	})
}

type guildSummary struct {
	ID          snowflake.ID `json:"id"`
	Name        string       `json:"name"`
	Unavailable bool         `json:"unavailable"`
	Roles       int          `json:"roles"`
	Shard       uint32       `json:"shard"`
}

// guilds lists every guild, or one shard's guilds with ?shard=&count=.
func (h *Handler) guilds(c *fiber.Ctx) error {
	count, err := shardCount(c)
	if err != nil {
		return badRequest(c, err)
	}
	guilds := h.cache.SnapshotGuilds()
	if c.Query("shard") != "" {
		shardID, err := strconv.ParseUint(c.Query("shard"), 10, 32)
		if err != nil {
			return badRequest(c, errors.New("shard must be a number"))
		}
		partition := sharding.Partition{ShardID: uint32(shardID), ShardCount: count}
		if err := partition.Validate(); err != nil {
			return badRequest(c, err)
		}
		guilds = h.cache.SnapshotGuildsForShard(partition.ShardID, partition.ShardCount)
	}
	out := make([]guildSummary, 0, len(guilds))
	for _, guild := range guilds {
		out = append(out, guildSummary{
			ID:          guild.ID,
			Name:        guild.Name,
			Unavailable: guild.Unavailable,
			Roles:       len(guild.Roles),
			Shard:       sharding.ShardID(guild.ID, count),
		})
	}
	return c.JSON(out)
}

func (h *Handler) user(c *fiber.Ctx) error {
	id, err := snowflake.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, err)
	}
	user, ok := h.cache.TryGetUser(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}
	return c.JSON(user)
}

// shardCount reads ?count=, defaulting to 1.
func shardCount(c *fiber.Ctx) (uint32, error) {
	raw := c.Query("count")
	if raw == "" {
		return 1, nil
	}
	count, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || count < 1 {
		return 0, errors.New("count must be a positive number")
	}
	return uint32(count), nil
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func logRequest(c *fiber.Ctx) error {
	dlog.Debug("Got request", "method", c.Method(), "uri", c.OriginalURL())
	return c.Next()
}
