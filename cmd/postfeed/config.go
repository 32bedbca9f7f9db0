package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Sternrassler/postfeed/pkg/client"
	"github.com/Sternrassler/postfeed/pkg/feed"
	"github.com/Sternrassler/postfeed/pkg/logging"
	"github.com/Sternrassler/postfeed/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// options holds settings shared by all subcommands. Defaults come from the
// environment; flags override them.
type options struct {
	BaseURL         string
	PageSize        int
	UserAgent       string
	RedisURL        string
	StopOnEmptyPage bool
	Format          string
	Logging         logging.Config
}

// validFormats defines the allowed output formats.
var validFormats = []string{"text", "json"}

func defaultOptions(getenv func(string) string) *options {
	pageSize, err := strconv.Atoi(getEnv(getenv, "POSTFEED_PAGE_SIZE", ""))
	if err != nil {
		pageSize = client.DefaultPageSize
	}
	stop, _ := strconv.ParseBool(getEnv(getenv, "POSTFEED_STOP_ON_EMPTY", "false"))

	return &options{
		BaseURL:         getEnv(getenv, "POSTFEED_BASE_URL", client.DefaultBaseURL),
		PageSize:        pageSize,
		UserAgent:       getEnv(getenv, "POSTFEED_USER_AGENT", "postfeed/0.1.0"),
		RedisURL:        getEnv(getenv, "REDIS_URL", ""),
		StopOnEmptyPage: stop,
		Format:          "text",
		Logging:         logging.ConfigFromEnv(getenv),
	}
}

func getEnv(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (o *options) validate() error {
	for _, f := range validFormats {
		if f == o.Format {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be one of %v", o.Format, validFormats)
}

// openSession wires the feed client, optional Redis page cache and session.
// The returned cleanup closes the session and Redis connection.
func (o *options) openSession(ctx context.Context, listener pagination.Listener) (*feed.Session, func(), error) {
	logger := logging.NewLogger("postfeed")

	cfg := client.DefaultConfig(o.UserAgent)
	cfg.BaseURL = o.BaseURL
	cfg.PageSize = o.PageSize

	var redisClient *redis.Client
	if o.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: o.RedisURL})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", o.RedisURL, err)
		}
		logger.Info().Str("redis", o.RedisURL).Msg("Page cache enabled")
		cfg.Redis = redisClient
	}

	feedClient, err := client.New(cfg)
	if err != nil {
		closeRedis(redisClient, logger)
		return nil, nil, fmt.Errorf("create feed client: %w", err)
	}

	sess, err := feed.NewSession(feed.Config{
		Fetcher:         feedClient,
		PageSize:        o.PageSize,
		StopOnEmptyPage: o.StopOnEmptyPage,
		Listener:        listener,
	})
	if err != nil {
		closeRedis(redisClient, logger)
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	cleanup := func() {
		sess.Close()
		sess.Wait()
		closeRedis(redisClient, logger)
	}
	return sess, cleanup, nil
}

func closeRedis(c *redis.Client, logger zerolog.Logger) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close redis client")
	}
}
