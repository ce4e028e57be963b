package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wedding-invites/internal/guestbook"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const keyPrefix = "guestbook:session:"

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisClient parses url and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		log:    logger.With().Str("component", "Sessions").Logger(),
	}
}

func (r *RedisStore) Load(ctx context.Context, id string) (*guestbook.Session, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}

	raw, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return &guestbook.Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess guestbook.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		r.log.Warn().Err(err).Str("session", id).Msg("Discarding unreadable session")
		return &guestbook.Session{}, nil
	}
	return &sess, nil
}

func (r *RedisStore) Save(ctx context.Context, id string, sess *guestbook.Session) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	if sess == nil {
		return nil
	}

	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+id, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
