package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "churn:session:"

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	URL          string `envconfig:"URL" split_words:"true" required:"true"`
	KeyPrefix    string `envconfig:"KEY_PREFIX" split_words:"true" default:"churn:session:"`
	Retention    int    `envconfig:"RETENTION" split_words:"true" default:"200"`
	ReadTimeout  int    `envconfig:"READ_TIMEOUT" split_words:"true" default:"3"`
	WriteTimeout int    `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"3"`
	DialTimeout  int    `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5"`
}

// RedisBackend keeps each session's turns in a Redis list, one JSON entry per
// turn, trimmed to the retention cap on append.
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
	retention int
}

func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ReadTimeout = time.Duration(cfg.ReadTimeout) * time.Second
	opts.WriteTimeout = time.Duration(cfg.WriteTimeout) * time.Second
	opts.DialTimeout = time.Duration(cfg.DialTimeout) * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &RedisBackend{
		client:    client,
		keyPrefix: prefix,
		retention: retention,
	}, nil
}

func (r *RedisBackend) key(sessionID string) string {
	return r.keyPrefix + sessionID
}

func (r *RedisBackend) Append(ctx context.Context, sessionID string, turn Turn) error {
	key := r.key(sessionID)

	length, err := r.client.LLen(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("session length: %w", err)
	}

	var lastSeq int64
	if length > 0 {
		raw, err := r.client.LIndex(ctx, key, -1).Result()
		if err != nil {
			return fmt.Errorf("read last turn: %w", err)
		}
		var last Turn
		if err := json.Unmarshal([]byte(raw), &last); err != nil {
			return fmt.Errorf("unmarshal last turn: %w", err)
		}
		lastSeq = last.Seq
	}
	turn.Seq = lastSeq + 1

	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, int64(-r.retention), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (r *RedisBackend) List(ctx context.Context, sessionID string) ([]Turn, error) {
	raw, err := r.client.LRange(ctx, r.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read turns: %w", err)
	}

	turns := make([]Turn, 0, len(raw))
	for _, entry := range raw {
		var turn Turn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (r *RedisBackend) Clear(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
