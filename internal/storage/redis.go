package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jcourtner/wayfarer/pkg/character"
	"github.com/jcourtner/wayfarer/pkg/party"
	"github.com/jcourtner/wayfarer/pkg/storage"
	"github.com/jcourtner/wayfarer/pkg/world"
)

// encounterHistoryTTL bounds how long per-party encounter history lives.
// The history is advisory; losing it never blocks gameplay.
const encounterHistoryTTL = time.Hour

// encounterHistoryDepth caps the per-party history length.
const encounterHistoryDepth = 20

// RedisStore implements the Store interface over Redis. Values are JSON
// blobs under the logical key scheme in pkg/storage.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

var _ storage.Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis store from a redis:// URL.
func NewRedisStore(redisURL string, logger *slog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return &RedisStore{
		client: redis.NewClient(opt),
		logger: logger,
	}, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available during startup.
func (r *RedisStore) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Client exposes the underlying Redis client for lock and queue helpers.
func (r *RedisStore) Client() *redis.Client {
	return r.client
}

func (r *RedisStore) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("Failed to marshal record", "key", key, "error", err)
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := r.client.Set(ctx, key, string(data), 0).Err(); err != nil {
		r.logger.Error("Failed to save record", "key", key, "error", err)
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// getJSON loads a record into v. Returns false with a nil error when the
// key does not exist.
func (r *RedisStore) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		r.logger.Error("Failed to load record", "key", key, "error", err)
		return false, fmt.Errorf("failed to load record: %w", err)
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		r.logger.Error("Failed to unmarshal record", "key", key, "error", err)
		return false, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return true, nil
}

func (r *RedisStore) SaveCharacter(ctx context.Context, c *character.Character) error {
	return r.setJSON(ctx, storage.CharacterKey(c.GuildID, c.UserID), c)
}

func (r *RedisStore) LoadCharacter(ctx context.Context, guildID, userID string) (*character.Character, error) {
	var c character.Character
	ok, err := r.getJSON(ctx, storage.CharacterKey(guildID, userID), &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

func (r *RedisStore) DeleteCharacter(ctx context.Context, guildID, userID string) error {
	if err := r.client.Del(ctx, storage.CharacterKey(guildID, userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete character: %w", err)
	}
	return nil
}

func (r *RedisStore) SaveArea(ctx context.Context, a *world.Area) error {
	if err := r.setJSON(ctx, storage.AreaKey(a.Name), a); err != nil {
		return err
	}
	if err := r.client.SAdd(ctx, storage.AreaIndexKey, a.Name).Err(); err != nil {
		return fmt.Errorf("failed to index area: %w", err)
	}
	return nil
}

func (r *RedisStore) SaveGuildArea(ctx context.Context, guildID string, a *world.Area) error {
	return r.setJSON(ctx, storage.GuildAreaKey(guildID, a.Name), a)
}

// LoadArea checks the per-guild override before the global record, so
// guilds can customize shared world data without forking it.
func (r *RedisStore) LoadArea(ctx context.Context, guildID, name string) (*world.Area, error) {
	var a world.Area
	if guildID != "" {
		ok, err := r.getJSON(ctx, storage.GuildAreaKey(guildID, name), &a)
		if err != nil {
			return nil, err
		}
		if ok {
			return &a, nil
		}
	}
	ok, err := r.getJSON(ctx, storage.AreaKey(name), &a)
	if err != nil || !ok {
		return nil, err
	}
	return &a, nil
}

func (r *RedisStore) ListAreaNames(ctx context.Context) ([]string, error) {
	names, err := r.client.SMembers(ctx, storage.AreaIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list areas: %w", err)
	}
	return names, nil
}

func (r *RedisStore) SaveParty(ctx context.Context, p *party.Party) error {
	return r.setJSON(ctx, storage.PartyKey(p.GuildID, p.LeaderID), p)
}

func (r *RedisStore) LoadParty(ctx context.Context, guildID, leaderID string) (*party.Party, error) {
	var p party.Party
	ok, err := r.getJSON(ctx, storage.PartyKey(guildID, leaderID), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (r *RedisStore) DeleteParty(ctx context.Context, guildID, leaderID string) error {
	if err := r.client.Del(ctx, storage.PartyKey(guildID, leaderID)).Err(); err != nil {
		return fmt.Errorf("failed to delete party: %w", err)
	}
	return nil
}

// AppendEncounter records an occurrence in the party's bounded history.
func (r *RedisStore) AppendEncounter(ctx context.Context, guildID, leaderID string, entry []byte) error {
	key := storage.EncounterKey(guildID, leaderID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, string(entry))
	pipe.LTrim(ctx, key, -encounterHistoryDepth, -1)
	pipe.Expire(ctx, key, encounterHistoryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append encounter history: %w", err)
	}
	return nil
}

func (r *RedisStore) RecentEncounters(ctx context.Context, guildID, leaderID string) ([]string, error) {
	entries, err := r.client.LRange(ctx, storage.EncounterKey(guildID, leaderID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load encounter history: %w", err)
	}
	return entries, nil
}
