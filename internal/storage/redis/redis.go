// Package redisstorage implements the storage.Backend interface on Redis.
// Every record is a JSON value under its own key; a set per kind indexes
// the live ids so Load does not scan the keyspace.
package redisstorage

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/railsim/formation/internal/config"
	"github.com/railsim/formation/internal/storage"
	"github.com/railsim/formation/pkg/core"
)

// DefaultPrefix is used when no key prefix is configured.
const DefaultPrefix = "formationd:"

const opTimeout = 5 * time.Second

// Backend implements storage.Backend using Redis.
type Backend struct {
	client *backend.Client
	prefix string
	log    *slog.Logger
}

var _ storage.Backend = (*Backend)(nil)

// New creates a Redis backend from configuration.
func New(cfg config.RedisConfig, logger *slog.Logger) *Backend {
	rdb := backend.NewClient(&backend.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewFromClient(rdb, cfg.Prefix, logger)
}

// NewFromClient creates a Redis backend from an existing client.
func NewFromClient(client *backend.Client, prefix string, logger *slog.Logger) *Backend {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{client: client, prefix: prefix, log: logger}
}

func (b *Backend) formationKey(id core.FormationID) string {
	return b.prefix + "formation:" + strconv.FormatUint(uint64(id), 10)
}

func (b *Backend) carKey(id core.CarID) string {
	return b.prefix + "car:" + strconv.FormatUint(uint64(id), 10)
}

func (b *Backend) formationIndex() string { return b.prefix + "formations" }

func (b *Backend) carIndex() string { return b.prefix + "cars" }

// Init checks that the server is reachable.
func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	b.log.Info("Redis storage ready", "prefix", b.prefix)
	return nil
}

// Close releases the client's connections.
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) save(key, index string, member uint64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, index, member)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

func (b *Backend) remove(key, index string, member uint64) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	pipe := b.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, index, member)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

func (b *Backend) SaveFormation(rec *core.FormationRecord) error {
	return b.save(b.formationKey(rec.ID), b.formationIndex(), uint64(rec.ID), rec)
}

func (b *Backend) DeleteFormation(id core.FormationID) error {
	return b.remove(b.formationKey(id), b.formationIndex(), uint64(id))
}

func (b *Backend) SaveCar(rec *core.CarRecord) error {
	return b.save(b.carKey(rec.ID), b.carIndex(), uint64(rec.ID), rec)
}

func (b *Backend) DeleteCar(id core.CarID) error {
	return b.remove(b.carKey(id), b.carIndex(), uint64(id))
}

// Load reads every indexed record. Index members whose value is gone are
// skipped and logged.
func (b *Backend) Load() (*storage.Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	formations, err := loadAll(ctx, b, b.formationIndex(), func(id uint64) string {
		return b.formationKey(core.FormationID(id))
	}, func(r core.FormationRecord) core.FormationID { return r.ID })
	if err != nil {
		return nil, err
	}
	cars, err := loadAll(ctx, b, b.carIndex(), func(id uint64) string {
		return b.carKey(core.CarID(id))
	}, func(r core.CarRecord) core.CarID { return r.ID })
	if err != nil {
		return nil, err
	}
	return &storage.Snapshot{Formations: formations, Cars: cars}, nil
}

func loadAll[T any, K cmp.Ordered](ctx context.Context, b *Backend, index string, key func(uint64) string, id func(T) K) ([]T, error) {
	members, err := b.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", index, err)
	}
	out := make([]T, 0, len(members))
	if len(members) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		n, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			b.log.Warn("Skipping malformed index member", "index", index, "member", m)
			continue
		}
		keys = append(keys, key(n))
	}

	values, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			b.log.Warn("Indexed record missing", "key", keys[i])
			continue
		}
		var rec T
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", keys[i], err)
		}
		out = append(out, rec)
	}
	slices.SortFunc(out, func(x, y T) int { return cmp.Compare(id(x), id(y)) })
	return out, nil
}
