package redisStore

import (
	"context"
	"sync"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

// One client per logical db. The job store and the history store share the
// server but never a keyspace.
var (
	instances = make(map[int]*Store)
	mu        sync.RWMutex
	logger    = sync.OnceValue(func() *logger_i.Logger { return logger_i.NewLogger("Redis Store") })
	closeOnce sync.Once
)

type Store struct {
	client *redis.Client
	Type   int
}

// GetRedisStore returns the shared client for the given logical db, or nil
// when redis cannot be reached. Clients close when ctx is cancelled.
func GetRedisStore(ctx context.Context, settings *config.Settings, dbType int) *Store {
	mu.RLock()
	instance, exists := instances[dbType]
	mu.RUnlock()
	if exists {
		return instance
	}

	mu.Lock()
	defer mu.Unlock()
	if instance, exists = instances[dbType]; exists {
		return instance
	}

	instance = connect(ctx, options(settings, dbType))
	if instance == nil {
		return nil
	}
	instances[dbType] = instance
	closeOnce.Do(func() { go closeRedisStores(ctx) })
	return instance
}

func options(settings *config.Settings, dbType int) *redis.Options {
	addr := settings.Redis.Addr
	if addr == "" {
		addr = config.RedisAddr
	}
	return &redis.Options{
		Addr:                  addr,
		Password:              settings.Redis.Password,
		DB:                    dbType,
		ContextTimeoutEnabled: true,
		ReadTimeout:           config.RedisIOTimeout,
		WriteTimeout:          config.RedisIOTimeout,
	}
}

func connect(ctx context.Context, opts *redis.Options) *Store {
	log := logger().With("db", opts.DB, "addr", opts.Addr)
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, config.RedisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Error("Redis is offline", "error", err)
		_ = client.Close()
		return nil
	}

	log.Info("Redis client ready")
	return &Store{client: client, Type: opts.DB}
}

func closeRedisStores(ctx context.Context) {
	<-ctx.Done()
	logger().Info("Closing Redis Stores")
	mu.Lock()
	defer mu.Unlock()
	for dbType, store := range instances {
		if err := store.client.Close(); err != nil {
			logger().Error("Error closing redis client", "db", dbType, "error", err)
		}
		delete(instances, dbType)
	}
}

// NewTestStore wraps an existing client, typically one pointed at miniredis.
func NewTestStore(client *redis.Client) *Store {
	return &Store{client: client}
}
