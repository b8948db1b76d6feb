// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package redis provides a Redis-backed implementation of the
// storage.Backend interface. Keys are namespaced under a configurable
// prefix and TTL options map to native Redis expiry.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/storage"
	"github.com/redis/go-redis/v9"
)

const defaultOpTimeout = 5 * time.Second

// Config holds Redis backend connection settings.
type Config struct {
	// Addr is the Redis server address (host:port).
	Addr string `yaml:"addr" json:"addr"`

	// Password is the optional server password.
	Password string `yaml:"password" json:"password"`

	// DB is the database number.
	DB int `yaml:"db" json:"db"`

	// KeyPrefix namespaces all keys, default "passkey:".
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`

	// OpTimeout bounds each Redis operation, default 5s.
	OpTimeout time.Duration `yaml:"op_timeout" json:"op_timeout"`
}

// RedisBackend is a Redis implementation of storage.Backend.
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
	opTimeout time.Duration
}

// New creates a Redis storage backend and verifies connectivity.
func New(config Config) (*RedisBackend, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("redis storage: address is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "passkey:"
	}
	if config.OpTimeout == 0 {
		config.OpTimeout = defaultOpTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.OpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis storage: ping failed: %w", err)
	}

	return &RedisBackend{
		client:    client,
		keyPrefix: config.KeyPrefix,
		opTimeout: config.OpTimeout,
	}, nil
}

// Get retrieves the value for the given key.
func (r *RedisBackend) Get(key string) ([]byte, error) {
	ctx, cancel := r.opContext()
	defer cancel()

	value, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis storage: failed to get key %q: %w", key, err)
	}
	return value, nil
}

// Put stores the value for the given key. A TTL in opts maps to
// native Redis expiry.
func (r *RedisBackend) Put(key string, value []byte, opts *storage.Options) error {
	ctx, cancel := r.opContext()
	defer cancel()

	var ttl time.Duration
	if opts != nil {
		ttl = opts.TTL
	}

	if err := r.client.Set(ctx, r.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis storage: failed to put key %q: %w", key, err)
	}
	return nil
}

// Delete removes the key and its value from storage.
func (r *RedisBackend) Delete(key string) error {
	ctx, cancel := r.opContext()
	defer cancel()

	deleted, err := r.client.Del(ctx, r.keyPrefix+key).Result()
	if err != nil {
		return fmt.Errorf("redis storage: failed to delete key %q: %w", key, err)
	}
	if deleted == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List returns all keys with the given prefix using cursor iteration.
func (r *RedisBackend) List(prefix string) ([]string, error) {
	ctx, cancel := r.opContext()
	defer cancel()

	match := r.keyPrefix + prefix + "*"
	keys := make([]string, 0)
	var cursor uint64

	for {
		batch, next, err := r.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis storage: failed to list keys: %w", err)
		}
		for _, key := range batch {
			keys = append(keys, strings.TrimPrefix(key, r.keyPrefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

// Exists checks if a key exists in storage.
func (r *RedisBackend) Exists(key string) (bool, error) {
	ctx, cancel := r.opContext()
	defer cancel()

	count, err := r.client.Exists(ctx, r.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis storage: failed to check key %q: %w", key, err)
	}
	return count > 0, nil
}

// Close releases the underlying connection pool.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func (r *RedisBackend) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.opTimeout)
}
