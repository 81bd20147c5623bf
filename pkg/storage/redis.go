package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	blacklistKey = "bastion:image:blacklist"
	whitelistKey = "bastion:image:whitelist"
)

// HashList keeps the image blacklist and whitelist in Redis sets keyed by
// content hash or perceptual hash. Implements imaging.HashStore.
type HashList struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewHashList connects and verifies the client with a ping.
func NewHashList(ctx context.Context, addr, password string, db int, logger zerolog.Logger) (*HashList, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &HashList{
		client: client,
		logger: logger.With().Str("component", "hash_list").Logger(),
	}, nil
}

// NewHashListWithClient wraps an existing client. Used by tests.
func NewHashListWithClient(client *redis.Client, logger zerolog.Logger) *HashList {
	return &HashList{client: client, logger: logger}
}

func (h *HashList) Close() error {
	return h.client.Close()
}

func (h *HashList) IsBlacklisted(ctx context.Context, hash string) (bool, error) {
	return h.member(ctx, blacklistKey, hash)
}

func (h *HashList) IsWhitelisted(ctx context.Context, hash string) (bool, error) {
	return h.member(ctx, whitelistKey, hash)
}

// Blacklist adds a hash to the blacklist set.
func (h *HashList) Blacklist(ctx context.Context, hash string) error {
	return h.client.SAdd(ctx, blacklistKey, hash).Err()
}

// Whitelist adds a hash to the whitelist set.
func (h *HashList) Whitelist(ctx context.Context, hash string) error {
	return h.client.SAdd(ctx, whitelistKey, hash).Err()
}

func (h *HashList) member(ctx context.Context, key, hash string) (bool, error) {
	ok, err := h.client.SIsMember(ctx, key, hash).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember %s: %w", key, err)
	}
	return ok, nil
}
