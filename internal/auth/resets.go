package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const resetKeyPrefix = "password_reset:"

// ResetStore keeps single-use password reset tokens
type ResetStore interface {
	Save(ctx context.Context, token, userID string, ttl time.Duration) error
	// Consume returns the user of a live token and invalidates it
	Consume(ctx context.Context, token string) (string, error)
}

// ConnectRedis initializes a Redis client and checks the connection.
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[Auth] Connected to Redis at %s", addr)
	return rdb, nil
}

// RedisResetStore stores reset tokens as expiring Redis keys
type RedisResetStore struct {
	client *redis.Client
}

func NewRedisResetStore(client *redis.Client) *RedisResetStore {
	return &RedisResetStore{client: client}
}

func (s *RedisResetStore) Save(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, resetKeyPrefix+token, userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	return nil
}

func (s *RedisResetStore) Consume(ctx context.Context, token string) (string, error) {
	userID, err := s.client.GetDel(ctx, resetKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidResetToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to read reset token: %w", err)
	}
	return userID, nil
}

type resetEntry struct {
	userID    string
	expiresAt time.Time
}

// MemoryResetStore is the in-process ResetStore used when Redis is not configured
type MemoryResetStore struct {
	mu      sync.Mutex
	entries map[string]resetEntry
}

func NewMemoryResetStore() *MemoryResetStore {
	return &MemoryResetStore{entries: make(map[string]resetEntry)}
}

func (s *MemoryResetStore) Save(ctx context.Context, token, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = resetEntry{userID: userID, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryResetStore) Consume(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[token]
	if !ok {
		return "", ErrInvalidResetToken
	}
	delete(s.entries, token)
	if time.Now().After(entry.expiresAt) {
		return "", ErrInvalidResetToken
	}
	return entry.userID, nil
}
