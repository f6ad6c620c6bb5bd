package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banking/regional-compliance/internal/compliance/history"
	"github.com/banking/regional-compliance/internal/config"
	goredis "github.com/redis/go-redis/v9"
)

// RiskScoreStore mirrors the last AML risk score per user so every replica
// sees the same value
type RiskScoreStore struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// NewRiskScoreStore creates a store over an existing client
func NewRiskScoreStore(client goredis.UniversalClient, prefix string, ttl time.Duration) *RiskScoreStore {
	if prefix == "" {
		prefix = "compliance:risk:"
	}
	return &RiskScoreStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RiskScoreStore) key(userID string) string {
	return s.prefix + userID
}

// PutRiskScore stores a score; the last write wins
func (s *RiskScoreStore) PutRiskScore(ctx context.Context, score history.RiskScore) error {
	data, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("failed to marshal risk score: %w", err)
	}
	if err := s.client.Set(ctx, s.key(score.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store risk score: %w", err)
	}
	return nil
}

// GetRiskScore returns the stored score for a user, ok is false when none exists
func (s *RiskScoreStore) GetRiskScore(ctx context.Context, userID string) (history.RiskScore, bool, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return history.RiskScore{}, false, nil
	}
	if err != nil {
		return history.RiskScore{}, false, fmt.Errorf("failed to load risk score: %w", err)
	}

	var score history.RiskScore
	if err := json.Unmarshal(data, &score); err != nil {
		return history.RiskScore{}, false, fmt.Errorf("failed to decode risk score: %w", err)
	}
	return score, true, nil
}
