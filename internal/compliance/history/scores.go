package history

import (
	"fmt"
	"time"

	"github.com/banking/regional-compliance/internal/domain"
	lru "github.com/hashicorp/golang-lru"
)

// RiskScore is the last AML risk computed for a user
type RiskScore struct {
	UserID        string           `json:"user_id"`
	Provider      string           `json:"provider"`
	TransactionID string           `json:"transaction_id"`
	Score         int              `json:"score"`
	Level         domain.RiskLevel `json:"level"`
	ComputedAt    time.Time        `json:"computed_at"`
}

// Scores caches the last risk score per user. Each shard is an
// independently locked LRU, so writers for different users rarely contend.
type Scores struct {
	shards []*lru.Cache
}

// NewScores creates a score cache holding up to shards*perShard users
func NewScores(shards, perShard int) (*Scores, error) {
	if shards <= 0 {
		shards = 32
	}
	if perShard <= 0 {
		perShard = 2048
	}
	s := &Scores{}
	for i := 0; i < shards; i++ {
		c, err := lru.New(perShard)
		if err != nil {
			return nil, fmt.Errorf("failed to create score shard: %w", err)
		}
		s.shards = append(s.shards, c)
	}
	return s, nil
}

func (s *Scores) shard(userID string) *lru.Cache {
	return s.shards[shardIndex(userID, len(s.shards))]
}

// Put stores a score; the last write wins
func (s *Scores) Put(score RiskScore) {
	s.shard(score.UserID).Add(score.UserID, score)
}

// Get returns the last score for a user
func (s *Scores) Get(userID string) (RiskScore, bool) {
	v, ok := s.shard(userID).Get(userID)
	if !ok {
		return RiskScore{}, false
	}
	return v.(RiskScore), true
}
