// Package history keeps a bounded, per-user view of recent transactions used
// by pattern detection. It is a rebuildable cache; the durable record lives
// in the transaction store behind Loader.
package history

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/banking/regional-compliance/internal/domain"
	"github.com/hashicorp/golang-lru/simplelru"
)

// Loader rebuilds a user's recent history from the durable store
type Loader interface {
	LoadSince(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error)
}

// Config bounds the cache
type Config struct {
	Shards        int
	UsersPerShard int
	MaxPerUser    int
	// LoadWindow is how far back a cache miss is rebuilt from the Loader
	LoadWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.Shards <= 0 {
		c.Shards = 32
	}
	if c.UsersPerShard <= 0 {
		c.UsersPerShard = 2048
	}
	if c.MaxPerUser <= 0 {
		c.MaxPerUser = 500
	}
	if c.LoadWindow <= 0 {
		c.LoadWindow = 30 * 24 * time.Hour
	}
	return c
}

type userHistory struct {
	mu     sync.Mutex
	txs    []domain.Transaction
	seen   map[string]struct{}
	loaded bool
}

type shard struct {
	mu    sync.Mutex
	users *simplelru.LRU
}

// Store is a sharded LRU of per-user histories. Appends for one user are
// serialized by that user's lock; other users are never blocked by it.
type Store struct {
	cfg    Config
	shards []*shard
	loader Loader
	now    func() time.Time
}

// NewStore creates a history store. loader may be nil.
func NewStore(cfg Config, loader Loader) (*Store, error) {
	cfg = cfg.withDefaults()
	s := &Store{cfg: cfg, loader: loader, now: time.Now}
	for i := 0; i < cfg.Shards; i++ {
		users, err := simplelru.NewLRU(cfg.UsersPerShard, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create history shard: %w", err)
		}
		s.shards = append(s.shards, &shard{users: users})
	}
	return s, nil
}

func shardIndex(key string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

func (s *Store) entry(userID string) *userHistory {
	sh := s.shards[shardIndex(userID, len(s.shards))]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if v, ok := sh.users.Get(userID); ok {
		return v.(*userHistory)
	}
	h := &userHistory{seen: make(map[string]struct{})}
	sh.users.Add(userID, h)
	return h
}

// ensureLoaded must be called with h.mu held
func (s *Store) ensureLoaded(ctx context.Context, userID string, h *userHistory) error {
	if h.loaded || s.loader == nil {
		h.loaded = true
		return nil
	}
	txs, err := s.loader.LoadSince(ctx, userID, s.now().Add(-s.cfg.LoadWindow))
	if err != nil {
		return fmt.Errorf("failed to rebuild history for user: %w", err)
	}
	for _, tx := range txs {
		h.insert(tx)
	}
	h.trim(s.cfg.MaxPerUser)
	h.loaded = true
	return nil
}

func (h *userHistory) insert(tx domain.Transaction) bool {
	if tx.ID != "" {
		if _, dup := h.seen[tx.ID]; dup {
			return false
		}
		h.seen[tx.ID] = struct{}{}
	}
	i := sort.Search(len(h.txs), func(i int) bool { return h.txs[i].Timestamp.After(tx.Timestamp) })
	h.txs = append(h.txs, domain.Transaction{})
	copy(h.txs[i+1:], h.txs[i:])
	h.txs[i] = tx
	return true
}

func (h *userHistory) trim(max int) {
	if len(h.txs) <= max {
		return
	}
	drop := len(h.txs) - max
	for _, tx := range h.txs[:drop] {
		delete(h.seen, tx.ID)
	}
	h.txs = append([]domain.Transaction(nil), h.txs[drop:]...)
}

func (h *userHistory) since(t time.Time) []domain.Transaction {
	i := sort.Search(len(h.txs), func(i int) bool { return !h.txs[i].Timestamp.Before(t) })
	return append([]domain.Transaction(nil), h.txs[i:]...)
}

// Append records tx in the user's history and returns a snapshot of the
// full cached history. Appending the same transaction id twice is a no-op.
func (s *Store) Append(ctx context.Context, tx domain.Transaction) ([]domain.Transaction, error) {
	h := s.entry(tx.UserID)
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := s.ensureLoaded(ctx, tx.UserID, h); err != nil {
		return nil, err
	}
	if h.insert(tx) {
		h.trim(s.cfg.MaxPerUser)
	}
	return append([]domain.Transaction(nil), h.txs...), nil
}

// Since returns the user's cached transactions at or after t, oldest first
func (s *Store) Since(ctx context.Context, userID string, t time.Time) ([]domain.Transaction, error) {
	h := s.entry(userID)
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := s.ensureLoaded(ctx, userID, h); err != nil {
		return nil, err
	}
	return h.since(t), nil
}

// Len returns the number of users currently cached
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += sh.users.Len()
		sh.mu.Unlock()
	}
	return n
}
