package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/banking/regional-compliance/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func tx(id, user string, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:        id,
		UserID:    user,
		Type:      domain.TransactionDeposit,
		Amount:    decimal.NewFromInt(100),
		Currency:  "USD",
		Timestamp: at,
	}
}

type stubLoader struct {
	txs   []domain.Transaction
	err   error
	calls int
	mu    sync.Mutex
}

func (l *stubLoader) LoadSince(_ context.Context, userID string, since time.Time) ([]domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	var out []domain.Transaction
	for _, t := range l.txs {
		if t.UserID == userID && !t.Timestamp.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func TestAppendKeepsTimeOrderAndIgnoresDuplicates(t *testing.T) {
	s, err := NewStore(Config{}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Append(ctx, tx("b", "u1", base.Add(time.Hour)))
	require.NoError(t, err)
	_, err = s.Append(ctx, tx("a", "u1", base))
	require.NoError(t, err)
	all, err := s.Append(ctx, tx("b", "u1", base.Add(time.Hour)))
	require.NoError(t, err)

	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)
}

func TestAppendBoundsPerUserHistory(t *testing.T) {
	s, err := NewStore(Config{MaxPerUser: 3}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	var all []domain.Transaction
	for i := 0; i < 5; i++ {
		all, err = s.Append(ctx, tx(fmt.Sprintf("t%d", i), "u1", base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	require.Len(t, all, 3)
	assert.Equal(t, "t2", all[0].ID)

	// an evicted id may be recorded again
	all, err = s.Append(ctx, tx("t0", "u1", base.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "t0", all[len(all)-1].ID)
}

func TestUsersAreEvictedLeastRecentlyUsed(t *testing.T) {
	s, err := NewStore(Config{Shards: 1, UsersPerShard: 2}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	for _, u := range []string{"u1", "u2", "u3"} {
		_, err := s.Append(ctx, tx("x-"+u, u, base))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, s.Len())

	got, err := s.Since(ctx, "u1", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSinceFiltersWindow(t *testing.T) {
	s, err := NewStore(Config{}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := s.Append(ctx, tx(fmt.Sprintf("t%d", i), "u1", base.Add(time.Duration(i)*24*time.Hour)))
		require.NoError(t, err)
	}
	got, err := s.Since(ctx, "u1", base.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t2", got[0].ID)
}

func TestMissRebuildsFromLoaderOnce(t *testing.T) {
	loader := &stubLoader{txs: []domain.Transaction{
		tx("old", "u1", base.Add(-time.Hour)),
		tx("other", "u2", base),
	}}
	s, err := NewStore(Config{}, loader)
	require.NoError(t, err)
	s.now = func() time.Time { return base }
	ctx := context.Background()

	all, err := s.Append(ctx, tx("new", "u1", base))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "old", all[0].ID)

	_, err = s.Since(ctx, "u1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls)
}

func TestLoaderFailureIsReturnedAndRetried(t *testing.T) {
	loader := &stubLoader{err: errors.New("connection refused")}
	s, err := NewStore(Config{}, loader)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Append(ctx, tx("t1", "u1", base))
	require.Error(t, err)

	loader.err = nil
	all, err := s.Append(ctx, tx("t1", "u1", base))
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 2, loader.calls)
}

func TestConcurrentAppendsForOneUserAreNotLost(t *testing.T) {
	s, err := NewStore(Config{MaxPerUser: 1000}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Append(ctx, tx(fmt.Sprintf("t%d", i), "u1", base.Add(time.Duration(i)*time.Second)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Since(ctx, "u1", time.Time{})
	require.NoError(t, err)
	assert.Len(t, got, 200)
}

func TestScoresKeepLastWrite(t *testing.T) {
	s, err := NewScores(4, 16)
	require.NoError(t, err)

	_, ok := s.Get("u1")
	assert.False(t, ok)

	s.Put(RiskScore{UserID: "u1", Score: 10, ComputedAt: base})
	s.Put(RiskScore{UserID: "u1", Score: 55, ComputedAt: base.Add(time.Minute)})

	got, ok := s.Get("u1")
	require.True(t, ok)
	assert.Equal(t, 55, got.Score)
}
