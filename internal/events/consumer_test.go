package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/banking/regional-compliance/internal/compliance"
	"github.com/banking/regional-compliance/internal/domain"
	"github.com/banking/regional-compliance/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu    sync.Mutex
	txs   []domain.Transaction
	fails int
}

func (s *fakeStore) InsertTransaction(_ context.Context, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return errors.New("connection reset")
	}
	s.txs = append(s.txs, tx)
	return nil
}

type fakeRecorder struct {
	calls   int
	targets []service.Target
	err     error
}

func (r *fakeRecorder) RecordTransaction(_ context.Context, t service.Target, _ domain.Transaction) error {
	r.calls++
	r.targets = append(r.targets, t)
	return r.err
}

func newHandler(store TransactionStore, recorder TransactionRecorder) (*transactionHandler, *[]time.Duration) {
	h := newTransactionHandler(store, recorder, 3, nil)
	var slept []time.Duration
	h.sleep = func(d time.Duration) { slept = append(slept, d) }
	return h, &slept
}

func message(value string, headers ...*sarama.RecordHeader) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic:     "banking.transactions",
		Value:     []byte(value),
		Headers:   headers,
		Timestamp: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
}

const txPayload = `{"tenant_id":"bank-ca","transaction":{"id":"tx-1","user_id":"user-1","type":"deposit","amount":"2500.00","currency":"CAD","timestamp":"2026-03-01T09:30:00Z"}}`

func TestProcessMessage_PersistsThenRecords(t *testing.T) {
	store := &fakeStore{}
	recorder := &fakeRecorder{}
	h, slept := newHandler(store, recorder)

	h.processMessage(context.Background(), message(txPayload))

	require.Len(t, store.txs, 1)
	assert.Equal(t, "tx-1", store.txs[0].ID)
	assert.True(t, store.txs[0].Amount.Equal(decimal.NewFromInt(2500)))
	assert.Equal(t, 1, recorder.calls)
	assert.Equal(t, "bank-ca", recorder.targets[0].TenantID)
	assert.Empty(t, *slept)
}

func TestProcessMessage_TenantFromHeader(t *testing.T) {
	recorder := &fakeRecorder{}
	h, _ := newHandler(nil, recorder)

	h.processMessage(context.Background(), message(
		`{"transaction":{"id":"tx-2","user_id":"user-1","amount":"10","currency":"USD"}}`,
		&sarama.RecordHeader{Key: []byte(TenantHeader), Value: []byte("bank-us")},
	))

	require.Equal(t, 1, recorder.calls)
	assert.Equal(t, "bank-us", recorder.targets[0].TenantID)
}

func TestProcessMessage_RetriesInfrastructureFailures(t *testing.T) {
	store := &fakeStore{fails: 2}
	recorder := &fakeRecorder{}
	h, slept := newHandler(store, recorder)

	h.processMessage(context.Background(), message(txPayload))

	assert.Len(t, store.txs, 1)
	assert.Equal(t, 1, recorder.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestProcessMessage_GivesUpAfterMaxRetries(t *testing.T) {
	store := &fakeStore{fails: 10}
	recorder := &fakeRecorder{}
	h, slept := newHandler(store, recorder)

	h.processMessage(context.Background(), message(txPayload))

	assert.Empty(t, store.txs)
	assert.Zero(t, recorder.calls)
	assert.Len(t, *slept, 2)
}

func TestProcessMessage_DoesNotRetryRoutingFailures(t *testing.T) {
	recorder := &fakeRecorder{err: compliance.ErrNoProvider}
	h, slept := newHandler(&fakeStore{}, recorder)

	h.processMessage(context.Background(), message(txPayload))

	assert.Equal(t, 1, recorder.calls)
	assert.Empty(t, *slept)
}

func TestProcessMessage_SkipsMalformed(t *testing.T) {
	store := &fakeStore{}
	recorder := &fakeRecorder{}
	h, _ := newHandler(store, recorder)

	h.processMessage(context.Background(), message(`not json`))
	h.processMessage(context.Background(), message(`{"transaction":{"user_id":"user-1"}}`))

	assert.Empty(t, store.txs)
	assert.Zero(t, recorder.calls)
}

func TestDecodeTransaction_DefaultsTimestampToMessageTime(t *testing.T) {
	msg := message(`{"transaction":{"id":"tx-3","user_id":"user-1","amount":"1","currency":"EUR"}}`)

	_, tx, err := decodeTransaction(msg)
	require.NoError(t, err)
	assert.Equal(t, msg.Timestamp, tx.Timestamp)
}
