package service

import (
	"context"
	"testing"
	"time"

	"github.com/banking/regional-compliance/internal/compliance"
	"github.com/banking/regional-compliance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDecision() decision {
	return decision{
		kind:     domain.DecisionKYC,
		provider: "europe-compliance",
		tenantID: "bank-fr",
		userID:   "user-1",
		outcome:  "verified",
		risk:     domain.RiskLow,
		score:    90,
		at:       testNow,
		result:   map[string]any{"verified": true},
	}
}

func TestRecorder_SignsAndVerifies(t *testing.T) {
	ledger := &memoryLedger{}
	index := &memoryIndex{}
	r := NewDecisionRecorder(ledger, index, newKeyring(t), nil)
	ctx := context.Background()

	rec, err := r.record(ctx, sampleDecision())
	require.NoError(t, err)
	r.Wait()

	assert.Equal(t, 1, rec.KeyVersion)
	assert.JSONEq(t, `{"verified":true}`, string(rec.Result))
	assert.Len(t, index.indexed, 1)

	ok, err := r.VerifyDecision(ctx, rec.DecisionID.String())
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = r.VerifyDecision(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, compliance.ErrInvalidRequest)

	_, err = r.VerifyDecision(ctx, "5b0e1d4c-9f1e-4a51-9a0b-3f2f6c1d2e7a")
	assert.ErrorIs(t, err, ErrDecisionNotFound)
}

func TestRecorder_DetectsTampering(t *testing.T) {
	ledger := &memoryLedger{}
	r := NewDecisionRecorder(ledger, nil, newKeyring(t), nil)

	_, err := r.record(context.Background(), sampleDecision())
	require.NoError(t, err)

	ledger.decisions[0].Outcome = "not_verified"

	_, err = r.GetDecisions(context.Background(), domain.DecisionFilter{})
	assert.ErrorIs(t, err, ErrDecisionTampered)

	ok, err := r.VerifyDecision(context.Background(), ledger.decisions[0].DecisionID.String())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecorder_IndexPanicIsContained(t *testing.T) {
	ledger := &memoryLedger{}
	r := NewDecisionRecorder(ledger, panickingIndex{}, newKeyring(t), nil)

	_, err := r.record(context.Background(), sampleDecision())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() { r.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("index goroutine did not finish")
	}
	assert.Len(t, ledger.all(), 1)
}

func TestRecorder_SearchWithoutIndex(t *testing.T) {
	r := NewDecisionRecorder(&memoryLedger{}, nil, newKeyring(t), nil)

	_, err := r.SearchDecisions(context.Background(), "reject", 0, 10)
	assert.Error(t, err)
}
