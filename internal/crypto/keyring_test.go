package crypto

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/banking/regional-compliance/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat(string(b), 32)))
}

func newTestKeyring(t *testing.T) *Keyring {
	t.Helper()
	k, err := NewKeyring([]string{testKey('a')}, 1, base64.StdEncoding.EncodeToString([]byte("signing-secret")))
	require.NoError(t, err)
	return k
}

func TestNewKeyringValidation(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("s"))

	_, err := NewKeyring(nil, 1, secret)
	assert.Error(t, err)

	_, err = NewKeyring([]string{base64.StdEncoding.EncodeToString([]byte("short"))}, 1, secret)
	assert.Error(t, err)

	_, err = NewKeyring([]string{testKey('a')}, 2, secret)
	assert.Error(t, err)

	_, err = NewKeyring([]string{testKey('a')}, 1, "")
	assert.Error(t, err)
}

func TestSealOpenAcrossRotation(t *testing.T) {
	k := newTestKeyring(t)

	sealed, version, err := k.Seal([]byte(`{"reportId":"SAR-1"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	require.NoError(t, k.RotateKey(testKey('b'), 2))
	assert.Equal(t, 2, k.CurrentKeyVersion())

	plain, err := k.Open(sealed, version)
	require.NoError(t, err)
	assert.Equal(t, `{"reportId":"SAR-1"}`, string(plain))

	_, err = k.Open(sealed, 2)
	assert.Error(t, err)
	_, err = k.Open([]byte("x"), 1)
	assert.Error(t, err)
}

func TestSignAndVerifyDecision(t *testing.T) {
	k := newTestKeyring(t)
	rec := &domain.DecisionRecord{
		DecisionID: uuid.New(),
		Kind:       domain.DecisionAML,
		Provider:   "usa-compliance",
		UserID:     "user-1",
		SubjectID:  "t3",
		Outcome:    "reject",
		RiskLevel:  domain.RiskMedium,
		RiskScore:  40,
		Result:     json.RawMessage(`{"passed":true}`),
		DecidedAt:  time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}

	k.SignDecision(rec)
	assert.NotEmpty(t, rec.DigitalSignature)
	assert.Equal(t, 1, rec.KeyVersion)
	assert.True(t, k.VerifyDecision(rec))

	tampered := *rec
	tampered.Outcome = "approve"
	assert.False(t, k.VerifyDecision(&tampered))

	tampered = *rec
	tampered.Result = json.RawMessage(`{"passed":false}`)
	assert.False(t, k.VerifyDecision(&tampered))
}

func TestMaskPII(t *testing.T) {
	assert.Equal(t, "j***@example.com", MaskPII("jane@example.com", "email"))
	assert.Equal(t, "****6789", MaskPII("123-45-6789", "national_id"))
	assert.Equal(t, "J*** D***", MaskPII("Jane Doe", "name"))
	assert.Equal(t, "***MASKED***", MaskPII("x", "other"))
	assert.Empty(t, MaskPII("", "name"))
}
