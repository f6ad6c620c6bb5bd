// Package crypto signs decision records and seals archived filings
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/banking/regional-compliance/internal/domain"
)

// Keyring holds versioned AES-256 sealing keys and the HMAC secret used to
// sign decision records
type Keyring struct {
	keys           map[int][]byte
	currentVersion int
	hmacSecret     []byte
	mu             sync.RWMutex
}

// NewKeyring decodes base64 keys; keys[i] becomes version i+1
func NewKeyring(keysBase64 []string, currentVersion int, hmacSecretBase64 string) (*Keyring, error) {
	if len(keysBase64) == 0 {
		return nil, errors.New("at least one sealing key is required")
	}

	keys := make(map[int][]byte, len(keysBase64))
	for i, keyB64 := range keysBase64 {
		key, err := decodeKey(keyB64)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i+1, err)
		}
		keys[i+1] = key
	}
	if _, ok := keys[currentVersion]; !ok {
		return nil, fmt.Errorf("current version %d not found in keys", currentVersion)
	}

	secret, err := base64.StdEncoding.DecodeString(hmacSecretBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode HMAC secret: %w", err)
	}
	if len(secret) == 0 {
		return nil, errors.New("HMAC secret is required")
	}

	return &Keyring{keys: keys, currentVersion: currentVersion, hmacSecret: secret}, nil
}

func decodeKey(b64 string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("must be 32 bytes for AES-256, got %d", len(key))
	}
	return key, nil
}

func (k *Keyring) gcm(version int) (cipher.AEAD, error) {
	k.mu.RLock()
	key, ok := k.keys[version]
	k.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("key version %d not found", version)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts data with the current key. The nonce is prepended.
func (k *Keyring) Seal(data []byte) ([]byte, int, error) {
	version := k.CurrentKeyVersion()
	aead, err := k.gcm(version)
	if err != nil {
		return nil, 0, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, 0, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, data, nil), version, nil
}

// Open decrypts data sealed under version
func (k *Keyring) Open(sealed []byte, version int) ([]byte, error) {
	aead, err := k.gcm(version)
	if err != nil {
		return nil, err
	}
	n := aead.NonceSize()
	if len(sealed) < n {
		return nil, errors.New("ciphertext too short")
	}
	plain, err := aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plain, nil
}

// CurrentKeyVersion returns the version new data is sealed with
func (k *Keyring) CurrentKeyVersion() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.currentVersion
}

// RotateKey adds a key and makes it current
func (k *Keyring) RotateKey(newKeyBase64 string, newVersion int) error {
	key, err := decodeKey(newKeyBase64)
	if err != nil {
		return fmt.Errorf("new key: %w", err)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[newVersion] = key
	k.currentVersion = newVersion
	return nil
}

// HMAC signs data with HMAC-SHA256
func (k *Keyring) HMAC(data string) string {
	h := hmac.New(sha256.New, k.hmacSecret)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func decisionDigest(rec *domain.DecisionRecord) string {
	return strings.Join([]string{
		rec.DecisionID.String(),
		string(rec.Kind),
		rec.Provider,
		rec.UserID,
		rec.SubjectID,
		rec.Outcome,
		string(rec.RiskLevel),
		strconv.Itoa(rec.RiskScore),
		rec.DecidedAt.UTC().Format(time.RFC3339Nano),
		hex.EncodeToString(sha256Sum(rec.Result)),
	}, "|")
}

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// SignDecision sets the record's signature and key version
func (k *Keyring) SignDecision(rec *domain.DecisionRecord) {
	rec.DigitalSignature = k.HMAC(decisionDigest(rec))
	rec.KeyVersion = k.CurrentKeyVersion()
}

// VerifyDecision reports whether the record is unchanged since signing
func (k *Keyring) VerifyDecision(rec *domain.DecisionRecord) bool {
	expected := k.HMAC(decisionDigest(rec))
	return hmac.Equal([]byte(expected), []byte(rec.DigitalSignature))
}

// MaskPII masks personally identifiable information for logging
func MaskPII(value string, piiType string) string {
	if value == "" {
		return ""
	}
	switch piiType {
	case "email":
		if at := strings.IndexByte(value, '@'); at > 0 {
			return value[:1] + "***" + value[at:]
		}
		return "***"
	case "national_id", "account":
		if len(value) < 4 {
			return "****"
		}
		return "****" + value[len(value)-4:]
	case "name":
		parts := strings.Fields(value)
		for i, p := range parts {
			parts[i] = p[:1] + "***"
		}
		return strings.Join(parts, " ")
	default:
		return "***MASKED***"
	}
}
