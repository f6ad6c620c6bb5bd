package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/banking/regional-compliance/internal/compliance"
	"github.com/banking/regional-compliance/internal/compliance/jurisdiction"
	"github.com/banking/regional-compliance/internal/crypto"
	"github.com/banking/regional-compliance/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

var testTenants = StaticTenants{
	"bank-ca":     {Name: "Maple Bank", Country: "CA", Region: "north-america-central", Currency: "CAD"},
	"bank-region": {Name: "Rhein Bank", Region: "europe-west", Currency: "EUR"},
	"bank-jp":     {Name: "Far Bank", Country: "JP", Region: "north-america-central", Currency: "JPY"},
	"bank-fr":     {Name: "Banque", Country: "FR", Currency: "EUR"},
}

// newRegistry registers every builtin profile. mutate may edit a profile
// before its engine is built.
func newRegistry(t *testing.T, mutate func(*jurisdiction.Profile), opts ...compliance.Option) *compliance.Registry {
	t.Helper()
	profiles, err := jurisdiction.Builtin()
	require.NoError(t, err)

	reg := compliance.NewRegistry()
	for _, p := range profiles {
		if mutate != nil {
			mutate(p)
		}
		engineOpts := append([]compliance.Option{compliance.WithClock(func() time.Time { return testNow })}, opts...)
		e, err := compliance.New(p, engineOpts...)
		require.NoError(t, err)
		require.NoError(t, e.Initialize(map[string]string{"institution_name": "Test Bank"}))
		require.NoError(t, reg.Register(e))
	}
	return reg
}

func newService(t *testing.T, reg *compliance.Registry, recorder *DecisionRecorder, alerts AlertPublisher) *ComplianceService {
	t.Helper()
	return NewComplianceService(reg, testTenants, Config{DefaultProvider: "usa-compliance"}, recorder, alerts, nil)
}

func newKeyring(t *testing.T) *crypto.Keyring {
	t.Helper()
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	k, err := crypto.NewKeyring([]string{key}, 1, base64.StdEncoding.EncodeToString([]byte("decision-secret")))
	require.NoError(t, err)
	return k
}

type memoryLedger struct {
	mu        sync.Mutex
	decisions []*domain.DecisionRecord
	fail      error
}

func (l *memoryLedger) AppendDecision(_ context.Context, rec *domain.DecisionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	cp := *rec
	l.decisions = append(l.decisions, &cp)
	return nil
}

func (l *memoryLedger) GetDecisions(_ context.Context, filter domain.DecisionFilter) (*domain.DecisionPage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	page := &domain.DecisionPage{Decisions: []*domain.DecisionRecord{}}
	for _, rec := range l.decisions {
		if filter.DecisionID != nil && rec.DecisionID != *filter.DecisionID {
			continue
		}
		if filter.Kind != nil && rec.Kind != *filter.Kind {
			continue
		}
		cp := *rec
		page.Decisions = append(page.Decisions, &cp)
	}
	page.TotalCount = int64(len(page.Decisions))
	return page, nil
}

func (l *memoryLedger) all() []*domain.DecisionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*domain.DecisionRecord(nil), l.decisions...)
}

type memoryIndex struct {
	mu      sync.Mutex
	indexed []string
}

func (i *memoryIndex) IndexDecision(_ context.Context, rec *domain.DecisionRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.indexed = append(i.indexed, rec.DecisionID.String())
	return nil
}

func (i *memoryIndex) SearchDecisions(context.Context, string, int, int) (*domain.DecisionPage, error) {
	return &domain.DecisionPage{}, nil
}

type panickingIndex struct{}

func (panickingIndex) IndexDecision(context.Context, *domain.DecisionRecord) error {
	panic("index client crashed")
}

func (panickingIndex) SearchDecisions(context.Context, string, int, int) (*domain.DecisionPage, error) {
	return nil, errors.New("unavailable")
}

type recordingAlerts struct {
	mu      sync.Mutex
	results []*domain.AMLResult
	fail    error
}

func (a *recordingAlerts) PublishAMLAlert(_ context.Context, _, _ string, res *domain.AMLResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, res)
	return a.fail
}

type failingTenants struct{}

func (failingTenants) GetTenant(context.Context, string) (*domain.TenantConfig, error) {
	return nil, errors.New("connection refused")
}

func validUser(country string) domain.User {
	income := decimal.NewFromInt(85000)
	dob := time.Date(1985, 6, 15, 0, 0, 0, 0, time.UTC)
	expiry := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.User{
		ID:                 "user-1",
		Email:              "jane.doe@example.com",
		FirstName:          "Jane",
		LastName:           "Doe",
		DateOfBirth:        &dob,
		Nationality:        country,
		CountryOfResidence: country,
		Address: &domain.Address{
			Street:     "1 Main Street",
			City:       "Springfield",
			State:      "IL",
			PostalCode: "62701",
			Country:    country,
		},
		PhoneNumber:   "+15555550100",
		SourceOfFunds: "employment",
		Occupation:    "Engineer",
		Employer:      "Acme",
		AnnualIncome:  &income,
		Documents: []domain.IdentityDocument{
			{Type: domain.DocumentDriversLicense, Number: "D1234567", IssuingCountry: country, ExpiryDate: &expiry, Verified: true},
			{Type: domain.DocumentPassport, Number: "P7654321", IssuingCountry: country, ExpiryDate: &expiry, Verified: true},
			{Type: domain.DocumentNationalID, Number: "NID-998877", IssuingCountry: country, ExpiryDate: &expiry, Verified: true},
			{Type: domain.DocumentSSN, Number: "123-45-6789", IssuingCountry: country, Verified: true},
			{Type: domain.DocumentSIN, Number: "046-454-286", IssuingCountry: country, Verified: true},
		},
	}
}

func transfer(id string, amount int64, currency, recipient, country string) domain.Transaction {
	return domain.Transaction{
		ID:               id,
		UserID:           "user-1",
		Type:             domain.TransactionTransfer,
		Amount:           decimal.NewFromInt(amount),
		Currency:         currency,
		FromAccount:      "acct-1",
		ToAccount:        "acct-" + id,
		RecipientName:    recipient,
		RecipientCountry: country,
		Timestamp:        testNow,
		Status:           domain.TransactionPending,
	}
}
