package compliance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/banking/regional-compliance/internal/compliance/jurisdiction"
	"github.com/banking/regional-compliance/internal/compliance/verification"
	"github.com/banking/regional-compliance/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

var allProfiles = []string{"usa-compliance", "europe-compliance", "canada-compliance"}

func loadProfile(t *testing.T, name string) *jurisdiction.Profile {
	t.Helper()
	profiles, err := jurisdiction.Builtin()
	require.NoError(t, err)
	for _, p := range profiles {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("profile %s not found", name)
	return nil
}

func newEngine(t *testing.T, name string, opts ...Option) *Engine {
	t.Helper()
	return newEngineFor(t, loadProfile(t, name), opts...)
}

func newEngineFor(t *testing.T, p *jurisdiction.Profile, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	e, err := New(p, opts...)
	require.NoError(t, err)
	require.NoError(t, e.Initialize(map[string]string{
		"environment":      "production",
		"institution_name": "Test Bank",
		"api_key":          "test",
	}))
	return e
}

func amount(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func deposit(id string, amt int64, currency string, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:          id,
		UserID:      "user-1",
		Type:        domain.TransactionDeposit,
		Amount:      amount(amt),
		Currency:    currency,
		FromAccount: "cash",
		ToAccount:   "acct-1",
		Timestamp:   at,
		Status:      domain.TransactionCompleted,
	}
}

func transfer(id string, amt int64, currency, recipient, country string, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:               id,
		UserID:           "user-1",
		Type:             domain.TransactionTransfer,
		Amount:           amount(amt),
		Currency:         currency,
		FromAccount:      "acct-1",
		ToAccount:        "acct-" + id,
		RecipientName:    recipient,
		RecipientCountry: country,
		Timestamp:        at,
		Status:           domain.TransactionPending,
	}
}

func ptime(t time.Time) *time.Time { return &t }

func validUser(country string) domain.User {
	income := amount(85000)
	farFuture := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.User{
		ID:                 "user-1",
		Email:              "jane.doe@example.com",
		FirstName:          "Jane",
		LastName:           "Doe",
		DateOfBirth:        ptime(time.Date(1985, 6, 15, 0, 0, 0, 0, time.UTC)),
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
			{Type: domain.DocumentDriversLicense, Number: "D1234567", IssuingCountry: country, ExpiryDate: &farFuture, Verified: true},
			{Type: domain.DocumentPassport, Number: "P7654321", IssuingCountry: country, ExpiryDate: &farFuture, Verified: true},
			{Type: domain.DocumentNationalID, Number: "NID-998877", IssuingCountry: country, ExpiryDate: &farFuture, Verified: true},
			{Type: domain.DocumentSSN, Number: "123-45-6789", IssuingCountry: country, Verified: true},
			{Type: domain.DocumentSIN, Number: "046-454-286", IssuingCountry: country, Verified: true},
		},
	}
}

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return out
}

type blockingSanctions struct{}

func (blockingSanctions) Search(ctx context.Context, _ domain.SanctionsRequest) ([]domain.SanctionsMatch, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func blockingServices() verification.Services {
	return verification.Services{Sanctions: blockingSanctions{}}
}

type stubSanctions struct{ matches []domain.SanctionsMatch }

func (s stubSanctions) Search(context.Context, domain.SanctionsRequest) ([]domain.SanctionsMatch, error) {
	return s.matches, nil
}

type panicCredit struct{}

func (panicCredit) Verify(context.Context, domain.User) (verification.CreditReport, error) {
	panic("credit bureau client crashed")
}

func panickingCredit() verification.Services {
	return verification.Services{Credit: panicCredit{}}
}

type failingCredit struct{ err error }

func (f failingCredit) Verify(context.Context, domain.User) (verification.CreditReport, error) {
	return verification.CreditReport{}, f.err
}

type mediaHit struct{}

func (mediaHit) Screen(context.Context, domain.User) (bool, error) { return true, nil }
