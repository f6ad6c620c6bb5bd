package compliance

import (
	"testing"

	"github.com/banking/regional-compliance/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRegulatoryLimits(t *testing.T) {
	e := newEngine(t, "usa-compliance")

	usd, err := e.GetRegulatoryLimits("")
	require.NoError(t, err)
	assert.Equal(t, "USD", usd.Currency)
	assert.True(t, usd.CashReportingThreshold.Equal(amount(10000)))

	eur, err := e.GetRegulatoryLimits("eur")
	require.NoError(t, err)
	assert.Equal(t, "EUR", eur.Currency)
	assert.True(t, eur.CashReportingThreshold.Equal(amount(8500)), eur.CashReportingThreshold.String())
	assert.True(t, eur.PEPTransactionLimit.Equal(decimal.NewFromFloat(21250)))

	_, err = e.GetRegulatoryLimits("XYZ")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestGetRequiredKYCLevel(t *testing.T) {
	e := newEngine(t, "usa-compliance")

	cases := []struct {
		amount   int64
		currency string
		want     domain.KYCLevel
	}{
		{50000, "USD", domain.KYCAdvanced},
		{49999, "USD", domain.KYCIntermediate},
		{2500, "USD", domain.KYCIntermediate},
		{2499, "USD", domain.KYCBasic},
		{0, "USD", domain.KYCBasic},
		{42500, "EUR", domain.KYCAdvanced},
	}
	for _, tc := range cases {
		got, err := e.GetRequiredKYCLevel(domain.TransactionTransfer, amount(tc.amount), tc.currency)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%d %s", tc.amount, tc.currency)
	}

	_, err := e.GetRequiredKYCLevel(domain.TransactionTransfer, amount(-1), "USD")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = e.GetRequiredKYCLevel(domain.TransactionTransfer, amount(100), "XYZ")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestGetRequiredKYCLevel_Operations(t *testing.T) {
	e := newEngine(t, "usa-compliance")

	for _, op := range []domain.TransactionType{domain.TransactionTransfer, domain.TransactionDeposit, domain.TransactionWithdrawal} {
		got, err := e.GetRequiredKYCLevel(op, amount(2500), "USD")
		require.NoError(t, err, op)
		assert.Equal(t, domain.KYCIntermediate, got, op)
	}

	for _, op := range []domain.TransactionType{"", domain.TransactionPayment, "loan"} {
		_, err := e.GetRequiredKYCLevel(op, amount(2500), "USD")
		assert.ErrorIs(t, err, ErrInvalidRequest, op)
	}
}

func TestIsOperationCompliant(t *testing.T) {
	e := newEngine(t, "usa-compliance")

	ok, err := e.IsOperationCompliant(domain.TransactionTransfer, domain.OperationContext{
		Amount:   amount(1000),
		Currency: "USD",
		KYCLevel: domain.KYCBasic,
	})
	require.NoError(t, err)
	assert.True(t, ok.Compliant)
	assert.Empty(t, ok.Violations)
	assert.Equal(t, domain.KYCBasic, ok.RequiredKYCLevel)

	bad, err := e.IsOperationCompliant(domain.TransactionTransfer, domain.OperationContext{
		Amount:           amount(30000),
		Currency:         "USD",
		KYCLevel:         domain.KYCBasic,
		PEP:              true,
		DailyTotal:       amount(80000),
		RecipientCountry: "IR",
	})
	require.NoError(t, err)
	assert.False(t, bad.Compliant)
	assert.Equal(t, domain.KYCIntermediate, bad.RequiredKYCLevel)
	assert.Len(t, bad.Violations, 4)
	assert.Contains(t, bad.Violations, "transfer requires intermediate KYC verification")
	assert.Contains(t, bad.Violations, "recipient country IR is sanctioned")
}

func TestIsOperationCompliant_InternationalLimit(t *testing.T) {
	e := newEngine(t, "canada-compliance")

	res, err := e.IsOperationCompliant(domain.TransactionTransfer, domain.OperationContext{
		Amount:           amount(12000),
		Currency:         "CAD",
		KYCLevel:         domain.KYCAdvanced,
		RecipientCountry: "US",
	})
	require.NoError(t, err)
	assert.False(t, res.Compliant)
	require.Len(t, res.Violations, 1)
	assert.Contains(t, res.Violations[0], "international transfer")

	domestic, err := e.IsOperationCompliant(domain.TransactionTransfer, domain.OperationContext{
		Amount:           amount(12000),
		Currency:         "CAD",
		KYCLevel:         domain.KYCAdvanced,
		RecipientCountry: "CA",
	})
	require.NoError(t, err)
	assert.True(t, domestic.Compliant)
}

func TestIsOperationCompliant_UnknownCurrency(t *testing.T) {
	e := newEngine(t, "usa-compliance")

	_, err := e.IsOperationCompliant(domain.TransactionTransfer, domain.OperationContext{
		Amount:   amount(10),
		Currency: "XYZ",
		KYCLevel: domain.KYCBasic,
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestIsOperationCompliant_MissingKYCLevel(t *testing.T) {
	e := newEngine(t, "europe-compliance")

	res, err := e.IsOperationCompliant("", domain.OperationContext{Amount: amount(10), Currency: "EUR"})
	require.NoError(t, err)
	assert.False(t, res.Compliant)
	assert.Equal(t, []string{"operation requires basic KYC verification"}, res.Violations)
}
