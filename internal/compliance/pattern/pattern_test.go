package pattern

import (
	"fmt"
	"testing"
	"time"

	"github.com/banking/regional-compliance/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func tx(i int, typ domain.TransactionType, amount int64, offset time.Duration) domain.Transaction {
	return domain.Transaction{
		ID:        fmt.Sprintf("tx-%d", i),
		UserID:    "user-1",
		Type:      typ,
		Amount:    decimal.NewFromInt(amount),
		Currency:  "USD",
		Timestamp: base.Add(offset),
	}
}

func TestStructuring(t *testing.T) {
	threshold := decimal.NewFromInt(10000)
	factor := decimal.RequireFromString("0.8")

	t.Run("three deposits at 78 percent of a 0.75 band", func(t *testing.T) {
		window := []domain.Transaction{
			tx(1, domain.TransactionDeposit, 7800, 0),
			tx(2, domain.TransactionDeposit, 7800, time.Hour),
			tx(3, domain.TransactionDeposit, 7800, 2*time.Hour),
		}
		d := Structuring(window, threshold, decimal.RequireFromString("0.75"))
		assert.True(t, d.Detected)
		assert.Equal(t, []string{"tx-1", "tx-2", "tx-3"}, d.TransactionIDs)
	})

	t.Run("two deposits are not enough", func(t *testing.T) {
		window := []domain.Transaction{
			tx(1, domain.TransactionDeposit, 7800, 0),
			tx(2, domain.TransactionDeposit, 7800, time.Hour),
		}
		d := Structuring(window, threshold, decimal.RequireFromString("0.75"))
		assert.False(t, d.Detected)
		assert.Empty(t, d.TransactionIDs)
	})

	t.Run("amounts at the threshold are outside the band", func(t *testing.T) {
		window := []domain.Transaction{
			tx(1, domain.TransactionDeposit, 10000, 0),
			tx(2, domain.TransactionDeposit, 10000, time.Hour),
			tx(3, domain.TransactionDeposit, 9999, 2*time.Hour),
		}
		assert.False(t, Structuring(window, threshold, factor).Detected)
	})

	t.Run("lower bound is inclusive", func(t *testing.T) {
		window := []domain.Transaction{
			tx(1, domain.TransactionTransfer, 8000, 0),
			tx(2, domain.TransactionDeposit, 8000, time.Hour),
			tx(3, domain.TransactionPayment, 9999, 2*time.Hour),
		}
		assert.True(t, Structuring(window, threshold, factor).Detected)
	})
}

func TestRapidMovement(t *testing.T) {
	window := []domain.Transaction{
		tx(1, domain.TransactionDeposit, 100, 0),
		tx(2, domain.TransactionDeposit, 100, time.Minute),
		tx(3, domain.TransactionDeposit, 100, 2*time.Minute),
		tx(4, domain.TransactionWithdrawal, 100, 3*time.Minute),
		tx(5, domain.TransactionTransfer, 100, 4*time.Minute),
	}
	assert.False(t, RapidMovement(window).Detected)

	window = append(window, tx(6, domain.TransactionTransfer, 100, 5*time.Minute))
	d := RapidMovement(window)
	assert.True(t, d.Detected)
	assert.Len(t, d.TransactionIDs, 6)
}

func TestUnusual(t *testing.T) {
	var history []domain.Transaction
	for i := 0; i < 9; i++ {
		history = append(history, tx(i, domain.TransactionTransfer, 100, time.Duration(i)*time.Hour))
	}
	five := decimal.NewFromInt(5)

	// baseline (900+500)/10 = 140, limit 700
	modest := tx(20, domain.TransactionTransfer, 500, 10*time.Hour)
	assert.False(t, Unusual(modest, append(history, modest), five).Detected)

	// baseline (900+5000)/10 = 590, limit 2950
	big := tx(21, domain.TransactionTransfer, 5000, 10*time.Hour)
	d := Unusual(big, append(history, big), five)
	assert.True(t, d.Detected)
	assert.Equal(t, []string{"tx-21"}, d.TransactionIDs)

	assert.False(t, Unusual(big, nil, five).Detected, "no baseline without history")
}

func TestHighRiskJurisdiction(t *testing.T) {
	set := NewCountrySet("kp", "IR")
	payment := tx(1, domain.TransactionTransfer, 100, 0)

	payment.RecipientCountry = "KP"
	assert.True(t, HighRiskJurisdiction(payment, set).Detected)

	payment.RecipientCountry = "ir"
	assert.True(t, HighRiskJurisdiction(payment, set).Detected)

	payment.RecipientCountry = "FR"
	assert.False(t, HighRiskJurisdiction(payment, set).Detected)

	payment.RecipientCountry = ""
	assert.False(t, HighRiskJurisdiction(payment, set).Detected)
}

func TestCashIntensive(t *testing.T) {
	var window []domain.Transaction
	for i := 0; i < 4; i++ {
		window = append(window, tx(i, domain.TransactionDeposit, 1000, time.Duration(i)*time.Hour))
	}
	window = append(window, tx(10, domain.TransactionDeposit, 999, 5*time.Hour))
	assert.False(t, CashIntensive(window, decimal.NewFromInt(1000)).Detected)

	window = append(window, tx(11, domain.TransactionDeposit, 2500, 6*time.Hour))
	d := CashIntensive(window, decimal.NewFromInt(1000))
	assert.True(t, d.Detected)
	assert.Len(t, d.TransactionIDs, 5)
}

func TestRoundRobin(t *testing.T) {
	fast := []domain.Transaction{
		tx(1, domain.TransactionTransfer, 500, 0),
		tx(2, domain.TransactionTransfer, 500, 20*time.Minute),
		tx(3, domain.TransactionTransfer, 500, 50*time.Minute),
	}
	assert.True(t, RoundRobin(fast).Detected)

	slow := []domain.Transaction{
		tx(1, domain.TransactionTransfer, 500, 0),
		tx(2, domain.TransactionTransfer, 500, time.Hour),
		tx(3, domain.TransactionTransfer, 500, 2*time.Hour),
	}
	assert.False(t, RoundRobin(slow).Detected)

	assert.False(t, RoundRobin(fast[:2]).Detected)
}

func TestSmurfing(t *testing.T) {
	lo, hi := decimal.NewFromInt(1000), decimal.NewFromInt(5000)
	var window []domain.Transaction
	for i := 0; i < 5; i++ {
		window = append(window, tx(i, domain.TransactionDeposit, 4999, time.Duration(i)*time.Minute))
	}
	assert.True(t, Smurfing(window, lo, hi).Detected)

	window[0].Amount = decimal.NewFromInt(5000)
	assert.False(t, Smurfing(window, lo, hi).Detected)

	assert.False(t, Smurfing(window, decimal.Zero, decimal.Zero).Detected, "zero band disables the check")
}

func TestVelocity(t *testing.T) {
	now := base.Add(30 * time.Hour)
	var history []domain.Transaction
	for i := 0; i < 11; i++ {
		history = append(history, tx(i, domain.TransactionPayment, 10, 10*time.Hour+time.Duration(i)*time.Minute))
	}
	history = append(history, tx(99, domain.TransactionPayment, 10, 0))

	d := Velocity(history, now, 10)
	assert.True(t, d.Detected)
	assert.Len(t, d.TransactionIDs, 11)
	assert.NotContains(t, d.TransactionIDs, "tx-99")

	assert.False(t, Velocity(history, now, 11).Detected)
}

func TestGeographicAndThirdParty(t *testing.T) {
	set := NewCountrySet("SY")
	window := []domain.Transaction{
		tx(1, domain.TransactionPayment, 10, 0),
		tx(2, domain.TransactionPayment, 10, time.Minute),
	}
	assert.False(t, Geographic(window, set).Detected)

	window[1].RecipientCountry = "SY"
	g := Geographic(window, set)
	require.True(t, g.Detected)
	assert.Equal(t, []string{"tx-2"}, g.TransactionIDs)

	for i := 3; i < 6; i++ {
		window = append(window, tx(i, domain.TransactionPayment, 10, time.Duration(i)*time.Minute))
	}
	assert.True(t, ThirdPartyPayments(window).Detected)
	assert.False(t, ThirdPartyPayments(window[:4]).Detected)
}

func TestLarge(t *testing.T) {
	window := []domain.Transaction{
		tx(1, domain.TransactionDeposit, 12000, 0),
		tx(2, domain.TransactionTransfer, 15000, time.Minute),
	}
	deposits := func(t domain.Transaction) bool { return t.Type == domain.TransactionDeposit }

	d := Large(window, decimal.NewFromInt(10000), deposits)
	assert.Equal(t, []string{"tx-1"}, d.TransactionIDs)
	assert.Len(t, Large(window, decimal.NewFromInt(10000), nil).TransactionIDs, 2)
}

func TestSince(t *testing.T) {
	history := []domain.Transaction{
		tx(2, domain.TransactionDeposit, 1, 2*time.Hour),
		tx(1, domain.TransactionDeposit, 1, time.Hour),
		tx(0, domain.TransactionDeposit, 1, 0),
	}
	got := Since(history, base.Add(time.Hour))
	require.Len(t, got, 2)
	assert.Equal(t, "tx-1", got[0].ID)
	assert.Equal(t, "tx-2", got[1].ID)
}

func TestKeywords(t *testing.T) {
	found := Keywords("Gift for the OFFSHORE account", []string{"cash", "gift", "offshore"})
	assert.Equal(t, []string{"gift", "offshore"}, found)
	assert.Empty(t, Keywords("rent", []string{"cash"}))
}
