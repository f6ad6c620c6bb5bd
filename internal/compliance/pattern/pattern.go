// Package pattern holds pure checks over a user's time-ordered transaction
// history. Each check reports whether it fired and which transactions
// contributed, so alerts can point back at the evidence.
package pattern

import (
	"sort"
	"strings"
	"time"

	"github.com/banking/regional-compliance/internal/compliance/namematch"
	"github.com/banking/regional-compliance/internal/domain"
	"github.com/shopspring/decimal"
)

// Fixed counts shared by every jurisdiction
const (
	StructuringMinCount   = 3
	RapidMovementMinCount = 3
	CashIntensiveMinCount = 5
	RoundRobinMinCount    = 3
	RoundRobinMaxMeanGap  = time.Hour
	SmurfingMinCount      = 5
	ThirdPartyMinCount    = 5
	VelocityWindow        = 24 * time.Hour
)

// Detection is the result of a single check
type Detection struct {
	Detected       bool     `json:"detected"`
	TransactionIDs []string `json:"transaction_ids,omitempty"`
}

func detectWhen(ok bool, txs []domain.Transaction) Detection {
	if !ok {
		return Detection{}
	}
	return Detection{Detected: true, TransactionIDs: ids(txs)}
}

func ids(txs []domain.Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, t := range txs {
		out = append(out, t.ID)
	}
	return out
}

func filter(txs []domain.Transaction, keep func(domain.Transaction) bool) []domain.Transaction {
	var out []domain.Transaction
	for _, t := range txs {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// CountrySet is a set of upper-case ISO country codes
type CountrySet map[string]struct{}

// NewCountrySet builds a set from country codes, ignoring case
func NewCountrySet(codes ...string) CountrySet {
	s := make(CountrySet, len(codes))
	for _, c := range codes {
		s[strings.ToUpper(strings.TrimSpace(c))] = struct{}{}
	}
	return s
}

// Contains reports whether code is in the set. Empty codes never match.
func (s CountrySet) Contains(code string) bool {
	if code == "" {
		return false
	}
	_, ok := s[strings.ToUpper(code)]
	return ok
}

// Since returns the transactions at or after since, in time order
func Since(history []domain.Transaction, since time.Time) []domain.Transaction {
	out := filter(history, func(t domain.Transaction) bool { return !t.Timestamp.Before(since) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Structuring flags three or more amounts in [lowerFactor*threshold, threshold)
func Structuring(window []domain.Transaction, threshold, lowerFactor decimal.Decimal) Detection {
	floor := threshold.Mul(lowerFactor)
	hits := filter(window, func(t domain.Transaction) bool {
		return t.Amount.GreaterThanOrEqual(floor) && t.Amount.LessThan(threshold)
	})
	return detectWhen(len(hits) >= StructuringMinCount, hits)
}

// RapidMovement flags simultaneous inflow and outflow: at least three
// deposits and at least three withdrawals or transfers
func RapidMovement(window []domain.Transaction) Detection {
	deposits := filter(window, func(t domain.Transaction) bool { return t.Type == domain.TransactionDeposit })
	outflows := filter(window, domain.Transaction.IsOutflow)
	ok := len(deposits) >= RapidMovementMinCount && len(outflows) >= RapidMovementMinCount
	return detectWhen(ok, append(deposits, outflows...))
}

// Baseline is the mean amount of the history, zero when empty
func Baseline(history []domain.Transaction) decimal.Decimal {
	if len(history) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, t := range history {
		total = total.Add(t.Amount)
	}
	return total.Div(decimal.NewFromInt(int64(len(history))))
}

// Unusual flags tx when its amount exceeds the history baseline times multiplier
func Unusual(tx domain.Transaction, history []domain.Transaction, multiplier decimal.Decimal) Detection {
	avg := Baseline(history)
	ok := avg.IsPositive() && tx.Amount.GreaterThan(avg.Mul(multiplier))
	return detectWhen(ok, []domain.Transaction{tx})
}

// HighRiskJurisdiction flags tx when its recipient country is high risk
func HighRiskJurisdiction(tx domain.Transaction, highRisk CountrySet) Detection {
	return detectWhen(highRisk.Contains(tx.RecipientCountry), []domain.Transaction{tx})
}

// CashIntensive flags five or more deposits at or above floor
func CashIntensive(window []domain.Transaction, floor decimal.Decimal) Detection {
	hits := filter(window, func(t domain.Transaction) bool {
		return t.Type == domain.TransactionDeposit && t.Amount.GreaterThanOrEqual(floor)
	})
	return detectWhen(len(hits) >= CashIntensiveMinCount, hits)
}

// RoundRobin flags three or more transfers whose mean gap is under an hour
func RoundRobin(window []domain.Transaction) Detection {
	transfers := filter(window, func(t domain.Transaction) bool { return t.Type == domain.TransactionTransfer })
	if len(transfers) < RoundRobinMinCount {
		return Detection{}
	}
	sort.SliceStable(transfers, func(i, j int) bool { return transfers[i].Timestamp.Before(transfers[j].Timestamp) })

	var total time.Duration
	for i := 1; i < len(transfers); i++ {
		total += transfers[i].Timestamp.Sub(transfers[i-1].Timestamp)
	}
	mean := total / time.Duration(len(transfers)-1)
	return detectWhen(mean < RoundRobinMaxMeanGap, transfers)
}

// Smurfing flags five or more deposits with amounts in [bandMin, bandMax).
// A zero band disables the check.
func Smurfing(window []domain.Transaction, bandMin, bandMax decimal.Decimal) Detection {
	if !bandMax.IsPositive() {
		return Detection{}
	}
	hits := filter(window, func(t domain.Transaction) bool {
		return t.Type == domain.TransactionDeposit &&
			t.Amount.GreaterThanOrEqual(bandMin) && t.Amount.LessThan(bandMax)
	})
	return detectWhen(len(hits) >= SmurfingMinCount, hits)
}

// Velocity flags more than limit transactions in the 24 hours before now
func Velocity(history []domain.Transaction, now time.Time, limit int) Detection {
	start := now.Add(-VelocityWindow)
	hits := filter(history, func(t domain.Transaction) bool {
		return t.Timestamp.After(start) && !t.Timestamp.After(now)
	})
	return detectWhen(limit > 0 && len(hits) > limit, hits)
}

// Geographic flags any transaction sent to a high-risk country
func Geographic(window []domain.Transaction, highRisk CountrySet) Detection {
	hits := filter(window, func(t domain.Transaction) bool { return highRisk.Contains(t.RecipientCountry) })
	return detectWhen(len(hits) > 0, hits)
}

// ThirdPartyPayments flags five or more payments
func ThirdPartyPayments(window []domain.Transaction) Detection {
	hits := filter(window, func(t domain.Transaction) bool { return t.Type == domain.TransactionPayment })
	return detectWhen(len(hits) >= ThirdPartyMinCount, hits)
}

// Large flags transactions with amount at or above floor that satisfy match
func Large(window []domain.Transaction, floor decimal.Decimal, match func(domain.Transaction) bool) Detection {
	hits := filter(window, func(t domain.Transaction) bool {
		return t.Amount.GreaterThanOrEqual(floor) && (match == nil || match(t))
	})
	return detectWhen(len(hits) > 0, hits)
}

// Keywords returns the keywords contained in text, ignoring case
func Keywords(text string, keywords []string) []string {
	var found []string
	for _, k := range keywords {
		if namematch.ContainsKeyword(text, k) {
			found = append(found, k)
		}
	}
	return found
}
