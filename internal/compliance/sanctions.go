package compliance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/banking/regional-compliance/internal/compliance/namematch"
	"github.com/banking/regional-compliance/internal/compliance/pattern"
	"github.com/banking/regional-compliance/internal/domain"
	"go.uber.org/zap"
)

const countrySanctionsProgram = "COUNTRY_SANCTIONS"

// CheckSanctions screens a name and nationality against the profile lists
// and the optional external sanctions source
func (e *Engine) CheckSanctions(ctx context.Context, req domain.SanctionsRequest) (*domain.SanctionsCheckResult, error) {
	start := time.Now()
	if err := e.ready(domain.OpSanctions); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, invalid("name is required for sanctions screening")
	}

	result, err := e.screen(ctx, req)
	e.metrics.ObserveEvaluation(e.profile.Name, string(domain.OpSanctions), outcome(err), start)
	if err != nil {
		return nil, err
	}
	if result.Matched {
		e.logger.Warn("Sanctions match",
			zap.Int("matches", len(result.Matches)),
			zap.String("risk_level", string(result.RiskLevel)))
	}
	return result, nil
}

// screen is the capability-free core shared by KYC and AML
func (e *Engine) screen(ctx context.Context, req domain.SanctionsRequest) (*domain.SanctionsCheckResult, error) {
	p := e.profile
	var matches []domain.SanctionsMatch

	for _, entry := range p.SanctionsEntries {
		score, ok := namematch.Matches(req.Name, entry.Name, entry.Threshold)
		if !ok {
			continue
		}
		matches = append(matches, domain.SanctionsMatch{
			ListName:   entry.List,
			MatchScore: score,
			EntityName: entry.Name,
			EntityType: entry.Type,
			Program:    entry.Program,
			Details:    fmt.Sprintf("Matched against %s %s program", entry.List, entry.Program),
		})
	}

	if req.Nationality != "" && p.IsSanctionedCountry(req.Nationality) {
		matches = append(matches, domain.SanctionsMatch{
			ListName:   p.Regulator + " Country Sanctions",
			MatchScore: namematch.Exact,
			EntityName: strings.ToUpper(req.Nationality),
			EntityType: domain.EntityOrganization,
			Program:    countrySanctionsProgram,
			Details:    "Nationality matches sanctioned country",
		})
	}

	for _, list := range p.KeywordLists {
		found := pattern.Keywords(req.Name, list.Keywords)
		if len(found) == 0 {
			continue
		}
		matches = append(matches, domain.SanctionsMatch{
			ListName:   list.List,
			MatchScore: list.Score,
			EntityName: req.Name,
			EntityType: domain.EntityOrganization,
			Program:    list.Program,
			Details:    fmt.Sprintf("Name contains listed term %q", found[0]),
		})
	}

	if src := e.services.Sanctions; src != nil {
		extra, err := call(ctx, e, "sanctions list", e.lookupTimeout, func(ctx context.Context) ([]domain.SanctionsMatch, error) {
			return src.Search(ctx, req)
		})
		if err != nil {
			return nil, err
		}
		matches = append(matches, extra...)
	}

	result := &domain.SanctionsCheckResult{
		Matched:   len(matches) > 0,
		Provider:  p.Name,
		Matches:   matches,
		CheckedAt: e.now(),
	}
	highest := result.HighestScore()
	result.RiskLevel = e.sanctionsRisk(highest, matches)
	result.RequiresReview = result.Matched || highest >= 70
	return result, nil
}

func (e *Engine) sanctionsRisk(highest float64, matches []domain.SanctionsMatch) domain.RiskLevel {
	for _, m := range matches {
		if e.profile.IsCriticalProgram(m.Program) {
			return domain.RiskCritical
		}
	}
	switch {
	case highest >= 95:
		return domain.RiskCritical
	case highest >= 85:
		return domain.RiskHigh
	case highest >= 70:
		return domain.RiskMedium
	}
	return domain.RiskLow
}

// terroristMatch returns the terrorist-list keywords contained in name
func (e *Engine) terroristMatch(name string) []string {
	var found []string
	for _, list := range e.profile.KeywordLists {
		if list.Terrorist {
			found = append(found, pattern.Keywords(name, list.Keywords)...)
		}
	}
	return found
}
