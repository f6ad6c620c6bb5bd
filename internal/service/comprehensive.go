package service

import (
	"context"
	"strings"

	"github.com/banking/regional-compliance/internal/domain"
	"golang.org/x/sync/errgroup"
)

// PerformComprehensiveCheck runs intermediate KYC, a pre-transaction AML
// check and a sanctions screening of the user on one provider. Any failed
// check fails the whole call; no partial result is returned and the user's
// risk score is left as it was.
func (s *ComplianceService) PerformComprehensiveCheck(ctx context.Context, t Target, req domain.ComprehensiveRequest) (*domain.ComprehensiveResult, error) {
	user := req.User
	p, err := s.resolveFor(ctx, hint(t, user.CountryOfResidence), domain.OpKYC, domain.OpAML, domain.OpSanctions)
	if err != nil {
		return nil, err
	}

	res := &domain.ComprehensiveResult{Provider: p.Name()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		kyc, err := p.PerformKYC(gctx, domain.KYCRequest{
			User:      user,
			Level:     domain.KYCIntermediate,
			Documents: user.Documents,
			Options:   domain.KYCOptions{CheckAddress: true},
		})
		res.KYC = kyc
		return err
	})
	g.Go(func() error {
		aml, err := p.CheckAML(gctx, domain.AMLRequest{
			Transaction:    req.Transaction,
			User:           user,
			CheckType:      domain.AMLPreTransaction,
			DeferRiskScore: true,
		})
		res.AML = aml
		return err
	})
	g.Go(func() error {
		sanctions, err := p.CheckSanctions(gctx, screeningRequest(user))
		res.Sanctions = sanctions
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.OverallRisk = domain.WorstRisk(res.KYC.RiskLevel, res.AML.RiskLevel, res.Sanctions.RiskLevel)
	res.Approved = res.KYC.Verified &&
		res.AML.Passed &&
		!res.Sanctions.Matched &&
		res.AML.Recommendation != domain.RecommendReject &&
		res.OverallRisk != domain.RiskCritical
	if !res.Approved {
		res.Reason = rejectionReason(res)
	}

	outcome := "rejected"
	if res.Approved {
		outcome = "approved"
	}
	if err := s.record(ctx, decision{
		kind: domain.DecisionComprehensive, provider: p.Name(), tenantID: t.TenantID, userID: user.ID,
		subjectID: req.Transaction.ID, outcome: outcome, risk: res.OverallRisk,
		score: res.AML.RiskScore, at: res.AML.CheckedAt, result: res,
	}); err != nil {
		return nil, err
	}
	userID := req.Transaction.UserID
	if userID == "" {
		userID = user.ID
	}
	p.CommitRiskScore(ctx, userID, res.AML)
	s.alert(ctx, t.TenantID, user.ID, res.AML)
	return res, nil
}

func rejectionReason(res *domain.ComprehensiveResult) string {
	switch {
	case !res.KYC.Verified:
		return "KYC verification failed"
	case !res.AML.Passed:
		return "AML check failed"
	case res.Sanctions.Matched:
		return "Sanctions list match"
	default:
		return "High risk transaction"
	}
}

func screeningRequest(user domain.User) domain.SanctionsRequest {
	req := domain.SanctionsRequest{
		Name:        user.FullName(),
		EntityType:  domain.EntityIndividual,
		DateOfBirth: user.DateOfBirth,
		Nationality: user.Nationality,
	}
	if a := user.Address; a != nil {
		req.Address = strings.Join([]string{a.Street, a.City, a.Country}, ", ")
	}
	return req
}
