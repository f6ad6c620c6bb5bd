package compliance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/banking/regional-compliance/internal/compliance/jurisdiction"
	"github.com/banking/regional-compliance/internal/compliance/verification"
	"github.com/banking/regional-compliance/internal/domain"
	"go.uber.org/zap"
)

// kycRun accumulates the score of one verification. Issues block
// verification; advisories only explain score penalties.
type kycRun struct {
	score      int
	checks     domain.KYCChecks
	issues     []string
	advisories []string

	sanctionsFailed bool
	pepMatched      bool
	mediaHit        bool
	nationalIDValid bool
}

func (r *kycRun) add(weight int)   { r.score += weight }
func (r *kycRun) issue(msg string) { r.issues = append(r.issues, msg) }
func (r *kycRun) advise(format string, a ...any) {
	r.advisories = append(r.advisories, fmt.Sprintf(format, a...))
}

// PerformKYC scores a user at the requested verification level. Levels are
// cumulative: advanced runs the intermediate and basic checks too.
func (e *Engine) PerformKYC(ctx context.Context, req domain.KYCRequest) (*domain.KYCResult, error) {
	start := time.Now()
	if err := e.ready(domain.OpKYC); err != nil {
		return nil, err
	}
	if req.User.ID == "" {
		return nil, invalid("user id is required")
	}
	if req.Level == "" {
		req.Level = domain.KYCBasic
	}
	if !req.Level.Valid() {
		return nil, invalid("unknown verification level %q", req.Level)
	}
	if len(req.Documents) == 0 {
		req.Documents = req.User.Documents
	}

	result, err := e.performKYC(ctx, req)
	e.metrics.ObserveEvaluation(e.profile.Name, string(domain.OpKYC), outcome(err), start)
	if err != nil {
		return nil, err
	}

	e.logger.Info("KYC verification completed",
		zap.String("user_id", req.User.ID),
		zap.String("level", string(req.Level)),
		zap.Int("score", result.Score),
		zap.Bool("verified", result.Verified),
		zap.String("risk_level", string(result.RiskLevel)))
	return result, nil
}

func (e *Engine) performKYC(ctx context.Context, req domain.KYCRequest) (*domain.KYCResult, error) {
	p := e.profile
	now := e.now()
	run := &kycRun{}

	if regime := p.KYC.ConsentRegime; regime != "" {
		ok, err := e.lookup(ctx, "consent registry", func(ctx context.Context) (bool, error) {
			return e.services.Consent.HasConsent(ctx, req.User.ID, regime)
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			return &domain.KYCResult{
				Success:          true,
				Provider:         p.Name,
				Level:            req.Level,
				VerificationDate: now,
				RiskLevel:        domain.RiskHigh,
				Issues:           []string{fmt.Sprintf("%s data processing consent required", regime)},
				NextReviewDate:   now,
			}, nil
		}
		run.checks.DataConsentConfirmed = true
	}

	if err := e.kycBasic(ctx, req, run); err != nil {
		return nil, err
	}
	if req.Level.AtLeast(domain.KYCIntermediate) {
		if err := e.kycIntermediate(ctx, req, run); err != nil {
			return nil, err
		}
	}
	if req.Level.AtLeast(domain.KYCAdvanced) {
		if err := e.kycAdvanced(ctx, req, run); err != nil {
			return nil, err
		}
	}

	score := clampScore(run.score)
	risk := kycRiskBand(score)
	if run.sanctionsFailed || run.pepMatched || req.User.PoliticallyExposed ||
		(run.mediaHit && p.KYC.AdverseMediaForcesHigh) {
		risk = domain.RiskHigh
	}

	return &domain.KYCResult{
		Success:          true,
		Provider:         p.Name,
		Level:            req.Level,
		Verified:         score >= p.KYC.VerifiedScore && !run.sanctionsFailed && len(run.issues) == 0,
		VerificationDate: now,
		Score:            score,
		Checks:           run.checks,
		RiskLevel:        risk,
		Issues:           run.issues,
		Advisories:       run.advisories,
		NextReviewDate:   now.AddDate(0, p.ReviewInterval(risk), 0),
	}, nil
}

func kycRiskBand(score int) domain.RiskLevel {
	switch {
	case score >= 80:
		return domain.RiskLow
	case score >= 60:
		return domain.RiskMedium
	}
	return domain.RiskHigh
}

func (e *Engine) kycBasic(ctx context.Context, req domain.KYCRequest, run *kycRun) error {
	p := e.profile
	w := p.KYC.Weights
	user := req.User
	now := e.now()

	primary, ok := primaryDocument(req.Documents, p.KYC.PrimaryDocuments, now)
	if ok {
		run.add(w.PrimaryDocument)
		run.checks.DocumentVerified = true
	} else if w.PrimaryDocument != 0 {
		run.advise("No valid primary identity document")
	}

	if rule := p.KYC.NationalID; rule != nil {
		valid := nationalIDValid(rule, req.Documents)
		run.nationalIDValid = valid
		if valid {
			run.add(w.NationalID)
			run.checks.IdentityVerified = true
		} else {
			run.advise("%s missing or invalid", strings.ToUpper(string(rule.Document)))
		}
	}

	if w.IdentityRegistry != 0 {
		doc := primary
		if !ok && len(req.Documents) > 0 {
			doc = req.Documents[0]
		}
		verified := false
		if doc.Type != "" {
			var err error
			verified, err = e.lookup(ctx, "identity registry", func(ctx context.Context) (bool, error) {
				return e.services.Identity.VerifyDocument(ctx, doc)
			})
			if err != nil {
				return err
			}
		}
		if verified {
			run.add(w.IdentityRegistry)
			run.checks.IdentityVerified = true
		} else {
			run.advise("Identity document not confirmed by registry")
		}
	}

	if p.KYC.CreditCheckLevel == domain.KYCBasic {
		if err := e.kycCredit(ctx, user, run); err != nil {
			return err
		}
	}

	if w.AddressOnFile != 0 {
		if hasAddress(user) {
			run.add(w.AddressOnFile)
			run.checks.AddressVerified = true
		} else {
			run.advise("Residential address missing")
		}
	}

	if w.MissingOccupation != 0 && strings.TrimSpace(user.Occupation) == "" {
		run.add(w.MissingOccupation)
		run.advise("Occupation information required")
	}
	return nil
}

func (e *Engine) kycIntermediate(ctx context.Context, req domain.KYCRequest, run *kycRun) error {
	p := e.profile
	w := p.KYC.Weights
	user := req.User

	if p.KYC.CreditCheckLevel == domain.KYCIntermediate {
		if err := e.kycCredit(ctx, user, run); err != nil {
			return err
		}
	}

	if w.StrongAuth != 0 {
		enrolled, err := e.lookup(ctx, "strong authentication", func(ctx context.Context) (bool, error) {
			return e.services.Auth.Enrolled(ctx, user)
		})
		if err != nil {
			return err
		}
		if enrolled {
			run.add(w.StrongAuth)
		} else {
			run.advise("Strong customer authentication not enrolled")
		}
	}

	if w.NationalIDBonus != 0 && run.nationalIDValid {
		run.add(w.NationalIDBonus)
	}

	if req.Options.CheckAddress && w.AddressRecords != 0 {
		verified := false
		if user.Address != nil {
			addr := *user.Address
			var err error
			verified, err = e.lookup(ctx, "address registry", func(ctx context.Context) (bool, error) {
				return e.services.Address.VerifyAddress(ctx, addr)
			})
			if err != nil {
				return err
			}
		}
		if verified {
			run.add(w.AddressRecords)
			run.checks.AddressVerified = true
		} else {
			run.advise("Address not confirmed by official records")
		}
	}
	return nil
}

func (e *Engine) kycAdvanced(ctx context.Context, req domain.KYCRequest, run *kycRun) error {
	p := e.profile
	w := p.KYC.Weights
	user := req.User

	pep, err := e.lookup(ctx, "pep database", func(ctx context.Context) (bool, error) {
		return e.services.PEP.IsPEP(ctx, user)
	})
	if err != nil {
		return err
	}
	if pep {
		run.pepMatched = true
		run.add(w.PEPMatch)
		run.issue("Politically exposed person requires enhanced due diligence")
	} else {
		run.add(w.PEPClear)
		run.checks.PEPCheck = true
	}

	sanctions, err := e.screen(ctx, domain.SanctionsRequest{
		Name:        user.FullName(),
		EntityType:  domain.EntityIndividual,
		DateOfBirth: user.DateOfBirth,
		Nationality: user.Nationality,
	})
	if err != nil {
		return err
	}
	if sanctions.Matched {
		run.sanctionsFailed = true
		run.add(w.SanctionsMatch)
		run.issue(fmt.Sprintf("Sanctions list match (%s)", sanctions.Matches[0].ListName))
	} else {
		run.add(w.SanctionsClear)
		run.checks.SanctionsCheck = true
	}

	if w.TerroristMatch != 0 {
		if found := e.terroristMatch(user.FullName()); len(found) > 0 {
			run.sanctionsFailed = true
			run.checks.SanctionsCheck = false
			run.add(w.TerroristMatch)
			run.issue("Terrorist entity match")
		}
	}

	if w.AdverseMediaClear != 0 || w.AdverseMediaHit != 0 {
		hit, err := e.lookup(ctx, "adverse media", func(ctx context.Context) (bool, error) {
			return e.services.Media.Screen(ctx, user)
		})
		if err != nil {
			return err
		}
		if hit {
			run.mediaHit = true
			run.add(w.AdverseMediaHit)
			run.advise("Adverse media findings, enhanced monitoring required")
		} else {
			run.add(w.AdverseMediaClear)
			run.checks.AdverseMediaCheck = true
		}
	}

	if req.Options.CheckBiometrics {
		matched, err := e.lookup(ctx, "biometrics", func(ctx context.Context) (bool, error) {
			return e.services.Biometric.Verify(ctx, user)
		})
		if err != nil {
			return err
		}
		if matched {
			run.add(w.Biometric)
			run.checks.BiometricVerified = true
		} else {
			run.advise("Biometric verification failed")
		}
	}

	if w.MissingSourceOfFunds != 0 && strings.TrimSpace(user.SourceOfFunds) == "" {
		run.add(w.MissingSourceOfFunds)
		run.advise("Source of funds verification required")
	}
	if w.MissingIncome != 0 && user.AnnualIncome == nil {
		run.add(w.MissingIncome)
		run.advise("Income verification required")
	}
	if w.UndisclosedOwnership != 0 && user.IsBusinessOwner {
		disclosed, err := e.lookup(ctx, "ownership registry", func(ctx context.Context) (bool, error) {
			return e.services.Ownership.OwnersDisclosed(ctx, user)
		})
		if err != nil {
			return err
		}
		if !disclosed {
			run.add(w.UndisclosedOwnership)
			run.advise("Ultimate beneficial owner identification required")
		}
	}
	return nil
}

func (e *Engine) kycCredit(ctx context.Context, user domain.User, run *kycRun) error {
	w := e.profile.KYC.Weights
	if w.CreditIdentity == 0 && w.CreditAddress == 0 {
		return nil
	}
	report, err := call(ctx, e, "credit bureau", e.lookupTimeout, func(ctx context.Context) (verification.CreditReport, error) {
		return e.services.Credit.Verify(ctx, user)
	})
	if err != nil {
		return err
	}
	if report.IdentityMatched {
		run.add(w.CreditIdentity)
		run.checks.IdentityVerified = true
	} else {
		run.advise("Credit bureau identity match failed")
	}
	if report.AddressMatched {
		run.add(w.CreditAddress)
		run.checks.AddressVerified = true
	} else {
		run.advise("Credit bureau address match failed")
	}
	return nil
}

// primaryDocument returns the first verified, unexpired document of an
// accepted type. An empty accepted list admits any type.
func primaryDocument(docs []domain.IdentityDocument, accepted []domain.DocumentType, now time.Time) (domain.IdentityDocument, bool) {
	for _, d := range docs {
		if !d.Verified || d.IsExpired(now) {
			continue
		}
		if len(accepted) == 0 {
			return d, true
		}
		for _, t := range accepted {
			if d.Type == t {
				return d, true
			}
		}
	}
	return domain.IdentityDocument{}, false
}

func nationalIDValid(rule *jurisdiction.NationalIDRule, docs []domain.IdentityDocument) bool {
	for _, d := range docs {
		if d.Type == rule.Document {
			return rule.Valid(d.Number)
		}
	}
	return false
}

func hasAddress(user domain.User) bool {
	a := user.Address
	return a != nil && strings.TrimSpace(a.Street) != "" && strings.TrimSpace(a.City) != ""
}
