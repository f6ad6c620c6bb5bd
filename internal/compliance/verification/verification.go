// Package verification declares the external services consulted during KYC
// together with deterministic rule-based implementations used when no
// vendor integration is configured.
package verification

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/banking/regional-compliance/internal/domain"
)

// CreditReport is the outcome of a credit bureau lookup
type CreditReport struct {
	IdentityMatched bool `json:"identity_matched"`
	AddressMatched  bool `json:"address_matched"`
}

// CreditBureau matches a user against a credit file
type CreditBureau interface {
	Verify(ctx context.Context, user domain.User) (CreditReport, error)
}

// IdentityRegistry verifies a document against a government registry (eIDAS)
type IdentityRegistry interface {
	VerifyDocument(ctx context.Context, doc domain.IdentityDocument) (bool, error)
}

// AddressRegistry verifies an address against official records
type AddressRegistry interface {
	VerifyAddress(ctx context.Context, addr domain.Address) (bool, error)
}

// StrongAuth reports whether a user is enrolled for strong customer authentication
type StrongAuth interface {
	Enrolled(ctx context.Context, user domain.User) (bool, error)
}

// Biometrics performs a liveness and face match
type Biometrics interface {
	Verify(ctx context.Context, user domain.User) (bool, error)
}

// AdverseMedia screens news sources. It returns true on a hit.
type AdverseMedia interface {
	Screen(ctx context.Context, user domain.User) (bool, error)
}

// PEPDatabase reports whether a user is politically exposed
type PEPDatabase interface {
	IsPEP(ctx context.Context, user domain.User) (bool, error)
}

// OwnershipRegistry checks that a business owner disclosed beneficial owners
type OwnershipRegistry interface {
	OwnersDisclosed(ctx context.Context, user domain.User) (bool, error)
}

// ConsentRegistry records data-processing consent per regime (GDPR, PIPEDA)
type ConsentRegistry interface {
	HasConsent(ctx context.Context, userID, regime string) (bool, error)
}

// SanctionsSource searches an external list provider in addition to the
// entries carried by the jurisdiction profile
type SanctionsSource interface {
	Search(ctx context.Context, req domain.SanctionsRequest) ([]domain.SanctionsMatch, error)
}

// Services bundles every collaborator an engine may call. Sanctions is
// optional.
type Services struct {
	Sanctions SanctionsSource
	Credit    CreditBureau
	Identity  IdentityRegistry
	Address   AddressRegistry
	Auth      StrongAuth
	Biometric Biometrics
	Media     AdverseMedia
	PEP       PEPDatabase
	Ownership OwnershipRegistry
	Consent   ConsentRegistry
}

// Defaults returns rule-based services. identityCountries lists the
// document issuing countries the identity registry recognizes.
func Defaults(identityCountries []string) Services {
	return Services{
		Credit:    RuleCreditBureau{},
		Identity:  NewRuleIdentityRegistry(identityCountries...),
		Address:   RuleAddressRegistry{},
		Auth:      RuleStrongAuth{},
		Biometric: RuleBiometrics{},
		Media:     RuleAdverseMedia{},
		PEP:       RulePEPDatabase{},
		Ownership: RuleOwnershipRegistry{},
		Consent:   NewConsentStore(true),
	}
}

// WithDefaults fills unset services from d
func (s Services) WithDefaults(d Services) Services {
	if s.Sanctions == nil {
		s.Sanctions = d.Sanctions
	}
	if s.Credit == nil {
		s.Credit = d.Credit
	}
	if s.Identity == nil {
		s.Identity = d.Identity
	}
	if s.Address == nil {
		s.Address = d.Address
	}
	if s.Auth == nil {
		s.Auth = d.Auth
	}
	if s.Biometric == nil {
		s.Biometric = d.Biometric
	}
	if s.Media == nil {
		s.Media = d.Media
	}
	if s.PEP == nil {
		s.PEP = d.PEP
	}
	if s.Ownership == nil {
		s.Ownership = d.Ownership
	}
	if s.Consent == nil {
		s.Consent = d.Consent
	}
	return s
}

// RuleCreditBureau matches identity when name and date of birth are on file
// and address when a postal code is on file
type RuleCreditBureau struct{}

func (RuleCreditBureau) Verify(_ context.Context, user domain.User) (CreditReport, error) {
	return CreditReport{
		IdentityMatched: user.FullName() != "" && user.DateOfBirth != nil,
		AddressMatched:  user.Address != nil && user.Address.PostalCode != "",
	}, nil
}

// RuleIdentityRegistry accepts verified, unexpired documents issued by a
// recognized country
type RuleIdentityRegistry struct {
	countries map[string]struct{}
	now       func() time.Time
}

func NewRuleIdentityRegistry(countries ...string) RuleIdentityRegistry {
	set := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		set[strings.ToUpper(c)] = struct{}{}
	}
	return RuleIdentityRegistry{countries: set, now: time.Now}
}

func (r RuleIdentityRegistry) VerifyDocument(_ context.Context, doc domain.IdentityDocument) (bool, error) {
	if !doc.Verified || doc.IsExpired(r.now()) {
		return false, nil
	}
	if len(r.countries) == 0 {
		return true, nil
	}
	_, ok := r.countries[strings.ToUpper(doc.IssuingCountry)]
	return ok, nil
}

// RuleAddressRegistry accepts addresses with a postal code and city
type RuleAddressRegistry struct{}

func (RuleAddressRegistry) VerifyAddress(_ context.Context, addr domain.Address) (bool, error) {
	return addr.PostalCode != "" && addr.City != "", nil
}

// RuleStrongAuth treats a registered phone number as SCA enrollment
type RuleStrongAuth struct{}

func (RuleStrongAuth) Enrolled(_ context.Context, user domain.User) (bool, error) {
	return user.PhoneNumber != "", nil
}

// RuleBiometrics matches when the user holds a verified identity document
type RuleBiometrics struct{}

func (RuleBiometrics) Verify(_ context.Context, user domain.User) (bool, error) {
	for _, d := range user.Documents {
		if d.Verified {
			return true, nil
		}
	}
	return false, nil
}

// RuleAdverseMedia never reports a hit
type RuleAdverseMedia struct{}

func (RuleAdverseMedia) Screen(context.Context, domain.User) (bool, error) { return false, nil }

// RulePEPDatabase trusts the user's politically exposed flag
type RulePEPDatabase struct{}

func (RulePEPDatabase) IsPEP(_ context.Context, user domain.User) (bool, error) {
	return user.PoliticallyExposed, nil
}

// RuleOwnershipRegistry treats a declared employer as the disclosed business
type RuleOwnershipRegistry struct{}

func (RuleOwnershipRegistry) OwnersDisclosed(_ context.Context, user domain.User) (bool, error) {
	return user.Employer != "", nil
}

// ConsentStore is an in-memory consent registry. Users without a recorded
// decision get the default.
type ConsentStore struct {
	mu        sync.RWMutex
	decisions map[string]bool
	dflt      bool
}

func NewConsentStore(defaultGranted bool) *ConsentStore {
	return &ConsentStore{decisions: make(map[string]bool), dflt: defaultGranted}
}

func consentKey(userID, regime string) string {
	return strings.ToUpper(regime) + ":" + userID
}

// Grant records consent
func (s *ConsentStore) Grant(userID, regime string) {
	s.mu.Lock()
	s.decisions[consentKey(userID, regime)] = true
	s.mu.Unlock()
}

// Revoke records withdrawn consent
func (s *ConsentStore) Revoke(userID, regime string) {
	s.mu.Lock()
	s.decisions[consentKey(userID, regime)] = false
	s.mu.Unlock()
}

func (s *ConsentStore) HasConsent(_ context.Context, userID, regime string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.decisions[consentKey(userID, regime)]; ok {
		return v, nil
	}
	return s.dflt, nil
}
