package domain

import "time"

// EntityType is the kind of party being screened
type EntityType string

const (
	EntityIndividual   EntityType = "individual"
	EntityOrganization EntityType = "entity"
	EntityVessel       EntityType = "vessel"
	EntityAircraft     EntityType = "aircraft"
)

// SanctionsRequest is the input of a sanctions screening
type SanctionsRequest struct {
	Name        string     `json:"name"`
	EntityType  EntityType `json:"entity_type,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Nationality string     `json:"nationality,omitempty"`
	Address     string     `json:"address,omitempty"`
}

// SanctionsMatch is one hit against a list
type SanctionsMatch struct {
	ListName   string     `json:"list_name"`
	MatchScore float64    `json:"match_score"`
	EntityName string     `json:"entity_name"`
	EntityType EntityType `json:"entity_type"`
	Program    string     `json:"program,omitempty"`
	Details    string     `json:"details,omitempty"`
}

// SanctionsCheckResult is the outcome of a screening.
// Matched is true iff Matches is non-empty.
type SanctionsCheckResult struct {
	Matched        bool             `json:"matched"`
	Provider       string           `json:"provider"`
	Matches        []SanctionsMatch `json:"matches"`
	RiskLevel      RiskLevel        `json:"risk_level"`
	RequiresReview bool             `json:"requires_review"`
	CheckedAt      time.Time        `json:"checked_at"`
}

// HighestScore returns the best match score, or 0
func (r SanctionsCheckResult) HighestScore() float64 {
	var best float64
	for _, m := range r.Matches {
		if m.MatchScore > best {
			best = m.MatchScore
		}
	}
	return best
}
