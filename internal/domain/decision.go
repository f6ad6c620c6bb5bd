package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DecisionKind represents the operation that produced a decision
type DecisionKind string

const (
	DecisionKYC        DecisionKind = "kyc"
	DecisionAML        DecisionKind = "aml"
	DecisionSanctions  DecisionKind = "sanctions"
	DecisionMonitoring DecisionKind = "monitoring"
	DecisionFiling     DecisionKind = "filing"

	DecisionComprehensive DecisionKind = "comprehensive"
)

// DecisionRecord is the signed, append-only trail entry of a compliance decision
type DecisionRecord struct {
	DecisionID       uuid.UUID       `json:"decision_id" db:"decision_id"`
	Kind             DecisionKind    `json:"kind" db:"kind"`
	Provider         string          `json:"provider" db:"provider"`
	TenantID         string          `json:"tenant_id,omitempty" db:"tenant_id"`
	UserID           string          `json:"user_id,omitempty" db:"user_id"`
	SubjectID        string          `json:"subject_id,omitempty" db:"subject_id"` // Transaction or report ID
	Outcome          string          `json:"outcome" db:"outcome"`
	RiskLevel        RiskLevel       `json:"risk_level,omitempty" db:"risk_level"`
	RiskScore        int             `json:"risk_score" db:"risk_score"`
	Result           json.RawMessage `json:"result" db:"result"`
	DigitalSignature string          `json:"-" db:"digital_signature"`
	KeyVersion       int             `json:"-" db:"key_version"`
	DecidedAt        time.Time       `json:"decided_at" db:"decided_at"`
}

// DecisionFilter for querying the decision trail
type DecisionFilter struct {
	DecisionID *uuid.UUID
	UserID     *string
	SubjectID  *string
	Kind       *DecisionKind
	Provider   *string
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int
	Offset     int
}

// DecisionPage represents paginated decisions
type DecisionPage struct {
	Decisions  []*DecisionRecord `json:"decisions"`
	TotalCount int64             `json:"total_count"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	HasMore    bool              `json:"has_more"`
}
