package domain

import (
	"time"
)

// ReportType represents the type of regulatory filing
type ReportType string

const (
	ReportSAR  ReportType = "SAR"  // Suspicious Activity Report (FinCEN)
	ReportCTR  ReportType = "CTR"  // Currency Transaction Report (FinCEN)
	ReportFBAR ReportType = "FBAR" // Foreign Bank Account Report (FinCEN)
	ReportSTR  ReportType = "STR"  // Suspicious Transaction Report (FIU, FINTRAC)
	ReportLCTR ReportType = "LCTR" // Large Cash Transaction Report (FINTRAC)
	ReportEFT  ReportType = "EFT"  // Electronic Funds Transfer Report (FINTRAC)
	ReportEDD  ReportType = "EDD"  // Enhanced Due Diligence record
)

// ReportStatus represents the lifecycle state of a report.
// draft -> submitted -> acknowledged | under_review, never backwards.
type ReportStatus string

const (
	ReportDraft        ReportStatus = "draft"
	ReportSubmitted    ReportStatus = "submitted"
	ReportAcknowledged ReportStatus = "acknowledged" // set by the regulator
	ReportUnderReview  ReportStatus = "under_review" // set by the regulator
)

var reportStage = map[ReportStatus]int{
	ReportDraft:        0,
	ReportSubmitted:    1,
	ReportAcknowledged: 2,
	ReportUnderReview:  2,
}

// CanAdvanceTo reports whether moving from s to next is a forward transition
func (s ReportStatus) CanAdvanceTo(next ReportStatus) bool {
	from, ok := reportStage[s]
	if !ok {
		return false
	}
	to, ok := reportStage[next]
	if !ok {
		return false
	}
	return to == from+1
}

// ReportRequest asks a provider to draft a report
type ReportRequest struct {
	Type           ReportType     `json:"type"`
	UserID         string         `json:"user_id"`
	TransactionIDs []string       `json:"transaction_ids,omitempty"`
	PeriodStart    time.Time      `json:"period_start"`
	PeriodEnd      time.Time      `json:"period_end"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ComplianceReport is a regulatory filing
type ComplianceReport struct {
	ReportID             string         `json:"report_id" db:"report_id"`
	Type                 ReportType     `json:"type" db:"report_type"`
	Provider             string         `json:"provider" db:"provider"`
	Jurisdiction         string         `json:"jurisdiction" db:"jurisdiction"`
	UserID               string         `json:"user_id" db:"user_id"`
	TransactionIDs       []string       `json:"transaction_ids,omitempty" db:"transaction_ids"`
	FilingDate           time.Time      `json:"filing_date" db:"filing_date"`
	PeriodStart          time.Time      `json:"period_start" db:"period_start"`
	PeriodEnd            time.Time      `json:"period_end" db:"period_end"`
	Status               ReportStatus   `json:"status" db:"status"`
	Payload              map[string]any `json:"payload" db:"payload"`
	SubmittedTo          string         `json:"submitted_to,omitempty" db:"submitted_to"`
	SubmittedAt          *time.Time     `json:"submitted_at,omitempty" db:"submitted_at"`
	AcknowledgmentNumber string         `json:"acknowledgment_number,omitempty" db:"acknowledgment_number"`
}

// SubmissionResult is returned by report submission
type SubmissionResult struct {
	Success              bool         `json:"success"`
	ReportID             string       `json:"report_id"`
	Status               ReportStatus `json:"status"`
	SubmittedTo          string       `json:"submitted_to"`
	AcknowledgmentNumber string       `json:"acknowledgment_number"`
}
