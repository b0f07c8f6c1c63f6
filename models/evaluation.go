package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalStatus defines the outcome recorded by an approval request
type ApprovalStatus string

const (
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// PreFeasibilityEvaluation holds the gate checks performed before any
// detailed evaluation starts. Exactly one row per document (upsert).
type PreFeasibilityEvaluation struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"document_id"`

	LegalPass   bool   `gorm:"not null" json:"legal_pass"`
	BidBondPass bool   `gorm:"not null" json:"bid_bond_pass"`
	FinancePass bool   `gorm:"not null" json:"finance_pass"`
	Notes       string `gorm:"type:text" json:"notes,omitempty"`
	OverallPass bool   `gorm:"not null" json:"overall_pass"`

	EvaluatedAt time.Time `gorm:"not null" json:"evaluated_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for PreFeasibilityEvaluation
func (PreFeasibilityEvaluation) TableName() string {
	return "pre_feasibility_evaluations"
}

func (e *PreFeasibilityEvaluation) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}

// TechnicalEvaluation stores the technical score sheet. One row per document;
// writes are rejected once the owning document's tech lock is set.
type TechnicalEvaluation struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"document_id"`

	Score    float64  `gorm:"not null" json:"score"`
	MaxScore float64  `gorm:"not null;default:100" json:"max_score"`
	Criteria ScoreMap `gorm:"type:jsonb" json:"criteria,omitempty"`
	Comments string   `gorm:"type:text" json:"comments,omitempty"`

	EvaluatedBy string    `gorm:"size:255" json:"evaluated_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for TechnicalEvaluation
func (TechnicalEvaluation) TableName() string {
	return "technical_evaluations"
}

func (e *TechnicalEvaluation) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}

// FinancialEvaluation stores the commercial score sheet. One row per document;
// writes are rejected once the owning document's procurement lock is set.
type FinancialEvaluation struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"document_id"`

	Score    float64  `gorm:"not null" json:"score"`
	MaxScore float64  `gorm:"not null;default:100" json:"max_score"`
	Criteria ScoreMap `gorm:"type:jsonb" json:"criteria,omitempty"`

	CommercialTerms string  `gorm:"type:text" json:"commercial_terms,omitempty"`
	PaymentTerms    string  `gorm:"type:text" json:"payment_terms,omitempty"`
	WarrantyTerms   string  `gorm:"type:text" json:"warranty_terms,omitempty"`
	PriceScore      float64 `json:"price_score"`
	EstimatedBudget float64 `json:"estimated_budget"`

	EvaluatedBy string    `gorm:"size:255" json:"evaluated_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for FinancialEvaluation
func (FinancialEvaluation) TableName() string {
	return "financial_evaluations"
}

func (e *FinancialEvaluation) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}

// ApprovalRequest is an append-only approval trail; the latest APPROVED row
// moves the document to COMPLETED.
type ApprovalRequest struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`

	Status       ApprovalStatus `gorm:"size:20;not null" json:"status"`
	Comments     string         `gorm:"type:text" json:"comments,omitempty"`
	ApproverRole string         `gorm:"size:50" json:"approver_role,omitempty"`
	ApproverID   string         `gorm:"size:255" json:"approver_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for ApprovalRequest
func (ApprovalRequest) TableName() string {
	return "approval_requests"
}

func (a *ApprovalRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}

// ScoringConfig carries the aggregation weights for one document.
// PersonnelWeight is stored for configuration parity but does not enter the
// total-score formula; the total uses TechWeight and its complement.
type ScoringConfig struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"document_id"`

	TechWeight       float64 `gorm:"not null;default:0.4" json:"tech_weight"`
	PersonnelWeight  float64 `gorm:"not null;default:0.2" json:"personnel_weight"`
	ExperienceWeight float64 `gorm:"not null;default:0.4" json:"experience_weight"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for ScoringConfig
func (ScoringConfig) TableName() string {
	return "scoring_configs"
}

func (c *ScoringConfig) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// DefaultScoringConfig returns the process-wide default weights
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		TechWeight:       0.4,
		PersonnelWeight:  0.2,
		ExperienceWeight: 0.4,
	}
}
