package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WorkflowStage is the current phase of a tender's evaluation lifecycle
type WorkflowStage string

const (
	StagePreFeasibility       WorkflowStage = "PRE_FEASIBILITY"
	StageTechnicalEvaluation  WorkflowStage = "TECHNICAL_EVALUATION"
	StageFinancialEvaluation  WorkflowStage = "FINANCIAL_EVALUATION"
	StageFinalApproval        WorkflowStage = "FINAL_APPROVAL"
	StageCompleted            WorkflowStage = "COMPLETED"
)

// DocumentStatus tracks processing and outcome independent of the stage
type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusAnalyzed   DocumentStatus = "ANALYZED"
	StatusFailed     DocumentStatus = "FAILED"
	StatusRejected   DocumentStatus = "REJECTED"
)

// Criterion is a named, weighted axis of evaluation. Weight is a percentage;
// weights are trusted as configured and never renormalized.
type Criterion struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

// CriterionList is an ordered criteria set stored as a JSONB column
type CriterionList []Criterion

// Scan implements the sql.Scanner interface
func (c *CriterionList) Scan(value interface{}) error {
	if value == nil {
		*c = CriterionList{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			*c = CriterionList{}
			return nil
		}
	}

	return json.Unmarshal(bytes, c)
}

// Value implements the driver.Valuer interface
func (c CriterionList) Value() (driver.Value, error) {
	if c == nil {
		return json.Marshal([]Criterion{})
	}
	return json.Marshal(c)
}

// GormDataType defines the data type for GORM
func (CriterionList) GormDataType() string {
	return "jsonb"
}

// TenderDocument is the aggregate root: one procurement document moving
// through the evaluation pipeline. Version is the optimistic-concurrency
// token; every stage or lock mutation bumps it.
type TenderDocument struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	DocumentType string    `gorm:"size:50;index" json:"document_type"`
	Department   string    `gorm:"size:100" json:"department,omitempty"`
	VendorName   string    `gorm:"size:255" json:"vendor_name,omitempty"`

	EstimatedBudget float64        `json:"estimated_budget"`
	Tags            pq.StringArray `gorm:"type:text[]" json:"tags,omitempty"`

	// Uploaded file reference (local path or object-store key)
	FileName string `gorm:"size:255" json:"file_name,omitempty"`
	FilePath string `gorm:"size:512" json:"file_path,omitempty"`
	MimeType string `gorm:"size:100" json:"mime_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`

	// AI analysis result as returned by the provider
	Analysis datatypes.JSON `gorm:"type:jsonb" json:"analysis,omitempty"`

	Status        DocumentStatus `gorm:"size:20;not null;default:'PROCESSING';index" json:"status"`
	WorkflowStage WorkflowStage  `gorm:"size:30;not null;default:'PRE_FEASIBILITY';index" json:"workflow_stage"`

	IsTechLocked bool `gorm:"default:false" json:"is_tech_locked"`
	IsProcLocked bool `gorm:"default:false" json:"is_proc_locked"`

	AssigneeTechID *uuid.UUID `gorm:"type:uuid" json:"assignee_tech_id,omitempty"`
	AssigneeProcID *uuid.UUID `gorm:"type:uuid" json:"assignee_proc_id,omitempty"`

	TechCriteria CriterionList `gorm:"type:jsonb" json:"tech_criteria,omitempty"`
	ProcCriteria CriterionList `gorm:"type:jsonb" json:"proc_criteria,omitempty"`

	Version    int    `gorm:"not null;default:1" json:"version"`
	UploadedBy string `gorm:"size:255" json:"uploaded_by,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Relationships (lifecycle-bound to the document)
	PreFeasibilityEval *PreFeasibilityEvaluation `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"pre_feasibility_eval,omitempty"`
	TechnicalEval      *TechnicalEvaluation      `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"technical_eval,omitempty"`
	FinancialEval      *FinancialEvaluation      `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"financial_eval,omitempty"`
	ScoringConfig      *ScoringConfig            `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"scoring_config,omitempty"`
	Approvals          []ApprovalRequest         `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"approvals,omitempty"`
	Transitions        []StageTransition         `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"transitions,omitempty"`
}

// TableName specifies the table name for TenderDocument
func (TenderDocument) TableName() string {
	return "tender_documents"
}

func (d *TenderDocument) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return
}

// IsTerminal reports whether the document can no longer move forward
func (d *TenderDocument) IsTerminal() bool {
	return d.WorkflowStage == StageCompleted || d.Status == StatusRejected
}

// StageTransition is one row of the append-only stage audit trail
type StageTransition struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`

	FromStage WorkflowStage `gorm:"size:30;not null" json:"from_stage"`
	ToStage   WorkflowStage `gorm:"size:30;not null" json:"to_stage"`
	Trigger   string        `gorm:"size:50;not null" json:"trigger"`

	ActorID   string `gorm:"size:255;not null" json:"actor_id"`
	ActorRole string `gorm:"size:50" json:"actor_role,omitempty"`
	Comment   string `gorm:"type:text" json:"comment,omitempty"`

	TransitionedAt time.Time `gorm:"not null;index" json:"transitioned_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for StageTransition
func (StageTransition) TableName() string {
	return "stage_transitions"
}

func (t *StageTransition) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}
