package handlers

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"p9e.in/tenderdesk/config"
	"p9e.in/tenderdesk/models"
	"p9e.in/tenderdesk/pkg/scoring"
)

// Principal is the authenticated caller submitting an evaluation
type Principal struct {
	ID   string
	Role string
}

// EvaluationEngine drives a tender document through its workflow stages.
// Every submission runs guard -> upsert -> stage update inside one
// transaction; the document Version field detects concurrent writers.
type EvaluationEngine struct {
	db *gorm.DB
}

// NewEvaluationEngine creates a new evaluation engine instance
func NewEvaluationEngine(db *gorm.DB) *EvaluationEngine {
	return &EvaluationEngine{db: db}
}

var evaluationEngine *EvaluationEngine

// getEvaluationEngine returns the engine bound to the application database
func getEvaluationEngine() *EvaluationEngine {
	if evaluationEngine == nil {
		evaluationEngine = NewEvaluationEngine(config.DB)
	}
	return evaluationEngine
}

// PreFeasibilityInput carries the gate checks. The booleans are pointers so
// a missing field fails validation instead of silently reading false.
type PreFeasibilityInput struct {
	LegalPass   *bool  `json:"legal_pass"`
	BidBondPass *bool  `json:"bid_bond_pass"`
	FinancePass *bool  `json:"finance_pass"`
	Notes       string `json:"notes"`
	OverallPass *bool  `json:"overall_pass"`
}

// TechnicalInput is the technical score sheet submission
type TechnicalInput struct {
	Score     *float64           `json:"score"`
	MaxScore  *float64           `json:"max_score"`
	Criteria  map[string]float64 `json:"criteria"`
	Comments  string             `json:"comments"`
	LockScore bool               `json:"lock_score"`
}

// FinancialInput is the commercial score sheet submission
type FinancialInput struct {
	Score           *float64           `json:"score"`
	Criteria        map[string]float64 `json:"criteria"`
	CommercialTerms string             `json:"commercial_terms"`
	PaymentTerms    string             `json:"payment_terms"`
	WarrantyTerms   string             `json:"warranty_terms"`
	PriceScore      *float64           `json:"price_score"`
	EstimatedBudget *float64           `json:"estimated_budget"`
	LockScore       bool               `json:"lock_score"`
}

// ApprovalInput is a final-approval decision
type ApprovalInput struct {
	Status       models.ApprovalStatus `json:"status"`
	Comments     string                `json:"comments"`
	ApproverRole string                `json:"approver_role"`
}

// CriteriaSetup configures criteria sets and assignees for a document
type CriteriaSetup struct {
	TechCriteria   []models.Criterion `json:"tech_criteria"`
	ProcCriteria   []models.Criterion `json:"proc_criteria"`
	AssigneeTechID *uuid.UUID         `json:"assignee_tech_id"`
	AssigneeProcID *uuid.UUID         `json:"assignee_proc_id"`
}

// SubmitPreFeasibility records the gate checks and forks the workflow:
// overall pass moves to technical evaluation, overall fail terminates the
// document with a FAILED status.
func (e *EvaluationEngine) SubmitPreFeasibility(documentID uuid.UUID, in PreFeasibilityInput, p Principal) (*models.PreFeasibilityEvaluation, error) {
	if in.LegalPass == nil || in.BidBondPass == nil || in.FinancePass == nil || in.OverallPass == nil {
		return nil, fmt.Errorf("%w: legal_pass, bid_bond_pass, finance_pass and overall_pass are required", ErrValidation)
	}

	var result *models.PreFeasibilityEvaluation
	err := e.db.Transaction(func(tx *gorm.DB) error {
		doc, err := findDocument(tx, documentID)
		if err != nil {
			return err
		}
		if doc.WorkflowStage != models.StagePreFeasibility {
			return fmt.Errorf("%w: pre-feasibility already concluded (stage %s)", ErrValidation, doc.WorkflowStage)
		}

		var eval models.PreFeasibilityEvaluation
		err = tx.Where("document_id = ?", documentID).First(&eval).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		eval.DocumentID = documentID
		eval.LegalPass = *in.LegalPass
		eval.BidBondPass = *in.BidBondPass
		eval.FinancePass = *in.FinancePass
		eval.Notes = in.Notes
		eval.OverallPass = *in.OverallPass
		eval.EvaluatedAt = time.Now()

		if err := tx.Save(&eval).Error; err != nil {
			return fmt.Errorf("failed to save pre-feasibility evaluation: %w", err)
		}

		if *in.OverallPass {
			if err := e.moveStage(tx, doc, models.StageTechnicalEvaluation, "pre_feasibility_pass", p, nil); err != nil {
				return err
			}
		} else {
			failed := models.StatusFailed
			if err := e.moveStage(tx, doc, models.StageCompleted, "pre_feasibility_fail", p, &failed); err != nil {
				return err
			}
		}

		result = &eval
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Pre-feasibility recorded for tender %s (pass=%v)", documentID, *in.OverallPass)
	return result, nil
}

// SubmitTechnicalEvaluation upserts the technical score sheet. With
// lock_score the tech lock is set and the stage advances: to FINAL_APPROVAL
// when procurement already locked, otherwise to FINANCIAL_EVALUATION.
func (e *EvaluationEngine) SubmitTechnicalEvaluation(documentID uuid.UUID, in TechnicalInput, p Principal) (*models.TechnicalEvaluation, error) {
	if err := validateScores(in.Score, in.Criteria); err != nil {
		return nil, err
	}

	var result *models.TechnicalEvaluation
	err := e.db.Transaction(func(tx *gorm.DB) error {
		doc, err := findDocument(tx, documentID)
		if err != nil {
			return err
		}

		// All guards run before any write touches the row.
		if p.Role != models.RoleAdmin && doc.AssigneeTechID != nil && doc.AssigneeTechID.String() != p.ID {
			return fmt.Errorf("%w: you are not the designated technical evaluator for this tender", ErrForbidden)
		}
		if doc.IsTechLocked {
			return fmt.Errorf("%w: technical evaluation is locked", ErrForbidden)
		}
		if err := requireEvaluationPhase(doc); err != nil {
			return err
		}
		if err := validateCriteriaIDs(doc.TechCriteria, in.Criteria); err != nil {
			return err
		}

		score, err := resolveScore(in.Score, doc.TechCriteria, in.Criteria)
		if err != nil {
			return err
		}

		var eval models.TechnicalEvaluation
		err = tx.Where("document_id = ?", documentID).First(&eval).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		eval.DocumentID = documentID
		eval.Score = score
		if in.MaxScore != nil {
			eval.MaxScore = *in.MaxScore
		} else if eval.MaxScore == 0 {
			eval.MaxScore = 100
		}
		if in.Criteria != nil {
			eval.Criteria = in.Criteria
		}
		eval.Comments = in.Comments
		eval.EvaluatedBy = p.ID

		if err := tx.Save(&eval).Error; err != nil {
			return fmt.Errorf("failed to save technical evaluation: %w", err)
		}

		if in.LockScore {
			doc.IsTechLocked = true
			next := models.StageFinancialEvaluation
			if doc.IsProcLocked {
				next = models.StageFinalApproval
			}
			if err := e.moveStage(tx, doc, next, "technical_lock", p, nil); err != nil {
				return err
			}
		}

		result = &eval
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Technical evaluation saved for tender %s (score=%.1f, locked=%v)", documentID, result.Score, in.LockScore)
	return result, nil
}

// SubmitFinancialEvaluation upserts the commercial score sheet. With
// lock_score the procurement lock is set and the stage advances: to
// FINAL_APPROVAL when technical already locked, otherwise back to
// TECHNICAL_EVALUATION to point at the outstanding work.
func (e *EvaluationEngine) SubmitFinancialEvaluation(documentID uuid.UUID, in FinancialInput, p Principal) (*models.FinancialEvaluation, error) {
	if err := validateScores(in.Score, in.Criteria); err != nil {
		return nil, err
	}
	if in.PriceScore != nil && (*in.PriceScore < 0 || *in.PriceScore > 100) {
		return nil, fmt.Errorf("%w: price_score must be between 0 and 100", ErrValidation)
	}

	var result *models.FinancialEvaluation
	err := e.db.Transaction(func(tx *gorm.DB) error {
		doc, err := findDocument(tx, documentID)
		if err != nil {
			return err
		}

		if p.Role != models.RoleAdmin && doc.AssigneeProcID != nil && doc.AssigneeProcID.String() != p.ID {
			return fmt.Errorf("%w: you are not the designated procurement evaluator for this tender", ErrForbidden)
		}
		if doc.IsProcLocked {
			return fmt.Errorf("%w: financial evaluation is locked", ErrForbidden)
		}
		if err := requireEvaluationPhase(doc); err != nil {
			return err
		}
		if err := validateCriteriaIDs(doc.ProcCriteria, in.Criteria); err != nil {
			return err
		}

		score, err := resolveScore(in.Score, doc.ProcCriteria, in.Criteria)
		if err != nil {
			return err
		}

		var eval models.FinancialEvaluation
		err = tx.Where("document_id = ?", documentID).First(&eval).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		eval.DocumentID = documentID
		eval.Score = score
		if eval.MaxScore == 0 {
			eval.MaxScore = 100
		}
		if in.Criteria != nil {
			eval.Criteria = in.Criteria
		}
		eval.CommercialTerms = in.CommercialTerms
		eval.PaymentTerms = in.PaymentTerms
		eval.WarrantyTerms = in.WarrantyTerms
		if in.PriceScore != nil {
			eval.PriceScore = *in.PriceScore
		}
		if in.EstimatedBudget != nil {
			eval.EstimatedBudget = *in.EstimatedBudget
		}
		eval.EvaluatedBy = p.ID

		if err := tx.Save(&eval).Error; err != nil {
			return fmt.Errorf("failed to save financial evaluation: %w", err)
		}

		if in.LockScore {
			doc.IsProcLocked = true
			next := models.StageTechnicalEvaluation
			if doc.IsTechLocked {
				next = models.StageFinalApproval
			}
			if err := e.moveStage(tx, doc, next, "financial_lock", p, nil); err != nil {
				return err
			}
		}

		result = &eval
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Financial evaluation saved for tender %s (score=%.1f, locked=%v)", documentID, result.Score, in.LockScore)
	return result, nil
}

// SubmitApproval appends one approval record. APPROVED completes the
// workflow; REJECTED marks the document rejected and keeps the stage so the
// trail shows where evaluation stopped. Admin only.
func (e *EvaluationEngine) SubmitApproval(documentID uuid.UUID, in ApprovalInput, p Principal) (*models.ApprovalRequest, error) {
	if p.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins can record approvals", ErrForbidden)
	}
	if in.Status != models.ApprovalStatusApproved && in.Status != models.ApprovalStatusRejected {
		return nil, fmt.Errorf("%w: status must be APPROVED or REJECTED", ErrValidation)
	}

	var result *models.ApprovalRequest
	err := e.db.Transaction(func(tx *gorm.DB) error {
		doc, err := findDocument(tx, documentID)
		if err != nil {
			return err
		}
		if doc.WorkflowStage != models.StageFinalApproval {
			return fmt.Errorf("%w: tender is not awaiting final approval (stage %s)", ErrValidation, doc.WorkflowStage)
		}

		approval := models.ApprovalRequest{
			DocumentID:   documentID,
			Status:       in.Status,
			Comments:     in.Comments,
			ApproverRole: in.ApproverRole,
			ApproverID:   p.ID,
		}
		if err := tx.Create(&approval).Error; err != nil {
			return fmt.Errorf("failed to record approval: %w", err)
		}

		if in.Status == models.ApprovalStatusApproved {
			if err := e.moveStage(tx, doc, models.StageCompleted, "approval", p, nil); err != nil {
				return err
			}
		} else {
			rejected := models.StatusRejected
			if err := e.updateDocument(tx, doc, map[string]interface{}{"status": rejected}); err != nil {
				return err
			}
		}

		result = &approval
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Approval recorded for tender %s (%s)", documentID, in.Status)
	return result, nil
}

// SetupCriteria configures criteria sets and assignee identities. Admin only;
// does not move the stage.
func (e *EvaluationEngine) SetupCriteria(documentID uuid.UUID, in CriteriaSetup, p Principal) (*models.TenderDocument, error) {
	if p.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins can configure criteria", ErrForbidden)
	}
	for _, set := range [][]models.Criterion{in.TechCriteria, in.ProcCriteria} {
		seen := make(map[string]bool)
		for _, c := range set {
			if c.ID == "" {
				return nil, fmt.Errorf("%w: criterion id must not be empty", ErrValidation)
			}
			if seen[c.ID] {
				return nil, fmt.Errorf("%w: duplicate criterion id %q", ErrValidation, c.ID)
			}
			if c.Weight < 0 {
				return nil, fmt.Errorf("%w: criterion %q has negative weight", ErrValidation, c.ID)
			}
			seen[c.ID] = true
		}
	}

	var result *models.TenderDocument
	err := e.db.Transaction(func(tx *gorm.DB) error {
		doc, err := findDocument(tx, documentID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if in.TechCriteria != nil {
			updates["tech_criteria"] = models.CriterionList(in.TechCriteria)
		}
		if in.ProcCriteria != nil {
			updates["proc_criteria"] = models.CriterionList(in.ProcCriteria)
		}
		if in.AssigneeTechID != nil {
			updates["assignee_tech_id"] = in.AssigneeTechID
		}
		if in.AssigneeProcID != nil {
			updates["assignee_proc_id"] = in.AssigneeProcID
		}
		if len(updates) > 0 {
			if err := e.updateDocument(tx, doc, updates); err != nil {
				return err
			}
		}

		var fresh models.TenderDocument
		if err := tx.First(&fresh, "id = ?", documentID).Error; err != nil {
			return err
		}
		result = &fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Unlock clears one evaluation lock and moves the stage back to the matching
// evaluation stage. This is the explicit admin override for the otherwise
// one-way locks.
func (e *EvaluationEngine) Unlock(documentID uuid.UUID, kind string, p Principal) (*models.TenderDocument, error) {
	if p.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins can unlock evaluations", ErrForbidden)
	}
	if kind != "technical" && kind != "financial" {
		return nil, fmt.Errorf("%w: kind must be technical or financial", ErrValidation)
	}

	var result *models.TenderDocument
	err := e.db.Transaction(func(tx *gorm.DB) error {
		doc, err := findDocument(tx, documentID)
		if err != nil {
			return err
		}
		if doc.WorkflowStage == models.StageCompleted {
			return fmt.Errorf("%w: completed tenders cannot be unlocked", ErrValidation)
		}

		if kind == "technical" {
			doc.IsTechLocked = false
			if err := e.moveStage(tx, doc, models.StageTechnicalEvaluation, "admin_unlock_technical", p, nil); err != nil {
				return err
			}
		} else {
			doc.IsProcLocked = false
			if err := e.moveStage(tx, doc, models.StageFinancialEvaluation, "admin_unlock_financial", p, nil); err != nil {
				return err
			}
		}

		var fresh models.TenderDocument
		if err := tx.First(&fresh, "id = ?", documentID).Error; err != nil {
			return err
		}
		result = &fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Unlocked %s evaluation for tender %s", kind, documentID)
	return result, nil
}

// StageHistory returns the append-only stage transition trail
func (e *EvaluationEngine) StageHistory(documentID uuid.UUID) ([]models.StageTransition, error) {
	var transitions []models.StageTransition
	if err := e.db.
		Where("document_id = ?", documentID).
		Order("transitioned_at ASC").
		Find(&transitions).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch stage history: %w", err)
	}
	return transitions, nil
}

// moveStage applies the stage change plus any pending lock/status mutations
// through the optimistic update path and appends the audit row.
func (e *EvaluationEngine) moveStage(tx *gorm.DB, doc *models.TenderDocument, to models.WorkflowStage, trigger string, p Principal, status *models.DocumentStatus) error {
	from := doc.WorkflowStage

	updates := map[string]interface{}{
		"workflow_stage": to,
		"is_tech_locked": doc.IsTechLocked,
		"is_proc_locked": doc.IsProcLocked,
	}
	if status != nil {
		updates["status"] = *status
	}
	if to == models.StageCompleted {
		now := time.Now()
		updates["completed_at"] = &now
	}

	if err := e.updateDocument(tx, doc, updates); err != nil {
		return err
	}

	transition := models.StageTransition{
		DocumentID:     doc.ID,
		FromStage:      from,
		ToStage:        to,
		Trigger:        trigger,
		ActorID:        p.ID,
		ActorRole:      p.Role,
		TransitionedAt: time.Now(),
	}
	if err := tx.Create(&transition).Error; err != nil {
		return fmt.Errorf("failed to record stage transition: %w", err)
	}

	doc.WorkflowStage = to
	return nil
}

// updateDocument writes the given fields with a compare-and-swap on the
// document version. Zero rows affected means another writer got there first.
func (e *EvaluationEngine) updateDocument(tx *gorm.DB, doc *models.TenderDocument, updates map[string]interface{}) error {
	updates["version"] = doc.Version + 1

	res := tx.Model(&models.TenderDocument{}).
		Where("id = ? AND version = ?", doc.ID, doc.Version).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update tender: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: tender was modified concurrently, retry", ErrConflict)
	}

	doc.Version++
	return nil
}

// findDocument loads the document inside the current transaction
func findDocument(tx *gorm.DB, documentID uuid.UUID) (*models.TenderDocument, error) {
	var doc models.TenderDocument
	if err := tx.First(&doc, "id = ?", documentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tender %s", ErrNotFound, documentID)
		}
		return nil, err
	}
	return &doc, nil
}

// requireEvaluationPhase rejects score-sheet writes outside the two
// evaluation stages.
func requireEvaluationPhase(doc *models.TenderDocument) error {
	if doc.WorkflowStage != models.StageTechnicalEvaluation && doc.WorkflowStage != models.StageFinancialEvaluation {
		return fmt.Errorf("%w: tender is not in an evaluation stage (stage %s)", ErrValidation, doc.WorkflowStage)
	}
	return nil
}

// validateScores checks the submitted score and criterion values for range
func validateScores(score *float64, criteria map[string]float64) error {
	if score != nil && (*score < 0 || *score > 100) {
		return fmt.Errorf("%w: score must be between 0 and 100", ErrValidation)
	}
	for id, v := range criteria {
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: criterion %q value must be between 0 and 100", ErrValidation, id)
		}
	}
	return nil
}

// validateCriteriaIDs rejects values for criteria the document does not
// define. Documents without a configured set accept any ids.
func validateCriteriaIDs(configured models.CriterionList, values map[string]float64) error {
	if len(configured) == 0 {
		return nil
	}
	known := make(map[string]bool, len(configured))
	for _, c := range configured {
		known[c.ID] = true
	}
	for id := range values {
		if !known[id] {
			return fmt.Errorf("%w: unknown criterion %q", ErrValidation, id)
		}
	}
	return nil
}

// resolveScore uses the submitted score when present, otherwise derives it
// from the criterion values via the weighted aggregation.
func resolveScore(score *float64, configured models.CriterionList, values map[string]float64) (float64, error) {
	if score != nil {
		return *score, nil
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: either score or criteria values are required", ErrValidation)
	}
	return scoring.WeightedScore(configured, values), nil
}
