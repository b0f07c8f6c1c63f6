package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"p9e.in/tenderdesk/middleware"
)

// principalFromRequest builds the engine principal from the JWT claims
func principalFromRequest(r *http.Request) Principal {
	return Principal{
		ID:   middleware.GetUserID(r),
		Role: middleware.GetRole(r),
	}
}

func documentIDFromRequest(r *http.Request) (uuid.UUID, bool) {
	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	return id, err == nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeEngineError maps an engine error onto the response
func writeEngineError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		log.Printf("Evaluation request failed: %v", err)
	}
	http.Error(w, err.Error(), status)
}

// SubmitPreFeasibilityHandler records the pre-feasibility gate checks
// POST /api/v1/tenders/{id}/pre-feasibility
func SubmitPreFeasibilityHandler(w http.ResponseWriter, r *http.Request) {
	documentID, ok := documentIDFromRequest(r)
	if !ok {
		http.Error(w, "invalid tender ID", http.StatusBadRequest)
		return
	}

	var in PreFeasibilityInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	eval, err := getEvaluationEngine().SubmitPreFeasibility(documentID, in, principalFromRequest(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	invalidateBreakdown(r, documentID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "pre-feasibility evaluation recorded",
		"evaluation": eval,
	})
}

// SubmitTechnicalEvaluationHandler upserts the technical score sheet
// POST /api/v1/tenders/{id}/technical-eval
func SubmitTechnicalEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	documentID, ok := documentIDFromRequest(r)
	if !ok {
		http.Error(w, "invalid tender ID", http.StatusBadRequest)
		return
	}

	var in TechnicalInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	eval, err := getEvaluationEngine().SubmitTechnicalEvaluation(documentID, in, principalFromRequest(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	invalidateBreakdown(r, documentID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "technical evaluation saved",
		"evaluation": eval,
	})
}

// SubmitFinancialEvaluationHandler upserts the commercial score sheet
// POST /api/v1/tenders/{id}/financial-eval
func SubmitFinancialEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	documentID, ok := documentIDFromRequest(r)
	if !ok {
		http.Error(w, "invalid tender ID", http.StatusBadRequest)
		return
	}

	var in FinancialInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	eval, err := getEvaluationEngine().SubmitFinancialEvaluation(documentID, in, principalFromRequest(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	invalidateBreakdown(r, documentID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "financial evaluation saved",
		"evaluation": eval,
	})
}

// SubmitApprovalHandler appends a final-approval decision
// POST /api/v1/tenders/{id}/approve
func SubmitApprovalHandler(w http.ResponseWriter, r *http.Request) {
	documentID, ok := documentIDFromRequest(r)
	if !ok {
		http.Error(w, "invalid tender ID", http.StatusBadRequest)
		return
	}

	var in ApprovalInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	approval, err := getEvaluationEngine().SubmitApproval(documentID, in, principalFromRequest(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	invalidateBreakdown(r, documentID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "approval recorded",
		"approval": approval,
	})
}

// SetupCriteriaHandler configures criteria sets and assignees (admin only)
// POST /api/v1/tenders/{id}/setup-criteria
func SetupCriteriaHandler(w http.ResponseWriter, r *http.Request) {
	documentID, ok := documentIDFromRequest(r)
	if !ok {
		http.Error(w, "invalid tender ID", http.StatusBadRequest)
		return
	}

	var in CriteriaSetup
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := getEvaluationEngine().SetupCriteria(documentID, in, principalFromRequest(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "criteria configured",
		"tender":  doc,
	})
}

// UnlockEvaluationHandler clears one evaluation lock (admin only)
// POST /api/v1/tenders/{id}/unlock
func UnlockEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	documentID, ok := documentIDFromRequest(r)
	if !ok {
		http.Error(w, "invalid tender ID", http.StatusBadRequest)
		return
	}

	var in struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := getEvaluationEngine().Unlock(documentID, in.Kind, principalFromRequest(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	invalidateBreakdown(r, documentID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "evaluation unlocked",
		"tender":  doc,
	})
}

// GetStageHistoryHandler returns the stage transition audit trail
// GET /api/v1/tenders/{id}/history
func GetStageHistoryHandler(w http.ResponseWriter, r *http.Request) {
	documentID, ok := documentIDFromRequest(r)
	if !ok {
		http.Error(w, "invalid tender ID", http.StatusBadRequest)
		return
	}

	history, err := getEvaluationEngine().StageHistory(documentID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": history,
		"count":   len(history),
	})
}
