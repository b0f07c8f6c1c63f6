package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"p9e.in/tenderdesk/config"
	"p9e.in/tenderdesk/middleware"
	"p9e.in/tenderdesk/models"
	"p9e.in/tenderdesk/pkg/ai"
)

// analyzer is the document-analysis provider injected at startup; nil means
// uploads skip analysis (development without an API key).
var analyzer ai.Analyzer

// SetAnalyzer injects the analysis provider
func SetAnalyzer(a ai.Analyzer) {
	analyzer = a
}

// UploadTenderHandler ingests a tender document: the file goes to the
// storage backend, the document starts at PRE_FEASIBILITY, and analysis runs
// in the background.
// POST /api/v1/tenders/upload
func UploadTenderHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Parse multipart form (max 50MB)
	if err := r.ParseMultipartForm(50 << 20); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	path, err := getFileStore().Save(r.Context(), header.Filename, bytes.NewReader(data))
	if err != nil {
		log.Printf("Upload failed for %s: %v", header.Filename, err)
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}

	doc := models.TenderDocument{
		Title:         header.Filename,
		Status:        models.StatusProcessing,
		WorkflowStage: models.StagePreFeasibility,
		FileName:      header.Filename,
		FilePath:      path,
		MimeType:      mimeType,
		FileSize:      header.Size,
		UploadedBy:    claims.UserID,
	}
	if title := r.FormValue("title"); title != "" {
		doc.Title = title
	}
	if budget := r.FormValue("estimated_budget"); budget != "" {
		if v, err := strconv.ParseFloat(budget, 64); err == nil {
			doc.EstimatedBudget = v
		}
	}
	if docType := r.FormValue("document_type"); docType != "" {
		doc.DocumentType = docType
	}

	if err := config.DB.Create(&doc).Error; err != nil {
		http.Error(w, "failed to create tender", http.StatusInternalServerError)
		return
	}

	go analyzeDocument(doc.ID.String(), data, mimeType)

	log.Printf("Tender uploaded: %s (%s)", doc.ID, doc.Title)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "tender uploaded, analysis in progress",
		"tender":  doc,
	})
}

// analyzeDocument runs the provider call off the request path and records
// the outcome on the document.
func analyzeDocument(docID string, data []byte, mimeType string) {
	if analyzer == nil {
		config.DB.Model(&models.TenderDocument{}).
			Where("id = ?", docID).
			Update("status", models.StatusAnalyzed)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	analysis, err := analyzer.Analyze(ctx, data, mimeType)
	if err != nil {
		log.Printf("Analysis failed for tender %s: %v", docID, err)
		config.DB.Model(&models.TenderDocument{}).
			Where("id = ?", docID).
			Update("status", models.StatusFailed)
		return
	}

	raw, err := json.Marshal(analysis)
	if err != nil {
		log.Printf("Failed to encode analysis for tender %s: %v", docID, err)
		return
	}

	updates := map[string]interface{}{
		"status":   models.StatusAnalyzed,
		"analysis": datatypes.JSON(raw),
	}
	if analysis.Classification != "" {
		updates["document_type"] = analysis.Classification
	}
	if analysis.VendorName != "" {
		updates["vendor_name"] = analysis.VendorName
	}
	if analysis.EstimatedValue > 0 {
		updates["estimated_budget"] = analysis.EstimatedValue
	}

	if err := config.DB.Model(&models.TenderDocument{}).
		Where("id = ?", docID).
		Updates(updates).Error; err != nil {
		log.Printf("Failed to store analysis for tender %s: %v", docID, err)
		return
	}
	log.Printf("Analysis stored for tender %s", docID)
}

// ListTendersHandler returns a paged tender listing
// GET /api/v1/tenders?page=1&limit=20&status=...&document_type=...
func ListTendersHandler(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := config.DB.Model(&models.TenderDocument{})
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if docType := r.URL.Query().Get("document_type"); docType != "" {
		query = query.Where("document_type = ?", docType)
	}
	if stage := r.URL.Query().Get("stage"); stage != "" {
		query = query.Where("workflow_stage = ?", stage)
	}

	var total int64
	query.Count(&total)

	var tenders []models.TenderDocument
	if err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&tenders).Error; err != nil {
		http.Error(w, "failed to fetch tenders", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tenders": tenders,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// GetTenderStatusHandler returns processing status and workflow position
// GET /api/v1/tenders/{id}/status
func GetTenderStatusHandler(w http.ResponseWriter, r *http.Request) {
	documentID, ok := documentIDFromRequest(r)
	if !ok {
		http.Error(w, "invalid tender ID", http.StatusBadRequest)
		return
	}

	var doc models.TenderDocument
	if err := config.DB.First(&doc, "id = ?", documentID).Error; err != nil {
		http.Error(w, "tender not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":             doc.ID,
		"status":         doc.Status,
		"workflow_stage": doc.WorkflowStage,
		"is_tech_locked": doc.IsTechLocked,
		"is_proc_locked": doc.IsProcLocked,
		"version":        doc.Version,
	})
}

// GetTenderAnalysisHandler returns the document with its analysis and
// evaluation records
// GET /api/v1/tenders/{id}/analysis
func GetTenderAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	documentID, ok := documentIDFromRequest(r)
	if !ok {
		http.Error(w, "invalid tender ID", http.StatusBadRequest)
		return
	}

	var doc models.TenderDocument
	if err := config.DB.
		Preload("PreFeasibilityEval").
		Preload("TechnicalEval").
		Preload("FinancialEval").
		Preload("ScoringConfig").
		First(&doc, "id = ?", documentID).Error; err != nil {
		http.Error(w, "tender not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tender": doc,
	})
}

// UpdateTenderHandler patches mutable document attributes
// PATCH /api/v1/tenders/{id}
func UpdateTenderHandler(w http.ResponseWriter, r *http.Request) {
	documentID, ok := documentIDFromRequest(r)
	if !ok {
		http.Error(w, "invalid tender ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Title           *string   `json:"title"`
		DocumentType    *string   `json:"document_type"`
		Department      *string   `json:"department"`
		VendorName      *string   `json:"vendor_name"`
		EstimatedBudget *float64  `json:"estimated_budget"`
		Tags            *[]string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var doc models.TenderDocument
	if err := config.DB.First(&doc, "id = ?", documentID).Error; err != nil {
		http.Error(w, "tender not found", http.StatusNotFound)
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.DocumentType != nil {
		updates["document_type"] = *req.DocumentType
	}
	if req.Department != nil {
		updates["department"] = *req.Department
	}
	if req.VendorName != nil {
		updates["vendor_name"] = *req.VendorName
	}
	if req.EstimatedBudget != nil {
		updates["estimated_budget"] = *req.EstimatedBudget
	}
	if req.Tags != nil {
		updates["tags"] = pq.StringArray(*req.Tags)
	}

	if len(updates) > 0 {
		if err := config.DB.Model(&doc).Updates(updates).Error; err != nil {
			http.Error(w, "failed to update tender", http.StatusInternalServerError)
			return
		}
		invalidateBreakdown(r, documentID)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "tender updated",
		"tender":  doc,
	})
}

// DeleteTenderHandler removes a tender and its lifecycle-bound records
// DELETE /api/v1/tenders/{id}  (admin only)
func DeleteTenderHandler(w http.ResponseWriter, r *http.Request) {
	documentID, ok := documentIDFromRequest(r)
	if !ok {
		http.Error(w, "invalid tender ID", http.StatusBadRequest)
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.PreFeasibilityEvaluation{}, &models.TechnicalEvaluation{},
			&models.FinancialEvaluation{}, &models.ApprovalRequest{},
			&models.ScoringConfig{}, &models.StageTransition{},
		} {
			if err := tx.Where("document_id = ?", documentID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.TenderDocument{}, "id = ?", documentID).Error
	})
	if err != nil {
		http.Error(w, "failed to delete tender", http.StatusInternalServerError)
		return
	}

	invalidateBreakdown(r, documentID)
	log.Printf("Tender deleted: %s", documentID)
	w.WriteHeader(http.StatusNoContent)
}

// DownloadTenderFileHandler streams the stored document file
// GET /api/v1/tenders/{id}/download
func DownloadTenderFileHandler(w http.ResponseWriter, r *http.Request) {
	documentID, ok := documentIDFromRequest(r)
	if !ok {
		http.Error(w, "invalid tender ID", http.StatusBadRequest)
		return
	}

	var doc models.TenderDocument
	if err := config.DB.First(&doc, "id = ?", documentID).Error; err != nil {
		http.Error(w, "tender not found", http.StatusNotFound)
		return
	}
	if doc.FilePath == "" {
		http.Error(w, "no file stored for this tender", http.StatusNotFound)
		return
	}

	rc, err := getFileStore().Open(r.Context(), doc.FilePath)
	if err != nil {
		http.Error(w, "failed to open stored file", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	if doc.MimeType != "" {
		w.Header().Set("Content-Type", doc.MimeType)
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+doc.FileName)
	io.Copy(w, rc)
}

// GetApprovalsHandler returns the append-only approval trail
// GET /api/v1/tenders/{id}/approvals
func GetApprovalsHandler(w http.ResponseWriter, r *http.Request) {
	documentID, ok := documentIDFromRequest(r)
	if !ok {
		http.Error(w, "invalid tender ID", http.StatusBadRequest)
		return
	}

	var approvals []models.ApprovalRequest
	if err := config.DB.
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&approvals).Error; err != nil {
		http.Error(w, "failed to fetch approvals", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"approvals": approvals,
		"count":     len(approvals),
	})
}

// GetEvaluatorsHandler lists active users eligible for assignment
// GET /api/v1/tenders/evaluators  (admin only)
func GetEvaluatorsHandler(w http.ResponseWriter, r *http.Request) {
	var users []models.User
	if err := config.DB.
		Where("is_active = ? AND role IN ?", true, []string{models.RoleTechnical, models.RoleProcurement}).
		Order("name ASC").
		Find(&users).Error; err != nil {
		http.Error(w, "failed to fetch evaluators", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"evaluators": users,
		"count":      len(users),
	})
}
