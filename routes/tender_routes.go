package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"p9e.in/tenderdesk/handlers"
	"p9e.in/tenderdesk/middleware"
	"p9e.in/tenderdesk/models"
)

// RegisterTenderRoutes registers tender ingestion, evaluation workflow and
// comparison routes. Role requirements mirror the stage ownership: technical
// users own the technical score sheet, procurement users the commercial one,
// admins everything else.
func RegisterTenderRoutes(api *mux.Router) {
	adminOnly := []string{models.RoleAdmin}
	adminOrTech := []string{models.RoleAdmin, models.RoleTechnical}
	adminOrProc := []string{models.RoleAdmin, models.RoleProcurement}
	anyEvaluator := []string{models.RoleAdmin, models.RoleTechnical, models.RoleProcurement}

	// Ingestion and listing
	api.Handle("/tenders/upload", middleware.RequireRole(adminOrTech,
		http.HandlerFunc(handlers.UploadTenderHandler))).Methods("POST")
	api.Handle("/tenders", middleware.RequireRole(anyEvaluator,
		http.HandlerFunc(handlers.ListTendersHandler))).Methods("GET")

	// Comparison (registered before /tenders/{id} so the literal paths win)
	api.Handle("/tenders/compare", middleware.RequireRole(anyEvaluator,
		http.HandlerFunc(handlers.CompareTendersHandler))).Methods("GET")
	api.Handle("/tenders/compare/export", middleware.RequireRole(anyEvaluator,
		http.HandlerFunc(handlers.ExportComparisonHandler))).Methods("GET")
	api.Handle("/tenders/evaluators", middleware.RequireRole(adminOnly,
		http.HandlerFunc(handlers.GetEvaluatorsHandler))).Methods("GET")

	// Document detail
	api.Handle("/tenders/{id}/status", middleware.RequireRole(anyEvaluator,
		http.HandlerFunc(handlers.GetTenderStatusHandler))).Methods("GET")
	api.Handle("/tenders/{id}/analysis", middleware.RequireRole(anyEvaluator,
		http.HandlerFunc(handlers.GetTenderAnalysisHandler))).Methods("GET")
	api.Handle("/tenders/{id}/download", middleware.RequireRole(anyEvaluator,
		http.HandlerFunc(handlers.DownloadTenderFileHandler))).Methods("GET")
	api.Handle("/tenders/{id}/score", middleware.RequireRole(anyEvaluator,
		http.HandlerFunc(handlers.GetScoreBreakdownHandler))).Methods("GET")
	api.Handle("/tenders/{id}/history", middleware.RequireRole(anyEvaluator,
		http.HandlerFunc(handlers.GetStageHistoryHandler))).Methods("GET")
	api.Handle("/tenders/{id}/approvals", middleware.RequireRole(anyEvaluator,
		http.HandlerFunc(handlers.GetApprovalsHandler))).Methods("GET")
	api.Handle("/tenders/{id}", middleware.RequireRole(adminOnly,
		http.HandlerFunc(handlers.UpdateTenderHandler))).Methods("PATCH")
	api.Handle("/tenders/{id}", middleware.RequireRole(adminOnly,
		http.HandlerFunc(handlers.DeleteTenderHandler))).Methods("DELETE")

	// Evaluation workflow
	api.Handle("/tenders/{id}/pre-feasibility", middleware.RequireRole(anyEvaluator,
		http.HandlerFunc(handlers.SubmitPreFeasibilityHandler))).Methods("POST")
	api.Handle("/tenders/{id}/technical-eval", middleware.RequireRole(adminOrTech,
		http.HandlerFunc(handlers.SubmitTechnicalEvaluationHandler))).Methods("POST")
	api.Handle("/tenders/{id}/financial-eval", middleware.RequireRole(adminOrProc,
		http.HandlerFunc(handlers.SubmitFinancialEvaluationHandler))).Methods("POST")
	api.Handle("/tenders/{id}/approve", middleware.RequireRole(adminOnly,
		http.HandlerFunc(handlers.SubmitApprovalHandler))).Methods("POST")
	api.Handle("/tenders/{id}/setup-criteria", middleware.RequireRole(adminOnly,
		http.HandlerFunc(handlers.SetupCriteriaHandler))).Methods("POST")
	api.Handle("/tenders/{id}/unlock", middleware.RequireRole(adminOnly,
		http.HandlerFunc(handlers.UnlockEvaluationHandler))).Methods("POST")
}
