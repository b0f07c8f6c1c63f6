package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"p9e.in/tenderdesk/handlers"
	"p9e.in/tenderdesk/middleware"
	"p9e.in/tenderdesk/models"
)

// RegisterCompanyRoutes registers company profile routes. The profile feeds
// the experience and feasibility scores, so writes are admin-only.
func RegisterCompanyRoutes(api *mux.Router) {
	adminOnly := []string{models.RoleAdmin}
	anyEvaluator := []string{models.RoleAdmin, models.RoleTechnical, models.RoleProcurement}

	api.Handle("/company", middleware.RequireRole(anyEvaluator,
		http.HandlerFunc(handlers.GetCompanyHandler))).Methods("GET")
	api.Handle("/company", middleware.RequireRole(adminOnly,
		http.HandlerFunc(handlers.UpdateCompanyHandler))).Methods("PATCH")
	api.Handle("/company/finances", middleware.RequireRole(adminOnly,
		http.HandlerFunc(handlers.AddFinanceHandler))).Methods("POST")
	api.Handle("/company/experience", middleware.RequireRole(adminOnly,
		http.HandlerFunc(handlers.AddExperienceHandler))).Methods("POST")
	api.Handle("/company/personnel", middleware.RequireRole(adminOnly,
		http.HandlerFunc(handlers.AddPersonnelHandler))).Methods("POST")
}
