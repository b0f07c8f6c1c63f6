package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"p9e.in/tenderdesk/handlers"
	"p9e.in/tenderdesk/middleware"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// =====================================================
	// Public Routes (no authentication)
	// =====================================================
	r.HandleFunc("/login", handlers.LoginHandler).Methods("POST")
	r.HandleFunc("/health", handleHealth).Methods("GET")

	// =====================================================
	// Protected API Routes (require JWT authentication)
	// =====================================================
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.JWTMiddleware)

	api.HandleFunc("/auth/me", handlers.GetCurrentUserHandler).Methods("GET")

	RegisterTenderRoutes(api)
	RegisterCompanyRoutes(api)

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
