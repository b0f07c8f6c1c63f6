package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"p9e.in/tenderdesk/config"
	"p9e.in/tenderdesk/handlers"
	"p9e.in/tenderdesk/pkg/ai"
	"p9e.in/tenderdesk/routes"
)

var (
	Version   = "dev"
	BuildTime = ""
)

func main() {

	versionFlag := flag.Bool("version", false, "Print version info and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("Version:   %s\n", Version)
		fmt.Printf("BuildTime: %s\n", BuildTime)
		os.Exit(0)
	}
	config.Connect()
	config.ConnectRedis()

	// Document analysis is optional; without an API key uploads are stored
	// and marked analyzed without extraction.
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		analyzer, err := ai.NewGeminiAnalyzer(context.Background(), apiKey, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			log.Printf("Warning: analysis provider unavailable: %v", err)
		} else {
			handlers.SetAnalyzer(analyzer)
		}
	} else {
		log.Println("GEMINI_API_KEY not set, document analysis disabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	handler := routes.RegisterRoutes()
	handlerWithCORS := enableCORS(handler)
	log.Println("Server starting at port", port)
	log.Fatal(http.ListenAndServe(":"+port, handlerWithCORS))
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")

		// Handle preflight (OPTIONS)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
