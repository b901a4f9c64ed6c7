package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Portfolio routes
	api.HandleFunc("/portfolio", handler.GetPortfolio).Methods("GET")
	api.HandleFunc("/portfolio/reset", handler.ResetPortfolio).Methods("POST")
	api.HandleFunc("/portfolio/snapshots", handler.GetSnapshots).Methods("GET")

	// Order routes
	api.HandleFunc("/orders/buy", handler.Buy).Methods("POST")
	api.HandleFunc("/orders/sell", handler.Sell).Methods("POST")
	api.HandleFunc("/transactions", handler.GetTransactions).Methods("GET")

	// Quote routes
	api.HandleFunc("/quotes/{ticker}", handler.GetQuote).Methods("GET")

	return r
}
