package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"ivazen-reconciliation/internal/services"
)

func SetupRouter(ingestion *services.IngestionService, reconciliation *services.ReconciliationService) *mux.Router {
	router := mux.NewRouter()

	ingestionHandler := NewIngestionHandler(ingestion)
	reconciliationHandler := NewReconciliationHandler(reconciliation)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(loggingMiddleware)

	api.HandleFunc("/reference/uploads", ingestionHandler.UploadReferenceSpreadsheet).Methods(http.MethodPost)
	api.HandleFunc("/extracted/batches", ingestionHandler.SubmitExtractedBatch).Methods(http.MethodPost)
	api.HandleFunc("/reconciliations", reconciliationHandler.StartReconciliation).Methods(http.MethodPost)
	api.HandleFunc("/reconciliations/{run_id}", reconciliationHandler.GetRun).Methods(http.MethodGet)
	api.HandleFunc("/reconciliations/{run_id}/report", reconciliationHandler.DownloadReport).Methods(http.MethodGet)

	router.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)

	return router
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("failed to encode response: %v", err)
		}
	}
}
