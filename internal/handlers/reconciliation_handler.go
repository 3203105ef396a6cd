package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"ivazen-reconciliation/internal/services"
)

type ReconciliationHandler struct {
	reconciliation *services.ReconciliationService
}

func NewReconciliationHandler(reconciliation *services.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliation: reconciliation}
}

func (h *ReconciliationHandler) StartReconciliation(w http.ResponseWriter, r *http.Request) {
	var request services.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if request.ReferenceBatchID == "" || request.ExtractedBatchID == "" {
		respondWithError(w, http.StatusBadRequest, "Both reference_batch_id and extracted_batch_id are required")
		return
	}
	if request.ToleranceEUR != nil && *request.ToleranceEUR < 0 {
		respondWithError(w, http.StatusBadRequest, "tolerance_eur must be zero or positive")
		return
	}

	result, err := h.reconciliation.Run(request)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ReconciliationHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["run_id"]
	if runID == "" {
		respondWithError(w, http.StatusBadRequest, "Run ID is required")
		return
	}

	run, err := h.reconciliation.GetRun(runID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, run)
}

// DownloadReport serves the stored plain-text report as a .txt attachment.
func (h *ReconciliationHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["run_id"]
	if runID == "" {
		respondWithError(w, http.StatusBadRequest, "Run ID is required")
		return
	}

	text, err := h.reconciliation.GetReportText(runID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "reconciliation-"+runID+".txt"))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}
