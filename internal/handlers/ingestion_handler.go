package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"ivazen-reconciliation/internal/services"
)

// maxUploadBytes caps reference spreadsheet uploads at 20 MiB; portal
// exports are a few hundred KiB at most.
const maxUploadBytes = 20 << 20

type IngestionHandler struct {
	ingestion *services.IngestionService
}

func NewIngestionHandler(ingestion *services.IngestionService) *IngestionHandler {
	return &IngestionHandler{ingestion: ingestion}
}

// UploadReferenceSpreadsheet accepts a multipart upload with the spreadsheet
// under "file" and the client name under "client_name".
func (h *IngestionHandler) UploadReferenceSpreadsheet(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid multipart payload")
		return
	}

	clientName := r.FormValue("client_name")
	if clientName == "" {
		respondWithError(w, http.StatusBadRequest, "client_name is required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	result, err := h.ingestion.IngestReferenceSpreadsheet(clientName, data)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, result)
}

// SubmitExtractedBatch accepts one batch of records from the external
// extractor as JSON.
func (h *IngestionHandler) SubmitExtractedBatch(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ClientName string                          `json:"client_name"`
		Records    []services.ExtractedRecordInput `json:"records"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if request.ClientName == "" {
		respondWithError(w, http.StatusBadRequest, "client_name is required")
		return
	}
	if len(request.Records) == 0 {
		respondWithError(w, http.StatusBadRequest, "records must not be empty")
		return
	}

	result, err := h.ingestion.IngestExtractedRecords(request.ClientName, request.Records)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, result)
}
