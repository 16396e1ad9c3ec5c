// backend/src/handlers/inbox_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/centavo/backend/src/logger"
	"github.com/username/centavo/backend/src/models"
	"github.com/username/centavo/backend/src/repository"
	"github.com/username/centavo/backend/src/security"
	"github.com/username/centavo/backend/src/services"
)

type InboxHandler struct {
	stagingService services.StagingService
}

func NewInboxHandler(stagingService services.StagingService) *InboxHandler {
	return &InboxHandler{stagingService: stagingService}
}

// recordResponse decorates a staged record with a human-readable amount so
// the UI does not have to know about minor units and currency formatting.
type recordResponse struct {
	models.StagedRecord
	DisplayAmount string `json:"displayAmount,omitempty"`
}

func toRecordResponse(rec models.StagedRecord) recordResponse {
	return recordResponse{StagedRecord: rec, DisplayAmount: rec.DisplayAmount()}
}

type pageResponse struct {
	Records    []recordResponse `json:"records"`
	TotalCount int              `json:"totalCount"`
}

func toPageResponse(page repository.Page) pageResponse {
	records := make([]recordResponse, 0, len(page.Records))
	for _, rec := range page.Records {
		records = append(records, toRecordResponse(rec))
	}
	return pageResponse{Records: records, TotalCount: page.TotalCount}
}

func (h *InboxHandler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := h.stagingService.ListPending(r.Context(), offset, limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(page))
}

func (h *InboxHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.stagingService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *InboxHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in models.CreateStagedRecordInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	rec, err := h.stagingService.Create(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

func (h *InboxHandler) HandleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var ins []models.CreateStagedRecordInput
	if err := json.NewDecoder(r.Body).Decode(&ins); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	recs, err := h.stagingService.CreateBatch(r.Context(), ins)
	if err != nil {
		// Partial results are possible; the batch is a loop, not a
		// transaction. Surface the error and whatever got created.
		logger.FromContext(r.Context()).Warn("Batch create stopped early", "created", len(recs), "error", err)
		respondServiceError(w, r, err)
		return
	}
	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordResponse(rec))
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *InboxHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in models.UpdateStagedRecordInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	rec, err := h.stagingService.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *InboxHandler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	var in models.PromoteStagedRecordInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	in.RecordID = chi.URLParam(r, "id")

	result, err := h.stagingService.Promote(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type dismissRequest struct {
	ExpectedVersion *int64 `json:"expectedVersion"`
}

func (h *InboxHandler) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	var req dismissRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	if err := h.stagingService.Dismiss(r.Context(), chi.URLParam(r, "id"), req.ExpectedVersion); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InboxHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	readiness, err := h.stagingService.Readiness(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, readiness)
}

type conflictResponse struct {
	Error           string `json:"error"`
	ExpectedVersion int64  `json:"expectedVersion"`
	CurrentVersion  int64  `json:"currentVersion"`
}

// respondServiceError maps the service error kinds onto HTTP statuses. A
// version conflict carries the authoritative current version so the client
// can re-derive and retry.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if conflict, ok := models.AsVersionConflict(err); ok {
		writeJSON(w, http.StatusConflict, conflictResponse{
			Error:           conflict.Error(),
			ExpectedVersion: conflict.Expected,
			CurrentVersion:  conflict.Found,
		})
		return
	}
	switch {
	case errors.Is(err, security.ErrNoIdentity):
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
	case errors.Is(err, models.ErrNotFound):
		sendJSONError(w, "staged record not found", http.StatusNotFound)
	case errors.Is(err, models.ErrValidation):
		sendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrAlreadyProcessed):
		sendJSONError(w, "staged record already processed", http.StatusConflict)
	case errors.Is(err, models.ErrPromotionFailed):
		sendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		logger.FromContext(r.Context()).Error("Unhandled service error", "error", err)
		sendJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}
