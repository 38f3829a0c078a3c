package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"contentforge/internal/queue"
	"contentforge/internal/store"
	"contentforge/internal/usertoken"
	"contentforge/pkg/domain"
)

func (s *Server) handleBulkSubmit(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	var body struct {
		Operations []domain.GenerationRequest `json:"operations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	batchID, err := s.queue.Submit(claims.UserID, body.Operations)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrEmptyBatch),
			errors.Is(err, queue.ErrBatchTooLarge),
			errors.Is(err, queue.ErrEmptyPromptAt):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "batch submission failed")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"batchId": batchID,
		"total":   len(body.Operations),
	})
}

func (s *Server) handleBulkStatus(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	status, err := s.queue.Status(r.PathValue("batch"))
	if err != nil {
		writeBulkError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleBulkItems(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	batchID := r.PathValue("batch")
	// Status doubles as the existence check; Items alone returns an
	// empty slice for unknown batches.
	if _, err := s.queue.Status(batchID); err != nil {
		writeBulkError(w, err)
		return
	}
	items, err := s.queue.Items(batchID)
	if err != nil {
		writeBulkError(w, err)
		return
	}
	views := make([]bulkItemView, 0, len(items))
	for _, item := range items {
		views = append(views, bulkItemViewOf(item))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleBulkCancel(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	batchID := r.PathValue("batch")
	if _, err := s.queue.Status(batchID); err != nil {
		writeBulkError(w, err)
		return
	}
	n, err := s.queue.Cancel(batchID)
	if err != nil {
		writeBulkError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cancelled": n})
}

func (s *Server) handleBulkRetry(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	batchID := r.PathValue("batch")
	if _, err := s.queue.Status(batchID); err != nil {
		writeBulkError(w, err)
		return
	}
	n, err := s.queue.RetryFailed(batchID)
	if err != nil {
		writeBulkError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"requeued": n})
}

func writeBulkError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "batch operation failed")
}

// bulkItemView trims queue items for API responses.
type bulkItemView struct {
	ID          int64                    `json:"id"`
	Prompt      string                   `json:"prompt"`
	ContentType domain.ContentType       `json:"contentType"`
	Status      domain.ItemStatus        `json:"status"`
	Attempts    int                      `json:"attempts"`
	Result      *domain.GenerationResult `json:"result,omitempty"`
	Error       string                   `json:"error,omitempty"`
}

func bulkItemViewOf(item domain.QueueItem) bulkItemView {
	return bulkItemView{
		ID:          item.ID,
		Prompt:      item.Request.Prompt,
		ContentType: item.Request.ContentType,
		Status:      item.Status,
		Attempts:    item.Attempts,
		Result:      item.Result,
		Error:       item.Error,
	}
}
