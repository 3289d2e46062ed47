package report

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/Sadick14/ticket-flow/internal/transport"
)

type ReaderAPI interface {
	CreatorBalance(ctx context.Context, creatorID string) (*Balance, error)
	OpenReconciliationCases(ctx context.Context) ([]ReconciliationCase, error)
}

type CasesResponse struct {
	Cases []ReconciliationCase `json:"cases"`
}

type Handler struct {
	*transport.BaseHandler
	Reader ReaderAPI
}

func NewHandler(baseHandler *transport.BaseHandler, reader ReaderAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Reader:      reader,
	}
}

func (h *Handler) CreatorBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.Reader.CreatorBalance(r.Context(), chi.URLParam(r, "creatorID"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, balance)
}

func (h *Handler) OpenReconciliationCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.Reader.OpenReconciliationCases(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, CasesResponse{Cases: cases})
}
