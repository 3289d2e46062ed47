package transaction

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/Sadick14/ticket-flow/internal/core/common/validation"
	"github.com/Sadick14/ticket-flow/internal/transport"
)

type ServiceAPI interface {
	RecordSale(ctx context.Context, dto RecordSaleDTO) (*Transaction, error)
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	ListCreatorTransactions(ctx context.Context, creatorID string, limit, offset int) ([]*Transaction, error)
	ApplyStatus(ctx context.Context, id string, next Status, at time.Time) (*StatusUpdate, error)
	ResolveCase(ctx context.Context, caseID string) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	var dto RecordSaleDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	t, err := h.Service.RecordSale(r.Context(), dto)
	if err != nil {
		h.Logger.Warn("RecordSale: service error", "error", err, "sale_id", dto.SaleID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := h.Service.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) ListCreatorTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := h.Paging(r)
	txs, err := h.Service.ListCreatorTransactions(r.Context(), chi.URLParam(r, "creatorID"), limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, TransactionsResponse{Transactions: txs, Limit: limit, Offset: offset})
}

// StatusCallback receives settlement reports from the money-transfer collaborator.
func (h *Handler) StatusCallback(w http.ResponseWriter, r *http.Request) {
	var dto StatusCallbackDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if err := validation.Struct(dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var at time.Time
	if dto.OccurredAt != nil {
		at = dto.OccurredAt.UTC()
	}

	update, err := h.Service.ApplyStatus(r.Context(), dto.TransactionID, Status(dto.Status), at)
	if err != nil {
		h.Logger.Warn("StatusCallback: service error", "error", err, "transaction_id", dto.TransactionID, "status", dto.Status)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, update)
}

func (h *Handler) ResolveCase(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.ResolveCase(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
