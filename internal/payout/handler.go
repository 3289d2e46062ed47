package payout

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/Sadick14/ticket-flow/internal/core/common/validation"
	"github.com/Sadick14/ticket-flow/internal/transport"
)

type ServiceAPI interface {
	GetPayout(ctx context.Context, id string) (*Payout, error)
	ListCreatorPayouts(ctx context.Context, creatorID string, limit, offset int) ([]*Payout, error)
	ApplyStatus(ctx context.Context, id string, next Status, reason string, at time.Time) (*StatusUpdate, error)
}

type BatchRunner interface {
	RunBatch(ctx context.Context, now time.Time) (*BatchResult, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Runner  BatchRunner
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, runner BatchRunner) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		Runner:      runner,
	}
}

func (h *Handler) GetPayout(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.GetPayout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) ListCreatorPayouts(w http.ResponseWriter, r *http.Request) {
	limit, offset := h.Paging(r)
	payouts, err := h.Service.ListCreatorPayouts(r.Context(), chi.URLParam(r, "creatorID"), limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, PayoutsResponse{Payouts: payouts, Limit: limit, Offset: offset})
}

// StatusCallback receives disbursement reports from the money-transfer collaborator.
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

	update, err := h.Service.ApplyStatus(r.Context(), dto.PayoutID, Status(dto.Status), dto.FailureReason, at)
	if err != nil {
		h.Logger.Warn("StatusCallback: service error", "error", err, "payout_id", dto.PayoutID, "status", dto.Status)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, update)
}

// RunBatch runs the payout batch on demand, for manual reconciliation runs.
func (h *Handler) RunBatch(w http.ResponseWriter, r *http.Request) {
	var dto RunBatchDTO
	if r.ContentLength != 0 {
		if err := h.DecodeJSON(r, &dto); err != nil && !errors.Is(err, io.EOF) {
			h.HandleServiceError(w, err)
			return
		}
	}

	now := time.Now().UTC()
	if dto.Now != nil {
		now = dto.Now.UTC()
	}

	result, err := h.Runner.RunBatch(r.Context(), now)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("RunBatch: on-demand batch finished",
		"run_id", result.RunID,
		"processed", len(result.ProcessedCreators),
		"errors", len(result.Errors))
	h.WriteJSON(w, http.StatusOK, result)
}
