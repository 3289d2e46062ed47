package feesplit

import (
	"context"
	"net/http"

	"github.com/Sadick14/ticket-flow/internal"
	"github.com/Sadick14/ticket-flow/internal/core/common/validation"
	"github.com/Sadick14/ticket-flow/internal/transport"
)

type QuoteDTO struct {
	GatewayID   string `json:"gateway_id" validate:"required,max=32"`
	GrossAmount int64  `json:"gross_amount"`
}

type Quoter interface {
	QuoteFor(ctx context.Context, grossAmount int64, gatewayID string) (Quote, error)
}

type Handler struct {
	*transport.BaseHandler
	Quoter Quoter
}

func NewHandler(baseHandler *transport.BaseHandler, quoter Quoter) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Quoter:      quoter,
	}
}

// Quote tells a checkout page what the buyer pays when fees are passed through.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var dto QuoteDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if err := validation.Struct(dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if dto.GrossAmount <= 0 {
		h.HandleServiceError(w, internal.ErrInvalidAmount)
		return
	}

	q, err := h.Quoter.QuoteFor(r.Context(), dto.GrossAmount, dto.GatewayID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, q)
}
