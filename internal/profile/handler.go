package profile

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/Sadick14/ticket-flow/internal/transport"
)

type ServiceAPI interface {
	CreateProfile(ctx context.Context, dto CreateProfileDTO) (*Profile, error)
	GetProfile(ctx context.Context, creatorID string) (*Profile, error)
	UpdateProfile(ctx context.Context, creatorID string, dto UpdateProfileDTO) (*Profile, error)
	ListProfiles(ctx context.Context) ([]*Profile, error)
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

func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var dto CreateProfileDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	p, err := h.Service.CreateProfile(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.GetProfile(r.Context(), chi.URLParam(r, "creatorID"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var dto UpdateProfileDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	p, err := h.Service.UpdateProfile(r.Context(), chi.URLParam(r, "creatorID"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.Service.ListProfiles(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ProfilesResponse{Profiles: profiles})
}
