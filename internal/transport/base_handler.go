package transport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Sadick14/ticket-flow/internal"
	"github.com/Sadick14/ticket-flow/pkg/logger"
)

const (
	maxBodyBytes = 1 << 20

	defaultPageSize = 20
	maxPageSize     = 100
)

// BaseHandler carries the response helpers shared by every resource handler.
type BaseHandler struct {
	Logger *slog.Logger
}

func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &BaseHandler{Logger: lg}
}

func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err, "status", status)
	}
}

// HandleServiceError renders err as the AppError envelope. Anything that is not
// an AppError becomes a 500 without leaking the cause.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, err error) {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		h.Logger.Error("unhandled service error", "error", err)
		appErr = internal.NewInternalError("internal server error", nil)
	}

	status, body := appErr.ToHTTPResponse()
	if ok && status >= http.StatusInternalServerError {
		h.Logger.Error("service error", "code", appErr.Code, "error", err)
	}
	h.WriteJSON(w, status, body)
}

// DecodeJSON reads a single JSON document from the request body into dst.
func (h *BaseHandler) DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return internal.NewValidationError("request body is required", internal.ErrCodeValidationFailed).Wrap(err)
		}
		return internal.NewValidationError("invalid request body", internal.ErrCodeValidationFailed).Wrap(err)
	}
	return nil
}

// Paging reads limit and offset from the query string. Out of range values
// fall back to the defaults instead of failing the request.
func (h *BaseHandler) Paging(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= maxPageSize {
		limit = l
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}
	return limit, offset
}
