package internal

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound    ErrorType = "NOT_FOUND"
	ErrorTypeConflict    ErrorType = "CONFLICT"
	ErrorTypeInternal    ErrorType = "INTERNAL_ERROR"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
	ErrorTypeRateLimited ErrorType = "RATE_LIMITED"
)

type ErrorCode string

const (
	ErrCodeValidationFailed      ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount         ErrorCode = "INVALID_AMOUNT"
	ErrCodeUnknownGateway        ErrorCode = "UNKNOWN_GATEWAY"
	ErrCodeInvalidFeeSchedule    ErrorCode = "INVALID_FEE_SCHEDULE"
	ErrCodeUnknownCommissionTier ErrorCode = "UNKNOWN_COMMISSION_TIER"
	ErrCodeInvalidTransition     ErrorCode = "INVALID_TRANSITION"
	ErrCodeFailureReasonRequired ErrorCode = "FAILURE_REASON_REQUIRED"

	ErrCodeTransactionNotFound ErrorCode = "TRANSACTION_NOT_FOUND"
	ErrCodePayoutNotFound      ErrorCode = "PAYOUT_NOT_FOUND"
	ErrCodeProfileNotFound     ErrorCode = "PROFILE_NOT_FOUND"
	ErrCodeProfileExists       ErrorCode = "PROFILE_EXISTS"
	ErrCodeDuplicateSale       ErrorCode = "DUPLICATE_SALE"
	ErrCodeCaseNotFound        ErrorCode = "RECONCILIATION_CASE_NOT_FOUND"

	ErrCodeStoreUnavailable         ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeConcurrentPayoutConflict ErrorCode = "CONCURRENT_PAYOUT_CONFLICT"
	ErrCodeConcurrentUpdate         ErrorCode = "CONCURRENT_UPDATE"
	ErrCodePayoutAmountMismatch     ErrorCode = "PAYOUT_AMOUNT_MISMATCH"
	ErrCodeOrphanedRefund           ErrorCode = "ORPHANED_REFUND"

	ErrCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
)

// HTTPStatus is the response status for errors of type t.
func (t ErrorType) HTTPStatus() int {
	switch t {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the error every service returns to the transport layer. It
// serializes as the body of an error response; Cause stays server side.
type AppError struct {
	Type    ErrorType   `json:"type"`
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Cause   error       `json:"-"`
}

func newAppError(t ErrorType, code ErrorCode, message string) *AppError {
	return &AppError{Type: t, Code: code, Message: message}
}

func (e *AppError) Error() string {
	msg := e.Message
	if v, ok := e.Details.(ValidationErrors); ok && len(v.Errors) > 0 {
		fields := make([]string, len(v.Errors))
		for i, fe := range v.Errors {
			fields[i] = fe.Message
		}
		msg = strings.Join(fields, "; ")
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError carrying the same code, so sentinels survive Wrap.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e.Code == t.Code
}

// Wrap returns a copy of e carrying cause. Sentinels are never mutated.
func (e *AppError) Wrap(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

// WithDetails returns a copy of e carrying details.
func (e *AppError) WithDetails(details interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

// ToHTTPResponse returns the status and the {"error": ...} envelope for e.
func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.Type.HTTPStatus(), struct {
		Error *AppError `json:"error"`
	}{e}
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeValidation, code, message)
}

// NewValidationFieldErrors reports one entry per rejected field.
func NewValidationFieldErrors(errs []ValidationError) *AppError {
	return NewValidationError("Validation failed", ErrCodeValidationFailed).
		WithDetails(ValidationErrors{Errors: errs})
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeNotFound, code, message)
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return newAppError(ErrorTypeConflict, code, message)
}

func NewInternalError(message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, "INTERNAL_ERROR", message).Wrap(cause)
}

// NewStoreUnavailableError wraps a persistence failure for the named operation.
func NewStoreUnavailableError(op string, cause error) *AppError {
	err := ErrStoreUnavailable.Wrap(cause)
	err.Message = fmt.Sprintf("store unavailable during %s", op)
	return err
}

// StoreError passes AppErrors through and wraps anything else, such as a
// failed BEGIN or COMMIT, as StoreUnavailable for op.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := IsAppError(err); ok {
		return err
	}
	return NewStoreUnavailableError(op, err)
}

var (
	ErrInvalidAmount         = NewValidationError("gross amount must be greater than zero", ErrCodeInvalidAmount)
	ErrUnknownGateway        = NewValidationError("no fee schedule configured for gateway", ErrCodeUnknownGateway)
	ErrInvalidFeeSchedule    = NewValidationError("invalid gateway fee schedule", ErrCodeInvalidFeeSchedule)
	ErrUnknownCommissionTier = NewValidationError("unknown commission tier", ErrCodeUnknownCommissionTier)
	ErrInvalidTransition     = NewConflictError("status transition not allowed", ErrCodeInvalidTransition)
	ErrFailureReasonRequired = NewValidationError("failure reason is required for a failed payout", ErrCodeFailureReasonRequired)

	ErrTransactionNotFound = NewNotFoundError("Transaction not found", ErrCodeTransactionNotFound)
	ErrPayoutNotFound      = NewNotFoundError("Payout not found", ErrCodePayoutNotFound)
	ErrProfileNotFound     = NewNotFoundError("Creator payment profile not found", ErrCodeProfileNotFound)
	ErrProfileExists       = NewConflictError("Creator payment profile already exists", ErrCodeProfileExists)
	ErrDuplicateSale       = NewConflictError("a transaction already exists for this sale", ErrCodeDuplicateSale)
	ErrCaseNotFound        = NewNotFoundError("Open reconciliation case not found", ErrCodeCaseNotFound)

	ErrStoreUnavailable         = newAppError(ErrorTypeUnavailable, ErrCodeStoreUnavailable, "store unavailable")
	ErrConcurrentPayoutConflict = NewConflictError("transactions were grouped by a concurrent payout run", ErrCodeConcurrentPayoutConflict)
	ErrConcurrentUpdate         = NewConflictError("record was modified concurrently", ErrCodeConcurrentUpdate)
	ErrPayoutAmountMismatch     = NewConflictError("payout amount does not match its transactions", ErrCodePayoutAmountMismatch)
	ErrOrphanedRefund           = NewConflictError("refunded transaction was already included in a payout", ErrCodeOrphanedRefund)

	ErrRateLimited = newAppError(ErrorTypeRateLimited, ErrCodeTooManyRequests, "too many requests")
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
