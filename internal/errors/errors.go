// Package errors maps panelctl failures onto gofulmen error envelopes for the gateway
// and the CLI.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/panelops/panelctl/internal/api"
	"github.com/panelops/panelctl/internal/gate"
	"github.com/panelops/panelctl/internal/metrics"
	"github.com/panelops/panelctl/internal/observability"
	"github.com/panelops/panelctl/internal/server/middleware"
	"github.com/panelops/panelctl/internal/session"
)

// Error codes
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeConflict           = "CONFLICT"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeDatabase           = "DATABASE_ERROR"
	CodeExternalService    = "EXTERNAL_SERVICE_ERROR"
	CodeTimeout            = "TIMEOUT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeChallengeDismissed = "CHALLENGE_DISMISSED"
)

// NewNotFoundError builds a NOT_FOUND envelope.
func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

// NewMethodNotAllowedError builds a METHOD_NOT_ALLOWED envelope.
func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

func NewServiceUnavailableError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeServiceUnavailable, message)
}

// Wrap builds an envelope for code carrying err and the request's correlation ID.
func Wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(code, message)
	envelope = envelope.WithCorrelationID(correlationID(ctx))
	envelope = withWrappedError(envelope, err)
	return envelope
}

func WrapInvalidInput(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeInvalidInput, err, message)
}

func WrapDatabaseError(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return Wrap(ctx, CodeDatabase, err, message)
}

// FromError classifies gate, API and session failures. Unknown errors become INTERNAL_ERROR.
func FromError(ctx context.Context, err error) *errors.ErrorEnvelope {
	if err == nil {
		return EnsureEnvelope(nil)
	}

	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		return envelope
	}

	var (
		apiErr       *api.Error
		refreshErr   *gate.RefreshError
		challengeErr *gate.ChallengeError
		decorateErr  *gate.DecorateError
	)
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return Wrap(ctx, CodeTimeout, err, "upstream request timed out")
	case stderrors.Is(err, context.Canceled):
		return Wrap(ctx, CodeServiceUnavailable, err, "request cancelled")
	case stderrors.Is(err, session.ErrNotLoggedIn):
		return Wrap(ctx, CodeUnauthorized, err, "not logged in")
	case stderrors.As(err, &challengeErr):
		if stderrors.Is(err, gate.ErrChallengeDismissed) {
			return Wrap(ctx, CodeChallengeDismissed, err, "second-factor challenge dismissed")
		}
		return Wrap(ctx, CodeUnauthorized, err, "second-factor challenge failed")
	case stderrors.As(err, &refreshErr):
		return Wrap(ctx, CodeExternalService, err, "session refresh failed")
	case stderrors.As(err, &decorateErr):
		return Wrap(ctx, CodeInvalidInput, err, "request could not be prepared")
	case stderrors.As(err, &apiErr):
		return FromAPIError(ctx, apiErr)
	}
	return Wrap(ctx, CodeInternal, err, "unexpected error")
}

// FromAPIError maps a panel API error onto an envelope, keeping field errors as details.
func FromAPIError(ctx context.Context, apiErr *api.Error) *errors.ErrorEnvelope {
	code := CodeExternalService
	switch {
	case apiErr.StatusCode == http.StatusUnauthorized:
		code = CodeUnauthorized
	case apiErr.StatusCode == http.StatusForbidden:
		code = CodeForbidden
	case apiErr.StatusCode == http.StatusNotFound:
		code = CodeNotFound
	case apiErr.StatusCode == http.StatusConflict:
		code = CodeConflict
	case apiErr.StatusCode == http.StatusUnprocessableEntity:
		code = CodeValidationFailed
	case apiErr.StatusCode == http.StatusTooManyRequests:
		code = CodeRateLimited
	case apiErr.StatusCode >= 200 && apiErr.StatusCode < 300:
		code = CodeInvalidInput
	}

	message := apiErr.Message
	if message == "" {
		message = http.StatusText(apiErr.StatusCode)
	}
	envelope := Wrap(ctx, code, apiErr, message)
	if len(apiErr.Fields) > 0 {
		if updated, err := envelope.WithContext(map[string]interface{}{"fields": apiErr.Fields}); err == nil {
			envelope = updated
		}
	}
	return envelope
}

// correlationID prefers the request ID so gateway errors can be matched to access logs
// and to the upstream request.
func correlationID(ctx context.Context) string {
	if ctx != nil {
		if id := middleware.GetRequestID(ctx); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

// EnsureEnvelope returns err as an envelope, wrapping anything else as INTERNAL_ERROR.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	var envelope *errors.ErrorEnvelope
	switch {
	case err == nil:
		envelope = errors.NewErrorEnvelope(CodeInternal, "unexpected nil error")
	case stderrors.As(err, &envelope) && envelope != nil:
		return envelope
	default:
		envelope = withWrappedError(errors.NewErrorEnvelope(CodeInternal, "unexpected error"), err)
	}
	envelope, _ = envelope.WithSeverity(errors.SeverityHigh)
	return envelope
}

// HTTPStatusFromEnvelope resolves the HTTP status code corresponding to an error envelope.
func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	return HTTPStatusFromCode(envelope.Code)
}

var codeStatus = map[string]int{
	CodeInvalidInput:       http.StatusBadRequest,
	CodeValidationFailed:   http.StatusUnprocessableEntity,
	CodeNotFound:           http.StatusNotFound,
	CodeUnauthorized:       http.StatusUnauthorized,
	CodeChallengeDismissed: http.StatusUnauthorized,
	CodeForbidden:          http.StatusForbidden,
	CodeMethodNotAllowed:   http.StatusMethodNotAllowed,
	CodeConflict:           http.StatusConflict,
	CodePayloadTooLarge:    http.StatusRequestEntityTooLarge,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodeTimeout:            http.StatusGatewayTimeout,
	CodeExternalService:    http.StatusBadGateway,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
}

// HTTPStatusFromCode maps an envelope code to its HTTP status; unknown codes are 500.
func HTTPStatusFromCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func withWrappedError(envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	if envelope == nil || err == nil {
		return envelope
	}

	updated, updateErr := envelope.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	if updateErr != nil {
		return envelope
	}
	return updated
}

// ResponseDetails merges envelope details with context for the response body. Details
// win on key collisions.
func ResponseDetails(envelope *errors.ErrorEnvelope) map[string]interface{} {
	if envelope == nil || len(envelope.Details)+len(envelope.Context) == 0 {
		return nil
	}
	merged := make(map[string]interface{}, len(envelope.Details)+len(envelope.Context))
	for k, v := range envelope.Context {
		merged[k] = v
	}
	for k, v := range envelope.Details {
		merged[k] = v
	}
	return merged
}

// HTTPErrorDetail is the "error" member of an error response.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HTTPErrorResponse follows the panel's {success, message} envelope so gateway clients
// parse local and upstream failures the same way.
type HTTPErrorResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   HTTPErrorDetail `json:"error"`
}

// RespondWithError classifies err, logs it, counts it and writes the JSON response.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	if w == nil {
		return
	}
	ctx := context.Background()
	if r != nil {
		ctx = r.Context()
	}

	envelope := FromError(ctx, err)
	if envelope.CorrelationID == "" {
		envelope = envelope.WithCorrelationID(correlationID(ctx))
	}
	status := HTTPStatusFromEnvelope(envelope)

	logHTTPError(envelope, status)
	metrics.RecordError(envelope.Code, status)
	if r != nil {
		metrics.RecordErrorByEndpoint(middleware.EndpointLabel(r), envelope.Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Message: envelope.Message,
		Error: HTTPErrorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			Details:   ResponseDetails(envelope),
			RequestID: envelope.CorrelationID,
		},
	})
}

func logHTTPError(envelope *errors.ErrorEnvelope, status int) {
	logger := observability.Logger()
	if logger == nil {
		return
	}

	fields := make([]zap.Field, 0, len(envelope.Context)+4)
	fields = append(fields,
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", status),
		zap.String("request_id", envelope.CorrelationID))
	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}
	for k, v := range envelope.Context {
		fields = append(fields, zap.Any(k, v))
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error(envelope.Message, fields...)
	case status == http.StatusUnauthorized || status == http.StatusTooManyRequests:
		logger.Warn(envelope.Message, fields...)
	default:
		logger.Info(envelope.Message, fields...)
	}
}
