package validate

import (
	"net/http"
	"strings"
	"time"
)

// HTTPStatusFor maps one validation error code and severity to an HTTP
// status code. The mapping is the single place this decision is made.
func HTTPStatusFor(code string, severity Severity) int {
	switch {
	case strings.HasPrefix(code, "RATE_LIMIT"):
		return http.StatusTooManyRequests
	case strings.HasPrefix(code, "SIZE"), strings.HasSuffix(code, "TOO_LARGE"):
		return http.StatusRequestEntityTooLarge
	case strings.HasPrefix(code, "XSS"), strings.HasPrefix(code, "SQL_INJECTION"),
		strings.HasPrefix(code, "MALICIOUS"):
		return http.StatusForbidden
	case severity == SeverityCritical:
		return http.StatusForbidden
	case strings.HasPrefix(code, "MISSING"), strings.HasPrefix(code, "INVALID_FORMAT"),
		strings.HasPrefix(code, "INVALID_DATA_TYPE"):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// StatusForResult maps a whole failed result to an HTTP status. Critical
// errors dominate; otherwise the first error with a specific mapping
// decides, and anything else is a plain bad request. Valid results map
// to 200.
func StatusForResult(result *Result) int {
	if result == nil || result.IsValid() {
		return http.StatusOK
	}
	if result.HasCriticalErrors() {
		return http.StatusForbidden
	}
	for _, e := range result.Errors {
		if status := HTTPStatusFor(e.Code, e.Severity); status != http.StatusBadRequest {
			return status
		}
	}
	return http.StatusBadRequest
}

// RetryAfterSeconds extracts the retry hint from a rate-limited result,
// or ok=false when none of the errors carry one.
func RetryAfterSeconds(result *Result) (int, bool) {
	if result == nil {
		return 0, false
	}
	for _, e := range result.Errors {
		if !strings.HasPrefix(e.Code, "RATE_LIMIT") || e.Metadata == nil {
			continue
		}
		if v, ok := e.Metadata["retry_after"]; ok {
			switch n := v.(type) {
			case float64:
				return int(n + 0.999), true
			case int:
				return n, true
			}
		}
	}
	return 0, false
}

// ErrorDetail is the per-error slice of an ErrorResponse.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Severity  string `json:"severity"`
	Field     string `json:"field,omitempty"`
	Validator string `json:"validator,omitempty"`
}

// ErrorBody is the error envelope inside an ErrorResponse.
type ErrorBody struct {
	Code      string        `json:"code"`
	Message   string        `json:"message"`
	Timestamp string        `json:"timestamp"`
	Details   []ErrorDetail `json:"details,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Path      string        `json:"path,omitempty"`
}

// ErrorResponse is the wire shape returned to clients for failed
// validations.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// NewErrorResponse builds the client-facing response for a failed result.
// In production mode the per-error details and messages are masked so
// payload fragments never reach the client.
func NewErrorResponse(result *Result, path string, production bool) ErrorResponse {
	body := ErrorBody{
		Code:      "VALIDATION_FAILED",
		Message:   "request validation failed",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: result.RequestID,
		Path:      path,
	}
	if len(result.Errors) > 0 {
		body.Code = result.Errors[0].Code
	}

	if production {
		return ErrorResponse{Error: body}
	}

	body.Details = make([]ErrorDetail, 0, len(result.Errors))
	for _, e := range result.Errors {
		body.Details = append(body.Details, ErrorDetail{
			Code:      e.Code,
			Message:   e.Message,
			Severity:  e.Severity.String(),
			Field:     e.Field,
			Validator: e.Validator,
		})
	}
	return ErrorResponse{Error: body}
}
