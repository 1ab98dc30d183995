package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/lifecycle"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/validation"
)

// APIError is a non-2xx answer from the orders API.
type APIError struct {
	StatusCode int
	Detail     string
	Fields     []validation.FieldError
	Code       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message())
}

// Message is the text to show the user. Field errors are joined into one line.
func (e *APIError) Message() string {
	if len(e.Fields) > 0 {
		return validation.Summary(e.Fields)
	}
	if e.Detail != "" {
		return e.Detail
	}
	return http.StatusText(e.StatusCode)
}

func (e *APIError) IsValidation() bool {
	return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
}

func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func (e *APIError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

func (e *APIError) IsConflict() bool { return e.StatusCode == http.StatusConflict }

// IsOTPRejected reports a wrong or already used delivery OTP.
func (e *APIError) IsOTPRejected() bool { return e.Code == "invalid_otp" }

// Unwrap lets errors.Is(err, lifecycle.ErrOTPRejected) match OTP rejections.
func (e *APIError) Unwrap() error {
	if e.IsOTPRejected() {
		return lifecycle.ErrOTPRejected
	}
	return nil
}

// parseError decodes {"detail": "..."} and {"detail": [{loc,msg,type}]}
// bodies. Anything else is kept verbatim.
func parseError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
		Code   string          `json:"code"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		apiErr.Detail = strings.TrimSpace(string(body))
		return apiErr
	}
	apiErr.Code = envelope.Code

	var detail string
	if err := json.Unmarshal(envelope.Detail, &detail); err == nil {
		apiErr.Detail = detail
		return apiErr
	}
	var fields []validation.FieldError
	if err := json.Unmarshal(envelope.Detail, &fields); err == nil {
		apiErr.Fields = fields
		return apiErr
	}
	apiErr.Detail = string(envelope.Detail)
	return apiErr
}
