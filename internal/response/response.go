package response

import (
	"encoding/json"
	"fmt"
)

// Response is the standardized API response envelope.
type Response struct {
	Data       json.RawMessage `json:"data"`
	Error      *ErrorBody      `json:"error,omitempty"`
	Pagination *Pagination     `json:"pagination,omitempty"`
	Metadata   Metadata        `json:"metadata"`
}

// ErrorBody represents a structured error response.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Pagination holds pagination information.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// Metadata includes request tracing and timing.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// ────────────────────────────────────────────────────────────────────────────
// Decoding
// ────────────────────────────────────────────────────────────────────────────

// Decode parses an envelope body. A non-2xx status or an error body is
// returned as *APIError; otherwise Data is unmarshalled into out (when non-nil).
func Decode(status int, body []byte, out interface{}) error {
	var env Response
	if err := json.Unmarshal(body, &env); err != nil {
		if status >= 300 {
			return &APIError{Status: status, Code: ErrInternal, Message: GetMessage(ErrInternal)}
		}
		return fmt.Errorf("decode envelope: %w", err)
	}

	if env.Error != nil || status >= 300 {
		apiErr := &APIError{Status: status, RequestID: env.Metadata.RequestID, Code: ErrInternal}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Fields = env.Error.Fields
		}
		if apiErr.Message == "" {
			apiErr.Message = GetMessage(apiErr.Code)
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// APIError is a failed backend call, carrying the envelope's error code.
type APIError struct {
	Status    int
	Code      ErrCode
	Message   string
	Fields    map[string]string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Temporary reports whether retrying the same call could succeed.
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Code == ErrRateLimitExceeded
}
