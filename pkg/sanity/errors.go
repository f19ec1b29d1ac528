package sanity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingQuery is returned when a request is built without any query text.
	ErrMissingQuery = errors.New("sanity: missing query")
	// ErrInvalidProjectID is returned by New for an empty or malformed project id.
	ErrInvalidProjectID = errors.New("sanity: invalid project id")
	// ErrInvalidDataset is returned by New for an empty or malformed dataset name.
	ErrInvalidDataset = errors.New("sanity: invalid dataset")
	// ErrInvalidParam is returned when a query parameter name is not a GROQ identifier.
	ErrInvalidParam = errors.New("sanity: invalid query parameter")
)

// TransportError reports a request that never produced an HTTP response.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sanity: request %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a response body that could not be decoded as JSON.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("sanity: decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode  int
	Description string
	Body        string
}

func (e *StatusError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("sanity: status %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("sanity: status %d body: %s", e.StatusCode, e.Body)
}

const maxErrorBodyBytes = 512

func newStatusError(code int, body []byte) *StatusError {
	return &StatusError{
		StatusCode:  code,
		Description: errorDescription(body),
		Body:        bodySnippet(body),
	}
}

// errorDescription extracts the message from either of the error shapes the API uses:
// {"error":{"description":"..."}} for query errors and {"error":"...","message":"..."} otherwise.
func errorDescription(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(envelope.Message); msg != "" {
		return msg
	}
	if len(envelope.Error) == 0 {
		return ""
	}
	var detail struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err == nil && detail.Description != "" {
		return strings.TrimSpace(detail.Description)
	}
	var plain string
	if err := json.Unmarshal(envelope.Error, &plain); err == nil {
		return strings.TrimSpace(plain)
	}
	return ""
}

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyBytes {
		return s[:maxErrorBodyBytes] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
