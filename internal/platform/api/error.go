package api

import "net/http"

type ErrorResponse struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// Problem is a client-facing failure: the status it is sent with and the
// code and message clients see.
type Problem struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

var (
	ErrUnauthorized = Problem{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "authentication required"}
	ErrInvalidInput = Problem{Status: http.StatusBadRequest, Code: "INVALID_INPUT", Message: "invalid input"}
	ErrNotFound     = Problem{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "not found"}
	ErrConflict     = Problem{Status: http.StatusConflict, Code: "CONFLICT", Message: "already exists"}
	ErrUnavailable  = Problem{Status: http.StatusServiceUnavailable, Code: "UNAVAILABLE", Message: "service unavailable"}
	ErrInternal     = Problem{Status: http.StatusInternalServerError, Code: "INTERNAL", Message: "Internal server error"}
)

// WithMessage returns p with msg replacing the default message. An empty msg
// keeps the default.
func (p Problem) WithMessage(msg string) Problem {
	if msg != "" {
		p.Message = msg
	}
	return p
}

// WithCode returns p under a more specific code.
func (p Problem) WithCode(code string) Problem {
	p.Code = code
	return p
}

// Write sends p in the {"error": {...}} envelope.
func (p Problem) Write(w http.ResponseWriter, requestID string) {
	WriteError(w, p.Status, p.Code, p.Message, requestID, p.Details)
}

func WriteError(w http.ResponseWriter, status int, code, message, requestID string, details map[string]any) {
	WriteJSON(w, status, ErrorResponse{Error: APIError{Code: code, Message: message, Details: details, RequestID: requestID}})
}
