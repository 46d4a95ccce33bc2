package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) APIError {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.Error
}

func TestProblemWrite_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrNotFound.WithMessage("comment not found").Write(rr, "rid-1")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
	e := decodeError(t, rr)
	if e.Code != "NOT_FOUND" || e.Message != "comment not found" || e.RequestID != "rid-1" {
		t.Fatalf("unexpected error body: %+v", e)
	}
}

func TestProblem_WithMessageEmptyKeepsDefault(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrInternal.WithMessage("").Write(rr, "")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Message != "Internal server error" {
		t.Fatalf("unexpected message %q", e.Message)
	}
}

func TestProblem_WithCode(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrConflict.WithCode("USER_ALREADY_EXISTS").Write(rr, "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "USER_ALREADY_EXISTS" || e.Message != "already exists" {
		t.Fatalf("unexpected error body: %+v", e)
	}
	if ErrConflict.Code != "CONFLICT" {
		t.Fatal("WithCode mutated the shared problem")
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusCreated, map[string]bool{"success": true})
	if rr.Code != http.StatusCreated || rr.Body.String() != "{\"success\":true}\n" {
		t.Fatalf("unexpected response %d %q", rr.Code, rr.Body.String())
	}
}
