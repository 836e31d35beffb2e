package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kestrelworks/crewdeck/internal/domain"
)

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", fmt.Errorf("get task x: %w", domain.ErrNotFound), http.StatusNotFound},
		{"conflict", fmt.Errorf("%w: title taken", domain.ErrConflict), http.StatusConflict},
		{"invalid state", fmt.Errorf("%w: task is not in inbox", domain.ErrInvalidState), http.StatusConflict},
		{"skill mismatch", fmt.Errorf("%w: missing security", domain.ErrSkillMismatch), http.StatusUnprocessableEntity},
		{"unauthorized", fmt.Errorf("%w: agent may not propose", domain.ErrUnauthorized), http.StatusForbidden},
		{"validation", fmt.Errorf("%w: title is required", domain.ErrValidation), http.StatusBadRequest},
		{"bad uuid", errors.New(`ERROR: invalid input syntax for type uuid (SQLSTATE 22P02)`), http.StatusBadRequest},
		{"unique violation", errors.New(`ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)`), http.StatusConflict},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, tt.err, "fallback")
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var body errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error == "" {
				t.Error("error message must not be empty")
			}
		})
	}
}

func TestTrimSentinel(t *testing.T) {
	err := fmt.Errorf("%w: task is not in inbox", domain.ErrInvalidState)
	if got := trimSentinel(err, domain.ErrInvalidState); got != "task is not in inbox" {
		t.Errorf("trimSentinel = %q", got)
	}
}

func TestQueryLimit(t *testing.T) {
	tests := []struct {
		raw  string
		def  int
		want int
	}{
		{"", 50, 50},
		{"10", 50, 10},
		{"0", 50, 0},
		{"-3", 50, 50},
		{"abc", 50, 50},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/?limit="+tt.raw, nil)
		if got := queryLimit(r, tt.def); got != tt.want {
			t.Errorf("queryLimit(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
