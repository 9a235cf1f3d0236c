package handlers_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/pathways/pkg/handlers"
)

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name   string
		status int
		data   any
	}{
		{"200 with map", http.StatusOK, map[string]string{"key": "value"}},
		{"202 with struct", http.StatusAccepted, struct{ Progress int }{Progress: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handlers.RespondJSON(rec, tt.status, tt.data)

			if rec.Code != tt.status {
				t.Errorf("status: got %d, want %d", rec.Code, tt.status)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content-type: got %s", ct)
			}

			var parsed map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()

	handlers.RespondError(rec, logger, http.StatusBadRequest, errors.New("invalid input"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}

	var parsed map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if parsed["error"] != "invalid input" {
		t.Errorf("error: got %s, want invalid input", parsed["error"])
	}
}

type payload struct {
	Name string `json:"name"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		max     int64
		want    string
		wantErr bool
	}{
		{"valid", `{"name":"Ada"}`, 1024, "Ada", false},
		{"malformed", `{"name":`, 1024, "", true},
		{"unknown field", `{"nom":"Ada"}`, 1024, "", true},
		{"too large", `{"name":"Ada Lovelace"}`, 8, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))

			got, err := handlers.DecodeJSON[payload](rec, req, tt.max)
			if tt.wantErr {
				if !errors.Is(err, handlers.ErrInvalidBody) {
					t.Errorf("error = %v, want ErrInvalidBody", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeJSON error: %v", err)
			}
			if got.Name != tt.want {
				t.Errorf("name: got %s, want %s", got.Name, tt.want)
			}
		})
	}
}
