package module_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/pathways/pkg/module"
)

func TestNewInvalidPrefixPanics(t *testing.T) {
	for _, prefix := range []string{"", "api", "/api/v1"} {
		t.Run(prefix, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("expected panic for prefix %q", prefix)
				}
			}()
			module.New(prefix, http.NewServeMux())
		})
	}
}

func TestServePrefixStripping(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		path     string
		wantPath string
	}{
		{"nested", "GET /submissions/{id}", "/api/submissions/abc", "/submissions/abc"},
		{"root", "GET /", "/api", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var received string
			mux := http.NewServeMux()
			mux.HandleFunc(tt.pattern, func(w http.ResponseWriter, r *http.Request) {
				received = r.URL.Path
			})

			m := module.New("/api", mux)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", tt.path, nil)
			m.Serve(rec, req)

			if received != tt.wantPath {
				t.Errorf("inner path: got %s, want %s", received, tt.wantPath)
			}
			if req.URL.Path != tt.path {
				t.Errorf("outer request mutated: %s", req.URL.Path)
			}
		})
	}
}

func TestModuleMiddleware(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {})

	m := module.New("/api", mux)

	var called bool
	m.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	})

	m.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/api", nil))

	if !called {
		t.Error("module middleware should have been called")
	}
}

func TestRouter(t *testing.T) {
	api := http.NewServeMux()
	api.HandleFunc("GET /submissions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("api:" + r.PathValue("id")))
	})

	stages := http.NewServeMux()
	stages.HandleFunc("POST /transcribe", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("stages"))
	})

	router := module.NewRouter()
	router.Mount(module.New("/api", api))
	router.Mount(module.New("/stages", stages))
	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{"api module", "GET", "/api/submissions/42", http.StatusOK, "api:42"},
		{"trailing slash", "GET", "/api/submissions/42/", http.StatusOK, "api:42"},
		{"stages module", "POST", "/stages/transcribe", http.StatusOK, "stages"},
		{"native fallback", "GET", "/healthz", http.StatusOK, "ok"},
		{"similar prefix", "GET", "/apix/submissions/42", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body: got %s, want %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
