package routes_test

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/JaimeStill/pathways/pkg/routes"
)

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}
}

func submissionGroup() routes.Group {
	return routes.Group{
		Prefix: "/submissions",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: status(http.StatusCreated)},
			{Method: "GET", Pattern: "/{id}", Handler: status(http.StatusOK)},
		},
		Children: []routes.Group{
			{
				Prefix: "/{id}",
				Routes: []routes.Route{
					{Method: "POST", Pattern: "/retry", Handler: status(http.StatusAccepted)},
				},
			},
		},
	}
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()
	routes.Register(mux, submissionGroup())

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"POST", "/submissions", http.StatusCreated},
		{"GET", "/submissions/123", http.StatusOK},
		{"POST", "/submissions/123/retry", http.StatusAccepted},
		{"DELETE", "/submissions/123", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestPatterns(t *testing.T) {
	got := routes.Patterns(submissionGroup())
	want := []string{
		"POST /submissions",
		"GET /submissions/{id}",
		"POST /submissions/{id}/retry",
	}

	if !slices.Equal(got, want) {
		t.Errorf("patterns: got %v, want %v", got, want)
	}
}
