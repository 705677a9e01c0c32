package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/collections/{jobID}/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodGet, "/api/collections/"+id+"/status", http.NoBody)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	}

	got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/collections/{jobID}/status", "404"))
	if got < 2 {
		t.Errorf("expected both requests under one route label, got %f", got)
	}
}

func TestRegister_Idempotent(t *testing.T) {
	Register()
	Register()
	if testutil.CollectAndCount(HallucinatedHeadingsTotal) != 1 {
		t.Error("expected hallucinated heading counter to be collectable")
	}
}
