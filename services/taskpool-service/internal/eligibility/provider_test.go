package eligibility

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPProviderCanSupport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/schedule/eligibility" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("worker_id"); got != "w1" {
			t.Errorf("unexpected worker_id %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"worker_id":"w1","can_support_now":true}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ok, err := p.CanSupport(ctx, "w1", "2024-03-11", "2024-03-15")
	if err != nil {
		t.Fatalf("can support: %v", err)
	}
	if !ok {
		t.Fatalf("expected eligible")
	}
}

func TestHTTPProviderNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL)
	if _, err := p.CanSupport(context.Background(), "w1", "2024-03-11", "2024-03-15"); err == nil {
		t.Fatalf("expected error on non-200 response")
	}
}
