package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClassifier(t *testing.T, handler http.HandlerFunc, threshold float64) *HTTPClassifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClassifier(Config{
		BaseURL:             srv.URL,
		Timeout:             2 * time.Second,
		ConfidenceThreshold: threshold,
	}, zerolog.New(os.Stderr))
}

func TestClassify_Success(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Classification{
			Priority:     PriorityHigh,
			UrgencyScore: 92,
			Confidence:   0.95,
		})
	}, 0.7)

	cls, err := c.Classify(context.Background(), "dolor torácico agudo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cls.Priority != PriorityHigh || cls.UrgencyScore != 92 {
		t.Errorf("unexpected classification: %+v", cls)
	}
}

func TestClassify_LowConfidenceDefaultsToMedia(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Classification{
			Priority:     PriorityHigh,
			UrgencyScore: 88,
			Confidence:   0.4,
		})
	}, 0.7)

	cls, err := c.Classify(context.Background(), "texto ambiguo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cls.Priority != PriorityMedium {
		t.Errorf("expected Media below threshold, got %q", cls.Priority)
	}
}

func TestClassify_UnknownLabelNormalized(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Classification{
			Priority:   "Critical",
			Confidence: 0.9,
		})
	}, 0.7)

	cls, err := c.Classify(context.Background(), "texto")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cls.Priority != PriorityMedium {
		t.Errorf("expected unknown label normalized to Media, got %q", cls.Priority)
	}
}

func TestClassify_ServerError(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, 0.7)

	if _, err := c.Classify(context.Background(), "texto"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestClassify_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, 0.7)

	for i := 0; i < 5; i++ {
		c.Classify(context.Background(), "texto")
	}
	// Breaker is open now; requests fail fast without hitting the server.
	_, err := c.Classify(context.Background(), "texto")
	if err == nil {
		t.Fatal("expected error while breaker is open")
	}
}

func TestFallbackClassification(t *testing.T) {
	cls := FallbackClassification()
	if cls.Priority != PriorityMedium || cls.UrgencyScore != 0 {
		t.Errorf("unexpected fallback: %+v", cls)
	}
}
