// Package ai wraps the external clinical-text classification service. The
// service is treated as an opaque oracle: it receives raw clinical text and
// returns a priority label, an urgency score and optional extracted fields.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Priority labels produced by the classifier.
const (
	PriorityHigh   = "Alta"
	PriorityMedium = "Media"
	PriorityLow    = "Baja"
)

// Classification is the classifier's verdict for one referral.
type Classification struct {
	Priority        string            `json:"prioridad"`
	UrgencyScore    float64           `json:"score_urgencia"`
	Confidence      float64           `json:"confianza"`
	ExtractedFields map[string]string `json:"campos_extraidos,omitempty"`
}

// Classifier asks the AI service to triage clinical text.
type Classifier interface {
	Classify(ctx context.Context, clinicalText string) (*Classification, error)
}

// Config holds the HTTP client settings for the classifier service.
type Config struct {
	BaseURL             string
	Timeout             time.Duration
	ConfidenceThreshold float64
}

// HTTPClassifier calls the classification service over HTTP, guarded by a
// circuit breaker so a misbehaving model endpoint cannot stall intake.
type HTTPClassifier struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

func NewHTTPClassifier(cfg Config, logger zerolog.Logger) *HTTPClassifier {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ai-classifier",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &HTTPClassifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}
}

type classifyRequest struct {
	Text string `json:"texto_clinico"`
}

// Classify sends the clinical text for triage. Verdicts below the confidence
// threshold are downgraded to Media, matching the intake rule that an unsure
// model must not drive urgency.
func (c *HTTPClassifier) Classify(ctx context.Context, clinicalText string) (*Classification, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.classify(ctx, clinicalText)
	})
	if err != nil {
		return nil, err
	}

	cls := result.(*Classification)
	if cls.Confidence < c.cfg.ConfidenceThreshold {
		c.logger.Info().
			Float64("confidence", cls.Confidence).
			Float64("threshold", c.cfg.ConfidenceThreshold).
			Msg("classification below confidence threshold, defaulting priority to Media")
		cls.Priority = PriorityMedium
	}
	if cls.Priority != PriorityHigh && cls.Priority != PriorityMedium && cls.Priority != PriorityLow {
		cls.Priority = PriorityMedium
	}
	return cls, nil
}

func (c *HTTPClassifier) classify(ctx context.Context, clinicalText string) (*Classification, error) {
	body, err := json.Marshal(classifyRequest{Text: clinicalText})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var cls Classification
	if err := json.NewDecoder(resp.Body).Decode(&cls); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	return &cls, nil
}

// FallbackClassification is used when the classifier is unavailable; intake
// must not fail just because triage did.
func FallbackClassification() *Classification {
	return &Classification{Priority: PriorityMedium, UrgencyScore: 0, Confidence: 0}
}
