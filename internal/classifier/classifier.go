// Package classifier calls the external SDG text classifier and decodes its scores.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/JaimeStill/sdgindex/internal/labels"
)

// maxResponseSize bounds the classifier response body.
const maxResponseSize = 1 << 20

// Client classifies abstracts. Connect verifies the classifier is reachable
// before a run; Classify returns raw predictions in the classifier's order.
type Client interface {
	Connect(ctx context.Context) error
	Classify(ctx context.Context, text string) ([]labels.Prediction, error)
}

// HTTP is a Client for a Gradio-style predict endpoint.
type HTTP struct {
	cfg    Config
	client *http.Client
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// New creates an HTTP classifier client. Consecutive transport failures open
// the circuit breaker, after which calls fail fast with ErrUnavailable until
// the cooldown elapses.
func New(cfg Config, logger *slog.Logger) *HTTP {
	logger = logger.With("system", "classifier")

	settings := gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldownDuration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnexpectedResponse) || errors.Is(err, ErrEmptyText)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &HTTP{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.TimeoutDuration()},
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

// Connect checks the classifier health endpoint.
func (c *HTTP) Connect(ctx context.Context) error {
	if !c.cfg.Configured() {
		return ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(c.cfg.HealthPath), nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: health check status %d", ErrUnavailable, resp.StatusCode)
	}

	c.logger.Info("classifier connected", "endpoint", c.cfg.Endpoint)
	return nil
}

// Classify sends text to the predict endpoint and returns the label scores
// in the order the classifier emitted them.
func (c *HTTP) Classify(ctx context.Context, text string) ([]labels.Prediction, error) {
	if !c.cfg.Configured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	out, err := c.cb.Execute(func() (any, error) {
		return c.predict(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, err
	}
	return out.([]labels.Prediction), nil
}

func (c *HTTP) predict(ctx context.Context, text string) ([]labels.Prediction, error) {
	body, err := json.Marshal(map[string]any{"data": []string{text}})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.cfg.PredictPath), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, fmt.Errorf("%w: predict status %d", ErrUnavailable, resp.StatusCode)
	}

	return DecodeScores(io.LimitReader(resp.Body, maxResponseSize))
}

func (c *HTTP) authorize(req *http.Request) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
}

func (c *HTTP) url(path string) string {
	return strings.TrimSuffix(c.cfg.Endpoint, "/") + "/" + strings.TrimPrefix(path, "/")
}

// DecodeScores reads a predict response of the form {"data": [{label: score, ...}]}
// or {"data": {label: score, ...}}. Predictions keep the key order of the scores
// object. Scores that are not numbers decode as NaN.
func DecodeScores(r io.Reader) ([]labels.Prediction, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}

	raw := bytes.TrimSpace(envelope.Data)
	if len(raw) > 0 && raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("%w: empty data", ErrUnexpectedResponse)
		}
		raw = bytes.TrimSpace(items[0])
	}

	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("%w: scores are not an object", ErrUnexpectedResponse)
	}

	return orderedScores(raw)
}

func orderedScores(raw []byte) ([]labels.Prediction, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}

	preds := make([]labels.Prediction, 0, labels.MaxLabel)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
		}
		key, _ := tok.(string)

		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
		}

		preds = append(preds, labels.Prediction{Label: key, Score: score(v)})
	}

	return preds, nil
}

func score(v any) float64 {
	switch n := v.(type) {
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return math.NaN()
}
