package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/charforge/asset-service/config"
	"github.com/charforge/asset-service/internal/domain/model"
	"github.com/charforge/asset-service/internal/metrics"
)

const analysisPrompt = `You are an asset cataloguer for a character creation tool.
Describe the game asset at the following reference: %s

Respond with a single JSON object, no prose, with these fields:
{"name": string, "category": string, "description": string, "style": string,
 "tags": [string], "dominant_colors": [string]}`

// GeminiAnalyzer implements Analyzer using Google's Gemini API.
type GeminiAnalyzer struct {
	client     *genai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
}

// NewGeminiAnalyzer creates a Gemini-backed analyzer. Outgoing calls are
// shaped by a client-side rate limiter so a hot cache-miss burst cannot trip
// the upstream quota.
func NewGeminiAnalyzer(ctx context.Context, cfg config.AnalyzerConfig) (*GeminiAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	if cfg.Model == "" {
		return nil, errors.New("gemini model name cannot be empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	limit := rate.Limit(cfg.Rate)
	if cfg.Rate <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &GeminiAnalyzer{
		client:     client,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		limiter:    rate.NewLimiter(limit, burst),
	}, nil
}

// Analyze calls Gemini with exponential backoff and jitter. Transient errors
// are retried up to the configured budget; rate-limit rejections and
// malformed responses are returned immediately with their classification.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, assetRef string) (model.AssetMetadata, error) {
	if assetRef == "" {
		return model.AssetMetadata{}, fmt.Errorf("%w: empty asset reference", ErrInvalidResponse)
	}

	prompt := fmt.Sprintf(analysisPrompt, assetRef)
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			metrics.RecordAnalyzerCall(time.Since(start), "cancelled")
			return model.AssetMetadata{}, err
		}

		meta, err := g.callOnce(ctx, prompt)
		if err == nil {
			metrics.RecordAnalyzerCall(time.Since(start), "success")
			return meta, nil
		}
		lastErr = err

		if errors.Is(err, ErrRateLimited) {
			metrics.RecordAnalyzerCall(time.Since(start), "rate_limited")
			return model.AssetMetadata{}, err
		}
		if errors.Is(err, ErrInvalidResponse) {
			metrics.RecordAnalyzerCall(time.Since(start), "invalid")
			return model.AssetMetadata{}, err
		}
		if attempt == g.maxRetries {
			break
		}

		delay := g.backoff(attempt)
		log.Warn().
			Err(err).
			Str("asset_ref", assetRef).
			Int("attempt", attempt+1).
			Dur("retry_in", delay).
			Msg("Gemini call failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			metrics.RecordAnalyzerCall(time.Since(start), "cancelled")
			return model.AssetMetadata{}, ctx.Err()
		}
	}

	metrics.RecordAnalyzerCall(time.Since(start), "error")
	return model.AssetMetadata{}, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (g *GeminiAnalyzer) callOnce(ctx context.Context, prompt string) (model.AssetMetadata, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		if isRateLimitErr(err) {
			return model.AssetMetadata{}, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return model.AssetMetadata{}, err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return model.AssetMetadata{}, fmt.Errorf("%w: no candidates", ErrInvalidResponse)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return model.AssetMetadata{}, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}

	var meta model.AssetMetadata
	if err := json.Unmarshal([]byte(extractJSON(text)), &meta); err != nil {
		return model.AssetMetadata{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if meta.Empty() {
		return model.AssetMetadata{}, fmt.Errorf("%w: no analyzed fields", ErrInvalidResponse)
	}
	return meta, nil
}

// backoff returns the delay before the next retry: exponential with jitter.
func (g *GeminiAnalyzer) backoff(attempt int) time.Duration {
	base := g.retryDelay
	if base <= 0 {
		base = time.Second
	}
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	jitter := time.Duration(rand.Int63n(int64(base)))
	return delay + jitter
}

// isRateLimitErr classifies quota rejections from the Gemini API.
func isRateLimitErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// extractJSON strips markdown code fences the model sometimes wraps its JSON
// in, and trims to the outermost object.
func extractJSON(text string) string {
	if idx := strings.Index(text, "{"); idx >= 0 {
		if end := strings.LastIndex(text, "}"); end > idx {
			return text[idx : end+1]
		}
	}
	return text
}
