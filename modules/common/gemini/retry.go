package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"wrap-render-server/modules/common/config"
)

const (
	maxRetriesPerKey = 3
	rateLimitBackoff = 2 * time.Second
)

// Caller - one credential able to issue GenerateContent
type Caller struct {
	Label  string
	Models *genai.Models
}

// Pool - ordered credentials tried in turn when one hits a rate limit
type Pool struct {
	callers []Caller
	backoff time.Duration
	log     zerolog.Logger
}

// NewPool - one genai client per API key, or one Vertex AI client when no keys are set
func NewPool(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Pool, error) {
	var callers []Caller

	for i, apiKey := range cfg.GeminiAPIKeys {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client for key #%d: %w", i+1, err)
		}
		callers = append(callers, Caller{Label: fmt.Sprintf("key #%d", i+1), Models: client.Models})
	}

	if len(callers) == 0 && cfg.VertexAIProject != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			Project:  cfg.VertexAIProject,
			Location: cfg.VertexAILocation,
			Backend:  genai.BackendVertexAI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
		}
		log.Info().Msgf("✅ [Gemini] Vertex AI client for project=%s, location=%s", cfg.VertexAIProject, cfg.VertexAILocation)
		callers = append(callers, Caller{Label: "vertex", Models: client.Models})
	}

	if len(callers) == 0 {
		return nil, fmt.Errorf("no Gemini credentials configured")
	}

	return &Pool{callers: callers, backoff: rateLimitBackoff, log: log}, nil
}

// Size - number of credentials in rotation
func (p *Pool) Size() int {
	return len(p.callers)
}

// GenerateContent - retries each credential up to three times on rate limits,
// then moves to the next one. Any other error is returned immediately.
func (p *Pool) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	genConfig *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	var lastErr error

	for _, caller := range p.callers {
		for attempt := 1; attempt <= maxRetriesPerKey; attempt++ {
			result, err := caller.Models.GenerateContent(ctx, model, contents, genConfig)
			if err == nil {
				if attempt > 1 {
					p.log.Info().Msgf("✅ [Gemini Retry] Success with %s (attempt %d/%d)", caller.Label, attempt, maxRetriesPerKey)
				}
				return result, nil
			}

			lastErr = err
			if !IsRateLimited(err) {
				return nil, err
			}

			p.log.Warn().Msgf("⚠️  [Gemini Retry] %s hit rate limit on attempt %d/%d", caller.Label, attempt, maxRetriesPerKey)
			if attempt < maxRetriesPerKey {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(p.backoff):
				}
			}
		}
		p.log.Warn().Msgf("⚠️  [Gemini Retry] %s exhausted, trying next credential", caller.Label)
	}

	return nil, fmt.Errorf("all %d Gemini credentials exhausted (%d attempts each), last error: %w",
		len(p.callers), maxRetriesPerKey, lastErr)
}

// IsRateLimited - 429 / quota errors from the Gemini API
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quota")
}

// FirstImage - inline image bytes of the first candidate
func FirstImage(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, fmt.Errorf("no image data in response")
}
