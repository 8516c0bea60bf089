package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-3-flash-preview"

type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient builds a Gemini gateway. The HTTP timeout is generous
// because HIGH thinking responses can take minutes.
func NewGeminiClient(ctx context.Context, apiKey string, timeout time.Duration) (*GeminiClient, error) {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiClient{client: client, modelName: defaultGeminiModel}, nil
}

func (c *GeminiClient) Name() string { return c.modelName }

func (c *GeminiClient) Generate(ctx context.Context, system, user string, cfg GenerateConfig) (string, *Usage, error) {
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	// Thinking models require temperature 1.0; a fixed seed keeps runs
	// reproducible-ish despite it.
	temp := cfg.Temperature
	if temp <= 0 {
		temp = 1.0
	}
	config.Temperature = genai.Ptr(float32(temp))
	if cfg.Seed != 0 {
		config.Seed = genai.Ptr(cfg.Seed)
	}
	if cfg.MaxTokens > 0 {
		config.MaxOutputTokens = int32(cfg.MaxTokens)
	}
	if cfg.JSONResponse {
		config.ResponseMIMEType = "application/json"
	}
	if cfg.ThinkingLevel != "" {
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingLevel: parseThinkingLevel(cfg.ThinkingLevel),
		}
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{genai.NewPartFromText(user)},
	}}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := c.client.Models.GenerateContent(ctx, c.modelName, contents, config)
		if err == nil {
			text := resp.Text()
			if text == "" {
				return "", nil, fmt.Errorf("empty response from gemini")
			}
			return text, geminiUsage(resp, c.modelName), nil
		}
		lastErr = err

		wait, retryable := geminiBackoff(attempt, err)
		if !retryable {
			return "", nil, fmt.Errorf("gemini API error: %w", err)
		}
		if attempt == maxRetries {
			break
		}
		slog.Warn("gemini call failed, retrying",
			"attempt", attempt+1, "max_attempts", maxRetries+1, "wait", wait, "error", err)
		if err := sleepCtx(ctx, wait); err != nil {
			return "", nil, err
		}
	}
	return "", nil, fmt.Errorf("gemini API error after %d attempts: %w", maxRetries+1, lastErr)
}

// geminiBackoff differentiates rate limiting from server pressure:
// 429/quota errors back off aggressively (2^n), server errors lighter
// (1.5^n), both with jitter. 400-class argument and auth errors are fatal.
func geminiBackoff(attempt int, err error) (time.Duration, bool) {
	msg := strings.ToLower(err.Error())
	rateLimited := strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted")
	if rateLimited {
		wait := math.Pow(2, float64(attempt)) + rand.Float64()
		return time.Duration(wait * float64(time.Second)), true
	}
	serverBusy := strings.Contains(msg, "500") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "internal")
	if serverBusy || retryableMessage(err) {
		wait := math.Pow(1.5, float64(attempt)) + rand.Float64()
		return time.Duration(wait * float64(time.Second)), true
	}
	return 0, false
}

// geminiUsage normalizes token metadata. Thought tokens are billed as
// output, so they count toward OutputTokens.
func geminiUsage(resp *genai.GenerateContentResponse, model string) *Usage {
	u := &Usage{Model: model}
	if resp.UsageMetadata == nil {
		return u
	}
	u.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
	u.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount) +
		int64(resp.UsageMetadata.ThoughtsTokenCount)
	return u
}

func parseThinkingLevel(level string) genai.ThinkingLevel {
	switch strings.ToUpper(level) {
	case "MINIMAL":
		return genai.ThinkingLevelMinimal
	case "LOW":
		return genai.ThinkingLevelLow
	case "MEDIUM":
		return genai.ThinkingLevelMedium
	default:
		return genai.ThinkingLevelHigh
	}
}
