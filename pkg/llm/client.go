package llm

import (
	"context"
	"strings"
	"time"
)

// GenerateConfig tunes one provider call. Zero values fall back to the
// provider's defaults.
type GenerateConfig struct {
	MaxTokens     int
	Temperature   float64
	Seed          int32
	Timeout       time.Duration
	MaxRetries    int
	ThinkingLevel string
	JSONResponse  bool
	// RetryOn529 adds the Anthropic overloaded status to the retryable
	// set. Only the dedup and synthesis phases enable it.
	RetryOn529 bool
}

// Usage is normalized token accounting across providers. Model records
// which provider actually produced the result.
type Usage struct {
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	Model        string `json:"model"`
}

// Gateway wraps one LLM provider: a single prompt in, raw text out, with
// transport-level retry handled inside.
type Gateway interface {
	Generate(ctx context.Context, system, user string, cfg GenerateConfig) (string, *Usage, error)
	Name() string
}

// retryableMessage matches timeout and network failures that are worth
// retrying regardless of provider.
func retryableMessage(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "connection")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
