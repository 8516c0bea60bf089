package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicClient struct {
	client    *anthropic.Client
	model     anthropic.Model
	modelName string
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{
		client:    &client,
		model:     anthropic.ModelClaudeSonnet4_5,
		modelName: "claude-sonnet-4-5",
	}
}

func (c *AnthropicClient) Name() string { return c.modelName }

func (c *AnthropicClient) Generate(ctx context.Context, system, user string, cfg GenerateConfig) (string, *Usage, error) {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(cfg.Temperature)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := c.client.Messages.New(callCtx, params)
		cancel()
		if err == nil {
			var text strings.Builder
			for _, block := range resp.Content {
				if block.Type == "text" {
					text.WriteString(block.Text)
				}
			}
			if text.Len() == 0 {
				return "", nil, fmt.Errorf("no response from anthropic")
			}
			usage := &Usage{
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
				Model:        c.modelName,
			}
			return text.String(), usage, nil
		}
		lastErr = err

		if !anthropicRetryable(err, cfg.RetryOn529) {
			return "", nil, fmt.Errorf("anthropic API error: %w", err)
		}
		if attempt == maxRetries {
			break
		}
		wait := time.Duration(1<<attempt) * time.Second
		slog.Warn("anthropic call failed, retrying",
			"attempt", attempt+1, "max_attempts", maxRetries+1, "wait", wait, "error", err)
		if err := sleepCtx(ctx, wait); err != nil {
			return "", nil, err
		}
	}
	return "", nil, fmt.Errorf("anthropic API error after %d attempts: %w", maxRetries+1, lastErr)
}

// anthropicRetryable: 429/500/503 plus timeouts and connection drops.
// 529 (overloaded) joins the set only for phases that opt in.
func anthropicRetryable(err error, on529 bool) bool {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 429, 500, 503:
			return true
		case 529:
			return on529
		default:
			return false
		}
	}
	if retryableMessage(err) {
		return true
	}
	if on529 && strings.Contains(strings.ToLower(err.Error()), "overloaded") {
		return true
	}
	return false
}

// SummarizeArticle is the fallback path for per-article summarization when
// the OpenAI summarizer fails.
func (c *AnthropicClient) SummarizeArticle(input ArticleSummaryInput) (*ArticleSummaryResult, error) {
	resp, err := c.client.Messages.New(context.Background(), anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: summaryPromptFor(input.Category)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(articleSummaryUserPrompt(input))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("no response from anthropic")
	}

	content := cleanJSONResponse(resp.Content[0].Text)

	var parsed struct {
		Summary string  `json:"summary"`
		Quality float64 `json:"quality"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, content: %s", err, content)
	}

	return &ArticleSummaryResult{
		Summary:   parsed.Summary,
		Quality:   parsed.Quality,
		ModelUsed: c.modelName,
	}, nil
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// Some model responses include extra prose around JSON.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
