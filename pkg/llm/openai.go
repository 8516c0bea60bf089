package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIClient struct {
	client    *openai.Client
	model     openai.ChatModel
	modelName string
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{
		client:    &client,
		model:     openai.ChatModelGPT4oMini,
		modelName: "gpt-4o-mini",
	}
}

func (c *OpenAIClient) SummarizeArticle(input ArticleSummaryInput) (*ArticleSummaryResult, error) {
	resp, err := c.client.Chat.Completions.New(context.Background(), openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summaryPromptFor(input.Category)),
			openai.UserMessage(articleSummaryUserPrompt(input)),
		},
	})

	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	content := cleanJSONResponse(resp.Choices[0].Message.Content)

	var parsed struct {
		Summary string  `json:"summary"`
		Quality float64 `json:"quality"`
	}

	err = json.Unmarshal([]byte(content), &parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, content: %s", err, content)
	}

	return &ArticleSummaryResult{
		Summary:   parsed.Summary,
		Quality:   parsed.Quality,
		ModelUsed: c.modelName,
	}, nil
}

// FallbackSummarizer tries the OpenAI summarizer first and falls back to
// Anthropic when it errors.
type FallbackSummarizer struct {
	Primary  ArticleSummarizer
	Fallback ArticleSummarizer
}

func (f *FallbackSummarizer) SummarizeArticle(input ArticleSummaryInput) (*ArticleSummaryResult, error) {
	result, err := f.Primary.SummarizeArticle(input)
	if err == nil {
		return result, nil
	}
	if f.Fallback == nil {
		return nil, err
	}
	result, ferr := f.Fallback.SummarizeArticle(input)
	if ferr != nil {
		return nil, fmt.Errorf("primary: %v, fallback: %w", err, ferr)
	}
	return result, nil
}
