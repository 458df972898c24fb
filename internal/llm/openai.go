package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// OpenAI uses the chat completions API.
type OpenAI struct {
	client openai.Client
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...)}
}

func (o *OpenAI) Name() string {
	return "openai"
}

func (o *OpenAI) Generate(ctx context.Context, prompt string, settings Settings) (*Response, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if settings.System != "" {
		messages = append(messages, openai.SystemMessage(settings.System))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(settings.Model),
		Messages: messages,
	}
	if settings.Temperature != nil {
		params.Temperature = openai.Float(*settings.Temperature)
	}
	if settings.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(settings.MaxOutputTokens))
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}

	out := &Response{
		FinishReason: FinishOther,
		Usage: Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
	}
	if len(completion.Choices) == 0 {
		return out, nil
	}

	choice := completion.Choices[0]
	out.Text = choice.Message.Content
	out.FinishReason = openAIFinishReason(choice.FinishReason)
	return out, nil
}

func openAIFinishReason(reason string) string {
	switch reason {
	case "stop":
		return FinishStop
	case "length":
		return FinishLength
	case "content_filter":
		return FinishSafety
	default:
		return FinishOther
	}
}
