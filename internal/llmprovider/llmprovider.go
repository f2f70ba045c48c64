// Package llmprovider implements executor.ProviderDispatcher against real
// hosted model APIs, routing each call by provider name to the matching
// SDK client.
package llmprovider

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"

	"github.com/orbitalflow/engine/internal/orcherr"
)

// Config holds the credentials needed to talk to each supported backend.
// A zero-value field disables that backend; Dispatch returns an error for
// any provider whose client was never configured.
type Config struct {
	AnthropicAPIKey string
	AnthropicModel  string // default model when a node omits one

	OpenAIAPIKey string
	OpenAIModel  string

	MaxRetries int
	RetryDelay time.Duration
}

// Dispatcher fans LLM-node completions out to the configured provider SDKs.
// It implements executor.ProviderDispatcher.
type Dispatcher struct {
	anthropicClient *anthropic.Client
	anthropicModel  string

	openaiClient *openai.Client
	openaiModel  string

	maxRetries int
	retryDelay time.Duration
}

// New builds a Dispatcher from cfg. Providers with an empty API key are
// left unconfigured; calling Complete for one returns an error rather than
// panicking, so a deployment can run with only one backend wired.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		anthropicModel: cfg.AnthropicModel,
		openaiModel:    cfg.OpenAIModel,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
	}
	if d.maxRetries <= 0 {
		d.maxRetries = 3
	}
	if d.retryDelay <= 0 {
		d.retryDelay = time.Second
	}
	if d.anthropicModel == "" {
		d.anthropicModel = "claude-sonnet-4-20250514"
	}
	if d.openaiModel == "" {
		d.openaiModel = "gpt-4o"
	}

	if cfg.AnthropicAPIKey != "" {
		client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
		d.anthropicClient = &client
	}
	if cfg.OpenAIAPIKey != "" {
		client := openai.NewClient(cfg.OpenAIAPIKey)
		d.openaiClient = client
	}
	return d
}

// Complete dispatches a single non-streaming completion to the named
// provider, retrying transient failures with exponential backoff.
func (d *Dispatcher) Complete(ctx context.Context, provider, model, system, prompt string, temperature float64, maxTokens int) (string, int, error) {
	switch provider {
	case "anthropic", "":
		return d.completeAnthropic(ctx, model, system, prompt, temperature, maxTokens)
	case "openai":
		return d.completeOpenAI(ctx, model, system, prompt, temperature, maxTokens)
	default:
		return "", 0, orcherr.New(orcherr.KindProvider, "", "unsupported llm provider %q", provider)
	}
}

func (d *Dispatcher) completeAnthropic(ctx context.Context, model, system, prompt string, temperature float64, maxTokens int) (string, int, error) {
	if d.anthropicClient == nil {
		return "", 0, orcherr.New(orcherr.KindProvider, "", "anthropic provider not configured")
	}
	if model == "" {
		model = d.anthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}

	var resp *anthropic.Message
	var err error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		resp, err = d.anthropicClient.Messages.New(ctx, params)
		if err == nil {
			break
		}
		if !isRetryableError(err) || attempt == d.maxRetries {
			break
		}
		if werr := waitBackoff(ctx, d.retryDelay, attempt); werr != nil {
			return "", 0, orcherr.Wrap(orcherr.KindTimeout, "", werr, "anthropic request cancelled during retry backoff")
		}
	}
	if err != nil {
		return "", 0, orcherr.Wrap(orcherr.KindProvider, "", err, "anthropic completion failed")
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	tokensUsed := int(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	return text.String(), tokensUsed, nil
}

func (d *Dispatcher) completeOpenAI(ctx context.Context, model, system, prompt string, temperature float64, maxTokens int) (string, int, error) {
	if d.openaiClient == nil {
		return "", 0, orcherr.New(orcherr.KindProvider, "", "openai provider not configured")
	}
	if model == "" {
		model = d.openaiModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(temperature),
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		resp, err = d.openaiClient.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}
		if !isRetryableError(err) || attempt == d.maxRetries {
			break
		}
		if werr := waitBackoff(ctx, d.retryDelay, attempt); werr != nil {
			return "", 0, orcherr.Wrap(orcherr.KindTimeout, "", werr, "openai request cancelled during retry backoff")
		}
	}
	if err != nil {
		return "", 0, orcherr.Wrap(orcherr.KindProvider, "", err, "openai completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", 0, orcherr.New(orcherr.KindProvider, "", "openai returned no choices")
	}

	return resp.Choices[0].Message.Content, resp.Usage.TotalTokens, nil
}

func waitBackoff(ctx context.Context, base time.Duration, attempt int) error {
	backoff := base * time.Duration(math.Pow(2, float64(attempt)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}

// isRetryableError classifies transient failures (rate limits, 5xx, timeouts,
// connection errors) as retryable; auth and validation failures are not.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate_limit"), strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"):
		return true
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"), strings.Contains(msg, "503"), strings.Contains(msg, "504"),
		strings.Contains(msg, "internal server error"), strings.Contains(msg, "bad gateway"),
		strings.Contains(msg, "service unavailable"), strings.Contains(msg, "gateway timeout"):
		return true
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return true
	case strings.Contains(msg, "connection reset"), strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return true
	default:
		return false
	}
}
