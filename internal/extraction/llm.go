package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Rate limiter defaults: 50 requests per minute with short bursts.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// LLMConfig configures the langchaingo-backed provider. BaseURL accepts any
// OpenAI-compatible endpoint, so local inference servers work too.
type LLMConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	RequestsPerMinute float64
	Burst             int
}

// LLMProvider implements Provider against an OpenAI-compatible chat API.
type LLMProvider struct {
	model   llms.Model
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewLLMProvider creates a rate-limited LLM extraction provider.
func NewLLMProvider(cfg LLMConfig, logger *zap.Logger) (*LLMProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("extraction: llm provider requires an API key")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []openai.Option{openai.WithToken(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}

	limit := rate.Limit(defaultRateLimit)
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(cfg.RequestsPerMinute / 60.0)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	return &LLMProvider{
		model:   llm,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}, nil
}

// Invoke sends one window to the backend and parses the labeled spans.
func (p *LLMProvider) Invoke(ctx context.Context, req InvokeRequest) ([]RawExtraction, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrProviderUnavailable, err)
	}

	messages := buildMessages(req)

	callOpts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.ModelID != "" {
		callOpts = append(callOpts, llms.WithModel(req.ModelID))
	}

	resp, err := p.model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return nil, classifyBackendError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrProviderMalformedOutput)
	}

	raws, err := parseProviderOutput(resp.Choices[0].Content, req.Text)
	if err != nil {
		p.logger.Warn("llm output failed validation", zap.Error(err))
		return nil, err
	}
	return raws, nil
}

// buildMessages renders one window as a system prompt plus a human turn
// carrying the window text.
func buildMessages(req InvokeRequest) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, buildSystemPrompt(req)),
		llms.TextParts(schema.ChatMessageTypeHuman, req.Text),
	}
}

// buildSystemPrompt renders the config prompt plus worked examples.
func buildSystemPrompt(req InvokeRequest) string {
	if len(req.Examples) == 0 {
		return req.Prompt
	}

	var b strings.Builder
	b.WriteString(req.Prompt)
	b.WriteString("\n\nExamples:\n")
	for _, ex := range req.Examples {
		b.WriteString("\nInput:\n")
		b.WriteString(ex.Text)
		b.WriteString("\nOutput:\n")
		b.WriteString(renderExampleOutput(ex))
		b.WriteString("\n")
	}
	return b.String()
}

func renderExampleOutput(ex WorkedExample) string {
	out := providerResponse{Extractions: make([]providerExtraction, 0, len(ex.Extractions))}
	for _, raw := range ex.Extractions {
		out.Extractions = append(out.Extractions, providerExtraction{
			Class:      string(raw.Class),
			Text:       raw.Text,
			Attributes: raw.Attributes,
			Confidence: raw.Confidence,
		})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// classifyBackendError maps transport failures onto the provider error
// taxonomy so the extractor's retry policy can act on them.
func classifyBackendError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return fmt.Errorf("%w: %v", ErrProviderRateLimited, err)
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

var _ Provider = (*LLMProvider)(nil)
