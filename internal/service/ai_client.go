// Package service содержит клиенты внешних сервисов: генерация текста
// (OpenAI или Ollama), синтез речи и генерация фоновой музыки.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finishflow/internal/config"
	"finishflow/shared/models"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrAIGenerationFailed - модель не вернула текст.
var ErrAIGenerationFailed = fmt.Errorf("%w: ai generation failed", models.ErrUpstreamScript)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finishflow_ai_requests_total",
			Help: "Total number of requests to the text generation API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finishflow_ai_request_duration_seconds",
			Help:    "Histogram of text generation request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finishflow_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finishflow_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"model"},
	)
)

// GenerationParams - параметры генерации. Указатели отличают 0 от "не задано".
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// UsageInfo - расход токенов одного запроса.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Estimated        bool // посчитано через tiktoken, API usage не вернул
}

// AIClient - клиент модели генерации текста.
type AIClient interface {
	GenerateText(ctx context.Context, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error)
}

// NewAIClient создает клиент по AI_CLIENT_TYPE.
func NewAIClient(cfg *config.Config, logger *zap.Logger) (AIClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(cfg.AIClientType) {
	case "openai":
		return newOpenAIClient(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel, cfg.ScriptTimeout, logger), nil
	case "ollama":
		return newOllamaClient(cfg.AIBaseURL, cfg.AIModel, cfg.ScriptTimeout, logger)
	default:
		return nil, fmt.Errorf("unknown AI client type: %q", cfg.AIClientType)
	}
}

// --- OpenAI ---

type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

func newOpenAIClient(apiKey, baseURL, model string, timeout time.Duration, logger *zap.Logger) *openAIClient {
	conf := openaigo.DefaultConfig(apiKey)
	if baseURL != "" {
		conf.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	conf.HTTPClient = &http.Client{Timeout: timeout}
	return &openAIClient{
		client: openaigo.NewClientWithConfig(conf),
		model:  model,
		logger: logger.With(zap.String("ai_client", "openai"), zap.String("model", model)),
	}
}

func (c *openAIClient) GenerateText(ctx context.Context, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	var usage UsageInfo
	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", usage, fmt.Errorf("%w: empty system prompt", ErrAIGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: userInput})
	}

	start := time.Now()
	c.logger.Debug("Sending chat completion request",
		zap.Int("system_prompt_bytes", len(systemPrompt)),
		zap.Int("user_input_bytes", len(userInput)),
	)
	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32Val(params.Temperature),
		MaxTokens:   intVal(params.MaxTokens),
		TopP:        float32Val(params.TopP),
	})
	duration := time.Since(start)
	if err != nil {
		c.logger.Error("Chat completion request failed", zap.Duration("duration", duration), zap.Error(err))
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		c.logger.Error("Chat completion returned empty content", zap.Duration("duration", duration))
		aiRequestsTotal.WithLabelValues(c.model, "error_empty_response").Inc()
		return "", usage, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	text := resp.Choices[0].Message.Content
	aiRequestsTotal.WithLabelValues(c.model, "success").Inc()
	aiRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		usage = UsageInfo{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	} else {
		usage = estimateUsage(c.model, systemPrompt+userInput, text)
	}
	observeUsage(c.model, usage)
	c.logger.Info("Chat completion received",
		zap.Duration("duration", duration),
		zap.Int("response_chars", len([]rune(text))),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
		zap.Bool("estimated", usage.Estimated),
	)
	return text, usage, nil
}

// --- Ollama ---

type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func newOllamaClient(baseURL, model string, timeout time.Duration, logger *zap.Logger) (*ollamaClient, error) {
	base := strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse ollama base url %q: %w", base, err)
	}
	logger.Info("Ollama client created", zap.String("base_url", base), zap.String("model", model), zap.Duration("timeout", timeout))
	return &ollamaClient{
		client:  api.NewClient(parsed, &http.Client{Timeout: timeout}),
		model:   model,
		timeout: timeout,
		logger:  logger.With(zap.String("ai_client", "ollama"), zap.String("model", model)),
	}, nil
}

func (c *ollamaClient) GenerateText(ctx context.Context, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	var usage UsageInfo
	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", usage, fmt.Errorf("%w: empty system prompt", ErrAIGenerationFailed)
	}

	messages := []api.Message{{Role: "system", Content: systemPrompt}}
	if userInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: userInput})
	}
	options := map[string]interface{}{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(ctx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Error("Ollama request timed out", zap.Duration("timeout", c.timeout), zap.Error(err))
		} else {
			c.logger.Error("Ollama request failed", zap.Duration("duration", duration), zap.Error(err))
		}
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		c.logger.Error("Ollama returned empty content", zap.Duration("duration", duration))
		aiRequestsTotal.WithLabelValues(c.model, "error_empty_response").Inc()
		return "", usage, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	aiRequestsTotal.WithLabelValues(c.model, "success").Inc()
	aiRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())
	usage = UsageInfo{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}
	if usage.TotalTokens > 0 {
		observeUsage(c.model, usage)
	}
	c.logger.Info("Ollama response received",
		zap.Duration("duration", duration),
		zap.Int("response_chars", len([]rune(resp.Message.Content))),
		zap.Int("total_tokens", usage.TotalTokens),
	)
	return resp.Message.Content, usage, nil
}

// estimateUsage считает токены через tiktoken. Для незнакомой модели
// используется cl100k_base; если и он недоступен, возвращается пустой UsageInfo.
func estimateUsage(model, prompt, completion string) UsageInfo {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return UsageInfo{}
		}
	}
	p := len(enc.Encode(prompt, nil, nil))
	c := len(enc.Encode(completion, nil, nil))
	return UsageInfo{PromptTokens: p, CompletionTokens: c, TotalTokens: p + c, Estimated: true}
}

func observeUsage(model string, u UsageInfo) {
	if u.TotalTokens == 0 {
		return
	}
	aiPromptTokens.WithLabelValues(model).Observe(float64(u.PromptTokens))
	aiCompletionTokens.WithLabelValues(model).Observe(float64(u.CompletionTokens))
}

func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 0
	}
	return float32(*f64)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
