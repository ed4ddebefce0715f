// Package openai реализует адаптер LLM провайдера для OpenAI-совместимых API.
//
// Поддерживает Function Calling (tools) и Vision запросы.
// Работает только через интерфейс llm.Provider.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/ovchar/kursor/pkg/config"
	"github.com/ovchar/kursor/pkg/llm"
	"github.com/ovchar/kursor/pkg/tools"
	"github.com/ovchar/kursor/pkg/utils"
)

// Client реализует интерфейс llm.Provider для OpenAI-совместимых API.
//
// Поддерживает:
//   - Базовую генерацию текста
//   - Function Calling (tools)
//   - Vision запросы (изображения как data URL)
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature float64
	limiter     *rate.Limiter // nil если rate limit не настроен
}

// NewClient создает OpenAI клиент на основе конфигурации модели.
//
// Принимает ModelDef напрямую для упрощения создания клиентов через factory.
// Все настройки из конфигурации, никакого хардкода.
func NewClient(modelDef config.ModelDef) *Client {
	// Поддержка custom BaseURL для non-OpenAI провайдеров (OpenRouter, Zai и т.д.)
	cfg := openai.DefaultConfig(modelDef.APIKey)
	if modelDef.BaseURL != "" {
		cfg.BaseURL = modelDef.BaseURL
	}
	if modelDef.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: time.Duration(modelDef.Timeout) * time.Second}
	}

	c := &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       modelDef.ModelName,
		maxTokens:   modelDef.MaxTokens,
		temperature: modelDef.Temperature,
	}

	if modelDef.RateLimit > 0 {
		burst := modelDef.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(modelDef.RateLimit), burst)
	}

	return c
}

// Generate выполняет запрос к API и возвращает ответ модели.
//
// opts принимает в любом порядке:
//   - []tools.ToolDefinition для Function Calling
//   - llm.GenerateOption для переопределения параметров генерации
//
// Ошибки классифицируются обёртыванием в llm.ErrTransport (сеть, timeout,
// отмена контекста) или llm.ErrProtocol (ответ API невалиден). Частичных
// результатов при ошибке не бывает: возвращается пустой Message.
func (c *Client) Generate(ctx context.Context, messages []llm.Message, opts ...any) (llm.Message, error) {
	startTime := time.Now()

	genOpts := llm.GenerateOptions{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	var toolDefs []tools.ToolDefinition
	for _, opt := range opts {
		switch v := opt.(type) {
		case []tools.ToolDefinition:
			toolDefs = v
		case llm.GenerateOption:
			v(&genOpts)
		default:
			return llm.Message{}, fmt.Errorf("%w: unsupported option type %T", llm.ErrProtocol, opt)
		}
	}

	utils.Debug("LLM request started",
		"model", genOpts.Model,
		"messages_count", len(messages),
		"tools_count", len(toolDefs))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return llm.Message{}, fmt.Errorf("%w: rate limiter: %v", llm.ErrTransport, err)
		}
	}

	openaiMsgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		openaiMsgs[i] = mapToOpenAI(m)
	}

	req := openai.ChatCompletionRequest{
		Model:    genOpts.Model,
		Messages: openaiMsgs,
	}
	if genOpts.MaxTokens > 0 {
		req.MaxTokens = genOpts.MaxTokens
	}
	if genOpts.Temperature > 0 {
		req.Temperature = float32(genOpts.Temperature)
	}

	if len(toolDefs) > 0 {
		req.Tools = convertToolsToOpenAI(toolDefs)
		// LLM сама решает когда вызывать tools
		req.ToolChoice = "auto"
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		utils.Error("LLM API request failed",
			"error", err,
			"model", genOpts.Model,
			"duration_ms", time.Since(startTime).Milliseconds())
		return llm.Message{}, classify(err)
	}

	if len(resp.Choices) == 0 {
		return llm.Message{}, fmt.Errorf("%w: no choices in response", llm.ErrProtocol)
	}

	choice := resp.Choices[0].Message

	result := llm.Message{
		Role:    llm.Role(choice.Role),
		Content: choice.Content,
	}

	if len(choice.ToolCalls) > 0 {
		result.ToolCalls = make([]llm.ToolCall, len(choice.ToolCalls))
		for i, tc := range choice.ToolCalls {
			result.ToolCalls[i] = llm.ToolCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: tc.Function.Arguments,
			}
		}
	}

	utils.Info("LLM response received",
		"model", genOpts.Model,
		"tool_calls_count", len(result.ToolCalls),
		"content_length", len(result.Content),
		"duration_ms", time.Since(startTime).Milliseconds())

	return result, nil
}

// classify относит ошибку SDK к транспортному или протокольному классу.
//
// Транспорт: сеть недоступна, DNS, timeout, отмена контекста.
// Протокол: endpoint ответил, но ответом пользоваться нельзя.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", llm.ErrTransport, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %v", llm.ErrTransport, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", llm.ErrTransport, err)
	}

	// APIError означает что HTTP ответ дошёл, но содержит ошибку API
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: api error (status %d): %v", llm.ErrProtocol, apiErr.HTTPStatusCode, err)
	}

	return fmt.Errorf("%w: %v", llm.ErrProtocol, err)
}

// mapToOpenAI конвертирует наше внутреннее сообщение в формат SDK.
//
// Vision: если есть картинки, текст и изображения уходят как MultiContent.
// Tool сообщения несут ToolCallID, assistant сообщения — запрошенные ToolCalls.
func mapToOpenAI(m llm.Message) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:       string(m.Role),
		ToolCallID: m.ToolCallID,
	}

	if len(m.ToolCalls) > 0 {
		msg.ToolCalls = make([]openai.ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			msg.ToolCalls[i] = openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Args,
				},
			}
		}
	}

	// Если картинок нет, отправляем просто текст
	if len(m.Images) == 0 {
		msg.Content = m.Content
		return msg
	}

	parts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: m.Content,
		},
	}

	for _, imgURL := range m.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    imgURL, // base64 data-uri или http ссылка
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	msg.MultiContent = parts
	return msg
}

// convertToolsToOpenAI конвертирует определения инструментов
// в формат OpenAI Function Calling.
//
// ToolDefinition.Parameters уже является JSON Schema объектом,
// он напрямую передаётся в OpenAI SDK.
func convertToolsToOpenAI(defs []tools.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(defs))

	for i, def := range defs {
		result[i] = openai.Tool{
			Type: "function",
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		}
	}

	return result
}

// Ensure Client implements llm.Provider
var _ llm.Provider = (*Client)(nil)
