// Package vision превращает скриншоты в текстовые описания.
//
// Основная модель цикла получает не сами пиксели, а короткое описание
// от vision модели. Описание встраивается в tool результат на месте
// поля data, поэтому downstream формат сообщений не меняется.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/ovchar/kursor/pkg/config"
	"github.com/ovchar/kursor/pkg/llm"
	"github.com/ovchar/kursor/pkg/utils"
)

// Лимит ответа vision модели. Описание должно быть коротким:
// оно попадает в контекст каждой следующей итерации цикла.
const summaryMaxTokens = 120

// Summarizer описывает скриншоты через vision модель.
type Summarizer struct {
	provider llm.Provider
	screen   config.ScreenConfig
	imgProc  config.ImageProcConfig
}

// New создаёт суммаризатор поверх готового провайдера.
func New(provider llm.Provider, screen config.ScreenConfig, imgProc config.ImageProcConfig) *Summarizer {
	return &Summarizer{
		provider: provider,
		screen:   screen,
		imgProc:  imgProc,
	}
}

// systemPrompt формирует инструкцию для vision модели.
//
// Модель обязана давать точные координаты: основной цикл будет
// использовать их для mouse_move без повторного скриншота.
func (s *Summarizer) systemPrompt() string {
	return fmt.Sprintf("You describe screenshots for a desktop-control agent. "+
		"You are given context of a conversation, and the last message is an image that you have to describe. "+
		"You can assume that the size of a screen is width = %d , height = %d. "+
		"Make sure to always give EXACT coordinates of what are you seeing.",
		s.screen.Width, s.screen.Height)
}

// Describe возвращает текстовое описание base64 PNG скриншота.
//
// convContext — история диалога до скриншота: vision модель видит, что
// агент искал на экране, и описывает релевантное.
//
// Тотальная операция: любая ошибка (resize, транспорт, протокол)
// превращается в текст вида "[vision summary failed: ...]", который
// занимает место описания. Цикл при этом не прерывается.
func (s *Summarizer) Describe(ctx context.Context, b64PNG string, convContext []llm.Message) string {
	dataURL, err := s.prepareDataURL(b64PNG)
	if err != nil {
		utils.Warn("Vision preprocessing failed", "error", err)
		return fmt.Sprintf("[vision summary failed: %v]", err)
	}

	messages := make([]llm.Message, 0, len(convContext)+2)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: s.systemPrompt(),
	})
	messages = append(messages, sanitizeContext(convContext)...)
	messages = append(messages, llm.Message{
		Role:   llm.RoleUser,
		Images: []string{dataURL},
	})

	resp, err := s.provider.Generate(ctx, messages, llm.WithMaxTokens(summaryMaxTokens))
	if err != nil {
		utils.Warn("Vision summary failed", "error", err)
		return fmt.Sprintf("[vision summary failed: %v]", err)
	}

	utils.Debug("Vision summary received", "length", len(resp.Content))
	return resp.Content
}

// prepareDataURL декодирует PNG, ужимает до max_width и собирает
// data URL для image_url части запроса.
//
// Скриншоты рабочего стола весят мегабайты, vision модели тарифицируют
// по площади. После сжатия картинка реально JPEG, media type честный.
func (s *Summarizer) prepareDataURL(b64PNG string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(b64PNG)
	if err != nil {
		return "", fmt.Errorf("decode screenshot base64: %w", err)
	}

	maxWidth := s.imgProc.MaxWidth
	if maxWidth <= 0 {
		maxWidth = 1280
	}
	quality := s.imgProc.Quality
	if quality <= 0 {
		quality = 80
	}

	jpeg, err := utils.ResizeImage(raw, maxWidth, quality)
	if err != nil {
		return "", fmt.Errorf("resize screenshot: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg), nil
}

// sanitizeContext готовит историю диалога для vision запроса.
//
// Tool сообщения и assistant сообщения с tool_calls нельзя слать как есть:
// OpenAI API требует парность tool_calls/tool ответов, а vision запрос
// собирает свою последовательность. Переводим их в плоский user/assistant
// текст, сохраняя содержимое.
func sanitizeContext(history []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case llm.RoleTool:
			if m.Content == "" {
				continue
			}
			out = append(out, llm.Message{
				Role:    llm.RoleUser,
				Content: fmt.Sprintf("[tool result] %s", m.Content),
			})
		case llm.RoleAssistant:
			msg := llm.Message{Role: llm.RoleAssistant, Content: m.Content}
			if len(m.ToolCalls) > 0 {
				for _, tc := range m.ToolCalls {
					if msg.Content != "" {
						msg.Content += "\n"
					}
					msg.Content += fmt.Sprintf("[called %s with %s]", tc.Name, tc.Args)
				}
			}
			if msg.Content == "" {
				continue
			}
			out = append(out, msg)
		default:
			out = append(out, llm.Message{Role: m.Role, Content: m.Content})
		}
	}
	return out
}
