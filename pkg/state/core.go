// Package state предоставляет thread-safe core состояние сессии.
//
// CoreState содержит переиспользуемую часть приложения:
// - Конфигурацию
// - S3 клиент архива скриншотов
// - Реестр инструментов
// - Историю диалога
// - "Рабочую память" скриншотов (последний снимок и его описание)
package state

import (
	"sync"

	"github.com/ovchar/kursor/pkg/config"
	"github.com/ovchar/kursor/pkg/llm"
	"github.com/ovchar/kursor/pkg/s3storage"
	"github.com/ovchar/kursor/pkg/tools"
)

// ScreenMemory — рабочая память последнего скриншота.
//
// Хранит описание от vision модели, а не пиксели: base64 в состояние
// сессии не попадает.
type ScreenMemory struct {
	// Summary — последнее описание экрана
	Summary string

	// Iteration — на какой итерации цикла снят скриншот
	Iteration int
}

// CoreState представляет thread-safe состояние сессии управления экраном.
//
// Может использоваться в различных оболочках: CLI, TUI.
// Все изменения runtime полей защищены мьютексом.
type CoreState struct {
	// Config — конфигурация приложения
	Config *config.AppConfig

	// S3 — клиент архива скриншотов, может быть nil
	S3 *s3storage.Client

	// ToolsRegistry — реестр инструментов
	ToolsRegistry *tools.Registry

	// mu защищает History и screen
	mu sync.RWMutex

	// History — хронология диалога. Тяжёлые base64 сюда не попадают,
	// только текст, tool calls и описания скриншотов.
	History []llm.Message

	screen ScreenMemory
}

// NewCoreState создает новое thread-safe состояние сессии.
//
// ToolsRegistry устанавливается после создания.
func NewCoreState(cfg *config.AppConfig, s3Client *s3storage.Client) *CoreState {
	return &CoreState{
		Config:  cfg,
		S3:      s3Client,
		History: make([]llm.Message, 0),
	}
}

// SetToolsRegistry устанавливает реестр инструментов.
func (s *CoreState) SetToolsRegistry(registry *tools.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ToolsRegistry = registry
}

// GetToolsRegistry возвращает реестр инструментов.
func (s *CoreState) GetToolsRegistry() *tools.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ToolsRegistry
}

// AppendMessage добавляет сообщение в историю диалога.
//
// История append-only: сообщения не редактируются и не удаляются.
func (s *CoreState) AppendMessage(msg llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = append(s.History, msg)
}

// ReplaceHistory замещает историю расширенной версией из цикла.
//
// Цикл работает с копией и возвращает историю целиком; состояние
// просто принимает новую версию. Вызывающий обязан передавать
// историю, начинающуюся с прежнего префикса.
func (s *CoreState) ReplaceHistory(history []llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = append([]llm.Message(nil), history...)
}

// GetHistory возвращает копию истории диалога.
//
// Возвращается копия среза: вызывающий не может повредить состояние.
func (s *CoreState) GetHistory() []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]llm.Message, len(s.History))
	copy(history, s.History)
	return history
}

// ClearHistory очищает историю диалога и рабочую память экрана.
func (s *CoreState) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = make([]llm.Message, 0)
	s.screen = ScreenMemory{}
}

// UpdateScreen обновляет рабочую память последнего скриншота.
func (s *CoreState) UpdateScreen(summary string, iteration int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screen = ScreenMemory{Summary: summary, Iteration: iteration}
}

// GetScreen возвращает рабочую память последнего скриншота.
func (s *CoreState) GetScreen() ScreenMemory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.screen
}
