// Package events предоставляет интерфейсы для реализации Port & Adapter паттерна.
//
// Это Port (интерфейс) для подписки на события цикла управления экраном.
// Позволяет подключать любые UI (TUI, CLI) без изменения библиотечной логики.
//
// # Port & Adapter Pattern
//
//	Port — это интерфейс (Emitter, Subscriber), определённый в библиотеке.
//	Adapter — это реализация интерфейса для конкретного UI.
//
// # Basic Usage
//
//	// В библиотеке (pkg/chain/):
//	loop.SetEmitter(events.NewChanEmitter(64))
//
//	// В UI (internal/ui/):
//	sub := emitter.Subscribe()
//	for event := range sub.Events() {
//	    switch event.Type {
//	    case events.EventToolCall:
//	        ui.showAction(event.Data)
//	    }
//	}
//
// # Thread Safety
//
// Все реализации интерфейсов должны быть thread-safe.
package events

import (
	"context"
	"time"
)

// EventType представляет тип события цикла.
type EventType string

const (
	// EventThinking отправляется перед обращением к модели.
	EventThinking EventType = "thinking"

	// EventMessage отправляется когда модель сгенерировала текст.
	EventMessage EventType = "message"

	// EventToolCall отправляется когда модель запросила действие на экране.
	EventToolCall EventType = "tool_call"

	// EventToolResult отправляется когда действие выполнено.
	EventToolResult EventType = "tool_result"

	// EventScreenshot отправляется когда скриншот описан vision моделью.
	EventScreenshot EventType = "screenshot"

	// EventError отправляется при фатальной ошибке цикла.
	EventError EventType = "error"

	// EventDone отправляется когда цикл завершён.
	EventDone EventType = "done"
)

// EventData — sealed interface для данных события.
//
// Только типы из пакета events могут реализовать этот интерфейс,
// что обеспечивает compile-time type safety.
type EventData interface {
	eventData()
}

// ThinkingData содержит данные для EventThinking.
type ThinkingData struct {
	Model     string
	Iteration int
}

func (ThinkingData) eventData() {}

// ToolCallData содержит данные о запрошенном действии.
type ToolCallData struct {
	CallID   string
	ToolName string
	Args     string
}

func (ToolCallData) eventData() {}

// ToolResultData содержит результат выполнения действия.
type ToolResultData struct {
	CallID   string
	ToolName string
	Content  string
	IsError  bool
	Duration time.Duration
}

func (ToolResultData) eventData() {}

// ScreenshotData содержит описание скриншота от vision модели.
type ScreenshotData struct {
	Summary string
}

func (ScreenshotData) eventData() {}

// MessageData содержит данные для EventMessage и EventDone.
type MessageData struct {
	Content string
}

func (MessageData) eventData() {}

// ErrorData содержит данные для EventError.
type ErrorData struct {
	Err error
}

func (ErrorData) eventData() {}

// Event представляет событие цикла.
//
// Data содержит типизированные данные события (EventData).
// Для каждого EventType существует соответствующий тип данных:
//   - EventThinking: ThinkingData
//   - EventMessage: MessageData
//   - EventToolCall: ToolCallData
//   - EventToolResult: ToolResultData
//   - EventScreenshot: ScreenshotData
//   - EventError: ErrorData
//   - EventDone: MessageData
type Event struct {
	Type      EventType
	Data      EventData
	Timestamp time.Time
}

// Emitter — это Port для отправки событий.
//
// Emitter инвертирует зависимость: библиотека (pkg/chain) зависит
// от этого интерфейса, а не от конкретного UI.
type Emitter interface {
	// Emit отправляет событие.
	//
	// Если context отменён, операция должна прерваться без блокировки.
	Emit(ctx context.Context, event Event)
}

// Subscriber позволяет читать события из канала.
type Subscriber interface {
	// Events возвращает read-only канал событий.
	//
	// Канал закрывается при вызове Close() у владельца.
	Events() <-chan Event

	// Close закрывает подписчика и освобождает ресурсы.
	Close()
}
