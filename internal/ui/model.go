// Package ui реализует Bubble Tea интерфейс агента управления экраном.
//
// UI показывает лог сессии: запросы пользователя, действия модели
// на экране, описания скриншотов и финальные ответы.
package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ovchar/kursor/internal/app"
	"github.com/ovchar/kursor/pkg/events"
)

// queryResultMsg — результат выполнения задачи (прилетает асинхронно).
type queryResultMsg struct {
	Output string
	Err    error
}

// loopEventMsg — событие цикла из events.Subscriber.
type loopEventMsg events.Event

// MainModel представляет главную модель UI (Bubble Tea Model).
//
// Содержит компоненты TUI:
//   - viewport: область лога сессии (только для чтения)
//   - textarea: поле ввода задачи
//   - appState: собранное приложение
//   - eventSub: подписчик на события цикла (Port & Adapter)
type MainModel struct {
	viewport viewport.Model
	textarea textarea.Model

	appState *app.AppState
	eventSub events.Subscriber

	// ready флаг первой инициализации размеров окна
	ready bool

	// lastIteration — номер текущей итерации цикла (из EventThinking)
	lastIteration int
}

// InitialModel создает начальное состояние UI.
func InitialModel(appState *app.AppState) MainModel {
	ta := textarea.New()
	ta.Placeholder = "Опишите задачу (например: открой браузер)..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 500
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	// Размеры (0,0) обновятся при первом WindowSizeMsg
	vp := viewport.New(0, 0)
	vp.SetContent(fmt.Sprintf("%s\n%s\n",
		systemMsgStyle("Kursor v0.1 Initialized."),
		systemMsgStyle("System ready. Waiting for input..."),
	))

	return MainModel{
		textarea: ta,
		viewport: vp,
		appState: appState,
		eventSub: appState.Emitter.Subscribe(),
	}
}

// Init запускается один раз при старте Bubble Tea программы.
//
// Возвращает команду для:
//   - Запуска мигания курсора в поле ввода
//   - Чтения событий цикла (Port & Adapter)
func (m MainModel) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		waitForEvent(m.eventSub),
	)
}

// waitForEvent читает одно событие цикла и заворачивает его в tea.Msg.
//
// После обработки события Update перезапускает эту команду: так канал
// событий вычитывается по одному сообщению на цикл Update.
func waitForEvent(sub events.Subscriber) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub.Events()
		if !ok {
			return nil
		}
		return loopEventMsg(event)
	}
}
