// Логика - обрабатывает нажатия клавиш, события цикла и результаты задач.

package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"

	"github.com/ovchar/kursor/internal/app"
	"github.com/ovchar/kursor/pkg/events"
)

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	switch msg := msg.(type) {

	// 1. Изменение размера окна терминала
	case tea.WindowSizeMsg:
		headerHeight := 1
		footerHeight := m.textarea.Height() + 2 // + граница

		vpHeight := msg.Height - headerHeight - footerHeight
		if vpHeight < 0 {
			vpHeight = 0
		}

		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
		m.textarea.SetWidth(msg.Width)

		if !m.ready {
			m.ready = true
		}

	// 2. Клавиши
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			input := m.textarea.Value()
			if strings.TrimSpace(input) == "" {
				return m, nil
			}
			if m.appState.GetProcessing() {
				m.appendLog(errorMsgStyle("BUSY: ") + "agent is still working, please wait")
				return m, nil
			}

			m.textarea.Reset()
			m.appendLog(userMsgStyle("USER > ") + input)

			return m, performQuery(input, m.appState)
		}

	// 3. Событие цикла (прилетело из events.Subscriber)
	case loopEventMsg:
		event := events.Event(msg)
		switch data := event.Data.(type) {
		case events.ThinkingData:
			m.lastIteration = data.Iteration
		case events.ScreenshotData:
			// Рабочая память экрана: хедер показывает что агент видел
			m.appState.UpdateScreen(data.Summary, m.lastIteration)
		}
		m.appendLog(renderEvent(event))
		// Перезапускаем чтение следующего события
		return m, tea.Batch(tiCmd, vpCmd, waitForEvent(m.eventSub))

	// 4. Результат выполнения задачи (прилетел асинхронно)
	case queryResultMsg:
		if msg.Err != nil {
			m.appendLog(errorMsgStyle("ERROR: ") + msg.Err.Error())
		} else if msg.Output != "" {
			m.appendLog(systemMsgStyle("AGENT: ") + msg.Output)
		}
		m.textarea.Focus()
	}

	return m, tea.Batch(tiCmd, vpCmd)
}

// appendLog добавляет строку в лог с переносом по ширине и прокруткой вниз.
func (m *MainModel) appendLog(str string) {
	if m.viewport.Width > 0 {
		str = wordwrap.String(str, m.viewport.Width)
	}
	newContent := fmt.Sprintf("%s\n%s", m.viewport.View(), str)
	m.viewport.SetContent(newContent)
	m.viewport.GotoBottom()
}

// renderEvent форматирует событие цикла для лога.
func renderEvent(event events.Event) string {
	switch data := event.Data.(type) {
	case events.ThinkingData:
		return systemMsgStyle(fmt.Sprintf("… thinking (iteration %d, model %s)", data.Iteration, data.Model))
	case events.ToolCallData:
		return actionMsgStyle(fmt.Sprintf("ACTION > %s %s", data.ToolName, data.Args))
	case events.ToolResultData:
		if data.IsError {
			return errorMsgStyle(fmt.Sprintf("ACTION FAILED (%s): %s", data.ToolName, data.Content))
		}
		return actionMsgStyle(fmt.Sprintf("ACTION OK (%s, %s)", data.ToolName, data.Duration.Round(time.Millisecond)))
	case events.ScreenshotData:
		return systemMsgStyle("SCREEN: ") + data.Summary
	case events.MessageData:
		if event.Type == events.EventDone {
			return systemMsgStyle("DONE.")
		}
		return systemMsgStyle("MODEL: ") + data.Content
	case events.ErrorData:
		return errorMsgStyle("LOOP ERROR: ") + data.Err.Error()
	default:
		return systemMsgStyle(string(event.Type))
	}
}

// performQuery запускает задачу асинхронно, чтобы не завис UI.
func performQuery(query string, appState *app.AppState) tea.Cmd {
	return func() tea.Msg {
		// Без таймаута: многошаговая сессия может идти долго,
		// прерывание — Ctrl+C
		output, err := appState.RunQuery(context.Background(), query)
		return queryResultMsg{Output: output, Err: err}
	}
}
