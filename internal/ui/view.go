// Рендер
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func (m MainModel) View() string {
	if !m.ready {
		return "Initializing UI..."
	}

	busy := "idle"
	if m.appState.GetProcessing() {
		busy = "working"
	}

	// Формируем строку статуса (Header)
	status := fmt.Sprintf(" KURSOR | MODEL: %s | SCREEN: %dx%d | %s ",
		m.appState.GetCurrentModel(),
		m.appState.Config.Screen.Width,
		m.appState.Config.Screen.Height,
		busy,
	)
	if mem := m.appState.GetScreen(); mem.Summary != "" {
		status += fmt.Sprintf("| seen @ iter %d ", mem.Iteration)
	}

	// Растягиваем хедер на всю ширину
	header := headerStyle.
		Width(m.viewport.Width).
		Render(status)

	// Разделительная линия
	border := lipgloss.NewStyle().
		Foreground(grayColor).
		Width(m.viewport.Width).
		Render("──────────────────────────────────────────────────")

	// Собираем всё вместе: Header + Viewport + Border + Input
	return fmt.Sprintf("%s\n%s\n%s\n%s",
		header,
		m.viewport.View(),
		border,
		m.textarea.View(),
	)
}
