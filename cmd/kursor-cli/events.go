package main

import (
	"fmt"

	"github.com/ovchar/kursor/pkg/events"
)

// describeEvent форматирует событие цикла одной строкой для stderr.
func describeEvent(event events.Event) string {
	switch data := event.Data.(type) {
	case events.ThinkingData:
		return fmt.Sprintf("thinking: iteration %d, model %s", data.Iteration, data.Model)
	case events.ToolCallData:
		return fmt.Sprintf("action: %s %s", data.ToolName, data.Args)
	case events.ToolResultData:
		if data.IsError {
			return fmt.Sprintf("action failed: %s %s", data.ToolName, data.Content)
		}
		return fmt.Sprintf("action ok: %s (%s)", data.ToolName, data.Duration)
	case events.ScreenshotData:
		return "screen: " + data.Summary
	case events.MessageData:
		if event.Type == events.EventDone {
			return "done"
		}
		return "model: " + data.Content
	case events.ErrorData:
		return "error: " + data.Err.Error()
	default:
		return string(event.Type)
	}
}
