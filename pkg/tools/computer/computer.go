// Package computer реализует инструмент управления рабочим столом.
//
// Единственный инструмент набора computer_use_20250124: модель может
// снимать скриншоты, двигать курсор и делать левый клик. Контракт
// параметров жёсткий: mouse_move требует coordinate из двух целых,
// left_click и screenshot coordinate запрещают.
package computer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ovchar/kursor/pkg/config"
	"github.com/ovchar/kursor/pkg/tools"
	"github.com/ovchar/kursor/pkg/utils"
)

// Имя инструмента в Function Calling API.
const ToolName = "computer"

// Действия инструмента.
const (
	ActionMouseMove  = "mouse_move"
	ActionLeftClick  = "left_click"
	ActionScreenshot = "screenshot"
)

// ScreenshotSink принимает захваченные скриншоты для архивирования.
//
// Опциональный коллаборатор: отказ архива не считается ошибкой
// выполнения инструмента.
type ScreenshotSink interface {
	SaveScreenshot(ctx context.Context, data []byte) error
}

// Tool — инструмент управления экраном.
type Tool struct {
	display Display
	screen  config.ScreenConfig
	sink    ScreenshotSink // опционально, может быть nil
}

// New создаёт инструмент с указанным бэкендом дисплея.
func New(display Display, screen config.ScreenConfig) *Tool {
	return &Tool{
		display: display,
		screen:  screen,
	}
}

// SetScreenshotSink подключает архив скриншотов.
//
// Вызывать до регистрации инструмента в реестре.
func (t *Tool) SetScreenshotSink(sink ScreenshotSink) {
	t.sink = sink
}

// Definition возвращает определение инструмента для function calling.
func (t *Tool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name: ToolName,
		Description: "Simulated screen/mouse control. Can ONLY do screenshots, move a mouse, " +
			"and make a left click. In action field specify which action from `mouse_move` " +
			"`left_click` `screenshot` you are doing.\n" +
			"Rules:\n" +
			"- `mouse_move` REQUIRES `coordinate: [x, y]` (JSON array of two ints).\n" +
			"- `left_click` MUST NOT include `coordinate`.\n" +
			"- `screenshot` MUST NOT include `coordinate`.",
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type": "string",
					"enum": []string{ActionMouseMove, ActionLeftClick, ActionScreenshot},
				},
				"coordinate": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "integer"},
					"minItems":    2,
					"maxItems":    2,
					"description": "Exactly [x, y] in screen pixels.",
				},
			},
			"required":             []string{"action"},
			"additionalProperties": false,
		},
	}
}

// callArgs — распарсенные аргументы вызова.
//
// Coordinate хранится сырым, чтобы отличать «ключ отсутствует»
// от «ключ есть, но пустой» — контракт действий различает эти случаи.
type callArgs struct {
	Action     string
	Coordinate []int
	HasCoord   bool
}

// parseArgs разбирает и валидирует сырой JSON аргументов.
func parseArgs(argsJSON string) (callArgs, error) {
	if argsJSON == "" {
		argsJSON = "{}"
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(argsJSON), &raw); err != nil {
		return callArgs{}, fmt.Errorf("invalid arguments JSON: %v", err)
	}

	var args callArgs

	actionRaw, ok := raw["action"]
	if !ok {
		return callArgs{}, fmt.Errorf("missing required field 'action'")
	}
	if err := json.Unmarshal(actionRaw, &args.Action); err != nil {
		return callArgs{}, fmt.Errorf("'action' must be a string: %v", err)
	}

	if coordRaw, ok := raw["coordinate"]; ok {
		args.HasCoord = true
		if err := json.Unmarshal(coordRaw, &args.Coordinate); err != nil {
			return callArgs{}, fmt.Errorf("'coordinate' must be an array of two ints: %v", err)
		}
	}

	return args, nil
}

// Execute выполняет действие инструмента.
//
// Тотальная операция: валидационные ошибки и отказы бэкенда
// упаковываются в Result.Error. Модель увидит ошибку текстом
// и сможет скорректировать следующий вызов.
func (t *Tool) Execute(ctx context.Context, argsJSON string) tools.Result {
	args, err := parseArgs(argsJSON)
	if err != nil {
		return tools.Errorf("%v", err)
	}

	switch args.Action {
	case ActionMouseMove:
		return t.mouseMove(ctx, args)
	case ActionLeftClick:
		return t.leftClick(ctx, args)
	case ActionScreenshot:
		return t.screenshot(ctx, args)
	default:
		return tools.Errorf("unknown action '%s': must be one of %s, %s, %s",
			args.Action, ActionMouseMove, ActionLeftClick, ActionScreenshot)
	}
}

// mouseMove перемещает курсор. Требует coordinate из ровно двух целых.
func (t *Tool) mouseMove(ctx context.Context, args callArgs) tools.Result {
	if !args.HasCoord {
		return tools.Errorf("action '%s' requires 'coordinate': [x, y]", ActionMouseMove)
	}
	if len(args.Coordinate) != 2 {
		return tools.Errorf("'coordinate' must contain exactly 2 ints, got %d", len(args.Coordinate))
	}

	x, y := args.Coordinate[0], args.Coordinate[1]
	if x < 0 || y < 0 {
		return tools.Errorf("'coordinate' must be non-negative, got [%d, %d]", x, y)
	}

	if err := t.display.MoveCursor(ctx, x, y); err != nil {
		utils.Error("mouse_move failed", "x", x, "y", y, "error", err)
		return tools.Errorf("mouse_move failed: %v", err)
	}

	utils.Debug("Cursor moved", "x", x, "y", y)
	return tools.Result{Output: fmt.Sprintf("moved cursor to (%d, %d)", x, y)}
}

// leftClick делает клик в текущей позиции. Coordinate запрещён.
func (t *Tool) leftClick(ctx context.Context, args callArgs) tools.Result {
	if args.HasCoord {
		return tools.Errorf("action '%s' must not include 'coordinate'", ActionLeftClick)
	}

	if err := t.display.Click(ctx); err != nil {
		utils.Error("left_click failed", "error", err)
		return tools.Errorf("left_click failed: %v", err)
	}

	utils.Debug("Left click performed")
	return tools.Result{Output: "performed left click"}
}

// screenshot снимает экран. Coordinate запрещён.
//
// PNG уходит в Result.Image как base64; при подключенном архиве
// копия сохраняется best-effort.
func (t *Tool) screenshot(ctx context.Context, args callArgs) tools.Result {
	if args.HasCoord {
		return tools.Errorf("action '%s' must not include 'coordinate'", ActionScreenshot)
	}

	data, err := t.display.CaptureScreen(ctx)
	if err != nil {
		utils.Error("screenshot failed", "error", err)
		return tools.Errorf("screenshot failed: %v", err)
	}

	// Архив не на критическом пути: отказ только логируем
	if t.sink != nil {
		if err := t.sink.SaveScreenshot(ctx, data); err != nil {
			utils.Warn("Screenshot archive failed", "error", err)
		}
	}

	return tools.Result{
		Image: &tools.Image{
			Data:      base64.StdEncoding.EncodeToString(data),
			MediaType: "image/png",
		},
	}
}

// Ensure Tool implements tools.Tool
var _ tools.Tool = (*Tool)(nil)
