// Бэкенды управления экраном.
//
// Tool не знает как именно двигается курсор и снимается скриншот —
// он работает через интерфейс Display. Продакшен реализация дёргает
// утилиты X11 (xdotool, scrot) против виртуального дисплея,
// тесты подставляют скриптованный фейк.
package computer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ovchar/kursor/pkg/config"
	"github.com/ovchar/kursor/pkg/utils"
)

// Display — контракт бэкенда симулированного ввода.
type Display interface {
	// MoveCursor перемещает курсор в абсолютные координаты экрана.
	MoveCursor(ctx context.Context, x, y int) error

	// Click выполняет левый клик в текущей позиции курсора.
	Click(ctx context.Context) error

	// CaptureScreen снимает скриншот всего экрана и возвращает PNG байты.
	CaptureScreen(ctx context.Context) ([]byte, error)
}

// X11Display — реализация Display поверх консольных утилит X11.
//
// Команды задаются конфигом (tools.move_cmd, tools.screenshot_cmd),
// дисплей — screen.display. Никакого cgo: только os/exec.
type X11Display struct {
	display string
	moveCmd string
	shotCmd string
}

// NewX11Display создаёт бэкенд из конфигурации.
func NewX11Display(screen config.ScreenConfig, tools config.ToolsConfig) *X11Display {
	tc := tools.GetDefaults()
	return &X11Display{
		display: screen.Display,
		moveCmd: tc.MoveCmd,
		shotCmd: tc.ScreenshotCmd,
	}
}

// env возвращает окружение процесса с переопределённым DISPLAY.
func (d *X11Display) env() []string {
	if d.display == "" {
		return os.Environ()
	}
	return append(os.Environ(), "DISPLAY="+d.display)
}

// MoveCursor вызывает `xdotool mousemove X Y`.
func (d *X11Display) MoveCursor(ctx context.Context, x, y int) error {
	cmd := exec.CommandContext(ctx, d.moveCmd, "mousemove", strconv.Itoa(x), strconv.Itoa(y))
	cmd.Env = d.env()
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s mousemove failed: %w (%s)", d.moveCmd, err, string(out))
	}
	return nil
}

// Click вызывает `xdotool click 1`.
func (d *X11Display) Click(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, d.moveCmd, "click", "1")
	cmd.Env = d.env()
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s click failed: %w (%s)", d.moveCmd, err, string(out))
	}
	return nil
}

// CaptureScreen снимает скриншот через `scrot -o <file>` и читает файл.
//
// scrot не умеет писать PNG в stdout во всех версиях, поэтому
// ходим через временный файл.
func (d *X11Display) CaptureScreen(ctx context.Context) ([]byte, error) {
	start := time.Now()

	path := filepath.Join(os.TempDir(), fmt.Sprintf("kursor-shot-%d.png", time.Now().UnixNano()))
	defer os.Remove(path)

	cmd := exec.CommandContext(ctx, d.shotCmd, "-o", path)
	cmd.Env = d.env()
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s failed: %w (%s)", d.shotCmd, err, string(out))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read screenshot file: %w", err)
	}

	utils.Debug("Screenshot captured",
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds())

	return data, nil
}

// Ensure X11Display implements Display
var _ Display = (*X11Display)(nil)
