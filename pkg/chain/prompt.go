package chain

import (
	"fmt"
	"runtime"

	"github.com/ovchar/kursor/pkg/config"
)

// BuildSystemPrompt формирует системный промпт основного цикла.
//
// Промпт объявляет модели её возможности и размеры экрана.
// suffix из конфигурации дописывается в конец: окружение может
// добавить специфику конкретной машины.
func BuildSystemPrompt(screen config.ScreenConfig, suffix string) string {
	prompt := fmt.Sprintf(`<SYSTEM_CAPABILITY>
* You are utilising an Ubuntu virtual machine using %s architecture with internet access.
* You can only take screenshots, move a mouse and do a left click.
* If you are not sure of location of something, ALWAYS take screenshot to verify it.
* You can assume that the size of a screen is width = %d , height = %d.
</SYSTEM_CAPABILITY>`, runtime.GOARCH, screen.Width, screen.Height)

	if suffix != "" {
		prompt += "\n" + suffix
	}
	return prompt
}
