// Package factory создаёт LLM провайдеров по конфигурации.
package factory

import (
	"fmt"

	"github.com/ovchar/kursor/pkg/config"
	"github.com/ovchar/kursor/pkg/llm"
	"github.com/ovchar/kursor/pkg/llm/openai"
)

// NewLLMProvider создает провайдера на основе конфигурации модели.
//
// Все перечисленные провайдеры говорят на OpenAI-совместимом протоколе,
// различаются только BaseURL и набором моделей.
func NewLLMProvider(modelDef config.ModelDef) (llm.Provider, error) {
	switch modelDef.Provider {
	case "openai", "openrouter", "nebius", "zai", "deepseek":
		return openai.NewClient(modelDef), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s", modelDef.Provider)
	}
}
