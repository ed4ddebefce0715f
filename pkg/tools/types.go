// Интерфейс Tool и структуры определений.

package tools

import (
	"context"
	"fmt"
)

// JSONSchema представляет JSON Schema для параметров инструмента.
//
// Используется вместо interface{} для типобезопасности.
// Формат соответствует JSON Schema specification для Function Calling API.
type JSONSchema map[string]any

// ToolDefinition описывает инструмент для LLM (Function Calling API format).
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"` // JSON Schema объекта аргументов
}

// Image — захваченный инструментом снимок экрана.
type Image struct {
	// Data — base64 без префикса data:
	Data string

	// MediaType — MIME тип, например "image/png"
	MediaType string
}

// Result — единый результат выполнения одного вызова инструмента.
//
// Error и Output не взаимоисключающие: инструмент может вернуть
// частичный вывод вместе с ошибкой. Создаётся исполнителем один раз
// и после этого не мутируется.
type Result struct {
	// Output — текстовый вывод инструмента (опционально)
	Output string

	// Error — описание ошибки выполнения или валидации (опционально).
	// Ошибки инструментов не фатальны: они возвращаются модели как текст,
	// чтобы она могла скорректировать следующий вызов.
	Error string

	// Image — скриншот (опционально)
	Image *Image
}

// OK сообщает, завершился ли вызов без ошибки.
func (r Result) OK() bool {
	return r.Error == ""
}

// Errorf — шорткат для Result с единственным полем Error.
func Errorf(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Tool — контракт, который должен реализовать любой инструмент.
//
// Execute тотален: любая проблема (невалидные аргументы, отказ бэкенда)
// упаковывается в Result.Error, наружу ошибка не выходит.
type Tool interface {
	// Definition возвращает описание инструмента для LLM.
	Definition() ToolDefinition

	// Execute выполняет логику инструмента.
	// argsJSON — это сырой JSON с аргументами, который прислала LLM.
	Execute(ctx context.Context, argsJSON string) Result
}

// Version — тег версии набора инструментов.
//
// Выбирает фиксированную коллекцию инструментов при сборке реестра
// (см. internal/app). Неизвестная версия — ошибка конфигурации.
type Version string

// Известные версии наборов инструментов.
const (
	Version20250124 Version = "computer_use_20250124"
)
