// Интерфейс Провайдера через который работает всё приложение.

package llm

import "context"

// Provider — контракт для любого AI-сервиса.
//
// opts принимает []tools.ToolDefinition (для Function Calling)
// и функциональные опции GenerateOption (WithMaxTokens и т.д.).
// Variadic any вместо типизированного аргумента — чтобы llm
// не зависел от pkg/tools (иначе цикл импортов).
type Provider interface {
	// Generate отправляет историю сообщений и возвращает ответ модели.
	//
	// Ответ может содержать ToolCalls — тогда вызывающая сторона обязана
	// выполнить каждый из них и вернуть результаты tool сообщениями.
	Generate(ctx context.Context, messages []Message, opts ...any) (Message, error)
}
