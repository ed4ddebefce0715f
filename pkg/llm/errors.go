// Классификация ошибок обращения к модели.
//
// Вызывающей стороне важно различать два класса отказа:
// транспорт (сеть недоступна, timeout — имеет смысл повторить запрос)
// и протокол (endpoint ответил, но ответ не годится — повтор бессмыслен).
package llm

import "errors"

var (
	// ErrTransport — сетевая ошибка: endpoint недоступен, соединение
	// оборвалось, сработал timeout или отмена контекста.
	ErrTransport = errors.New("llm: transport failure")

	// ErrProtocol — endpoint ответил, но ответ невалиден: ошибка API,
	// пустой список choices, неожиданная структура.
	ErrProtocol = errors.New("llm: protocol failure")
)

// IsTransport сообщает, относится ли ошибка к транспортному классу.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsProtocol сообщает, относится ли ошибка к протокольному классу.
func IsProtocol(err error) bool {
	return errors.Is(err, ErrProtocol)
}
