// Базовые типы - универсальный язык общения с моделями.
package llm

// Role — роль сообщения в диалоге.
type Role string

// Роли сообщений (совпадают со значениями OpenAI Chat Completions API).
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message — одно сообщение диалога.
//
// История диалога — упорядоченный слайс Message, к которому только
// добавляют в конец. Порядок вставки и есть порядок ходов.
type Message struct {
	// Role — кто говорит
	Role Role

	// Content — текстовое содержимое
	Content string

	// Images — data URL картинок для vision запросов (опционально)
	Images []string

	// ToolCalls — запрошенные моделью вызовы инструментов.
	// Заполнено только для assistant сообщений.
	ToolCalls []ToolCall

	// ToolCallID — обратная ссылка на вызов, который породил это сообщение.
	// Заполнено только для tool сообщений.
	ToolCallID string
}

// ToolCall — один запрошенный моделью вызов инструмента.
//
// Создаётся при парсинге ответа модели, иммутабелен,
// исполняется ровно один раз.
type ToolCall struct {
	// ID — непрозрачный идентификатор вызова (уникален в пределах ответа)
	ID string

	// Name — имя инструмента
	Name string

	// Args — сырой JSON с аргументами, как его прислала модель
	Args string
}
