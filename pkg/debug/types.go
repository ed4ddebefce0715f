// Package debug предоставляет запись трейсов выполнения цикла управления экраном.
//
// Пакет сохраняет детальные трейсы в JSON формате для последующего
// анализа: какие действия запрашивала модель, что вернули инструменты,
// как vision модель описывала скриншоты.
package debug

import "time"

// SessionTrace представляет полный трейс одного запуска цикла.
//
// Сохраняется в JSON файл и содержит всю информацию о выполнении:
// вызовы модели, действия на экране, временные метрики, ошибки.
type SessionTrace struct {
	// RunID — уникальный идентификатор запуска (используется в имени файла)
	RunID string `json:"run_id"`

	// Timestamp — время начала выполнения
	Timestamp time.Time `json:"timestamp"`

	// UserQuery — исходная задача пользователя
	UserQuery string `json:"user_query"`

	// Model — модель основного цикла
	Model string `json:"model,omitempty"`

	// Duration — общая длительность выполнения в миллисекундах
	Duration int64 `json:"duration_ms"`

	// Iterations — итерации цикла
	Iterations []Iteration `json:"iterations"`

	// Summary — агрегированная статистика
	Summary Summary `json:"summary"`

	// FinalResult — финальный текстовый ответ модели
	FinalResult string `json:"final_result,omitempty"`

	// Error — ошибка если выполнение завершилось неудачно
	Error string `json:"error,omitempty"`
}

// Iteration представляет одну итерацию цикла: вызов модели
// плюс выполненные по её запросу действия.
type Iteration struct {
	// Number — номер итерации (начиная с 1)
	Number int `json:"iteration"`

	// Duration — длительность итерации в миллисекундах
	Duration int64 `json:"duration_ms"`

	// ModelCall — информация об обращении к модели
	ModelCall ModelCall `json:"model_call"`

	// Actions — действия, выполненные на этой итерации
	Actions []ActionRecord `json:"actions,omitempty"`

	// IsFinal — true если модель не запросила действий
	IsFinal bool `json:"is_final,omitempty"`
}

// ModelCall содержит запрос к модели и её ответ.
type ModelCall struct {
	// MessagesCount — количество сообщений в запросе
	MessagesCount int `json:"messages_count"`

	// Content — текстовая часть ответа
	Content string `json:"content,omitempty"`

	// ToolCalls — запрошенные моделью действия
	ToolCalls []ToolCallInfo `json:"tool_calls,omitempty"`

	// Duration — длительность вызова в миллисекундах
	Duration int64 `json:"duration_ms"`

	// Error — ошибка если вызов провалился
	Error string `json:"error,omitempty"`
}

// ToolCallInfo описывает один запрошенный вызов инструмента.
type ToolCallInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args string `json:"args"`
}

// ActionRecord описывает выполнение одного действия на экране.
type ActionRecord struct {
	// CallID — идентификатор вызова от модели
	CallID string `json:"call_id"`

	// Name — имя инструмента
	Name string `json:"name"`

	// Args — аргументы (может быть обрезано по MaxResultSize)
	Args string `json:"args,omitempty"`

	// Result — закодированный результат, ушедший модели
	Result string `json:"result,omitempty"`

	// ResultTruncated — true если результат был обрезан
	ResultTruncated bool `json:"result_truncated,omitempty"`

	// VisionSummary — описание скриншота, если действие его снимало
	VisionSummary string `json:"vision_summary,omitempty"`

	// Duration — длительность выполнения в миллисекундах
	Duration int64 `json:"duration_ms"`

	// Success — true если действие прошло без ошибки
	Success bool `json:"success"`

	// Error — описание ошибки если неуспешно
	Error string `json:"error,omitempty"`
}

// Summary содержит агрегированную статистику выполнения.
type Summary struct {
	// TotalModelCalls — общее количество обращений к модели
	TotalModelCalls int `json:"total_model_calls"`

	// TotalActions — общее количество выполненных действий
	TotalActions int `json:"total_actions"`

	// TotalModelDuration — суммарное время вызовов модели в миллисекундах
	TotalModelDuration int64 `json:"total_model_duration_ms"`

	// TotalActionDuration — суммарное время действий в миллисекундах
	TotalActionDuration int64 `json:"total_action_duration_ms"`

	// Screenshots — количество снятых скриншотов
	Screenshots int `json:"screenshots"`

	// Errors — список всех ошибок выполнения
	Errors []string `json:"errors,omitempty"`
}
