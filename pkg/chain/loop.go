package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ovchar/kursor/pkg/debug"
	"github.com/ovchar/kursor/pkg/events"
	"github.com/ovchar/kursor/pkg/llm"
	"github.com/ovchar/kursor/pkg/models"
	"github.com/ovchar/kursor/pkg/tools"
	"github.com/ovchar/kursor/pkg/utils"
)

// Describer превращает base64 PNG скриншот в текстовое описание.
//
// Разделён интерфейсом для мокинга в тестах. Реализация обязана быть
// тотальной: любой отказ превращается в текст, не в ошибку.
type Describer interface {
	Describe(ctx context.Context, b64PNG string, convContext []llm.Message) string
}

// Callbacks — опциональные хуки наблюдения за циклом.
//
// Все поля могут быть nil. Вызываются синхронно из Run,
// долгие обработчики затормозят цикл.
type Callbacks struct {
	// OnAssistant вызывается после каждого успешного ответа модели.
	OnAssistant func(msg llm.Message)

	// OnToolResult вызывается после выполнения каждого действия.
	OnToolResult func(callID string, result tools.Result)

	// OnAPIResponse вызывается после каждого обращения к API,
	// включая неудачные.
	OnAPIResponse func(model string, err error)
}

// Input — вход одного запуска цикла.
type Input struct {
	// Model — алиас модели в реестре. Пустая строка = дефолтная модель.
	Model string

	// Messages — стартовая история диалога. Цикл её не мутирует:
	// работает с копией и возвращает расширенную историю.
	Messages []llm.Message

	// Callbacks — опциональные хуки наблюдения.
	Callbacks Callbacks
}

// Loop — цикл управления экраном.
//
// Цикл выполняет:
// 1. Модель анализирует контекст и решает что делать
// 2. Если запрошены действия — выполняет их и кодирует результаты
// 3. Повторяет пока модель не ответит без tool calls
//
// Immutable template: зависимости устанавливаются до первого Run,
// mutable поля (emitter, recorder) защищены RWMutex. Несколько Run
// могут работать параллельно.
type Loop struct {
	// Dependencies (immutable после setup)
	modelRegistry *models.Registry
	registry      *tools.Registry
	describer     Describer

	defaultModel string
	systemPrompt string

	// keepRecentImages — сколько последних описаний скриншотов
	// оставлять в исходящей проекции истории. 0 = без фильтра.
	keepRecentImages int

	// toolTimeout — защитный timeout одного действия
	toolTimeout time.Duration

	// Runtime defaults protection
	mu       sync.RWMutex
	emitter  events.Emitter
	recorder *debug.Recorder
}

// LoopConfig — параметры создания цикла.
type LoopConfig struct {
	DefaultModel     string
	SystemPrompt     string
	KeepRecentImages int
	ToolTimeout      time.Duration
}

// NewLoop создаёт цикл с заданной конфигурацией.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 30 * time.Second
	}
	return &Loop{
		defaultModel:     cfg.DefaultModel,
		systemPrompt:     cfg.SystemPrompt,
		keepRecentImages: cfg.KeepRecentImages,
		toolTimeout:      cfg.ToolTimeout,
	}
}

// SetModelRegistry устанавливает реестр моделей.
func (l *Loop) SetModelRegistry(registry *models.Registry) {
	l.modelRegistry = registry
}

// SetRegistry устанавливает реестр инструментов.
func (l *Loop) SetRegistry(registry *tools.Registry) {
	l.registry = registry
}

// SetDescriber устанавливает vision суммаризатор скриншотов.
//
// Опционален: без него описания скриншотов заменяются заглушкой.
func (l *Loop) SetDescriber(d Describer) {
	l.describer = d
}

// SetEmitter устанавливает emitter для отправки событий в UI.
//
// Port & Adapter pattern: Loop зависит от абстракции events.Emitter.
// Thread-safe.
func (l *Loop) SetEmitter(emitter events.Emitter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.emitter = emitter
}

// AttachDebug присоединяет recorder трейсов к циклу.
//
// Thread-safe.
func (l *Loop) AttachDebug(recorder *debug.Recorder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recorder = recorder
}

// validateDependencies проверяет что обязательные зависимости установлены.
func (l *Loop) validateDependencies() error {
	if l.modelRegistry == nil {
		return fmt.Errorf("model registry is not set (call SetModelRegistry)")
	}
	if l.defaultModel == "" {
		return fmt.Errorf("default model is not set")
	}
	if l.registry == nil {
		return fmt.Errorf("tools registry is not set (call SetRegistry)")
	}
	// describer, emitter, recorder опциональны
	return nil
}

// Run выполняет цикл до финального ответа модели.
//
// Возвращает расширенную историю диалога. История append-only:
// возвращённый слайс начинается с копии input.Messages.
//
// При ошибке обращения к модели возвращает историю, зафиксированную
// до начала неудачной итерации, и типизированную ошибку
// (llm.ErrTransport или llm.ErrProtocol). Частично заполненных
// итераций в истории не бывает.
//
// Внутреннего лимита итераций нет: ограничение по итерациям — внешняя
// политика, см. RunBounded.
func (l *Loop) Run(ctx context.Context, input Input) ([]llm.Message, error) {
	if err := l.validateDependencies(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}

	history := append([]llm.Message(nil), input.Messages...)

	for iteration := 1; ; iteration++ {
		var done bool
		var err error
		history, done, err = l.step(ctx, history, input, iteration)
		if err != nil {
			return history, err
		}
		if done {
			return history, nil
		}
	}
}

// step выполняет одну итерацию: вызов модели и, если запрошены,
// действия. Возвращает обновлённую историю и done=true когда модель
// ответила без tool calls.
//
// Коммит в history атомарен по итерации: при ошибке модели history
// возвращается без изменений этой итерации.
func (l *Loop) step(ctx context.Context, history []llm.Message, input Input, iteration int) ([]llm.Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return history, false, fmt.Errorf("%w: %v", llm.ErrTransport, err)
	}

	l.mu.RLock()
	emitter := l.emitter
	recorder := l.recorder
	l.mu.RUnlock()

	provider, _, modelName, err := l.modelRegistry.GetWithFallback(input.Model, l.defaultModel)
	if err != nil {
		return history, false, fmt.Errorf("%w: %v", llm.ErrProtocol, err)
	}

	emit(ctx, emitter, events.EventThinking, events.ThinkingData{Model: modelName, Iteration: iteration})
	if recorder != nil {
		recorder.StartIteration(iteration)
	}

	outbound := l.projectOutbound(history)

	callStart := time.Now()
	resp, err := provider.Generate(ctx, outbound, l.registry.GetDefinitions())
	callDuration := time.Since(callStart)

	if input.Callbacks.OnAPIResponse != nil {
		input.Callbacks.OnAPIResponse(modelName, err)
	}

	if err != nil {
		utils.Error("Model call failed", "model", modelName, "iteration", iteration, "error", err)
		emit(ctx, emitter, events.EventError, events.ErrorData{Err: err})
		if recorder != nil {
			recorder.RecordModelCall(debug.ModelCall{
				MessagesCount: len(outbound),
				Duration:      callDuration.Milliseconds(),
				Error:         err.Error(),
			})
			recorder.EndIteration(false)
		}
		return history, false, err
	}

	if recorder != nil {
		recorder.RecordModelCall(debug.ModelCall{
			MessagesCount: len(outbound),
			Content:       resp.Content,
			ToolCalls:     toolCallInfos(resp.ToolCalls),
			Duration:      callDuration.Milliseconds(),
		})
	}

	history = append(history, resp)

	if input.Callbacks.OnAssistant != nil {
		input.Callbacks.OnAssistant(resp)
	}
	if resp.Content != "" {
		emit(ctx, emitter, events.EventMessage, events.MessageData{Content: resp.Content})
	}

	if len(resp.ToolCalls) == 0 {
		emit(ctx, emitter, events.EventDone, events.MessageData{Content: resp.Content})
		if recorder != nil {
			recorder.EndIteration(true)
		}
		utils.Info("Loop finished", "iterations", iteration)
		return history, true, nil
	}

	toolMsgs := l.executeBatch(ctx, resp.ToolCalls, history, input, emitter, recorder)
	history = append(history, toolMsgs...)

	if recorder != nil {
		recorder.EndIteration(false)
	}
	return history, false, nil
}

// executeBatch выполняет все tool calls итерации и возвращает
// tool сообщения в порядке запроса.
//
// Действия выполняются конкурентно, но результаты всегда отдаются
// в том порядке, в котором модель их запросила: ответы кладутся
// в слайс по индексу вызова.
func (l *Loop) executeBatch(ctx context.Context, calls []llm.ToolCall, history []llm.Message, input Input, emitter events.Emitter, recorder *debug.Recorder) []llm.Message {
	results := make([]llm.Message, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		emit(ctx, emitter, events.EventToolCall, events.ToolCallData{
			CallID:   call.ID,
			ToolName: call.Name,
			Args:     call.Args,
		})

		wg.Add(1)
		go func(idx int, tc llm.ToolCall) {
			defer wg.Done()
			results[idx] = l.executeOne(ctx, tc, history, input, emitter, recorder)
		}(i, call)
	}
	wg.Wait()

	return results
}

// executeOne выполняет один tool call и кодирует результат
// в tool сообщение.
func (l *Loop) executeOne(ctx context.Context, call llm.ToolCall, history []llm.Message, input Input, emitter events.Emitter, recorder *debug.Recorder) llm.Message {
	toolCtx, cancel := context.WithTimeout(ctx, l.toolTimeout)
	defer cancel()

	start := time.Now()
	result := l.registry.Execute(toolCtx, call.Name, call.Args)
	duration := time.Since(start)

	// Скриншот уходит модели текстом: описание занимает место данных
	var imageText string
	if result.Image != nil {
		imageText = l.describeImage(ctx, result.Image.Data, history)
		emit(ctx, emitter, events.EventScreenshot, events.ScreenshotData{Summary: imageText})
	}

	content := EncodeToolResult(result, imageText)

	if input.Callbacks.OnToolResult != nil {
		input.Callbacks.OnToolResult(call.ID, result)
	}
	emit(ctx, emitter, events.EventToolResult, events.ToolResultData{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  content,
		IsError:  !result.OK(),
		Duration: duration,
	})
	if recorder != nil {
		recorder.RecordAction(debug.ActionRecord{
			CallID:        call.ID,
			Name:          call.Name,
			Args:          call.Args,
			Result:        content,
			VisionSummary: imageText,
			Duration:      duration.Milliseconds(),
			Success:       result.OK(),
			Error:         result.Error,
		})
	}

	return llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: call.ID,
		Content:    content,
	}
}

// describeImage зовёт vision суммаризатор, если он подключен.
func (l *Loop) describeImage(ctx context.Context, b64PNG string, history []llm.Message) string {
	if l.describer == nil {
		return "[no vision model configured]"
	}
	return l.describer.Describe(ctx, b64PNG, history)
}

// projectOutbound собирает проекцию истории для отправки модели.
//
// Системный промпт добавляется только здесь: в хранимой истории
// его нет. Фильтр keepRecentImages действует тоже только на проекцию,
// сама история не переписывается.
func (l *Loop) projectOutbound(history []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	out = append(out, llm.Message{
		Role:    llm.RoleSystem,
		Content: l.systemPrompt,
	})
	out = append(out, filterImages(history, l.keepRecentImages)...)
	return out
}

// filterImages оставляет описания только у keep последних скриншотов.
//
// У более старых tool сообщений image блок вырезается из payload,
// текст ошибки сохраняется. keep <= 0 отключает фильтр.
func filterImages(history []llm.Message, keep int) []llm.Message {
	if keep <= 0 {
		return history
	}

	// Считаем с конца, какие сообщения несут картинку
	seen := 0
	strip := make(map[int]bool)
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.Role != llm.RoleTool {
			continue
		}
		payload, ok := decodeToolPayload(m.Content)
		if !ok || payload.Image == nil {
			continue
		}
		seen++
		if seen > keep {
			strip[i] = true
		}
	}

	if len(strip) == 0 {
		return history
	}

	out := make([]llm.Message, len(history))
	copy(out, history)
	for i := range out {
		if !strip[i] {
			continue
		}
		payload, _ := decodeToolPayload(out[i].Content)
		payload.Image = nil
		out[i].Content = marshalToolPayload(payload)
	}
	return out
}

// toolCallInfos конвертирует tool calls для debug трейса.
func toolCallInfos(calls []llm.ToolCall) []debug.ToolCallInfo {
	if len(calls) == 0 {
		return nil
	}
	infos := make([]debug.ToolCallInfo, len(calls))
	for i, tc := range calls {
		infos[i] = debug.ToolCallInfo{ID: tc.ID, Name: tc.Name, Args: tc.Args}
	}
	return infos
}

// emit отправляет событие если emitter подключен.
func emit(ctx context.Context, emitter events.Emitter, t events.EventType, data events.EventData) {
	if emitter == nil {
		return
	}
	emitter.Emit(ctx, events.Event{
		Type:      t,
		Data:      data,
		Timestamp: time.Now(),
	})
}
