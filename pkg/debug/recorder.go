package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Recorder записывает трейс выполнения цикла и сохраняет в JSON файл.
//
// Потокобезопасен — действия одной итерации могут записываться
// из разных горутин.
type Recorder struct {
	mu sync.Mutex

	config RecorderConfig

	// log — накапливаемый трейс выполнения
	log SessionTrace

	// currentIteration — текущая итерация (заполняется по мере выполнения)
	currentIteration *Iteration
	iterationStart   time.Time

	errors []string
}

// RecorderConfig конфигурация для создания Recorder.
type RecorderConfig struct {
	// LogsDir — директория для сохранения трейсов
	LogsDir string

	// IncludeArgs — включать аргументы действий в трейс
	IncludeArgs bool

	// MaxResultSize — максимальный размер результата (превышение обрезается)
	// 0 означает без ограничений
	MaxResultSize int
}

// NewRecorder создает новый Recorder с заданной конфигурацией.
//
// Если LogsDir не существует, пытается создать её.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.LogsDir != "" {
		if err := os.MkdirAll(cfg.LogsDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}
	}

	runID := fmt.Sprintf("trace_%s", time.Now().Format("20060102_150405"))

	return &Recorder{
		config: cfg,
		log: SessionTrace{
			RunID:     runID,
			Timestamp: time.Now(),
		},
		errors: make([]string, 0),
	}, nil
}

// Start начинает запись сессии с задачей пользователя.
func (r *Recorder) Start(userQuery, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.UserQuery = userQuery
	r.log.Model = model
	r.log.Timestamp = time.Now()
}

// StartIteration начинает запись новой итерации.
func (r *Recorder) StartIteration(num int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.currentIteration = &Iteration{Number: num}
	r.iterationStart = time.Now()
}

// RecordModelCall записывает обращение к модели и её ответ.
func (r *Recorder) RecordModelCall(call ModelCall) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentIteration == nil {
		return
	}
	r.currentIteration.ModelCall = call

	if call.Error != "" {
		r.errors = append(r.errors, fmt.Sprintf("model call: %s", call.Error))
	}
}

// RecordAction записывает выполнение одного действия.
func (r *Recorder) RecordAction(action ActionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentIteration == nil {
		return
	}

	if !r.config.IncludeArgs {
		action.Args = ""
	}
	if r.config.MaxResultSize > 0 && len(action.Result) > r.config.MaxResultSize {
		action.Result = action.Result[:r.config.MaxResultSize] + "... (truncated)"
		action.ResultTruncated = true
	}

	r.currentIteration.Actions = append(r.currentIteration.Actions, action)

	if !action.Success && action.Error != "" {
		r.errors = append(r.errors, fmt.Sprintf("action %s: %s", action.Name, action.Error))
	}
}

// EndIteration завершает текущую итерацию.
//
// isFinal помечает итерацию без запрошенных действий.
func (r *Recorder) EndIteration(isFinal bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentIteration == nil {
		return
	}
	r.currentIteration.Duration = time.Since(r.iterationStart).Milliseconds()
	r.currentIteration.IsFinal = isFinal
	r.log.Iterations = append(r.log.Iterations, *r.currentIteration)
	r.currentIteration = nil
}

// Finalize завершает запись и сохраняет трейс в файл.
//
// Возвращает путь к сохраненному файлу или ошибку.
func (r *Recorder) Finalize(finalResult string, runErr error, duration time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.FinalResult = finalResult
	r.log.Duration = duration.Milliseconds()
	if runErr != nil {
		r.log.Error = runErr.Error()
	}

	r.buildSummary()

	data, err := json.MarshalIndent(r.log, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal session trace: %w", err)
	}

	filePath := r.getFilePath()
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write session trace: %w", err)
	}

	return filePath, nil
}

// buildSummary формирует агрегированную статистику.
func (r *Recorder) buildSummary() {
	summary := Summary{Errors: r.errors}

	for _, iter := range r.log.Iterations {
		summary.TotalModelCalls++
		summary.TotalModelDuration += iter.ModelCall.Duration

		for _, action := range iter.Actions {
			summary.TotalActions++
			summary.TotalActionDuration += action.Duration
			if action.VisionSummary != "" {
				summary.Screenshots++
			}
		}
	}

	r.log.Summary = summary
}

// getFilePath возвращает путь к файлу для сохранения.
func (r *Recorder) getFilePath() string {
	if r.config.LogsDir != "" {
		return filepath.Join(r.config.LogsDir, r.log.RunID+".json")
	}
	return r.log.RunID + ".json"
}

// GetRunID возвращает идентификатор текущей сессии.
func (r *Recorder) GetRunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.RunID
}
