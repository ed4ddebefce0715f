// Package app собирает приложение из библиотечных компонентов
// и хранит его состояние.
//
// AppState содержит application-specific логику оболочек (TUI/CLI)
// и встраивает CoreState для переиспользуемой части.
package app

import (
	"sync"

	"github.com/ovchar/kursor/pkg/chain"
	"github.com/ovchar/kursor/pkg/config"
	"github.com/ovchar/kursor/pkg/debug"
	"github.com/ovchar/kursor/pkg/events"
	"github.com/ovchar/kursor/pkg/state"
)

// AppState представляет состояние приложения (TUI/CLI specific).
//
// Встраивает CoreState (композиция) для библиотечной логики и
// добавляет application-specific поля для интерфейса.
type AppState struct {
	// CoreState — встроенное core состояние сессии
	*state.CoreState

	// Loop — цикл управления экраном
	Loop *chain.Loop

	// Emitter — шина событий для UI
	Emitter *events.ChanEmitter

	// DebugConfig — параметры записи трейсов, nil если debug выключен.
	// Recorder создаётся заново на каждый запрос: один трейс = одна задача.
	DebugConfig *debug.RecorderConfig

	// mu защищает доступ к CurrentModel и IsProcessing
	mu sync.RWMutex

	// CurrentModel — алиас активной модели для отображения в UI
	CurrentModel string

	// IsProcessing — флаг занятости цикла (UI spinner)
	IsProcessing bool
}

// NewAppState создает новое состояние приложения.
//
// Loop и Emitter устанавливаются в Initialize.
func NewAppState(cfg *config.AppConfig) *AppState {
	return &AppState{
		CoreState:    state.NewCoreState(cfg, nil),
		CurrentModel: cfg.Models.DefaultChat,
	}
}

// SetProcessing меняет статус занятости (для спиннера в UI).
//
// Thread-safe.
func (s *AppState) SetProcessing(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IsProcessing = busy
}

// GetProcessing возвращает текущий статус занятости.
//
// Thread-safe.
func (s *AppState) GetProcessing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.IsProcessing
}

// SetCurrentModel обновляет алиас активной модели.
//
// Thread-safe.
func (s *AppState) SetCurrentModel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentModel = name
}

// GetCurrentModel возвращает алиас активной модели.
//
// Thread-safe.
func (s *AppState) GetCurrentModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrentModel
}
