package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ovchar/kursor/pkg/chain"
	"github.com/ovchar/kursor/pkg/debug"
	"github.com/ovchar/kursor/pkg/llm"
	"github.com/ovchar/kursor/pkg/tools"
	"github.com/ovchar/kursor/pkg/utils"
)

// RunQuery выполняет задачу пользователя через цикл управления экраном.
//
// История берётся из состояния, расширяется циклом и фиксируется
// обратно. Даже при ошибке зафиксированная часть истории сохраняется:
// пользователь видит, докуда агент дошёл.
//
// Возвращает финальный текстовый ответ модели.
func (s *AppState) RunQuery(ctx context.Context, query string) (string, error) {
	if s.Loop == nil {
		return "", fmt.Errorf("application is not initialized")
	}

	s.SetProcessing(true)
	defer s.SetProcessing(false)

	s.AppendMessage(llm.Message{Role: llm.RoleUser, Content: query})

	// Счётчики вызываются из горутин executeBatch, поэтому atomic
	var actions, failedActions atomic.Int64
	input := chain.Input{
		Model:    s.GetCurrentModel(),
		Messages: s.GetHistory(),
		Callbacks: chain.Callbacks{
			OnToolResult: func(callID string, result tools.Result) {
				actions.Add(1)
				if !result.OK() {
					failedActions.Add(1)
				}
			},
		},
	}

	// Каждый запрос пишет собственный трейс
	var recorder *debug.Recorder
	if s.DebugConfig != nil {
		var recErr error
		recorder, recErr = debug.NewRecorder(*s.DebugConfig)
		if recErr != nil {
			utils.Warn("Failed to init debug recorder", "error", recErr)
		} else {
			recorder.Start(query, s.GetCurrentModel())
			s.Loop.AttachDebug(recorder)
			defer s.Loop.AttachDebug(nil)
		}
	}
	start := time.Now()

	var history []llm.Message
	var err error
	if max := s.Config.App.MaxIterations; max > 0 {
		history, err = chain.RunBounded(ctx, s.Loop, input, max)
	} else {
		history, err = s.Loop.Run(ctx, input)
	}

	// Историю фиксируем даже при ошибке: она консистентна
	if len(history) > 0 {
		s.ReplaceHistory(history)
	}

	if recorder != nil {
		final := ""
		if err == nil && len(history) > 0 {
			final = history[len(history)-1].Content
		}
		path, saveErr := recorder.Finalize(final, err, time.Since(start))
		if saveErr != nil {
			utils.Warn("Failed to save debug trace", "error", saveErr)
		} else {
			utils.Debug("Debug trace saved", "path", path)
		}
	}

	if err != nil {
		if errors.Is(err, chain.ErrIterationLimit) {
			utils.Warn("Query stopped by iteration limit", "query", query)
			return "", err
		}
		utils.Error("Query failed", "query", query, "error", err)
		return "", err
	}

	utils.Info("Query finished",
		"actions", actions.Load(),
		"failed_actions", failedActions.Load(),
		"duration_ms", time.Since(start).Milliseconds())

	final := history[len(history)-1]
	return final.Content, nil
}
