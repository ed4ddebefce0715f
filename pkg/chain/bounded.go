package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ovchar/kursor/pkg/llm"
)

// ErrIterationLimit возвращается когда внешний лимит итераций
// исчерпан раньше финального ответа модели.
var ErrIterationLimit = errors.New("chain: iteration limit reached")

// RunBounded выполняет цикл с внешним лимитом итераций.
//
// Сам Loop лимита не имеет: ограничение — политика вызывающей стороны.
// При исчерпании лимита возвращается накопленная история и
// ErrIterationLimit; история при этом консистентна, каждая
// зафиксированная итерация полная.
func RunBounded(ctx context.Context, l *Loop, input Input, maxIterations int) ([]llm.Message, error) {
	if maxIterations <= 0 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", maxIterations)
	}
	if err := l.validateDependencies(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}

	history := append([]llm.Message(nil), input.Messages...)

	for iteration := 1; iteration <= maxIterations; iteration++ {
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

	return history, fmt.Errorf("%w: %d iterations", ErrIterationLimit, maxIterations)
}
