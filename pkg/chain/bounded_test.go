package chain

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ovchar/kursor/pkg/llm"
	"github.com/ovchar/kursor/pkg/tools"
)

// endlessProvider всегда запрашивает ещё одно действие.
type endlessProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *endlessProvider) Generate(_ context.Context, _ []llm.Message, _ ...any) (llm.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return assistantWithCalls(llm.ToolCall{ID: "c", Name: "computer", Args: "{}"}), nil
}

func TestRunBounded_StopsAtLimit(t *testing.T) {
	tool := &funcTool{name: "computer", fn: func(_ context.Context, _ string) tools.Result {
		return tools.Result{Output: "ok"}
	}}
	provider := &endlessProvider{}
	loop := newTestLoop(t, provider, tool)

	history, err := RunBounded(context.Background(), loop, Input{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "loop forever"}},
	}, 3)

	if !errors.Is(err, ErrIterationLimit) {
		t.Fatalf("expected iteration limit error, got %v", err)
	}
	if provider.calls != 3 {
		t.Errorf("expected exactly 3 model calls, got %d", provider.calls)
	}

	// Каждая зафиксированная итерация полная: assistant + tool ответ
	if len(history) != 1+3*2 {
		t.Errorf("expected 7 messages, got %d", len(history))
	}
	last := history[len(history)-1]
	if last.Role != llm.RoleTool {
		t.Errorf("history must end with a completed iteration, got %s", last.Role)
	}
}

func TestRunBounded_FinishesBeforeLimit(t *testing.T) {
	provider := &scriptProvider{
		responses: []llm.Message{{Role: llm.RoleAssistant, Content: "instant"}},
	}
	loop := newTestLoop(t, provider, nil)

	history, err := RunBounded(context.Background(), loop, Input{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "quick"}},
	}, 10)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if history[len(history)-1].Content != "instant" {
		t.Errorf("unexpected final message: %q", history[len(history)-1].Content)
	}
}

func TestRunBounded_RejectsNonPositiveLimit(t *testing.T) {
	loop := newTestLoop(t, &scriptProvider{}, nil)

	for _, limit := range []int{0, -1} {
		if _, err := RunBounded(context.Background(), loop, Input{}, limit); err == nil {
			t.Errorf("limit %d: expected error", limit)
		}
	}
}
