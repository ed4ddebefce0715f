package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ovchar/kursor/pkg/config"
	"github.com/ovchar/kursor/pkg/llm"
	"github.com/ovchar/kursor/pkg/models"
	"github.com/ovchar/kursor/pkg/tools"
)

// scriptProvider отдаёт заготовленные ответы по очереди
// и запоминает каждый исходящий запрос.
type scriptProvider struct {
	mu        sync.Mutex
	responses []llm.Message
	errs      []error
	requests  [][]llm.Message
}

func (p *scriptProvider) Generate(_ context.Context, messages []llm.Message, _ ...any) (llm.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := append([]llm.Message(nil), messages...)
	p.requests = append(p.requests, snapshot)

	idx := len(p.requests) - 1
	if idx < len(p.errs) && p.errs[idx] != nil {
		return llm.Message{}, p.errs[idx]
	}
	if idx >= len(p.responses) {
		return llm.Message{Role: llm.RoleAssistant, Content: "done"}, nil
	}
	return p.responses[idx], nil
}

// funcTool — инструмент с подменяемым поведением.
type funcTool struct {
	name string
	fn   func(ctx context.Context, args string) tools.Result
}

func (f *funcTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        f.name,
		Description: "test tool",
		Parameters: tools.JSONSchema{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
	}
}

func (f *funcTool) Execute(ctx context.Context, args string) tools.Result {
	return f.fn(ctx, args)
}

// echoDescriber возвращает предсказуемое описание для проверки encode пути.
type echoDescriber struct {
	mu    sync.Mutex
	calls int
}

func (d *echoDescriber) Describe(_ context.Context, b64PNG string, _ []llm.Message) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return fmt.Sprintf("summary #%d of %d bytes", d.calls, len(b64PNG))
}

func assistantWithCalls(calls ...llm.ToolCall) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, ToolCalls: calls}
}

func newTestLoop(t *testing.T, provider llm.Provider, tool tools.Tool) *Loop {
	t.Helper()

	modelReg := models.NewRegistry()
	if err := modelReg.Register("main", config.ModelDef{Provider: "openai", ModelName: "gpt-4o", APIKey: "k"}, provider); err != nil {
		t.Fatalf("failed to register model: %v", err)
	}

	toolReg := tools.NewRegistry()
	if tool != nil {
		if err := toolReg.Register(tool); err != nil {
			t.Fatalf("failed to register tool: %v", err)
		}
	}

	loop := NewLoop(LoopConfig{
		DefaultModel: "main",
		SystemPrompt: BuildSystemPrompt(config.ScreenConfig{Width: 800, Height: 600}, ""),
	})
	loop.SetModelRegistry(modelReg)
	loop.SetRegistry(toolReg)
	return loop
}

func TestRun_FinishesWithoutToolCalls(t *testing.T) {
	provider := &scriptProvider{
		responses: []llm.Message{{Role: llm.RoleAssistant, Content: "nothing to do"}},
	}
	loop := newTestLoop(t, provider, nil)

	history, err := loop.Run(context.Background(), Input{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "just reply"}},
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected user + assistant, got %d messages", len(history))
	}
	if history[1].Content != "nothing to do" {
		t.Errorf("unexpected final message: %q", history[1].Content)
	}
}

func TestRun_SystemPromptOnlyInOutboundProjection(t *testing.T) {
	provider := &scriptProvider{
		responses: []llm.Message{{Role: llm.RoleAssistant, Content: "ok"}},
	}
	loop := newTestLoop(t, provider, nil)

	history, err := loop.Run(context.Background(), Input{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Исходящий запрос начинается с system
	req := provider.requests[0]
	if req[0].Role != llm.RoleSystem {
		t.Errorf("first outbound message must be system, got %s", req[0].Role)
	}
	if !strings.Contains(req[0].Content, "width = 800") {
		t.Errorf("system prompt must carry screen size, got: %s", req[0].Content)
	}

	// А в хранимой истории system не появляется
	for i, m := range history {
		if m.Role == llm.RoleSystem {
			t.Errorf("message %d: system prompt must not be committed to history", i)
		}
	}
}

func TestRun_ToolResultsInRequestOrder(t *testing.T) {
	// Первый вызов медленнее второго: проверяем что порядок ответов
	// определяется запросом, а не временем выполнения
	tool := &funcTool{name: "computer", fn: func(ctx context.Context, args string) tools.Result {
		if strings.Contains(args, "slow") {
			time.Sleep(30 * time.Millisecond)
			return tools.Result{Output: "slow done"}
		}
		return tools.Result{Output: "fast done"}
	}}

	provider := &scriptProvider{
		responses: []llm.Message{
			assistantWithCalls(
				llm.ToolCall{ID: "call_slow", Name: "computer", Args: `{"mode":"slow"}`},
				llm.ToolCall{ID: "call_fast", Name: "computer", Args: `{"mode":"fast"}`},
			),
			{Role: llm.RoleAssistant, Content: "finished"},
		},
	}
	loop := newTestLoop(t, provider, tool)

	history, err := loop.Run(context.Background(), Input{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "do two things"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// user, assistant, tool, tool, assistant
	if len(history) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(history))
	}
	if history[2].Role != llm.RoleTool || history[2].ToolCallID != "call_slow" {
		t.Errorf("first tool message must answer call_slow, got %s/%s", history[2].Role, history[2].ToolCallID)
	}
	if history[3].Role != llm.RoleTool || history[3].ToolCallID != "call_fast" {
		t.Errorf("second tool message must answer call_fast, got %s/%s", history[3].Role, history[3].ToolCallID)
	}
}

func TestRun_EveryCallGetsExactlyOneReply(t *testing.T) {
	tool := &funcTool{name: "computer", fn: func(_ context.Context, _ string) tools.Result {
		return tools.Result{Output: "ok"}
	}}

	calls := make([]llm.ToolCall, 5)
	for i := range calls {
		calls[i] = llm.ToolCall{ID: fmt.Sprintf("call_%d", i), Name: "computer", Args: "{}"}
	}

	provider := &scriptProvider{
		responses: []llm.Message{
			assistantWithCalls(calls...),
			{Role: llm.RoleAssistant, Content: "finished"},
		},
	}
	loop := newTestLoop(t, provider, tool)

	history, err := loop.Run(context.Background(), Input{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "batch"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := map[string]int{}
	for _, m := range history {
		if m.Role == llm.RoleTool {
			seen[m.ToolCallID]++
		}
	}
	for _, c := range calls {
		if seen[c.ID] != 1 {
			t.Errorf("call %s: expected exactly 1 reply, got %d", c.ID, seen[c.ID])
		}
	}
}

func TestRun_ToolFailureContinuesLoop(t *testing.T) {
	tool := &funcTool{name: "computer", fn: func(_ context.Context, _ string) tools.Result {
		return tools.Errorf("xdotool exploded")
	}}

	provider := &scriptProvider{
		responses: []llm.Message{
			assistantWithCalls(llm.ToolCall{ID: "c1", Name: "computer", Args: "{}"}),
			{Role: llm.RoleAssistant, Content: "recovered"},
		},
	}
	loop := newTestLoop(t, provider, tool)

	history, err := loop.Run(context.Background(), Input{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "try"}},
	})

	// Ошибка инструмента не фатальна: уходит модели текстом
	if err != nil {
		t.Fatalf("tool failure must not abort the loop: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(history[2].Content), &payload); err != nil {
		t.Fatalf("tool content must be valid JSON: %v", err)
	}
	if payload["error"] != "xdotool exploded" {
		t.Errorf("expected tool error in payload, got %q", history[2].Content)
	}
	if history[len(history)-1].Content != "recovered" {
		t.Error("loop must continue to the final model reply")
	}
}

func TestRun_UnknownToolReportedToModel(t *testing.T) {
	provider := &scriptProvider{
		responses: []llm.Message{
			assistantWithCalls(llm.ToolCall{ID: "c1", Name: "ghost", Args: "{}"}),
			{Role: llm.RoleAssistant, Content: "ok"},
		},
	}
	loop := newTestLoop(t, provider, nil)

	history, err := loop.Run(context.Background(), Input{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "call a ghost"}},
	})

	if err != nil {
		t.Fatalf("unknown tool must not abort the loop: %v", err)
	}
	if !strings.Contains(history[2].Content, "error") {
		t.Errorf("unknown tool must produce an error payload, got %q", history[2].Content)
	}
}

func TestRun_ModelFailureNoPartialCommit(t *testing.T) {
	tool := &funcTool{name: "computer", fn: func(_ context.Context, _ string) tools.Result {
		return tools.Result{Output: "ok"}
	}}

	transportErr := fmt.Errorf("%w: connection reset", llm.ErrTransport)
	provider := &scriptProvider{
		responses: []llm.Message{
			assistantWithCalls(llm.ToolCall{ID: "c1", Name: "computer", Args: "{}"}),
		},
		errs: []error{nil, transportErr},
	}
	loop := newTestLoop(t, provider, tool)

	input := Input{Messages: []llm.Message{{Role: llm.RoleUser, Content: "go"}}}
	history, err := loop.Run(context.Background(), input)

	if !errors.Is(err, llm.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}

	// История содержит ровно зафиксированную первую итерацию:
	// user, assistant c tool call, tool ответ. Второй итерации нет.
	if len(history) != 3 {
		t.Fatalf("expected 3 committed messages, got %d", len(history))
	}
	if history[2].Role != llm.RoleTool {
		t.Errorf("last committed message must be the tool reply, got %s", history[2].Role)
	}
}

func TestRun_InputMessagesNotMutated(t *testing.T) {
	provider := &scriptProvider{
		responses: []llm.Message{{Role: llm.RoleAssistant, Content: "ok"}},
	}
	loop := newTestLoop(t, provider, nil)

	original := []llm.Message{{Role: llm.RoleUser, Content: "hi"}}
	input := Input{Messages: original}

	history, err := loop.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(original) != 1 {
		t.Error("input slice must not grow")
	}
	if len(history) != 2 {
		t.Errorf("expected extended copy, got %d messages", len(history))
	}
}

func TestRun_ScreenshotGoesThroughVision(t *testing.T) {
	img := &tools.Image{Data: "cGl4ZWxz", MediaType: "image/png"}
	tool := &funcTool{name: "computer", fn: func(_ context.Context, _ string) tools.Result {
		return tools.Result{Image: img}
	}}

	provider := &scriptProvider{
		responses: []llm.Message{
			assistantWithCalls(llm.ToolCall{ID: "c1", Name: "computer", Args: `{"action":"screenshot"}`}),
			{Role: llm.RoleAssistant, Content: "I see it"},
		},
	}
	describer := &echoDescriber{}
	loop := newTestLoop(t, provider, tool)
	loop.SetDescriber(describer)

	history, err := loop.Run(context.Background(), Input{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "look"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var payload struct {
		Image struct {
			Type      string `json:"type"`
			MediaType string `json:"media_type"`
			Data      string `json:"data"`
		} `json:"image"`
	}
	if err := json.Unmarshal([]byte(history[2].Content), &payload); err != nil {
		t.Fatalf("tool content must be valid JSON: %v", err)
	}
	if !strings.HasPrefix(payload.Image.Data, "summary #1") {
		t.Errorf("image data must carry the vision summary, got %q", payload.Image.Data)
	}
	if payload.Image.Type != "base64" || payload.Image.MediaType != "image/png" {
		t.Errorf("image block shape changed: %+v", payload.Image)
	}
}

func TestRun_ImageRetentionAppliesToOutboundOnly(t *testing.T) {
	img := &tools.Image{Data: "cGl4ZWxz", MediaType: "image/png"}
	tool := &funcTool{name: "computer", fn: func(_ context.Context, _ string) tools.Result {
		return tools.Result{Image: img}
	}}

	provider := &scriptProvider{
		responses: []llm.Message{
			assistantWithCalls(llm.ToolCall{ID: "c1", Name: "computer", Args: `{"action":"screenshot"}`}),
			assistantWithCalls(llm.ToolCall{ID: "c2", Name: "computer", Args: `{"action":"screenshot"}`}),
			{Role: llm.RoleAssistant, Content: "done"},
		},
	}
	describer := &echoDescriber{}

	modelReg := models.NewRegistry()
	if err := modelReg.Register("main", config.ModelDef{Provider: "openai", ModelName: "gpt-4o", APIKey: "k"}, provider); err != nil {
		t.Fatal(err)
	}
	toolReg := tools.NewRegistry()
	if err := toolReg.Register(tool); err != nil {
		t.Fatal(err)
	}

	loop := NewLoop(LoopConfig{
		DefaultModel:     "main",
		SystemPrompt:     "sys",
		KeepRecentImages: 1,
	})
	loop.SetModelRegistry(modelReg)
	loop.SetRegistry(toolReg)
	loop.SetDescriber(describer)

	history, err := loop.Run(context.Background(), Input{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "look twice"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Третий запрос к модели: первый скриншот должен быть вырезан
	thirdReq := provider.requests[2]
	var firstShot, secondShot string
	for _, m := range thirdReq {
		switch m.ToolCallID {
		case "c1":
			firstShot = m.Content
		case "c2":
			secondShot = m.Content
		}
	}
	if strings.Contains(firstShot, "image") {
		t.Errorf("older screenshot must be stripped from the outbound request, got %q", firstShot)
	}
	if !strings.Contains(secondShot, "image") {
		t.Errorf("latest screenshot must stay in the outbound request, got %q", secondShot)
	}

	// А в возвращённой истории оба описания целы
	for _, id := range []string{"c1", "c2"} {
		found := false
		for _, m := range history {
			if m.ToolCallID == id && strings.Contains(m.Content, "image") {
				found = true
			}
		}
		if !found {
			t.Errorf("history must keep the screenshot payload for %s", id)
		}
	}
}

func TestRun_Callbacks(t *testing.T) {
	tool := &funcTool{name: "computer", fn: func(_ context.Context, _ string) tools.Result {
		return tools.Result{Output: "ok"}
	}}

	provider := &scriptProvider{
		responses: []llm.Message{
			assistantWithCalls(llm.ToolCall{ID: "c1", Name: "computer", Args: "{}"}),
			{Role: llm.RoleAssistant, Content: "bye"},
		},
	}
	loop := newTestLoop(t, provider, tool)

	var mu sync.Mutex
	var assistants, toolResults, apiResponses int

	_, err := loop.Run(context.Background(), Input{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "go"}},
		Callbacks: Callbacks{
			OnAssistant: func(_ llm.Message) {
				mu.Lock()
				assistants++
				mu.Unlock()
			},
			OnToolResult: func(_ string, _ tools.Result) {
				mu.Lock()
				toolResults++
				mu.Unlock()
			},
			OnAPIResponse: func(_ string, _ error) {
				mu.Lock()
				apiResponses++
				mu.Unlock()
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if assistants != 2 {
		t.Errorf("expected 2 assistant callbacks, got %d", assistants)
	}
	if toolResults != 1 {
		t.Errorf("expected 1 tool result callback, got %d", toolResults)
	}
	if apiResponses != 2 {
		t.Errorf("expected 2 api response callbacks, got %d", apiResponses)
	}
}

func TestRun_MissingDependencies(t *testing.T) {
	loop := NewLoop(LoopConfig{DefaultModel: "main", SystemPrompt: "sys"})

	_, err := loop.Run(context.Background(), Input{})
	if err == nil {
		t.Fatal("expected error for missing dependencies")
	}
	if !strings.Contains(err.Error(), "model registry") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	provider := &scriptProvider{}
	loop := newTestLoop(t, provider, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	history, err := loop.Run(ctx, Input{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "go"}},
	})

	if !errors.Is(err, llm.ErrTransport) {
		t.Fatalf("cancellation must surface as transport failure, got %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history must stay at the committed prefix, got %d messages", len(history))
	}
}
