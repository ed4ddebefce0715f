package tools

import (
	"context"
	"testing"
)

// fakeTool — минимальный инструмент для тестов реестра.
type fakeTool struct {
	name   string
	result Result
}

func (f *fakeTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        f.name,
		Description: "fake tool",
		Parameters: JSONSchema{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}

func (f *fakeTool) Execute(ctx context.Context, argsJSON string) Result {
	return f.result
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&fakeTool{name: "computer"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tool, err := r.Get("computer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tool.Definition().Name != "computer" {
		t.Errorf("expected computer, got %s", tool.Definition().Name)
	}
}

func TestRegistryRegister_DuplicateName(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&fakeTool{name: "computer"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Дубликат имени — ошибка конфигурации, ловится на регистрации
	if err := r.Register(&fakeTool{name: "computer"}); err == nil {
		t.Fatal("expected error for duplicate tool name, got nil")
	}
}

func TestRegistryRegister_InvalidDefinition(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name string
		def  ToolDefinition
	}{
		{
			name: "empty name",
			def:  ToolDefinition{Parameters: JSONSchema{"type": "object"}},
		},
		{
			name: "nil parameters",
			def:  ToolDefinition{Name: "t"},
		},
		{
			name: "non-object type",
			def:  ToolDefinition{Name: "t", Parameters: JSONSchema{"type": "array"}},
		},
		{
			name: "required not an array",
			def:  ToolDefinition{Name: "t", Parameters: JSONSchema{"type": "object", "required": "action"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateToolDefinition(tt.def); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}

	_ = r
}

func TestRegistryGetDefinitions_Order(t *testing.T) {
	r := NewRegistry()

	names := []string{"alpha", "bravo", "charlie"}
	for _, n := range names {
		if err := r.Register(&fakeTool{name: n}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	defs := r.GetDefinitions()
	if len(defs) != len(names) {
		t.Fatalf("expected %d definitions, got %d", len(names), len(defs))
	}
	for i, n := range names {
		if defs[i].Name != n {
			t.Errorf("definitions[%d] = %s, want %s (registration order)", i, defs[i].Name, n)
		}
	}
}

func TestRegistryExecute_UnknownTool(t *testing.T) {
	r := NewRegistry()

	res := r.Execute(context.Background(), "no_such_tool", `{}`)
	if res.Error == "" {
		t.Fatal("expected error in result for unknown tool")
	}
	if res.Output != "" || res.Image != nil {
		t.Error("unknown tool result must carry only an error")
	}
}

func TestRegistryExecute_CleansMarkdownArgs(t *testing.T) {
	r := NewRegistry()

	var gotArgs string
	tool := &captureTool{name: "computer", got: &gotArgs}
	if err := r.Register(tool); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.Execute(context.Background(), "computer", "```json\n{\"action\":\"screenshot\"}\n```")
	if gotArgs != `{"action":"screenshot"}` {
		t.Errorf("expected cleaned args, got %q", gotArgs)
	}
}

// captureTool запоминает переданные аргументы.
type captureTool struct {
	name string
	got  *string
}

func (c *captureTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:       c.name,
		Parameters: JSONSchema{"type": "object", "properties": map[string]any{}},
	}
}

func (c *captureTool) Execute(ctx context.Context, argsJSON string) Result {
	*c.got = argsJSON
	return Result{Output: "ok"}
}
