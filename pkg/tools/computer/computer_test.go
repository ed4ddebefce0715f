package computer

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/ovchar/kursor/pkg/config"
	"github.com/ovchar/kursor/pkg/tools"
)

// fakeDisplay записывает вызовы и отдаёт заранее заданные ответы.
type fakeDisplay struct {
	movedX, movedY int
	moveCalls      int
	clickCalls     int
	shotCalls      int

	moveErr  error
	clickErr error
	shotErr  error
	shotData []byte
}

func (f *fakeDisplay) MoveCursor(_ context.Context, x, y int) error {
	f.moveCalls++
	f.movedX, f.movedY = x, y
	return f.moveErr
}

func (f *fakeDisplay) Click(_ context.Context) error {
	f.clickCalls++
	return f.clickErr
}

func (f *fakeDisplay) CaptureScreen(_ context.Context) ([]byte, error) {
	f.shotCalls++
	if f.shotErr != nil {
		return nil, f.shotErr
	}
	return f.shotData, nil
}

type fakeSink struct {
	saved [][]byte
	err   error
}

func (f *fakeSink) SaveScreenshot(_ context.Context, data []byte) error {
	f.saved = append(f.saved, data)
	return f.err
}

func newTestTool(d Display) *Tool {
	return New(d, config.ScreenConfig{Width: 1024, Height: 768})
}

func TestExecute_MouseMove(t *testing.T) {
	d := &fakeDisplay{}
	tool := newTestTool(d)

	res := tool.Execute(context.Background(), `{"action": "mouse_move", "coordinate": [100, 200]}`)

	if !res.OK() {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if d.movedX != 100 || d.movedY != 200 {
		t.Errorf("expected move to (100, 200), got (%d, %d)", d.movedX, d.movedY)
	}
	if !strings.Contains(res.Output, "(100, 200)") {
		t.Errorf("output should mention coordinates, got: %q", res.Output)
	}
}

func TestExecute_LeftClick(t *testing.T) {
	d := &fakeDisplay{}
	tool := newTestTool(d)

	res := tool.Execute(context.Background(), `{"action": "left_click"}`)

	if !res.OK() {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if d.clickCalls != 1 {
		t.Errorf("expected 1 click call, got %d", d.clickCalls)
	}
}

func TestExecute_Screenshot(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	d := &fakeDisplay{shotData: png}
	tool := newTestTool(d)

	res := tool.Execute(context.Background(), `{"action": "screenshot"}`)

	if !res.OK() {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if res.Image == nil {
		t.Fatal("expected image in result")
	}
	if res.Image.MediaType != "image/png" {
		t.Errorf("expected image/png, got %s", res.Image.MediaType)
	}
	decoded, err := base64.StdEncoding.DecodeString(res.Image.Data)
	if err != nil {
		t.Fatalf("image data is not valid base64: %v", err)
	}
	if string(decoded) != string(png) {
		t.Error("decoded image does not match captured bytes")
	}
}

func TestExecute_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		wantErr string
	}{
		{
			name:    "mouse_move without coordinate",
			args:    `{"action": "mouse_move"}`,
			wantErr: "requires 'coordinate'",
		},
		{
			name:    "mouse_move with one element",
			args:    `{"action": "mouse_move", "coordinate": [5]}`,
			wantErr: "exactly 2 ints",
		},
		{
			name:    "mouse_move with three elements",
			args:    `{"action": "mouse_move", "coordinate": [1, 2, 3]}`,
			wantErr: "exactly 2 ints",
		},
		{
			name:    "mouse_move with string coordinates",
			args:    `{"action": "mouse_move", "coordinate": ["a", "b"]}`,
			wantErr: "array of two ints",
		},
		{
			name:    "mouse_move with negative coordinates",
			args:    `{"action": "mouse_move", "coordinate": [-1, 10]}`,
			wantErr: "non-negative",
		},
		{
			name:    "left_click with coordinate",
			args:    `{"action": "left_click", "coordinate": [1, 2]}`,
			wantErr: "must not include 'coordinate'",
		},
		{
			name:    "screenshot with coordinate",
			args:    `{"action": "screenshot", "coordinate": [1, 2]}`,
			wantErr: "must not include 'coordinate'",
		},
		{
			name:    "unknown action",
			args:    `{"action": "double_click"}`,
			wantErr: "unknown action",
		},
		{
			name:    "missing action",
			args:    `{"coordinate": [1, 2]}`,
			wantErr: "missing required field 'action'",
		},
		{
			name:    "malformed JSON",
			args:    `{"action": "screensh`,
			wantErr: "invalid arguments JSON",
		},
		{
			name:    "action is not a string",
			args:    `{"action": 42}`,
			wantErr: "'action' must be a string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDisplay{}
			tool := newTestTool(d)

			res := tool.Execute(context.Background(), tt.args)

			if res.OK() {
				t.Fatal("expected error result")
			}
			if !strings.Contains(res.Error, tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, res.Error)
			}
			// Бэкенд не должен вызываться при ошибке валидации
			if d.moveCalls+d.clickCalls+d.shotCalls != 0 {
				t.Error("display backend must not be called on validation failure")
			}
		})
	}
}

func TestExecute_BackendFailure(t *testing.T) {
	d := &fakeDisplay{
		moveErr:  errors.New("xdotool not found"),
		clickErr: errors.New("xdotool not found"),
		shotErr:  errors.New("scrot not found"),
	}
	tool := newTestTool(d)

	for _, args := range []string{
		`{"action": "mouse_move", "coordinate": [1, 2]}`,
		`{"action": "left_click"}`,
		`{"action": "screenshot"}`,
	} {
		res := tool.Execute(context.Background(), args)
		if res.OK() {
			t.Errorf("expected error result for %s", args)
		}
		if !strings.Contains(res.Error, "not found") {
			t.Errorf("expected backend error text, got %q", res.Error)
		}
	}
}

func TestExecute_SinkFailureIsNotFatal(t *testing.T) {
	d := &fakeDisplay{shotData: []byte("png-bytes")}
	sink := &fakeSink{err: errors.New("bucket unavailable")}
	tool := newTestTool(d)
	tool.SetScreenshotSink(sink)

	res := tool.Execute(context.Background(), `{"action": "screenshot"}`)

	if !res.OK() {
		t.Fatalf("archive failure must not fail the tool, got: %s", res.Error)
	}
	if res.Image == nil {
		t.Fatal("expected image despite sink failure")
	}
	if len(sink.saved) != 1 {
		t.Errorf("expected sink to receive the screenshot, got %d saves", len(sink.saved))
	}
}

func TestDefinition(t *testing.T) {
	tool := newTestTool(&fakeDisplay{})
	def := tool.Definition()

	if def.Name != ToolName {
		t.Errorf("expected name %q, got %q", ToolName, def.Name)
	}
	if def.Parameters["type"] != "object" {
		t.Error("parameters must be an object schema")
	}

	props, ok := def.Parameters["properties"].(map[string]any)
	if !ok {
		t.Fatal("expected properties map")
	}
	if _, ok := props["action"]; !ok {
		t.Error("schema must declare 'action'")
	}
	if _, ok := props["coordinate"]; !ok {
		t.Error("schema must declare 'coordinate'")
	}

	required, ok := def.Parameters["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "action" {
		t.Errorf("expected required [action], got %v", def.Parameters["required"])
	}
}

func TestRegistryIntegration(t *testing.T) {
	reg := tools.NewRegistry()
	tool := newTestTool(&fakeDisplay{shotData: []byte("x")})

	if err := reg.Register(tool); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	res := reg.Execute(context.Background(), ToolName, "```json\n{\"action\": \"screenshot\"}\n```")
	if !res.OK() {
		t.Fatalf("expected success through registry, got: %s", res.Error)
	}
	if res.Image == nil {
		t.Error("expected image through registry")
	}
}
