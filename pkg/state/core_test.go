package state

import (
	"sync"
	"testing"

	"github.com/ovchar/kursor/pkg/llm"
)

func TestCoreState_HistoryIsCopied(t *testing.T) {
	s := NewCoreState(nil, nil)
	s.AppendMessage(llm.Message{Role: llm.RoleUser, Content: "hello"})

	history := s.GetHistory()
	history[0].Content = "mutated"

	if s.GetHistory()[0].Content != "hello" {
		t.Error("GetHistory must return a copy")
	}
}

func TestCoreState_ReplaceHistory(t *testing.T) {
	s := NewCoreState(nil, nil)
	s.AppendMessage(llm.Message{Role: llm.RoleUser, Content: "hi"})

	extended := append(s.GetHistory(),
		llm.Message{Role: llm.RoleAssistant, Content: "done"})
	s.ReplaceHistory(extended)

	got := s.GetHistory()
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Content != "hi" || got[1].Content != "done" {
		t.Errorf("unexpected history: %+v", got)
	}
}

func TestCoreState_ScreenMemory(t *testing.T) {
	s := NewCoreState(nil, nil)

	s.UpdateScreen("a desktop with a terminal", 3)

	mem := s.GetScreen()
	if mem.Summary != "a desktop with a terminal" || mem.Iteration != 3 {
		t.Errorf("unexpected screen memory: %+v", mem)
	}

	s.ClearHistory()
	if s.GetScreen().Summary != "" {
		t.Error("ClearHistory must reset screen memory")
	}
}

func TestCoreState_ConcurrentAccess(t *testing.T) {
	s := NewCoreState(nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.AppendMessage(llm.Message{Role: llm.RoleUser, Content: "x"})
		}()
		go func() {
			defer wg.Done()
			_ = s.GetHistory()
		}()
	}
	wg.Wait()

	if len(s.GetHistory()) != 50 {
		t.Errorf("expected 50 messages, got %d", len(s.GetHistory()))
	}
}
