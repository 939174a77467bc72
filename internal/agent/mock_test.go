package agent

import (
	"context"
	"testing"
	"time"
)

func drain(e *Execution) {
	for range e.Events() {
	}
}

func TestMockProvider_ScriptConsumedInOrder(t *testing.T) {
	m := NewMockProvider(ProviderClaude,
		MockOutcome{Result: Result{Success: false, ExitCode: 1}},
		MockOutcome{Result: Result{Success: true}},
	)

	first, _ := m.Execute(context.Background(), ExecuteParams{ExecutionID: "e1"})
	drain(first)
	result, _ := first.Wait(context.Background())
	if result.Success {
		t.Error("first outcome should fail")
	}

	second, _ := m.Execute(context.Background(), ExecuteParams{ExecutionID: "e2"})
	drain(second)
	result, _ = second.Wait(context.Background())
	if !result.Success {
		t.Error("second outcome should succeed")
	}

	// Script exhausted: the last outcome repeats.
	third, _ := m.Execute(context.Background(), ExecuteParams{ExecutionID: "e3"})
	drain(third)
	result, _ = third.Wait(context.Background())
	if !result.Success {
		t.Error("exhausted script should repeat the last outcome")
	}
}

func TestMockProvider_BlockedExecutionResolvesOnAbort(t *testing.T) {
	m := NewMockProvider(ProviderClaude, MockOutcome{Block: true})

	e, err := m.Execute(context.Background(), ExecuteParams{ExecutionID: "e1"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	go drain(e)

	if err := m.Abort("e1"); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, waitErr := e.Wait(ctx)
	if waitErr != context.Canceled {
		t.Errorf("expected context.Canceled after abort, got %v", waitErr)
	}
	if !m.Aborted("e1") {
		t.Error("Aborted should report true")
	}
}
