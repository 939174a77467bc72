package agent

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestExecution_EventsThenResult(t *testing.T) {
	e := newExecution("exec1")

	go func() {
		e.emit(Event{Kind: EventOutput, Message: "line 1"})
		e.emit(Event{Kind: EventOutput, Message: "line 2"})
		e.resolve(Result{Success: true, TokensUsed: 10}, nil)
	}()

	var messages []string
	for ev := range e.Events() {
		messages = append(messages, ev.Message)
	}
	if len(messages) != 2 || messages[0] != "line 1" || messages[1] != "line 2" {
		t.Errorf("unexpected event stream: %v", messages)
	}

	result, err := e.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if !result.Success || result.TokensUsed != 10 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestExecution_ResolveOnce(t *testing.T) {
	e := newExecution("exec1")
	e.resolve(Result{Success: true}, nil)
	e.resolve(Result{}, fmt.Errorf("late failure"))

	result, err := e.Wait(context.Background())
	if err != nil {
		t.Errorf("second resolve must not overwrite the first, got error %v", err)
	}
	if !result.Success {
		t.Error("second resolve must not overwrite the first result")
	}
}

func TestExecution_WaitHonorsContext(t *testing.T) {
	e := newExecution("exec1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestExecution_EventsCloseOnResolve(t *testing.T) {
	e := newExecution("exec1")
	e.resolve(Result{}, nil)

	if _, open := <-e.Events(); open {
		t.Error("event channel should be closed after resolve")
	}
}
