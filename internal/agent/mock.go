package agent

import (
	"context"
	"sync"
	"time"

	"github.com/Open330/open-agent-contribution-sub003/internal/estimate"
)

// MockProvider is a scriptable Provider for tests. Each Execute call
// consumes the next scripted outcome; when the script is exhausted the
// last outcome repeats.
type MockProvider struct {
	ProviderName ProviderID
	Unavailable  error
	Latency      time.Duration

	mu       sync.Mutex
	script   []MockOutcome
	executed []ExecuteParams
	aborted  map[string]bool
	abortChs map[string]chan struct{}
}

// MockOutcome is one scripted Execute result.
type MockOutcome struct {
	Result Result
	Err    error
	Events []Event
	// Block keeps the execution unresolved until the mock is aborted.
	Block bool
}

// NewMockProvider creates a mock with the given id and script.
func NewMockProvider(id ProviderID, script ...MockOutcome) *MockProvider {
	return &MockProvider{
		ProviderName: id,
		script:       script,
		aborted:      make(map[string]bool),
		abortChs:     make(map[string]chan struct{}),
	}
}

func (m *MockProvider) ID() ProviderID {
	return m.ProviderName
}

func (m *MockProvider) CheckAvailability(ctx context.Context) error {
	return m.Unavailable
}

func (m *MockProvider) EstimateTokens(text string) int {
	return len(text) / 4
}

func (m *MockProvider) Profile() estimate.BackendProfile {
	return estimate.BackendProfile{
		ID:               string(m.ProviderName),
		CharsPerToken:    4,
		MaxContextTokens: 200_000,
	}
}

func (m *MockProvider) Execute(ctx context.Context, params ExecuteParams) (*Execution, error) {
	abortCh := make(chan struct{})

	m.mu.Lock()
	m.executed = append(m.executed, params)
	outcome := MockOutcome{Result: Result{Success: true}}
	if len(m.script) > 0 {
		outcome = m.script[0]
		if len(m.script) > 1 {
			m.script = m.script[1:]
		}
	}
	m.abortChs[params.ExecutionID] = abortCh
	m.mu.Unlock()

	execution := newExecution(params.ExecutionID)

	// The goroutine is the sole emitter and resolver, so the handle's
	// single-producer invariant holds even when Abort races Execute.
	go func() {
		if m.Latency > 0 {
			time.Sleep(m.Latency)
		}
		for _, ev := range outcome.Events {
			execution.emit(ev)
		}
		result, err := outcome.Result, outcome.Err
		if outcome.Block {
			select {
			case <-abortCh:
				result, err = Result{}, context.Canceled
			case <-ctx.Done():
				result, err = Result{}, ctx.Err()
			}
		}
		m.mu.Lock()
		delete(m.abortChs, params.ExecutionID)
		m.mu.Unlock()
		execution.resolve(result, err)
	}()
	return execution, nil
}

func (m *MockProvider) Abort(executionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.aborted[executionID] {
		return nil
	}
	m.aborted[executionID] = true
	if ch, ok := m.abortChs[executionID]; ok {
		close(ch)
	}
	return nil
}

// Executions returns the params of every Execute call so far.
func (m *MockProvider) Executions() []ExecuteParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ExecuteParams, len(m.executed))
	copy(out, m.executed)
	return out
}

// Aborted reports whether Abort was called for the given execution.
func (m *MockProvider) Aborted(executionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aborted[executionID]
}
