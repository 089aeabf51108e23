package drive

import (
	"sync"
)

// Call records a single actuator invocation on a Mock.
type Call struct {
	Stop        bool
	Left, Right float64
}

// Mock is an in-memory Driver. It records every call and can be told to fail.
// The daemon uses it for -dry-run; tests use it to count motor commands.
type Mock struct {
	mu    sync.Mutex
	calls []Call
	err   error

	// OnCall is invoked after each recorded call (for logging in dry-run mode).
	OnCall func(Call)
}

// NewMock creates a mock actuator.
func NewMock() *Mock {
	return &Mock{}
}

// Drive records a drive call.
func (m *Mock) Drive(left, right float64) error {
	return m.record(Call{Left: left, Right: right})
}

// Stop records a stop call.
func (m *Mock) Stop() error {
	return m.record(Call{Stop: true})
}

func (m *Mock) record(c Call) error {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	err := m.err
	cb := m.OnCall
	m.mu.Unlock()

	if cb != nil {
		cb(c)
	}
	return err
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// FailWith makes every subsequent call return err (nil to recover).
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// StopCount returns how many Stop calls were recorded.
func (m *Mock) StopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Stop {
			n++
		}
	}
	return n
}

// Last returns the most recent call.
func (m *Mock) Last() (Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return Call{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// Reset forgets recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

// Ensure Mock implements Driver
var _ Driver = (*Mock)(nil)
