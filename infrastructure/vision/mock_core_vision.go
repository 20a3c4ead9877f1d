package vision

import (
	"context"
	"sync"
	"time"
)

// MockCoreVision is a configurable CoreVision for testing middleware and
// clients. It allows precise control over responses, timing, and errors.
type MockCoreVision struct {
	mu sync.Mutex

	// Response configuration.
	Response      string
	TokensIn      int
	TokensOut     int
	Error         error
	Model         string
	ResponseDelay time.Duration

	// FailUntilAttempt fails the first N calls, then succeeds.
	FailUntilAttempt int

	// Tracking.
	CallCount   int
	LastRequest Request
}

// NewMockCoreVision creates a mock with default successful behavior.
func NewMockCoreVision() *MockCoreVision {
	return &MockCoreVision{
		Response:  `{"criteria_results": [], "overall_confidence": 0.9}`,
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

// DoAnalyze implements CoreVision with configurable behavior.
func (m *MockCoreVision) DoAnalyze(ctx context.Context, req Request) (string, int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.LastRequest = req

	if m.ResponseDelay > 0 {
		select {
		case <-time.After(m.ResponseDelay):
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}

	if m.FailUntilAttempt > 0 && m.CallCount <= m.FailUntilAttempt {
		return "", 0, 0, m.failure()
	}
	if m.Error != nil {
		return "", 0, 0, m.Error
	}

	return m.Response, m.TokensIn, m.TokensOut, nil
}

func (m *MockCoreVision) failure() error {
	if m.Error != nil {
		return m.Error
	}
	return NewProviderError("mock", ErrorTypeServerError, 503, "simulated failure", nil)
}

// GetModel returns the configured model name.
func (m *MockCoreVision) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// GetCallCount returns how many times DoAnalyze was invoked.
func (m *MockCoreVision) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
