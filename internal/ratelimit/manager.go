package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config holds rate limiting configuration
type Config struct {
	MaxRequestsPerMinute    int           // Maximum rewrite requests per minute
	CircuitBreakerThreshold int           // Failures before opening circuit
	CircuitBreakerTimeout   time.Duration // Time to wait before retrying after circuit opens
	RetryAttempts           int           // Number of retries after the first attempt
	RetryBackoffBase        time.Duration // Base duration for exponential backoff
}

// DefaultConfig returns conservative limits for shared LLM endpoints
func DefaultConfig() Config {
	return Config{
		MaxRequestsPerMinute:    10,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   5 * time.Minute,
		RetryAttempts:           2,
		RetryBackoffBase:        1 * time.Second,
	}
}

// Manager handles request windows, circuit breaking and retries
type Manager struct {
	config Config
	mu     sync.RWMutex
	now    func() time.Time

	// Rate limiting state
	requestCount int
	windowStart  time.Time

	// Circuit breaker state
	circuitOpen     bool
	failureCount    int
	lastFailureTime time.Time

	// Statistics
	totalRequests int64
	totalFailures int64
	totalRetries  int64
}

// NewManager creates a new rate limit manager
func NewManager(config Config) *Manager {
	return newManagerWithClock(config, time.Now)
}

func newManagerWithClock(config Config, now func() time.Time) *Manager {
	return &Manager{
		config:      config,
		now:         now,
		windowStart: now(),
	}
}

// GetConfig returns the current rate limiting configuration
func (m *Manager) GetConfig() Config {
	return m.config
}

// CanMakeRequest checks if a request can be made within rate limits
func (m *Manager) CanMakeRequest() (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()

	if m.circuitOpen {
		if elapsed := now.Sub(m.lastFailureTime); elapsed < m.config.CircuitBreakerTimeout {
			return false, fmt.Errorf("circuit breaker open: waiting %v before retry",
				m.config.CircuitBreakerTimeout-elapsed)
		}
	}

	// Window rolls over in RecordRequest
	if now.Sub(m.windowStart) >= time.Minute {
		return true, nil
	}

	if m.config.MaxRequestsPerMinute > 0 && m.requestCount >= m.config.MaxRequestsPerMinute {
		waitTime := time.Minute - now.Sub(m.windowStart)
		return false, fmt.Errorf("request rate limit exceeded: wait %v", waitTime)
	}

	return true, nil
}

// WaitForCapacity blocks until capacity is available or context is cancelled.
// An open circuit is returned immediately instead of waited out.
func (m *Manager) WaitForCapacity(ctx context.Context) error {
	for {
		can, err := m.CanMakeRequest()
		if can {
			return nil
		}
		if m.IsCircuitOpen() {
			return err
		}

		waitTime := m.getWaitTime()
		if waitTime <= 0 {
			waitTime = time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// getWaitTime calculates how long to wait before the window rolls over
func (m *Manager) getWaitTime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := m.now().Sub(m.windowStart)
	if elapsed >= time.Minute {
		return 0
	}

	return time.Minute - elapsed
}

// RecordRequest records a successful request
func (m *Manager) RecordRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollWindow()
	m.requestCount++
	m.totalRequests++

	// Reset circuit breaker on success
	m.failureCount = 0
	m.circuitOpen = false
}

// RecordFailure records a failed request and updates circuit breaker
func (m *Manager) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollWindow()
	m.requestCount++
	m.failureCount++
	m.totalFailures++
	m.lastFailureTime = m.now()

	if m.config.CircuitBreakerThreshold > 0 && m.failureCount >= m.config.CircuitBreakerThreshold {
		m.circuitOpen = true
	}
}

func (m *Manager) rollWindow() {
	if now := m.now(); now.Sub(m.windowStart) >= time.Minute {
		m.requestCount = 0
		m.windowStart = now
	}
}

// IsCircuitOpen returns whether the circuit breaker is currently open
func (m *Manager) IsCircuitOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.circuitOpen {
		return false
	}

	return m.now().Sub(m.lastFailureTime) < m.config.CircuitBreakerTimeout
}

// Do runs fn under the request window, retrying with exponential backoff
// while shouldRetry accepts the error. A nil shouldRetry never retries.
func (m *Manager) Do(ctx context.Context, shouldRetry func(error) bool, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= m.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			m.mu.Lock()
			m.totalRetries++
			m.mu.Unlock()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.CalculateBackoff(attempt - 1)):
			}
		}

		if err := m.WaitForCapacity(ctx); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		err := fn(ctx)
		if err == nil {
			m.RecordRequest()
			return nil
		}

		m.RecordFailure()
		lastErr = err

		if shouldRetry == nil || !shouldRetry(err) {
			return err
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", m.config.RetryAttempts+1, lastErr)
}

// GetStatistics returns current rate limiting statistics
func (m *Manager) GetStatistics() Statistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Statistics{
		CurrentWindowRequests: m.requestCount,
		WindowTimeRemaining:   time.Minute - m.now().Sub(m.windowStart),
		CircuitOpen:           m.circuitOpen,
		TotalRequests:         m.totalRequests,
		TotalFailures:         m.totalFailures,
		TotalRetries:          m.totalRetries,
	}
}

// Statistics contains rate limiting metrics
type Statistics struct {
	CurrentWindowRequests int           `json:"current_window_requests"`
	WindowTimeRemaining   time.Duration `json:"window_time_remaining"`
	CircuitOpen           bool          `json:"circuit_open"`
	TotalRequests         int64         `json:"total_requests"`
	TotalFailures         int64         `json:"total_failures"`
	TotalRetries          int64         `json:"total_retries"`
}

// Reset resets all rate limiting counters (useful for testing)
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestCount = 0
	m.windowStart = m.now()
	m.circuitOpen = false
	m.failureCount = 0
	m.totalRequests = 0
	m.totalFailures = 0
	m.totalRetries = 0
}

// CalculateBackoff returns exponential backoff duration for retry attempt
func (m *Manager) CalculateBackoff(attempt int) time.Duration {
	base := m.config.RetryBackoffBase
	// Prevent integer overflow by capping attempt value
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	// Exponential: 1s, 2s, 4s, 8s, etc.
	backoff := base * time.Duration(1<<uint(attempt))

	if backoff > time.Minute {
		backoff = time.Minute
	}

	return backoff
}
