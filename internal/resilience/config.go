package resilience

import (
	"time"
)

// LinearRetryConfig builds a RetryConfig that makes maxAttempts attempts and
// waits attempt*unitMs between them, retrying every non-cancellation error.
func LinearRetryConfig(maxAttempts, unitMs int) RetryConfig {
	return RetryConfig{
		MaxAttempts: maxAttempts,
		Backoff:     LinearBackoff(time.Duration(max(unitMs, 0)) * time.Millisecond),
		ShouldRetry: RetryAll,
	}
}

// FromCircuitConfig converts config values to a CircuitBreakerConfig.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}
