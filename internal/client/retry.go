package client

import (
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"
)

// CalculateBackoff computes exponential backoff with jitter. Jitter
// avoids thundering-herd retries when many clients fail together.
func CalculateBackoff(baseDelay time.Duration, attempt int, maxDelay time.Duration) time.Duration {
	delay := baseDelay * time.Duration(1<<uint(attempt))
	if delay > maxDelay {
		delay = maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay / 4)))
	return delay + jitter
}

// isRetryableError reports whether an error should trigger a retry.
// Rate limits, server errors, and transient network failures retry;
// everything else fails fast.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, code := range []string{"429", "500", "502", "503", "504"} {
		if strings.Contains(errStr, code) {
			return true
		}
	}
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"timeout",
		"temporary failure",
		"eof",
		"unavailable",
		"resource_exhausted",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
