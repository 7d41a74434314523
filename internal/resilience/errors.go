package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// TransientError marks an error as safe to retry.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// CheckStatus returns nil for 2xx/3xx, a retryable error for 408/429/5xx
// gateway-style codes, and a permanent *StatusError otherwise.
func CheckStatus(statusCode int, url string) error {
	if statusCode < 400 {
		return nil
	}
	err := &StatusError{StatusCode: statusCode, URL: url}
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return &TransientError{Err: err, StatusCode: statusCode}
	default:
		return err
	}
}

// IsTransient reports whether err is worth retrying: an explicit
// TransientError, a network timeout, or a reset/refused connection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED)
}
