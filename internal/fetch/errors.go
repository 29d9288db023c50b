package fetch

import (
	"errors"
	"fmt"
)

// TransientError marks a fetch failure worth retrying (timeout, temporary
// disconnect). Sources wrap the underlying cause with Transient.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a fetch failure that retrying cannot fix (unknown
// symbol, invalid timeframe). It surfaces immediately without retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// FetchError is the terminal failure returned after retry exhaustion or a
// permanent upstream error. It carries the last underlying cause.
type FetchError struct {
	Symbol    string
	Timeframe string
	Attempts  int
	Cause     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s@%s failed after %d attempt(s): %v",
		e.Symbol, e.Timeframe, e.Attempts, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }
