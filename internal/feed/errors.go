package feed

import "fmt"

// TemporaryError is a rate-limit or server-side feed failure. Callers may
// retry with bounded attempts and fixed backoff.
type TemporaryError struct {
	StatusCode int
	Endpoint   string
	Err        error
}

func (e *TemporaryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("temporary feed error on %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("temporary feed error on %s: status %d", e.Endpoint, e.StatusCode)
}

func (e *TemporaryError) Unwrap() error { return e.Err }

// PermanentError is a client-side feed failure (4xx other than 429).
// It is never retried; the caller aborts its cycle.
type PermanentError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent feed error on %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}
