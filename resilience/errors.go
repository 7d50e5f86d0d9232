package resilience

import "errors"

// ErrMaxRetriesExceeded is joined with the last error when every attempt
// failed with a retryable error.
var ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")
