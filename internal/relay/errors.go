package relay

import "fmt"

// ErrBanned is returned for any submission or relay from a banned submitter.
// It is deliberately detail-free.
var ErrBanned = fmt.Errorf("submitter is banned")

// FormatError reports a submission that does not match the menfess template.
// User-correctable; Help carries the expected template.
type FormatError struct {
	Help string
}

func (e *FormatError) Error() string {
	return "submission does not match the menfess template"
}

// RateLimitedError reports a submission inside the cooldown window.
type RateLimitedError struct {
	RemainingMinutes int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("cooldown active, %d minute(s) remaining", e.RemainingMinutes)
}

// ContentRejectedError reports a banned-term hit. The violation is already
// recorded in the ledger by the time this error is returned. Banned marks the
// hit that crossed the warning threshold.
type ContentRejectedError struct {
	Term     string
	Warnings uint
	Banned   bool
}

func (e *ContentRejectedError) Error() string {
	return fmt.Sprintf("message contains banned term %q (warning %d)", e.Term, e.Warnings)
}

// TransportError reports a failed publish, notify or relay call. No partial
// mapping state is left behind.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
