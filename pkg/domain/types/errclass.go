package types

// ErrorClass is the machine-readable classification of a request failure.
// It drives retry backoff and the user-facing failure message.
type ErrorClass string

const (
	ErrClassValidation ErrorClass = "validation"
	ErrClassNetwork    ErrorClass = "network"
	ErrClassTimeout    ErrorClass = "timeout"
	ErrClassAuth       ErrorClass = "auth"
	ErrClassRateLimit  ErrorClass = "rate_limit"
	ErrClassUnknown    ErrorClass = "unknown"
)

// String returns the string representation of ErrorClass
func (x ErrorClass) String() string {
	return string(x)
}

// Retriable reports whether another attempt may succeed for this class.
// Validation failures are surfaced immediately and never retried.
func (x ErrorClass) Retriable() bool {
	return x != ErrClassValidation
}
