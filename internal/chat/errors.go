package chat

import "errors"

var (
	// ErrNotFound means no chat matches the id.
	ErrNotFound = errors.New("chat not found")
	// ErrForbidden means the caller does not own the chat.
	ErrForbidden = errors.New("access denied")
	// ErrInvalidInput covers caller mistakes such as an empty message.
	ErrInvalidInput = errors.New("invalid input")
)

// UpstreamError reports a model backend failure. The adapter's own
// description is preserved verbatim for diagnostics; the engine never
// retries.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return "model backend: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
