package extract

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse reports a backend call that returned no usable text.
// Refusals surface this way.
var ErrEmptyResponse = errors.New("empty response from extraction backend")

// ParseError reports structured output that could not be decoded into the
// expected shape. It is a retryable call failure, never silently masked.
type ParseError struct {
	Cause error
	Raw   string // Raw text that failed to parse, truncated for diagnostics
}

func (e *ParseError) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	return fmt.Sprintf("parse structured output: %v (raw: %q)", e.Cause, raw)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// SchemaViolationError reports decoded output that fails the caller's
// structural contract (bad hierarchy, missing required fields). Like a
// parse error it is retryable at the call level.
type SchemaViolationError struct {
	Cause error
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("structural contract violated: %v", e.Cause)
}

func (e *SchemaViolationError) Unwrap() error {
	return e.Cause
}

// TruncationError reports a backend that stopped at its output token
// limit. The partial payload is discarded, not salvaged.
type TruncationError struct {
	Model  string
	Tokens int
}

func (e *TruncationError) Error() string {
	return fmt.Sprintf("output truncated by %s after %d tokens", e.Model, e.Tokens)
}
