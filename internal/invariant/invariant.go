// Package invariant reports broken internal invariants. These are bugs, not
// input problems, and are never retried or swallowed.
package invariant

import "fmt"

// Error describes a violated invariant.
type Error struct {
	Op     string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invariant violated in %s: %s", e.Op, e.Detail)
}

// Errorf builds an *Error with a formatted detail.
func Errorf(op, format string, args ...any) *Error {
	return &Error{Op: op, Detail: fmt.Sprintf(format, args...)}
}
