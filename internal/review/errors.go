package review

import "fmt"

// ValidationError marks operator input problems: a missing or ambiguous
// target, an unknown verb, an illegal stage move. The CLI reports the
// message and exits non-zero; nothing about the documents has been
// mutated when one is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
