package models

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError lists every violation found on a value.
type ValidationError struct {
	Subject    string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Subject, strings.Join(e.Violations, "; "))
}

// Addf records a violation.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Violations = append(e.Violations, fmt.Sprintf(format, args...))
}

// Merge folds the violations of another validation error into e.
func (e *ValidationError) Merge(err error) {
	var other *ValidationError
	if errors.As(err, &other) {
		for _, msg := range other.Violations {
			e.Violations = append(e.Violations, other.Subject+": "+msg)
		}
	} else if err != nil {
		e.Violations = append(e.Violations, err.Error())
	}
}

// OrNil returns nil when nothing was recorded.
func (e *ValidationError) OrNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}
