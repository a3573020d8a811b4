// Package validation collects field-level input errors so a caller sees every
// violation at once instead of just the first.
package validation

import (
	"fmt"
	"strings"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (fe FieldError) Error() string {
	return fmt.Sprintf("%s: %s", fe.Field, fe.Message)
}

// Errors aggregates field errors for one request.
type Errors struct {
	Fields []FieldError
}

func (e *Errors) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *Errors) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *Errors) Required(field string) {
	e.Add(field, field+" is required")
}

func (e *Errors) HasErrors() bool {
	return len(e.Fields) > 0
}

// OrNil returns the aggregate as an error, or nil when nothing was recorded.
func (e *Errors) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}
