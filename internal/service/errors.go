package service

import (
	"errors"
	"strings"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("email or password does not match")
	ErrEmailTaken     = errors.New("email already in use")
	ErrUserNotFound   = errors.New("user with the token could not find")
)

// FieldError describes one rejected request field.
type FieldError struct {
	Field string
	Value string
	Msg   string
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Msg)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) add(field, value, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Value: value, Msg: msg})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
