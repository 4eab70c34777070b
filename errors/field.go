package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Field attributes err to a single field of a validated value. It returns nil
// if err is nil. A stack trace is attached unless err already carries one.
//
// Name fields the way they are serialized, for example channel_id or
// spent_balance, and join nested names with a dot, for example
// channel.sender.account_id.
func Field(name string, err error, description string, args ...interface{}) error {
	if isNilErr(err) {
		return nil
	}
	if stackTrace(err) == nil {
		err = errors.WithStack(err)
	}
	if len(args) != 0 {
		description = fmt.Sprintf(description, args...)
	}
	return &fieldError{name: name, desc: description, parent: err}
}

// AppendField adds the error of a single field, if any, to errs.
func AppendField(errs error, name string, err error) error {
	return Append(errs, Field(name, err, ""))
}

type fieldError struct {
	name   string
	desc   string
	parent error
}

func (e *fieldError) Error() string {
	msg := e.parent.Error()
	if e.desc != "" {
		msg = e.desc + ": " + msg
	}
	return fmt.Sprintf("field %q: %s", e.name, msg)
}

func (e *fieldError) Cause() error  { return e.parent }
func (e *fieldError) Unwrap() error { return e.parent }

// Field returns the name of the field this error was created for.
func (e *fieldError) Field() string { return e.name }

// FieldErrors returns all errors created with Field for given name. Errors
// combined with Append are searched one by one.
func FieldErrors(err error, name string) []error {
	switch e := err.(type) {
	case nil:
		return nil
	case *fieldError:
		if e.name == name {
			return []error{e}
		}
		return FieldErrors(e.parent, name)
	case unpacker:
		var found []error
		for _, child := range e.Unpack() {
			found = append(found, FieldErrors(child, name)...)
		}
		return found
	case causer:
		return FieldErrors(e.Cause(), name)
	}
	return nil
}
