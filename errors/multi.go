package errors

import (
	"fmt"
	"strings"
)

// Append clubs together all provided errors. Nil values are ignored.
//
// If no non-nil error is given, nil is returned. If only one non-nil error is
// given, that error is returned unchanged. Otherwise a single error value
// wrapping all of them is returned. Nested results of Append are flattened.
func Append(errs ...error) error {
	var flat []error
	for _, e := range errs {
		if isNilErr(e) {
			continue
		}
		if m, ok := e.(*multiErr); ok {
			flat = append(flat, m.errs...)
			continue
		}
		flat = append(flat, e)
	}

	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	default:
		return &multiErr{errs: flat}
	}
}

type multiErr struct {
	errs []error
}

func (m *multiErr) Error() string {
	if len(m.errs) == 1 {
		return m.errs[0].Error()
	}
	points := make([]string, len(m.errs))
	for i, err := range m.errs {
		points[i] = "* " + err.Error()
	}
	return fmt.Sprintf("%d errors occurred:\n\t%s", len(m.errs), strings.Join(points, "\n\t"))
}

// Unpack implements the unpacker interface.
func (m *multiErr) Unpack() []error {
	return m.errs
}

// Cause returns the first error so that the fail-fast checks keep working.
func (m *multiErr) Cause() error {
	return m.errs[0]
}

// unpacker is implemented by errors that contain more than one error.
type unpacker interface {
	Unpack() []error
}
