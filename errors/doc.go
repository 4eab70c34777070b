/*
Package errors implements the error kinds shared by all payment channel
packages.

Every failure returned by a public operation wraps one of the root errors
declared in this package. Callers distinguish failures by kind, never by the
message:

	signed, err := cli.CreatePayment(ctx, id, amount, true)
	switch {
	case errors.ErrMonotonicity.Is(err):
		// amount must be increased
	case errors.ErrKeyMissing.Is(err):
		// this party did not open the channel
	}

If you want to declare a custom root error use Register(code, description).
To create an instance of a root error use ErrXyz.New and ErrXyz.Newf, or wrap
an existing error with Wrap and Wrapf.

Stack traces are attached at the point where a root error is first wrapped.
Use fmt.Printf("%+v", err) to print it.

Validation code reports many problems at once: Field describes a problem of a
single attribute and Append combines several errors into one value that can be
later inspected with FieldErrors.
*/
package errors
