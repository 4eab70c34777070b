package codec

import (
	"reflect"

	"github.com/iov-one/paychan/errors"
)

// BorshMarshaler is implemented by types that write their own binary
// representation.
type BorshMarshaler interface {
	MarshalBorsh(*Encoder) error
}

// BorshUnmarshaler is implemented by types that read their own binary
// representation.
type BorshUnmarshaler interface {
	UnmarshalBorsh(*Decoder) error
}

var (
	borshMarshalerType   = reflect.TypeOf((*BorshMarshaler)(nil)).Elem()
	borshUnmarshalerType = reflect.TypeOf((*BorshUnmarshaler)(nil)).Elem()
)

// Marshal returns the binary representation of a registered message.
func Marshal(msg interface{}) ([]byte, error) {
	rv := reflect.ValueOf(msg)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, errors.ErrInput.New("cannot marshal nil")
		}
		rv = rv.Elem()
	}
	if _, err := lookup(rv.Type()); err != nil {
		return nil, err
	}
	e := NewEncoder()
	if err := MarshalValue(e, msg); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// MarshalValue writes the binary representation of any value with a binary
// shape. Use it to embed messages in a larger structure.
func MarshalValue(e *Encoder, v interface{}) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return errors.ErrInput.New("cannot marshal nil")
	}
	// Work on an addressable copy so that pointer receivers are found.
	cp := reflect.New(rv.Type()).Elem()
	cp.Set(rv)
	return encodeValue(e, cp)
}

func encodeValue(e *Encoder, rv reflect.Value) error {
	if rv.CanAddr() && rv.Addr().Type().Implements(borshMarshalerType) {
		return rv.Addr().Interface().(BorshMarshaler).MarshalBorsh(e)
	}
	switch rv.Kind() {
	case reflect.String:
		e.WriteString(rv.String())
		return nil
	case reflect.Uint64:
		e.WriteU64(rv.Uint())
		return nil
	case reflect.Ptr:
		if rv.IsNil() {
			e.WriteU8(0)
			return nil
		}
		e.WriteU8(1)
		return encodeValue(e, rv.Elem())
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			if _, ok := tagName(t.Field(i), "borsh"); !ok {
				continue
			}
			if err := encodeValue(e, rv.Field(i)); err != nil {
				return errors.Wrapf(err, "field %s", t.Field(i).Name)
			}
		}
		return nil
	}
	return errors.ErrInput.Newf("type %s has no binary representation", rv.Type())
}

// Unmarshal decodes the binary representation of a registered message into
// dest, which must be a pointer. Trailing bytes are rejected.
func Unmarshal(raw []byte, dest interface{}) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.ErrInput.New("destination must be a non nil pointer")
	}
	if _, err := lookup(rv.Elem().Type()); err != nil {
		return err
	}
	d := NewDecoder(raw)
	if err := decodeValue(d, rv.Elem()); err != nil {
		return err
	}
	if n := d.Remaining(); n != 0 {
		return errors.ErrValidation.Newf("%d trailing bytes", n)
	}
	return nil
}

// UnmarshalValue reads the binary representation of any value with a binary
// shape into dest, which must be a pointer. Data left after the value is not
// an error.
func UnmarshalValue(d *Decoder, dest interface{}) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.ErrInput.New("destination must be a non nil pointer")
	}
	return decodeValue(d, rv.Elem())
}

func decodeValue(d *Decoder, rv reflect.Value) error {
	if rv.CanAddr() && rv.Addr().Type().Implements(borshUnmarshalerType) {
		return rv.Addr().Interface().(BorshUnmarshaler).UnmarshalBorsh(d)
	}
	switch rv.Kind() {
	case reflect.String:
		s, err := d.ReadString()
		if err != nil {
			return err
		}
		rv.SetString(s)
		return nil
	case reflect.Uint64:
		n, err := d.ReadU64()
		if err != nil {
			return err
		}
		rv.SetUint(n)
		return nil
	case reflect.Ptr:
		tag, err := d.ReadU8()
		if err != nil {
			return err
		}
		switch tag {
		case 0:
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		case 1:
			elem := reflect.New(rv.Type().Elem())
			if err := decodeValue(d, elem.Elem()); err != nil {
				return err
			}
			rv.Set(elem)
			return nil
		default:
			return errors.ErrValidation.Newf("invalid option tag %d", tag)
		}
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			if _, ok := tagName(t.Field(i), "borsh"); !ok {
				continue
			}
			if err := decodeValue(d, rv.Field(i)); err != nil {
				return errors.Wrapf(err, "field %s", t.Field(i).Name)
			}
		}
		return nil
	}
	return errors.ErrInput.Newf("type %s has no binary representation", rv.Type())
}
