package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"

	"github.com/iov-one/paychan/errors"
)

// DecodeJSON validates raw JSON against the structural shape of the
// registered message type of dest and then decodes it into dest.
//
// Integers may be given as decimal strings, JSON numbers or booleans. They
// are normalised before decoding. All invalid attributes are reported as
// field errors, each wrapping ErrValidation.
func DecodeJSON(raw []byte, dest interface{}) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.ErrInput.New("destination must be a non nil pointer")
	}
	e, err := lookup(rv.Elem().Type())
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree interface{}
	if err := dec.Decode(&tree); err != nil {
		return errors.Wrap(errors.ErrValidation, err.Error())
	}
	if dec.More() {
		return errors.ErrValidation.New("trailing data after JSON value")
	}
	return DecodeTree(e.structural, tree, dest)
}

// DecodeTree validates an already decoded JSON value against given shape and
// writes the result into dest.
func DecodeTree(s Shape, tree interface{}, dest interface{}) error {
	normalized, err := Validate(s, tree)
	if err != nil {
		return err
	}
	b, err := json.Marshal(normalized)
	if err != nil {
		return errors.Wrap(errors.ErrValidation, err.Error())
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return errors.Wrap(errors.ErrValidation, err.Error())
	}
	return nil
}

// Validate checks a generic JSON value, as produced by encoding/json, against
// given shape. It returns a copy of the value with all integers normalised to
// their decimal form.
func Validate(s Shape, v interface{}) (interface{}, error) {
	return validate(s, v, "")
}

func validate(s Shape, v interface{}, path string) (interface{}, error) {
	switch s.Kind {
	case KindOption:
		if v == nil {
			return nil, nil
		}
		return validate(*s.Elem, v, path)
	case KindStruct:
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, fieldErr(path, "want an object, got %s", typeName(v))
		}
		out := make(map[string]interface{}, len(s.Fields))
		var errs error
		for _, f := range s.Fields {
			val, present := m[f.Name]
			if (!present || val == nil) && f.Shape.Kind != KindOption {
				errs = errors.Append(errs, fieldErr(join(path, f.Name), "required"))
				continue
			}
			nv, err := validate(f.Shape, val, join(path, f.Name))
			if err != nil {
				errs = errors.Append(errs, err)
				continue
			}
			out[f.Name] = nv
		}
		if errs != nil {
			return nil, errs
		}
		return out, nil
	case KindU64, KindU128:
		bits := 64
		if s.Kind == KindU128 {
			bits = 128
		}
		n, err := NormalizeInteger(v, bits)
		if err != nil {
			return nil, errors.Field(orRoot(path), err, "")
		}
		return check(s, json.Number(n), path)
	case KindString, KindPublicKey, KindSecretKey, KindSignature:
		str, ok := v.(string)
		if !ok {
			return nil, fieldErr(path, "want a string, got %s", typeName(v))
		}
		return check(s, str, path)
	}
	return nil, fieldErr(path, "unsupported kind %s", s.Kind)
}

func check(s Shape, v interface{}, path string) (interface{}, error) {
	if s.Check == nil {
		return v, nil
	}
	nv, err := s.Check(v)
	if err != nil {
		return nil, errors.Field(orRoot(path), errors.Wrap(errors.ErrValidation, err.Error()), "")
	}
	return nv, nil
}

func fieldErr(path, format string, args ...interface{}) error {
	return errors.Field(orRoot(path), errors.ErrValidation, format, args...)
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func orRoot(path string) string {
	if path == "" {
		return "."
	}
	return path
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

type bigIntConverter interface {
	ToBig() *big.Int
}

// NormalizeInteger returns the decimal form of an unsigned integer that must
// fit in given number of bits. Accepted inputs are decimal strings, JSON
// numbers without a fractional part, booleans, Go integers, *big.Int and
// types providing a ToBig method.
func NormalizeInteger(v interface{}, bits int) (string, error) {
	n, err := toBig(v)
	if err != nil {
		return "", err
	}
	if n.Sign() < 0 {
		return "", errors.ErrValidation.Newf("negative value %s", n)
	}
	if n.BitLen() > bits {
		return "", errors.ErrValidation.Newf("%s does not fit in %d bits", n, bits)
	}
	return n.String(), nil
}

func toBig(v interface{}) (*big.Int, error) {
	switch x := v.(type) {
	case nil:
		return nil, errors.ErrValidation.New("want an integer, got null")
	case bool:
		if x {
			return big.NewInt(1), nil
		}
		return big.NewInt(0), nil
	case string:
		if x == "" || strings.TrimLeft(x, "0123456789") != "" {
			return nil, errors.ErrValidation.Newf("%q is not a decimal integer", x)
		}
		n, _ := new(big.Int).SetString(x, 10)
		return n, nil
	case json.Number:
		return numberToBig(string(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) {
			return nil, errors.ErrValidation.Newf("%v is not an integer", x)
		}
		n, _ := big.NewFloat(x).Int(nil)
		return n, nil
	case *big.Int:
		if x == nil {
			return nil, errors.ErrValidation.New("want an integer, got null")
		}
		return new(big.Int).Set(x), nil
	case bigIntConverter:
		return x.ToBig(), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Int).SetUint64(rv.Uint()), nil
	}
	return nil, errors.ErrValidation.Newf("want an integer, got %s", typeName(v))
}

// numberToBig parses a JSON number literal. Exponent notation is accepted as
// long as the value is integral.
func numberToBig(s string) (*big.Int, error) {
	if n, ok := new(big.Int).SetString(s, 10); ok {
		return n, nil
	}
	f, _, err := big.ParseFloat(s, 10, 256, big.ToNearestEven)
	if err != nil {
		return nil, errors.ErrValidation.Newf("%q is not a number", s)
	}
	if !f.IsInt() {
		return nil, errors.ErrValidation.Newf("%s is not an integer", s)
	}
	n, _ := f.Int(nil)
	return n, nil
}
