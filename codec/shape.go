package codec

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/iov-one/paychan/errors"
)

// Kind is the logical type of a value. Both the binary and the structural
// representations of a value must describe it with the same kind.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindU64
	KindU128
	KindPublicKey
	KindSecretKey
	KindSignature
	KindStruct
	KindOption
)

var kindNames = map[Kind]string{
	KindString:    "string",
	KindU64:       "u64",
	KindU128:      "u128",
	KindPublicKey: "public_key",
	KindSecretKey: "secret_key",
	KindSignature: "signature",
	KindStruct:    "struct",
	KindOption:    "option",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Shape describes the layout of a value.
type Shape struct {
	Kind Kind
	// Fields is set for KindStruct.
	Fields []Field
	// Elem is set for KindOption.
	Elem *Shape
	// Check optionally validates and normalises a leaf JSON value. It is
	// ignored by the binary representation and by shape comparison.
	Check func(v interface{}) (interface{}, error)
}

// Field is a single named attribute of a struct shape.
type Field struct {
	Name  string
	Shape Shape
}

// Leaf returns a shape of a value without any children.
func Leaf(k Kind) Shape {
	return Shape{Kind: k}
}

// OptionOf returns an optional shape of given element.
func OptionOf(elem Shape) Shape {
	return Shape{Kind: KindOption, Elem: &elem}
}

func (s Shape) String() string {
	switch s.Kind {
	case KindOption:
		return "option<" + s.Elem.String() + ">"
	case KindStruct:
		parts := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			parts[i] = f.Name + ":" + f.Shape.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return s.Kind.String()
	}
}

// Equal returns true if both shapes describe the same logical layout. Struct
// fields are compared as a set because only the binary representation is
// ordered.
func (s Shape) Equal(o Shape) bool {
	return diff(s, o, "") == ""
}

// diff returns a description of the first found difference between two
// shapes or an empty string.
func diff(a, b Shape, path string) string {
	at := path
	if at == "" {
		at = "."
	}
	if a.Kind != b.Kind {
		return fmt.Sprintf("%s: %s != %s", at, a.Kind, b.Kind)
	}
	switch a.Kind {
	case KindOption:
		return diff(*a.Elem, *b.Elem, path)
	case KindStruct:
		af, bf := fieldIndex(a.Fields), fieldIndex(b.Fields)
		for _, name := range sortedNames(af) {
			other, ok := bf[name]
			if !ok {
				return fmt.Sprintf("%s: field %q missing on the structural side", at, name)
			}
			if d := diff(af[name], other, path+"."+name); d != "" {
				return d
			}
		}
		for _, name := range sortedNames(bf) {
			if _, ok := af[name]; !ok {
				return fmt.Sprintf("%s: field %q missing on the binary side", at, name)
			}
		}
	}
	return ""
}

func fieldIndex(fs []Field) map[string]Shape {
	m := make(map[string]Shape, len(fs))
	for _, f := range fs {
		m[f.Name] = f.Shape
	}
	return m
}

func sortedNames(m map[string]Shape) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BorshShaper is implemented by types that provide their own binary layout.
type BorshShaper interface {
	BorshShape() Shape
}

// JSONShaper is implemented by types that provide their own structural
// layout.
type JSONShaper interface {
	JSONShape() Shape
}

var (
	borshShaperType = reflect.TypeOf((*BorshShaper)(nil)).Elem()
	jsonShaperType  = reflect.TypeOf((*JSONShaper)(nil)).Elem()
)

// BinaryShapeOf returns the binary layout of given type.
func BinaryShapeOf(t reflect.Type) (Shape, error) {
	if reflect.PtrTo(t).Implements(borshShaperType) {
		return reflect.New(t).Interface().(BorshShaper).BorshShape(), nil
	}
	switch t.Kind() {
	case reflect.String:
		return Leaf(KindString), nil
	case reflect.Uint64:
		return Leaf(KindU64), nil
	case reflect.Ptr:
		elem, err := BinaryShapeOf(t.Elem())
		if err != nil {
			return Shape{}, err
		}
		return OptionOf(elem), nil
	case reflect.Struct:
		var fields []Field
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			name, ok := tagName(sf, "borsh")
			if !ok {
				continue
			}
			fs, err := BinaryShapeOf(sf.Type)
			if err != nil {
				return Shape{}, errors.Wrapf(err, "field %s", sf.Name)
			}
			fields = append(fields, Field{Name: name, Shape: fs})
		}
		return Shape{Kind: KindStruct, Fields: fields}, nil
	}
	return Shape{}, errors.ErrInput.Newf("type %s has no binary representation", t)
}

// JSONShapeOf returns the structural layout of given type.
func JSONShapeOf(t reflect.Type) (Shape, error) {
	if reflect.PtrTo(t).Implements(jsonShaperType) {
		return reflect.New(t).Interface().(JSONShaper).JSONShape(), nil
	}
	switch t.Kind() {
	case reflect.String:
		return Leaf(KindString), nil
	case reflect.Uint64:
		return Leaf(KindU64), nil
	case reflect.Ptr:
		elem, err := JSONShapeOf(t.Elem())
		if err != nil {
			return Shape{}, err
		}
		return OptionOf(elem), nil
	case reflect.Struct:
		var fields []Field
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			name, ok := tagName(sf, "json")
			if !ok {
				continue
			}
			fs, err := JSONShapeOf(sf.Type)
			if err != nil {
				return Shape{}, errors.Wrapf(err, "field %s", sf.Name)
			}
			fields = append(fields, Field{Name: name, Shape: fs})
		}
		return Shape{Kind: KindStruct, Fields: fields}, nil
	}
	return Shape{}, errors.ErrInput.Newf("type %s has no structural representation", t)
}

// tagName returns the serialized name of a struct field according to given
// tag. Unexported fields, fields without the tag and fields tagged with "-"
// are not serialized.
func tagName(sf reflect.StructField, tag string) (string, bool) {
	if sf.PkgPath != "" {
		return "", false
	}
	raw, ok := sf.Tag.Lookup(tag)
	if !ok {
		return "", false
	}
	name := strings.Split(raw, ",")[0]
	if name == "-" || name == "" {
		return "", false
	}
	return name, true
}
