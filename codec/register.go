package codec

import (
	"reflect"
	"sync"

	"github.com/iov-one/paychan/errors"
)

func newRegister() *register {
	return &register{
		entries: make(map[reflect.Type]entry),
	}
}

type register struct {
	mu      sync.RWMutex
	entries map[reflect.Type]entry
}

type entry struct {
	binary     Shape
	structural Shape
}

func (r *register) MustRegister(msg interface{}) {
	if err := r.Register(msg); err != nil {
		panic(err)
	}
}

// Register derives both representations of given message type and ensures
// they describe the same layout.
func (r *register) Register(msg interface{}) error {
	tp := reflect.TypeOf(msg)
	for tp != nil && tp.Kind() == reflect.Ptr {
		tp = tp.Elem()
	}
	if tp == nil || tp.Kind() != reflect.Struct {
		return errors.Wrapf(errors.ErrInput, "only struct can be registered, got %T", msg)
	}

	bin, err := BinaryShapeOf(tp)
	if err != nil {
		return errors.Wrapf(err, "binary shape of %s", tp)
	}
	str, err := JSONShapeOf(tp)
	if err != nil {
		return errors.Wrapf(err, "structural shape of %s", tp)
	}
	if d := diff(bin, str, ""); d != "" {
		return errors.Wrapf(errors.ErrValidation, "%s.%s representations differ: %s", tp.PkgPath(), tp.Name(), d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[tp]; ok {
		return errors.Wrapf(errors.ErrAlreadyExists, "already registered: %s.%s", tp.PkgPath(), tp.Name())
	}
	r.entries[tp] = entry{binary: bin, structural: str}
	return nil
}

func (r *register) lookup(tp reflect.Type) (entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[tp]
	if !ok {
		return entry{}, errors.Wrapf(errors.ErrInput, "%s.%s is not a registered message", tp.PkgPath(), tp.Name())
	}
	return e, nil
}

// reg is a globally available register instance that must be used during the
// runtime to register message types.
var reg = newRegister()

// MustRegister registers a message type so that it can be used with Marshal,
// Unmarshal and DecodeJSON. It panics if the binary and the structural
// representations of the type do not agree. Call it from an init function.
func MustRegister(msg interface{}) {
	reg.MustRegister(msg)
}

// StructuralShape returns the JSON layout of a registered message type.
func StructuralShape(msg interface{}) (Shape, error) {
	tp := reflect.TypeOf(msg)
	for tp != nil && tp.Kind() == reflect.Ptr {
		tp = tp.Elem()
	}
	if tp == nil {
		return Shape{}, errors.ErrInput.New("nil message")
	}
	e, err := reg.lookup(tp)
	if err != nil {
		return Shape{}, err
	}
	return e.structural, nil
}

func lookup(tp reflect.Type) (entry, error) {
	return reg.lookup(tp)
}
