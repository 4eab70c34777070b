package crypto

import (
	"encoding/json"

	"github.com/iov-one/paychan/codec"
	"github.com/iov-one/paychan/errors"
)

// Signature is a curve tagged 64 byte signature. For secp256k1 the data is
// r||s without the recovery byte.
type Signature struct {
	Curve Curve
	Data  [SignatureSize]byte
}

// ParseSignature decodes the "<curve>:<base58>" text form.
func ParseSignature(s string) (Signature, error) {
	c, raw, err := parseTagged(s)
	if err != nil {
		return Signature{}, errors.Wrap(err, "signature")
	}
	if len(raw) != SignatureSize {
		return Signature{}, errors.ErrInput.Newf("signature must be %d bytes, got %d", SignatureSize, len(raw))
	}
	sig := Signature{Curve: c}
	copy(sig.Data[:], raw)
	return sig, nil
}

func (s Signature) String() string {
	return formatTagged(s.Curve, s.Data[:])
}

func (Signature) BorshShape() codec.Shape {
	return codec.Leaf(codec.KindSignature)
}

func (Signature) JSONShape() codec.Shape {
	s := codec.Leaf(codec.KindSignature)
	s.Check = func(v interface{}) (interface{}, error) {
		sig, err := ParseSignature(v.(string))
		if err != nil {
			return nil, err
		}
		return sig.String(), nil
	}
	return s
}

func (s Signature) MarshalBorsh(e *codec.Encoder) error {
	if !s.Curve.valid() {
		return errors.ErrInput.Newf("unknown signature curve %d", uint8(s.Curve))
	}
	e.WriteU8(uint8(s.Curve))
	e.WriteFixed(s.Data[:])
	return nil
}

func (s *Signature) UnmarshalBorsh(d *codec.Decoder) error {
	tag, err := d.ReadU8()
	if err != nil {
		return err
	}
	c := Curve(tag)
	if !c.valid() {
		return errors.ErrValidation.Newf("unknown signature curve %d", tag)
	}
	raw, err := d.ReadFixed(SignatureSize)
	if err != nil {
		return err
	}
	s.Curve = c
	copy(s.Data[:], raw)
	return nil
}

func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Signature) UnmarshalJSON(raw []byte) error {
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return errors.Wrap(errors.ErrValidation, err.Error())
	}
	sig, err := ParseSignature(str)
	if err != nil {
		return err
	}
	*s = sig
	return nil
}
