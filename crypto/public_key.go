package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/iov-one/paychan/codec"
	"github.com/iov-one/paychan/errors"
	"golang.org/x/crypto/ed25519"
)

// PublicKey is a curve tagged public key.
type PublicKey struct {
	Curve Curve
	Data  []byte
}

// NewPublicKey returns a public key after checking the data length.
func NewPublicKey(c Curve, data []byte) (PublicKey, error) {
	if !c.valid() {
		return PublicKey{}, errors.ErrInput.Newf("unknown curve %d", uint8(c))
	}
	if len(data) != c.publicKeySize() {
		return PublicKey{}, errors.ErrInput.Newf("%s public key must be %d bytes, got %d", c, c.publicKeySize(), len(data))
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return PublicKey{Curve: c, Data: cp}, nil
}

// ParsePublicKey decodes the "<curve>:<base58>" text form.
func ParsePublicKey(s string) (PublicKey, error) {
	c, raw, err := parseTagged(s)
	if err != nil {
		return PublicKey{}, errors.Wrap(err, "public key")
	}
	return NewPublicKey(c, raw)
}

func (p PublicKey) String() string {
	if p.IsZero() {
		return ""
	}
	return formatTagged(p.Curve, p.Data)
}

// IsZero returns true if the key carries no data.
func (p PublicKey) IsZero() bool {
	return len(p.Data) == 0
}

func (p PublicKey) Equal(o PublicKey) bool {
	return p.Curve == o.Curve && bytes.Equal(p.Data, o.Data)
}

// Validate returns an error if the key is not a well formed key of its curve.
func (p PublicKey) Validate() error {
	_, err := NewPublicKey(p.Curve, p.Data)
	return err
}

// Verify returns true if sig is a valid signature of message made with the
// secret matching this key.
func (p PublicKey) Verify(message []byte, sig Signature) bool {
	if sig.Curve != p.Curve || p.Validate() != nil {
		return false
	}
	switch p.Curve {
	case ED25519:
		return ed25519.Verify(ed25519.PublicKey(p.Data), message, sig.Data[:])
	case SECP256K1:
		digest := sha256.Sum256(message)
		uncompressed := append([]byte{4}, p.Data...)
		return ethcrypto.VerifySignature(uncompressed, digest[:], sig.Data[:])
	}
	return false
}

func (PublicKey) BorshShape() codec.Shape {
	return codec.Leaf(codec.KindPublicKey)
}

func (PublicKey) JSONShape() codec.Shape {
	s := codec.Leaf(codec.KindPublicKey)
	s.Check = func(v interface{}) (interface{}, error) {
		k, err := ParsePublicKey(v.(string))
		if err != nil {
			return nil, err
		}
		return k.String(), nil
	}
	return s
}

func (p PublicKey) MarshalBorsh(e *codec.Encoder) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.WriteU8(uint8(p.Curve))
	e.WriteFixed(p.Data)
	return nil
}

func (p *PublicKey) UnmarshalBorsh(d *codec.Decoder) error {
	tag, err := d.ReadU8()
	if err != nil {
		return err
	}
	c := Curve(tag)
	if !c.valid() {
		return errors.ErrValidation.Newf("unknown public key curve %d", tag)
	}
	data, err := d.ReadFixed(c.publicKeySize())
	if err != nil {
		return err
	}
	*p = PublicKey{Curve: c, Data: data}
	return nil
}

func (p PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *PublicKey) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return errors.Wrap(errors.ErrValidation, err.Error())
	}
	k, err := ParsePublicKey(s)
	if err != nil {
		return err
	}
	*p = k
	return nil
}
