package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/iov-one/paychan/codec"
	"github.com/iov-one/paychan/errors"
	"golang.org/x/crypto/ed25519"
)

// KeyPair holds a secret key and signs messages with it.
//
// The zero value is not a usable key pair.
type KeyPair struct {
	curve  Curve
	secret []byte
}

// GenerateKeyPair returns a fresh random key pair on given curve.
func GenerateKeyPair(c Curve) (*KeyPair, error) {
	switch c {
	case ED25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, errors.Wrap(err, "generate ed25519 key")
		}
		return &KeyPair{curve: ED25519, secret: priv}, nil
	case SECP256K1:
		priv, err := ethcrypto.GenerateKey()
		if err != nil {
			return nil, errors.Wrap(err, "generate secp256k1 key")
		}
		return &KeyPair{curve: SECP256K1, secret: ethcrypto.FromECDSA(priv)}, nil
	}
	return nil, errors.ErrInput.Newf("unknown curve %d", uint8(c))
}

// KeyPairFromSeed will deterministically generate an ed25519 key pair from
// a given 32 byte seed. Use if you have a strong source of external
// randomness, or for deterministic keys in test cases.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.ErrInput.Newf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &KeyPair{curve: ED25519, secret: ed25519.NewKeyFromSeed(seed)}, nil
}

// ParseKeyPair decodes the "<curve>:<base58 secret>" text form used by key
// files.
func ParseKeyPair(s string) (*KeyPair, error) {
	c, raw, err := parseTagged(s)
	if err != nil {
		return nil, errors.Wrap(err, "secret key")
	}
	kp := &KeyPair{curve: c, secret: raw}
	if err := kp.Validate(); err != nil {
		return nil, err
	}
	return kp, nil
}

// Validate returns an error if the secret is not a well formed secret of its
// curve.
func (k *KeyPair) Validate() error {
	if k == nil || len(k.secret) == 0 {
		return errors.ErrInput.New("empty secret key")
	}
	if !k.curve.valid() {
		return errors.ErrInput.Newf("unknown curve %d", uint8(k.curve))
	}
	if len(k.secret) != k.curve.secretSize() {
		return errors.ErrInput.Newf("%s secret key must be %d bytes, got %d", k.curve, k.curve.secretSize(), len(k.secret))
	}
	switch k.curve {
	case ED25519:
		derived := ed25519.NewKeyFromSeed(k.secret[:ed25519.SeedSize])
		if !bytes.Equal(derived, k.secret) {
			return errors.ErrInput.New("ed25519 secret key does not match its public half")
		}
	case SECP256K1:
		if _, err := ethcrypto.ToECDSA(k.secret); err != nil {
			return errors.Wrap(errors.ErrInput, err.Error())
		}
	}
	return nil
}

// Curve returns the signature scheme of this key pair.
func (k *KeyPair) Curve() Curve {
	return k.curve
}

// String returns the secret in its text form. Handle with care.
func (k *KeyPair) String() string {
	return formatTagged(k.curve, k.secret)
}

// PublicKey returns the corresponding PublicKey
func (k *KeyPair) PublicKey() PublicKey {
	switch k.curve {
	case ED25519:
		pub := ed25519.PrivateKey(k.secret).Public().(ed25519.PublicKey)
		return PublicKey{Curve: ED25519, Data: []byte(pub)}
	case SECP256K1:
		priv, err := ethcrypto.ToECDSA(k.secret)
		if err != nil {
			return PublicKey{}
		}
		return PublicKey{Curve: SECP256K1, Data: ethcrypto.FromECDSAPub(&priv.PublicKey)[1:]}
	}
	return PublicKey{}
}

// Sign returns a matching signature for this private key
func (k *KeyPair) Sign(message []byte) (Signature, error) {
	sig := Signature{Curve: k.curve}
	switch k.curve {
	case ED25519:
		copy(sig.Data[:], ed25519.Sign(ed25519.PrivateKey(k.secret), message))
		return sig, nil
	case SECP256K1:
		priv, err := ethcrypto.ToECDSA(k.secret)
		if err != nil {
			return Signature{}, errors.Wrap(errors.ErrInput, err.Error())
		}
		digest := sha256.Sum256(message)
		raw, err := ethcrypto.Sign(digest[:], priv)
		if err != nil {
			return Signature{}, errors.Wrap(err, "secp256k1 sign")
		}
		copy(sig.Data[:], raw[:SignatureSize])
		return sig, nil
	}
	return Signature{}, errors.ErrInput.Newf("unknown curve %d", uint8(k.curve))
}

func (KeyPair) BorshShape() codec.Shape {
	return codec.Leaf(codec.KindSecretKey)
}

func (KeyPair) JSONShape() codec.Shape {
	s := codec.Leaf(codec.KindSecretKey)
	s.Check = func(v interface{}) (interface{}, error) {
		kp, err := ParseKeyPair(v.(string))
		if err != nil {
			return nil, err
		}
		return kp.String(), nil
	}
	return s
}

func (k KeyPair) MarshalBorsh(e *codec.Encoder) error {
	if err := k.Validate(); err != nil {
		return err
	}
	e.WriteU8(uint8(k.curve))
	e.WriteFixed(k.secret)
	return nil
}

func (k *KeyPair) UnmarshalBorsh(d *codec.Decoder) error {
	tag, err := d.ReadU8()
	if err != nil {
		return err
	}
	c := Curve(tag)
	if !c.valid() {
		return errors.ErrValidation.Newf("unknown secret key curve %d", tag)
	}
	raw, err := d.ReadFixed(c.secretSize())
	if err != nil {
		return err
	}
	kp := KeyPair{curve: c, secret: raw}
	if err := kp.Validate(); err != nil {
		return errors.Wrap(errors.ErrValidation, err.Error())
	}
	*k = kp
	return nil
}

func (k KeyPair) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *KeyPair) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return errors.Wrap(errors.ErrValidation, err.Error())
	}
	kp, err := ParseKeyPair(s)
	if err != nil {
		return err
	}
	*k = *kp
	return nil
}
