package crypto

import (
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/iov-one/paychan/errors"
)

// Curve identifies a signature scheme. The numeric value is the tag used by
// the binary representation of keys and signatures.
type Curve uint8

const (
	ED25519   Curve = 0
	SECP256K1 Curve = 1
)

func (c Curve) String() string {
	switch c {
	case ED25519:
		return "ed25519"
	case SECP256K1:
		return "secp256k1"
	default:
		return "unknown"
	}
}

// ParseCurve returns the curve with given text name.
func ParseCurve(name string) (Curve, error) {
	switch name {
	case "ed25519":
		return ED25519, nil
	case "secp256k1":
		return SECP256K1, nil
	}
	return 0, errors.ErrInput.Newf("unknown curve %q", name)
}

func (c Curve) valid() bool {
	return c == ED25519 || c == SECP256K1
}

// publicKeySize returns the length of the public key data. Secp256k1 keys are
// stored without the uncompressed point prefix.
func (c Curve) publicKeySize() int {
	if c == SECP256K1 {
		return 64
	}
	return 32
}

// secretSize returns the length of the secret key data. An ed25519 secret
// carries the public key in its second half.
func (c Curve) secretSize() int {
	if c == SECP256K1 {
		return 32
	}
	return 64
}

// SignatureSize is the length of the signature data for every curve.
const SignatureSize = 64

// parseTagged splits a "<curve>:<base58>" string. A missing curve prefix
// means ed25519.
func parseTagged(s string) (Curve, []byte, error) {
	curve := ED25519
	data := s
	if i := strings.IndexByte(s, ':'); i >= 0 {
		c, err := ParseCurve(s[:i])
		if err != nil {
			return 0, nil, err
		}
		curve = c
		data = s[i+1:]
	}
	if data == "" {
		return 0, nil, errors.ErrInput.New("empty key data")
	}
	raw := base58.Decode(data)
	if len(raw) == 0 {
		return 0, nil, errors.ErrInput.Newf("%q is not base58", data)
	}
	return curve, raw, nil
}

func formatTagged(c Curve, data []byte) string {
	return c.String() + ":" + base58.Encode(data)
}
