package crypto

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/iov-one/paychan/codec"
	"github.com/iov-one/paychan/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigning(t *testing.T) {
	for _, curve := range []Curve{ED25519, SECP256K1} {
		t.Run(curve.String(), func(t *testing.T) {
			private, err := GenerateKeyPair(curve)
			require.NoError(t, err)
			public := private.PublicKey()
			require.NoError(t, public.Validate())

			msg := []byte("foobar")
			msg2 := []byte("dingbooms")

			sig, err := private.Sign(msg)
			require.NoError(t, err)
			sig2, err := private.Sign(msg2)
			require.NoError(t, err)

			if bytes.Equal(sig.Data[:], sig2.Data[:]) {
				t.Fatal("different messages produce the same signature")
			}
			if !public.Verify(msg, sig) {
				t.Fatal("cannot verify a message signed with this public key")
			}
			if !public.Verify(msg2, sig2) {
				t.Fatal("cannot verify a message signed with this public key")
			}
			if public.Verify(msg, sig2) {
				t.Fatal("verified message signature of the wrong message")
			}
			if public.Verify(msg, Signature{Curve: curve}) {
				t.Fatal("verified an empty signature of a message")
			}

			other, err := GenerateKeyPair(curve)
			require.NoError(t, err)
			if other.PublicKey().Verify(msg, sig) {
				t.Fatal("verified a signature with a different key")
			}
		})
	}
}

func TestCurveMismatchDoesNotVerify(t *testing.T) {
	ed, err := GenerateKeyPair(ED25519)
	require.NoError(t, err)
	sig, err := ed.Sign([]byte("x"))
	require.NoError(t, err)
	sig.Curve = SECP256K1
	assert.False(t, ed.PublicKey().Verify([]byte("x"), sig))
}

func TestKeyPairFromSeed(t *testing.T) {
	seed := make([]byte, 32)
	a, err := KeyPairFromSeed(seed)
	require.NoError(t, err)
	b, err := KeyPairFromSeed(seed)
	require.NoError(t, err)
	assert.True(t, a.PublicKey().Equal(b.PublicKey()))
	assert.Equal(t, a.String(), b.String())

	_, err = KeyPairFromSeed([]byte{1, 2, 3})
	assert.True(t, errors.ErrInput.Is(err))
}

func TestKeyPairTextForm(t *testing.T) {
	for _, curve := range []Curve{ED25519, SECP256K1} {
		t.Run(curve.String(), func(t *testing.T) {
			kp, err := GenerateKeyPair(curve)
			require.NoError(t, err)

			parsed, err := ParseKeyPair(kp.String())
			require.NoError(t, err)
			assert.Equal(t, curve, parsed.Curve())
			assert.True(t, kp.PublicKey().Equal(parsed.PublicKey()))

			pub, err := ParsePublicKey(kp.PublicKey().String())
			require.NoError(t, err)
			assert.True(t, pub.Equal(kp.PublicKey()))
		})
	}
}

func TestParseErrors(t *testing.T) {
	ed, err := KeyPairFromSeed(make([]byte, 32))
	require.NoError(t, err)
	tampered := append([]byte{}, ed.secret...)
	tampered[40] ^= 1

	cases := map[string]func() error{
		"unknown curve": func() error {
			_, err := ParsePublicKey("rsa:11111111111111111111111111111111")
			return err
		},
		"not base58": func() error {
			_, err := ParsePublicKey("ed25519:0OIl")
			return err
		},
		"short public key": func() error {
			_, err := ParsePublicKey("ed25519:1111")
			return err
		},
		"empty data": func() error {
			_, err := ParsePublicKey("ed25519:")
			return err
		},
		"short signature": func() error {
			_, err := ParseSignature("ed25519:2222")
			return err
		},
		"secret with a foreign public half": func() error {
			_, err := ParseKeyPair(formatTagged(ED25519, tampered))
			return err
		},
	}
	for testName, fn := range cases {
		t.Run(testName, func(t *testing.T) {
			if err := fn(); !errors.ErrInput.Is(err) {
				t.Fatalf("want input error, got %+v", err)
			}
		})
	}
}

func TestBurnedKeyParses(t *testing.T) {
	pub, err := ParsePublicKey("ed25519:11111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 32), pub.Data)
	assert.Equal(t, "ed25519:11111111111111111111111111111111", pub.String())

	noPrefix, err := ParsePublicKey("11111111111111111111111111111111")
	require.NoError(t, err)
	assert.True(t, pub.Equal(noPrefix))
}

func TestBinaryForm(t *testing.T) {
	kp, err := KeyPairFromSeed(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	sig, err := kp.Sign([]byte("state"))
	require.NoError(t, err)

	e := codec.NewEncoder()
	require.NoError(t, kp.PublicKey().MarshalBorsh(e))
	require.NoError(t, sig.MarshalBorsh(e))
	raw := e.Bytes()
	require.Len(t, raw, 1+32+1+64)
	assert.Equal(t, byte(0), raw[0])
	assert.Equal(t, byte(0), raw[33])

	d := codec.NewDecoder(raw)
	var pub PublicKey
	require.NoError(t, pub.UnmarshalBorsh(d))
	var got Signature
	require.NoError(t, got.UnmarshalBorsh(d))
	assert.Equal(t, 0, d.Remaining())
	assert.True(t, pub.Verify([]byte("state"), got))

	bad := codec.NewDecoder([]byte{9, 0, 0})
	err = pub.UnmarshalBorsh(bad)
	assert.True(t, errors.ErrValidation.Is(err))
}

func TestJSONForm(t *testing.T) {
	kp, err := GenerateKeyPair(ED25519)
	require.NoError(t, err)

	raw, err := json.Marshal(kp)
	require.NoError(t, err)
	var back KeyPair
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, kp.String(), back.String())

	var pub PublicKey
	err = json.Unmarshal([]byte(`"ed25519:xyz"`), &pub)
	assert.Error(t, err)

	check := PublicKey{}.JSONShape().Check
	_, err = check("ed25519:1")
	assert.Error(t, err)
	got, err := check("11111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, "ed25519:11111111111111111111111111111111", got)
}
