package signing

import (
	"testing"

	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/crypto"
	"github.com/iov-one/paychan/errors"
	"github.com/iov-one/paychan/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tendermint/libs/db"
)

func setup(t *testing.T) (*Engine, *store.Store, *crypto.KeyPair) {
	t.Helper()
	s := store.New(dbm.NewMemDB(), "", nil)
	e := NewEngine(s)

	key, err := e.NewChannelKey()
	require.NoError(t, err)
	require.Equal(t, crypto.ED25519, key.Curve())
	receiver, err := crypto.GenerateKeyPair(crypto.ED25519)
	require.NoError(t, err)

	require.NoError(t, s.Create(&store.Element{
		ID: "c1",
		Channel: paychan.Channel{
			Sender:       paychan.Account{AccountID: "alice.near", PublicKey: key.PublicKey()},
			Receiver:     paychan.Account{AccountID: "bob.near", PublicKey: receiver.PublicKey()},
			AddedBalance: paychan.MustParseNear("1"),
		},
		SenderKeyPair: key,
	}))
	require.NoError(t, s.Create(&store.Element{
		ID: "receiving",
		Channel: paychan.Channel{
			Sender:       paychan.Account{AccountID: "carol.near", PublicKey: receiver.PublicKey()},
			Receiver:     paychan.Account{AccountID: "alice.near", PublicKey: key.PublicKey()},
			AddedBalance: paychan.MustParseNear("1"),
		},
	}))
	return e, s, key
}

func TestCreatePayment(t *testing.T) {
	e, s, key := setup(t)

	tenth := paychan.MustParseNear("0.1")
	signed, err := e.CreatePayment("c1", tenth, true)
	require.NoError(t, err)
	assert.Equal(t, paychan.ChannelID("c1"), signed.State.ChannelID)
	assert.Equal(t, 0, signed.State.SpentBalance.Cmp(tenth))
	assert.Equal(t, crypto.ED25519, signed.Signature.Curve)
	assert.True(t, signed.Verify(key.PublicKey()))

	el, err := s.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, 0, el.LatestSpentBalance.Cmp(tenth))

	_, err = e.CreatePayment("c1", paychan.MustParseNear("0.01"), true)
	assert.True(t, errors.ErrMonotonicity.Is(err), "%+v", err)
}

func TestUnsettleableChannelKeys(t *testing.T) {
	e, s, key := setup(t)
	secp, err := crypto.GenerateKeyPair(crypto.SECP256K1)
	require.NoError(t, err)

	// A record restored from elsewhere may carry a key the ledger rejects.
	require.NoError(t, s.Create(&store.Element{
		ID: "secp",
		Channel: paychan.Channel{
			Sender:       paychan.Account{AccountID: "alice.near", PublicKey: secp.PublicKey()},
			Receiver:     paychan.Account{AccountID: "bob.near", PublicKey: key.PublicKey()},
			AddedBalance: paychan.MustParseNear("1"),
		},
		SenderKeyPair: secp,
	}))

	_, err = e.CreatePayment("secp", paychan.NewBalance(1), true)
	assert.True(t, errors.ErrValidation.Is(err), "%+v", err)
	assert.Len(t, errors.FieldErrors(err, "sender_key_pair"), 1)
	el, err := s.Get("secp")
	require.NoError(t, err)
	assert.True(t, el.LatestSpentBalance.IsZero())

	signed, err := paychan.SignState(paychan.State{ChannelID: "secp", SpentBalance: paychan.NewBalance(1)}, secp)
	require.NoError(t, err)
	require.True(t, signed.Verify(secp.PublicKey()))
	_, err = e.VerifyPayment(signed)
	assert.True(t, errors.ErrValidation.Is(err), "%+v", err)
	assert.Len(t, errors.FieldErrors(err, "sender.public_key"), 1)
}

func TestCreatePaymentErrors(t *testing.T) {
	cases := map[string]struct {
		id      paychan.ChannelID
		amount  paychan.Balance
		wantErr *errors.Error
	}{
		"unknown channel": {
			id:      "missing",
			amount:  paychan.NewBalance(1),
			wantErr: errors.ErrNotFound,
		},
		"receiver side has no key": {
			id:      "receiving",
			amount:  paychan.NewBalance(1),
			wantErr: errors.ErrKeyMissing,
		},
		"zero is not an increase": {
			id:      "c1",
			amount:  paychan.NewBalance(0),
			wantErr: errors.ErrMonotonicity,
		},
		"first payment": {
			id:      "c1",
			amount:  paychan.NewBalance(1),
			wantErr: nil,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			e, _, _ := setup(t)
			if _, err := e.CreatePayment(tc.id, tc.amount, false); !tc.wantErr.Is(err) {
				t.Fatalf("want %v, got %+v", tc.wantErr, err)
			}
		})
	}
}

func TestMonotonicity(t *testing.T) {
	e, s, _ := setup(t)
	a1 := paychan.MustParseNear("0.1")
	a2 := paychan.MustParseNear("0.2")

	// Preview signing does not move the lower bound.
	_, err := e.CreatePayment("c1", a2, false)
	require.NoError(t, err)
	_, err = e.CreatePayment("c1", a1, true)
	require.NoError(t, err)
	_, err = e.CreatePayment("c1", a2, true)
	require.NoError(t, err)

	for _, amount := range []paychan.Balance{a1, a2} {
		_, err = e.CreatePayment("c1", amount, true)
		assert.True(t, errors.ErrMonotonicity.Is(err))
	}

	el, err := s.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, 0, el.LatestSpentBalance.Cmp(a2))
}

func TestVerifyPayment(t *testing.T) {
	e, _, key := setup(t)

	signed, err := e.CreatePayment("c1", paychan.MustParseNear("0.5"), false)
	require.NoError(t, err)
	el, err := e.VerifyPayment(signed)
	require.NoError(t, err)
	assert.Equal(t, paychan.ChannelID("c1"), el.ID)

	forged, err := crypto.GenerateKeyPair(crypto.ED25519)
	require.NoError(t, err)
	bad, err := paychan.SignState(paychan.State{ChannelID: "c1", SpentBalance: paychan.NewBalance(5)}, forged)
	require.NoError(t, err)
	_, err = e.VerifyPayment(bad)
	assert.True(t, errors.ErrUnauthorized.Is(err))

	tooMuch, err := paychan.SignState(paychan.State{ChannelID: "c1", SpentBalance: paychan.MustParseNear("2")}, key)
	require.NoError(t, err)
	_, err = e.VerifyPayment(tooMuch)
	assert.True(t, errors.ErrValidation.Is(err))

	unknown, err := paychan.SignState(paychan.State{ChannelID: "nope", SpentBalance: paychan.NewBalance(1)}, key)
	require.NoError(t, err)
	_, err = e.VerifyPayment(unknown)
	assert.True(t, errors.ErrNotFound.Is(err))

	_, err = e.VerifyPayment(nil)
	assert.True(t, errors.ErrInput.Is(err))
}
