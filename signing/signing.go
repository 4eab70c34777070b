/*
Package signing creates and checks payments of a channel.

Payments are signed with the channel key kept in the local store, never with
the wallet key of the account, so that no wallet approval is needed per
payment. Every payment must claim strictly more than the last remembered one.
*/
package signing

import (
	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/crypto"
	"github.com/iov-one/paychan/errors"
	"github.com/iov-one/paychan/store"
)

// Store is the part of the local store used for signing.
type Store interface {
	Get(paychan.ChannelID) (*store.Element, error)
	Create(*store.Element) error
}

// Engine signs payments of channels kept in a store.
type Engine struct {
	store Store
}

// NewEngine returns an engine using channels of given store.
func NewEngine(s Store) *Engine {
	return &Engine{store: s}
}

// NewChannelKey returns a fresh key pair to be used as the identity of a
// single channel. Channel keys are always ed25519, the only curve the ledger
// verifies.
func (e *Engine) NewChannelKey() (*crypto.KeyPair, error) {
	return crypto.GenerateKeyPair(crypto.ED25519)
}

// CreatePayment signs a state claiming amount from given channel.
//
// It fails with ErrNotFound if the channel is not in the store, with
// ErrKeyMissing if the store holds no channel key and with ErrMonotonicity
// if amount is not greater than the last remembered payment. A channel key
// the ledger cannot verify is rejected with ErrValidation. When remember
// is set the amount is stored as the new lower bound for further payments.
func (e *Engine) CreatePayment(id paychan.ChannelID, amount paychan.Balance, remember bool) (*paychan.SignedState, error) {
	el, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	if el.SenderKeyPair == nil {
		return nil, errors.Wrapf(errors.ErrKeyMissing, "channel %q", id)
	}
	if curve := el.SenderKeyPair.Curve(); curve != crypto.ED25519 {
		return nil, errors.Field("sender_key_pair", errors.ErrValidation, "%s keys cannot be settled", curve)
	}
	if amount.Cmp(el.LatestSpentBalance) <= 0 {
		return nil, errors.Wrapf(errors.ErrMonotonicity, "payment of %s must exceed %s", amount, el.LatestSpentBalance)
	}

	signed, err := paychan.SignState(paychan.State{ChannelID: id, SpentBalance: amount}, el.SenderKeyPair)
	if err != nil {
		return nil, err
	}

	if remember {
		updated := el.Clone()
		updated.LatestSpentBalance = amount
		if err := e.store.Create(updated); err != nil {
			return nil, errors.Wrap(err, "remember payment")
		}
	}
	return signed, nil
}

// VerifyPayment checks a payment received for a channel kept in the store.
// The signature must be made with the sender key of the cached channel and
// the payment must not claim more than the channel holds. Payments of a
// channel whose keys the ledger cannot verify are rejected with
// ErrValidation, as they could never be withdrawn.
func (e *Engine) VerifyPayment(signed *paychan.SignedState) (*store.Element, error) {
	if signed == nil {
		return nil, errors.ErrInput.New("state required")
	}
	el, err := e.store.Get(signed.State.ChannelID)
	if err != nil {
		return nil, err
	}
	if err := el.Channel.CheckSettleable(); err != nil {
		return nil, err
	}
	if !signed.Verify(el.Channel.Sender.PublicKey) {
		return nil, errors.Wrapf(errors.ErrUnauthorized, "payment of channel %q is not signed by the sender", signed.State.ChannelID)
	}
	if signed.State.SpentBalance.Cmp(el.Channel.AddedBalance) > 0 {
		return nil, errors.Wrapf(errors.ErrValidation, "payment of %s exceeds the channel deposit of %s", signed.State.SpentBalance, el.Channel.AddedBalance)
	}
	return el, nil
}
