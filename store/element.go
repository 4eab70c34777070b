package store

import (
	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/codec"
	"github.com/iov-one/paychan/crypto"
	"github.com/iov-one/paychan/errors"
)

func init() {
	codec.MustRegister(Element{})
}

// Element is the local record of a channel.
type Element struct {
	ID paychan.ChannelID `borsh:"id" json:"id"`
	// Channel is the last known copy of the ledger record.
	Channel paychan.Channel `borsh:"channel" json:"channel"`
	// SenderKeyPair is the channel signing key. It is only present on the
	// party that opened the channel.
	SenderKeyPair *crypto.KeyPair `borsh:"senderKeyPair" json:"senderKeyPair"`
	// LatestSpentBalance is the highest spent balance signed and remembered
	// for this channel.
	LatestSpentBalance paychan.Balance `borsh:"latest_spent_balance" json:"latest_spent_balance"`
}

// Validate returns an error if the record is not consistent.
func (e *Element) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "id", e.ID.Validate())
	errs = errors.AppendField(errs, "channel", e.Channel.Validate())
	if e.SenderKeyPair != nil {
		if err := e.SenderKeyPair.Validate(); err != nil {
			errs = errors.AppendField(errs, "senderKeyPair", errors.Wrap(errors.ErrValidation, err.Error()))
		} else if !e.Channel.IsClosed() && !e.SenderKeyPair.PublicKey().Equal(e.Channel.Sender.PublicKey) {
			errs = errors.AppendField(errs, "senderKeyPair",
				errors.ErrValidation.New("key does not match the channel sender key"))
		}
	}
	return errs
}

// IsSender returns true if this party opened the channel and can sign
// payments.
func (e *Element) IsSender() bool {
	return e.SenderKeyPair != nil
}

// Clone returns a deep enough copy of the element to be modified without
// affecting the original.
func (e *Element) Clone() *Element {
	cp := *e
	if e.Channel.ForceCloseStarted != nil {
		ts := *e.Channel.ForceCloseStarted
		cp.Channel.ForceCloseStarted = &ts
	}
	return &cp
}
