package paychan

import (
	"encoding/base64"

	"github.com/google/uuid"
	"github.com/iov-one/paychan/codec"
	"github.com/iov-one/paychan/crypto"
	"github.com/iov-one/paychan/errors"
)

func init() {
	codec.MustRegister(Account{})
	codec.MustRegister(Channel{})
	codec.MustRegister(State{})
	codec.MustRegister(SignedState{})
}

// ChannelID identifies a channel on the ledger and in the local store.
type ChannelID string

// NewChannelID returns a random identifier.
func NewChannelID() ChannelID {
	return ChannelID(uuid.New().String())
}

// Validate returns an error if the id cannot be used as a channel identifier.
func (id ChannelID) Validate() error {
	if id == "" {
		return errors.ErrValidation.New("empty channel id")
	}
	return nil
}

func (id ChannelID) String() string {
	return string(id)
}

// Channel is the escrow record kept by the ledger. The client only caches a
// read only copy.
type Channel struct {
	Receiver         Account `borsh:"receiver" json:"receiver"`
	Sender           Account `borsh:"sender" json:"sender"`
	AddedBalance     Balance `borsh:"added_balance" json:"added_balance"`
	WithdrawnBalance Balance `borsh:"withdrawn_balance" json:"withdrawn_balance"`
	// ForceCloseStarted is the block time at which the sender started a
	// unilateral close. It is nil when no force close is pending.
	ForceCloseStarted *Timestamp `borsh:"force_close_started" json:"force_close_started"`
}

// Validate returns an error if the channel record is not consistent.
func (c *Channel) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "receiver", c.Receiver.Validate())
	errs = errors.AppendField(errs, "sender", c.Sender.Validate())
	if c.WithdrawnBalance.Cmp(c.AddedBalance) > 0 {
		errs = errors.AppendField(errs, "withdrawn_balance",
			errors.ErrValidation.Newf("withdrawn %s exceeds added %s", c.WithdrawnBalance, c.AddedBalance))
	}
	return errs
}

// CheckSettleable returns an error if the ledger could not verify states
// signed for this channel. The contract accepts ed25519 keys only.
func (c *Channel) CheckSettleable() error {
	var errs error
	errs = errors.AppendField(errs, "receiver.public_key", settleableKey(c.Receiver.PublicKey))
	errs = errors.AppendField(errs, "sender.public_key", settleableKey(c.Sender.PublicKey))
	return errs
}

func settleableKey(key crypto.PublicKey) error {
	if key.Curve != crypto.ED25519 {
		return errors.ErrValidation.Newf("%s keys cannot be settled", key.Curve)
	}
	return nil
}

// IsClosed returns true if the ledger replaced both parties with the burned
// identity.
func (c *Channel) IsClosed() bool {
	return c.Sender.IsBurned() && c.Receiver.IsBurned()
}

// IsForceClosing returns true if the sender started a unilateral close.
func (c *Channel) IsForceClosing() bool {
	return c.ForceCloseStarted != nil
}

// Remaining returns the part of the escrow that was not withdrawn yet.
func (c *Channel) Remaining() Balance {
	r, err := c.AddedBalance.Sub(c.WithdrawnBalance)
	if err != nil {
		return Balance{}
	}
	return r
}

// State is a payment: the receiver may claim up to SpentBalance from the
// channel.
type State struct {
	ChannelID    ChannelID `borsh:"channel_id" json:"channel_id"`
	SpentBalance Balance   `borsh:"spent_balance" json:"spent_balance"`
}

// Validate returns an error if the state cannot be signed.
func (s *State) Validate() error {
	return errors.AppendField(nil, "channel_id", s.ChannelID.Validate())
}

// SignedState is a State together with a signature over its binary
// representation, made with the channel key of the sender.
type SignedState struct {
	State     State            `borsh:"state" json:"state"`
	Signature crypto.Signature `borsh:"signature" json:"signature"`
}

// SignState returns the state signed with given key.
func SignState(s State, key *crypto.KeyPair) (*SignedState, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	msg, err := codec.Marshal(&s)
	if err != nil {
		return nil, errors.Wrap(err, "marshal state")
	}
	sig, err := key.Sign(msg)
	if err != nil {
		return nil, errors.Wrap(err, "sign state")
	}
	return &SignedState{State: s, Signature: sig}, nil
}

// Verify returns true if the signature was made over this state with the
// secret of given public key.
func (s *SignedState) Verify(pub crypto.PublicKey) bool {
	msg, err := codec.Marshal(&s.State)
	if err != nil {
		return false
	}
	return pub.Verify(msg, s.Signature)
}

// Encode returns the base64 form of the binary representation, the format
// handed from the sender to the receiver outside of the ledger.
func (s *SignedState) Encode() (string, error) {
	raw, err := codec.Marshal(s)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeSignedState reverses Encode.
func DecodeSignedState(encoded string) (*SignedState, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(errors.ErrValidation, "signed state is not base64")
	}
	var s SignedState
	if err := codec.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(err, "signed state")
	}
	if err := s.State.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
