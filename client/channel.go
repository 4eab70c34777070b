package client

import (
	"context"
	"time"

	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/errors"
	"github.com/iov-one/paychan/ledger"
	"github.com/iov-one/paychan/store"
)

// GetChannel returns the authoritative channel record from the ledger.
func (c *Client) GetChannel(ctx context.Context, id paychan.ChannelID) (*paychan.Channel, error) {
	return ledger.GetChannel(ctx, c.ledger, c.contract, id)
}

// ResolveAccount returns the account with its first full access key, to be
// used as the receiver of a new channel.
func (c *Client) ResolveAccount(ctx context.Context, id paychan.AccountID) (paychan.Account, error) {
	if err := id.Validate(); err != nil {
		return paychan.Account{}, err
	}
	keys, err := ledger.FullAccessKeys(ctx, c.ledger, id)
	if err != nil {
		return paychan.Account{}, err
	}
	if len(keys) == 0 {
		return paychan.Account{}, errors.Wrapf(errors.ErrNotFound, "no full access key of %q", id)
	}
	return paychan.Account{AccountID: id, PublicKey: keys[0]}, nil
}

// OpenChannel creates a channel from the wallet account to receiver, holding
// deposit.
//
// The local record, including a fresh channel key, is written before the
// transaction is submitted and removed again if the submission fails. It
// fails with ErrAlreadyExists if the channel is known locally or to the
// ledger.
func (c *Client) OpenChannel(ctx context.Context, receiver paychan.Account, deposit paychan.Balance, opts ...CallOption) (el *store.Element, err error) {
	start := time.Now()
	cfg := c.callConfig(opts)
	id := cfg.channelID
	if id == "" {
		id = paychan.NewChannelID()
	}
	defer func() {
		c.metrics.observe("open_channel", start)
		logDuration(c.logger, start, "open channel", err, false, "channel", id, "receiver", receiver.AccountID, "deposit", deposit)
	}()

	if err := receiver.Validate(); err != nil {
		return nil, errors.Field("receiver", err, "")
	}
	if exists, err := c.store.Exists(id); err != nil {
		return nil, err
	} else if exists {
		return nil, errors.Wrapf(errors.ErrAlreadyExists, "channel %q in local store", id)
	}
	switch _, err := c.GetChannel(ctx, id); {
	case err == nil:
		return nil, errors.Wrapf(errors.ErrAlreadyExists, "channel %q on the ledger", id)
	case !errors.ErrNotFound.Is(err):
		return nil, err
	}

	key, err := c.engine.NewChannelKey()
	if err != nil {
		return nil, errors.Wrap(err, "channel key")
	}
	el = &store.Element{
		ID: id,
		Channel: paychan.Channel{
			Receiver:     receiver,
			Sender:       paychan.Account{AccountID: c.wallet.AccountID(), PublicKey: key.PublicKey()},
			AddedBalance: deposit,
		},
		SenderKeyPair: key,
	}
	if err := el.Channel.CheckSettleable(); err != nil {
		return nil, err
	}
	if err := c.store.Create(el); err != nil {
		return nil, errors.Wrap(err, "store channel")
	}

	args := openChannelArgs{ChannelID: id, Receiver: el.Channel.Receiver, Sender: el.Channel.Sender}
	if _, err := c.submit(ctx, "open_channel", args, deposit, cfg.gas); err != nil {
		if rerr := c.store.Delete(id); rerr != nil {
			return nil, errors.Append(err, errors.Wrap(rerr, "rollback"))
		}
		return nil, err
	}
	return el, nil
}

type openChannelArgs struct {
	ChannelID paychan.ChannelID `json:"channel_id"`
	Receiver  paychan.Account   `json:"receiver"`
	Sender    paychan.Account   `json:"sender"`
}

type channelIDArgs struct {
	ChannelID paychan.ChannelID `json:"channel_id"`
}

type stateArgs struct {
	State *paychan.SignedState `json:"state"`
}

type withdrawAndCloseArgs struct {
	State *paychan.SignedState `json:"state"`
	Close *paychan.SignedState `json:"close"`
}

// CreatePayment signs a payment of amount for a channel opened by the
// wallet account. When remember is set, later payments must exceed amount.
func (c *Client) CreatePayment(id paychan.ChannelID, amount paychan.Balance, remember bool) (signed *paychan.SignedState, err error) {
	start := time.Now()
	defer func() {
		c.metrics.observe("create_payment", start)
		logDuration(c.logger, start, "create payment", err, true, "channel", id, "amount", amount, "remember", remember)
	}()

	el, err := c.store.Get(id)
	if err != nil {
		return nil, err
	}
	if el.Channel.Sender.AccountID != c.wallet.AccountID() {
		return nil, errors.Wrapf(errors.ErrUnauthorized, "channel %q is sent by %q", id, el.Channel.Sender.AccountID)
	}
	c.records.Lock()
	signed, err = c.engine.CreatePayment(id, amount, remember)
	c.records.Unlock()
	if err != nil {
		return nil, err
	}
	c.metrics.paymentSigned()
	return signed, nil
}

// VerifyPayment checks a payment received for a channel tracked in the local
// store.
func (c *Client) VerifyPayment(signed *paychan.SignedState) (*store.Element, error) {
	return c.engine.VerifyPayment(signed)
}

// Track stores the ledger record of a channel the wallet account receives
// payments from, so that its payments can be verified.
func (c *Client) Track(ctx context.Context, id paychan.ChannelID) (el *store.Element, err error) {
	start := time.Now()
	defer func() {
		logDuration(c.logger, start, "track channel", err, false, "channel", id)
	}()

	if exists, err := c.store.Exists(id); err != nil {
		return nil, err
	} else if exists {
		return nil, errors.Wrapf(errors.ErrAlreadyExists, "channel %q in local store", id)
	}
	ch, err := c.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.Receiver.AccountID != c.wallet.AccountID() {
		return nil, errors.Wrapf(errors.ErrUnauthorized, "channel %q is received by %q", id, ch.Receiver.AccountID)
	}
	if err := ch.CheckSettleable(); err != nil {
		return nil, err
	}
	el = &store.Element{ID: id, Channel: *ch}
	if err := c.store.Create(el); err != nil {
		return nil, err
	}
	return el, nil
}

// Close settles a channel with a close message signed by its receiver. Any
// party holding the message may submit it.
func (c *Client) Close(ctx context.Context, closeState *paychan.SignedState, opts ...CallOption) (out *ledger.Outcome, err error) {
	if closeState == nil {
		return nil, errors.ErrInput.New("state required")
	}
	start := time.Now()
	id := closeState.State.ChannelID
	defer func() {
		c.metrics.observe("close", start)
		logDuration(c.logger, start, "close channel", err, false, "channel", id)
	}()

	ch, err := c.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkClose(ch, closeState); err != nil {
		return nil, err
	}
	return c.submit(ctx, "close", stateArgs{State: closeState}, paychan.Balance{}, c.callConfig(opts).gas)
}

// NewCloseState returns the message closing a channel. It must be signed by
// the receiver of the channel.
func NewCloseState(id paychan.ChannelID) paychan.State {
	return paychan.State{ChannelID: id}
}

func checkClose(ch *paychan.Channel, closeState *paychan.SignedState) error {
	if ch.IsClosed() {
		return errors.Wrapf(errors.ErrValidation, "channel %q is closed", closeState.State.ChannelID)
	}
	if err := ch.CheckSettleable(); err != nil {
		return err
	}
	if !closeState.State.SpentBalance.IsZero() {
		return errors.Field("state.spent_balance", errors.ErrValidation, "close message must not spend")
	}
	if !closeState.Verify(ch.Receiver.PublicKey) {
		return errors.Wrap(errors.ErrUnauthorized, "close message is not signed by the receiver")
	}
	return nil
}

// Withdraw transfers the part of payment not withdrawn yet to the receiver
// without closing the channel.
func (c *Client) Withdraw(ctx context.Context, payment *paychan.SignedState, opts ...CallOption) (out *ledger.Outcome, err error) {
	if payment == nil {
		return nil, errors.ErrInput.New("state required")
	}
	start := time.Now()
	id := payment.State.ChannelID
	defer func() {
		c.metrics.observe("withdraw", start)
		logDuration(c.logger, start, "withdraw", err, false, "channel", id, "spent", payment.State.SpentBalance)
	}()

	ch, err := c.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkWithdraw(ch, payment); err != nil {
		return nil, err
	}
	return c.submit(ctx, "withdraw", stateArgs{State: payment}, paychan.Balance{}, c.callConfig(opts).gas)
}

func checkWithdraw(ch *paychan.Channel, payment *paychan.SignedState) error {
	if ch.IsClosed() {
		return errors.Wrapf(errors.ErrValidation, "channel %q is closed", payment.State.ChannelID)
	}
	if err := ch.CheckSettleable(); err != nil {
		return err
	}
	if !payment.Verify(ch.Sender.PublicKey) {
		return errors.Wrap(errors.ErrUnauthorized, "payment is not signed by the sender")
	}
	spent := payment.State.SpentBalance
	if spent.Cmp(ch.WithdrawnBalance) <= 0 {
		return errors.Wrapf(errors.ErrValidation, "nothing to withdraw, %s already withdrawn", ch.WithdrawnBalance)
	}
	if spent.Cmp(ch.AddedBalance) > 0 {
		return errors.Wrapf(errors.ErrValidation, "payment of %s exceeds the channel deposit of %s", spent, ch.AddedBalance)
	}
	return nil
}

// WithdrawAndClose withdraws payment and closes the channel in a single
// transaction.
func (c *Client) WithdrawAndClose(ctx context.Context, payment, closeState *paychan.SignedState, opts ...CallOption) (out *ledger.Outcome, err error) {
	if payment == nil || closeState == nil {
		return nil, errors.ErrInput.New("state required")
	}
	start := time.Now()
	id := payment.State.ChannelID
	defer func() {
		c.metrics.observe("withdraw_and_close", start)
		logDuration(c.logger, start, "withdraw and close", err, false, "channel", id)
	}()

	if closeState.State.ChannelID != id {
		return nil, errors.Field("close.state.channel_id", errors.ErrValidation, "must be %q", id)
	}
	ch, err := c.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkWithdraw(ch, payment); err != nil {
		return nil, err
	}
	if err := checkClose(ch, closeState); err != nil {
		return nil, err
	}
	args := withdrawAndCloseArgs{State: payment, Close: closeState}
	return c.submit(ctx, "withdraw_and_close", args, paychan.Balance{}, c.callConfig(opts).gas)
}

// Topup adds amount to the deposit of an open channel.
func (c *Client) Topup(ctx context.Context, id paychan.ChannelID, amount paychan.Balance, opts ...CallOption) (out *ledger.Outcome, err error) {
	start := time.Now()
	defer func() {
		c.metrics.observe("topup", start)
		logDuration(c.logger, start, "topup", err, false, "channel", id, "amount", amount)
	}()

	if amount.IsZero() {
		return nil, errors.ErrInput.New("topup amount must be positive")
	}
	ch, err := c.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.IsClosed() || ch.IsForceClosing() {
		return nil, errors.Wrapf(errors.ErrValidation, "channel %q is closing", id)
	}
	return c.submit(ctx, "topup", channelIDArgs{ChannelID: id}, amount, c.callConfig(opts).gas)
}

// StartForceClose starts the waiting period after which the sender can close
// the channel without the receiver. Only the sender recorded on the ledger
// can call it.
func (c *Client) StartForceClose(ctx context.Context, id paychan.ChannelID, opts ...CallOption) (out *ledger.Outcome, err error) {
	start := time.Now()
	defer func() {
		c.metrics.observe("force_close_start", start)
		logDuration(c.logger, start, "start force close", err, false, "channel", id)
	}()

	ch, err := c.senderChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.IsForceClosing() {
		return nil, errors.Wrapf(errors.ErrValidation, "channel %q is already closing since %s", id, ch.ForceCloseStarted)
	}
	return c.submit(ctx, "force_close_start", channelIDArgs{ChannelID: id}, paychan.Balance{}, c.callConfig(opts).gas)
}

// FinishForceClose closes a channel whose force close was started. The ledger
// rejects the call until the waiting period has passed.
func (c *Client) FinishForceClose(ctx context.Context, id paychan.ChannelID, opts ...CallOption) (out *ledger.Outcome, err error) {
	start := time.Now()
	defer func() {
		c.metrics.observe("force_close_finish", start)
		logDuration(c.logger, start, "finish force close", err, false, "channel", id)
	}()

	ch, err := c.senderChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ch.IsForceClosing() {
		return nil, errors.Wrapf(errors.ErrValidation, "force close of channel %q was not started", id)
	}
	return c.submit(ctx, "force_close_finish", channelIDArgs{ChannelID: id}, paychan.Balance{}, c.callConfig(opts).gas)
}

// senderChannel returns the ledger record of a channel sent by the wallet
// account.
func (c *Client) senderChannel(ctx context.Context, id paychan.ChannelID) (*paychan.Channel, error) {
	ch, err := c.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.IsClosed() {
		return nil, errors.Wrapf(errors.ErrValidation, "channel %q is closed", id)
	}
	if ch.Sender.AccountID != c.wallet.AccountID() {
		return nil, errors.Wrapf(errors.ErrUnauthorized, "%q is not the sender of channel %q", c.wallet.AccountID(), id)
	}
	return ch, nil
}

// submit sends a call of the contract through the wallet. An outcome without
// a success value is returned together with ErrTransactionRejected.
func (c *Client) submit(ctx context.Context, method string, args interface{}, deposit paychan.Balance, gas uint64) (*ledger.Outcome, error) {
	tx := &ledger.Transaction{
		SignerID:   c.wallet.AccountID(),
		ReceiverID: c.contract,
		Method:     method,
		Args:       args,
		Gas:        gas,
		Deposit:    deposit,
	}
	c.metrics.txSubmitted(method)
	out, err := c.wallet.SignAndSendTransaction(ctx, tx)
	if err != nil {
		c.metrics.txFailed(method)
		// Wallets outside of this module may return plain errors.
		if errors.Code(err) == 1 {
			err = errors.Wrap(errors.ErrTransport, err.Error())
		}
		return nil, errors.Wrapf(err, "submit %s", method)
	}
	if !out.Succeeded() {
		c.metrics.txFailed(method)
		return out, errors.Wrapf(errors.ErrTransactionRejected, "%s: %s", method, out.Failure())
	}
	return out, nil
}
