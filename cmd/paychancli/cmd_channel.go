package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/client"
	"github.com/iov-one/paychan/crypto"
	"github.com/iov-one/paychan/ledger"
	"github.com/iov-one/paychan/store"
	"github.com/iov-one/paychan/wallet"
)

func cmdOpen(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Open a new channel from the configured account to the receiver and deposit
given amount into it.

Unless provided, the receiver key is the first full access key of the receiver
account. When successful the channel ID is written to the output.
`)
		fl.PrintDefaults()
	}
	var (
		configFl      = flConfig(fl)
		receiverFl    = fl.String("receiver", "", "Account ID of the receiver. Required.")
		receiverKeyFl = fl.String("receiver-key", "", "Public key of the receiver, for example ed25519:8Z4j...")
		depositFl     = flNear(fl, "deposit", "", "Amount of NEAR to deposit. Required.")
		idFl          = fl.String("id", "", "Channel ID to use. A random ID is used when not provided.")
		gasFl         = fl.Uint64("gas", 0, "Gas budget in TGas. The configured budget is used when not provided.")
	)
	fl.Parse(args)

	if depositFl.IsZero() {
		flagDie("deposit must be greater than zero")
	}
	receiverID, err := paychan.ParseAccountID(*receiverFl)
	if err != nil {
		flagDie("invalid receiver: %s", err)
	}

	c, cleanup, err := openClient(*configFl)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := withTimeout()
	defer cancel()

	var receiver paychan.Account
	if *receiverKeyFl == "" {
		receiver, err = c.ResolveAccount(ctx, receiverID)
		if err != nil {
			return fmt.Errorf("cannot resolve receiver: %s", err)
		}
	} else {
		key, err := crypto.ParsePublicKey(*receiverKeyFl)
		if err != nil {
			flagDie("invalid receiver key: %s", err)
		}
		receiver = paychan.Account{AccountID: receiverID, PublicKey: key}
	}

	var opts []client.CallOption
	if *idFl != "" {
		opts = append(opts, client.WithChannelID(paychan.ChannelID(*idFl)))
	}
	if *gasFl != 0 {
		opts = append(opts, client.WithGas(*gasFl*ledger.TGas))
	}
	el, err := c.OpenChannel(ctx, receiver, *depositFl, opts...)
	if err != nil {
		return fmt.Errorf("cannot open channel: %s", err)
	}
	_, err = fmt.Fprintln(output, el.ID)
	return err
}

func cmdPay(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Sign a payment bringing the total amount spent on the channel to given
amount. The amount must exceed the last remembered payment. The encoded
payment is written to the output and must be handed to the receiver.

This command does not talk to the ledger.
`)
		fl.PrintDefaults()
	}
	var (
		configFl = flConfig(fl)
		idFl     = flChannel(fl)
		amountFl = flNear(fl, "amount", "", "Total amount of NEAR spent. Required.")
		dryFl    = fl.Bool("dry", false, "Do not remember the payment as the lower bound of further payments.")
	)
	fl.Parse(args)

	id, err := channelID(*idFl)
	if err != nil {
		flagDie("%s", err)
	}

	c, cleanup, err := openClient(*configFl)
	if err != nil {
		return err
	}
	defer cleanup()

	signed, err := c.CreatePayment(id, *amountFl, !*dryFl)
	if err != nil {
		return fmt.Errorf("cannot create payment: %s", err)
	}
	return writeSignedState(output, signed)
}

func cmdVerify(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Read an encoded payment from the input and verify it against the local record
of its channel. The payment must be signed by the channel sender and must not
exceed the channel deposit.

The channel must be tracked first, see the track command.
`)
		fl.PrintDefaults()
	}
	var (
		configFl = flConfig(fl)
	)
	fl.Parse(args)

	signed, err := readSignedState(input)
	if err != nil {
		return err
	}

	c, cleanup, err := openClient(*configFl)
	if err != nil {
		return err
	}
	defer cleanup()

	el, err := c.VerifyPayment(signed)
	if err != nil {
		return fmt.Errorf("payment rejected: %s", err)
	}
	_, err = fmt.Fprintf(output, "accepted %s NEAR spent on channel %s of %s NEAR\n",
		signed.State.SpentBalance.Near(), el.ID, el.Channel.AddedBalance.Near())
	return err
}

func cmdTrack(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Store the ledger record of a channel received by the configured account, so
that payments on it can be verified.
`)
		fl.PrintDefaults()
	}
	var (
		configFl = flConfig(fl)
		idFl     = flChannel(fl)
	)
	fl.Parse(args)

	id, err := channelID(*idFl)
	if err != nil {
		flagDie("%s", err)
	}

	c, cleanup, err := openClient(*configFl)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := withTimeout()
	defer cancel()
	el, err := c.Track(ctx, id)
	if err != nil {
		return fmt.Errorf("cannot track channel: %s", err)
	}
	return writeJSON(output, el.Channel)
}

func cmdCloseState(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Sign a message closing the channel with the key of the configured account.
Only the receiver of a channel can create a valid close message. The encoded
message is written to the output and can be submitted by any party using the
close command.
`)
		fl.PrintDefaults()
	}
	var (
		configFl = flConfig(fl)
		idFl     = flChannel(fl)
	)
	fl.Parse(args)

	id, err := channelID(*idFl)
	if err != nil {
		flagDie("%s", err)
	}
	cfg, err := loadConfig(*configFl)
	if err != nil {
		return err
	}
	signed, err := signCloseState(cfg.KeyFile, id)
	if err != nil {
		return err
	}
	return writeSignedState(output, signed)
}

func signCloseState(keyFile string, id paychan.ChannelID) (*paychan.SignedState, error) {
	f, err := wallet.LoadKeyFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("cannot load key file: %s", err)
	}
	signed, err := paychan.SignState(client.NewCloseState(id), f.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("cannot sign close message: %s", err)
	}
	return signed, nil
}

func cmdClose(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Read an encoded close message from the input and submit it to the ledger. The
remaining deposit is returned to the sender.
`)
		fl.PrintDefaults()
	}
	var (
		configFl = flConfig(fl)
	)
	fl.Parse(args)

	closeState, err := readSignedState(input)
	if err != nil {
		return err
	}

	c, cleanup, err := openClient(*configFl)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := withTimeout()
	defer cancel()
	out, err := c.Close(ctx, closeState)
	if err != nil {
		return fmt.Errorf("cannot close channel: %s", err)
	}
	return writeOutcome(output, out)
}

func cmdWithdraw(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Read an encoded payment from the input and claim its amount from the channel.

With -close set, a close message is signed with the key of the configured
account and the channel is closed in the same transaction.
`)
		fl.PrintDefaults()
	}
	var (
		configFl = flConfig(fl)
		closeFl  = fl.Bool("close", false, "Close the channel after the withdrawal.")
	)
	fl.Parse(args)

	payment, err := readSignedState(input)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configFl)
	if err != nil {
		return err
	}
	c, cleanup, err := openClient(*configFl)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := withTimeout()
	defer cancel()

	var out *ledger.Outcome
	if *closeFl {
		closeState, err := signCloseState(cfg.KeyFile, payment.State.ChannelID)
		if err != nil {
			return err
		}
		out, err = c.WithdrawAndClose(ctx, payment, closeState)
		if err != nil {
			return fmt.Errorf("cannot withdraw and close: %s", err)
		}
	} else {
		out, err = c.Withdraw(ctx, payment)
		if err != nil {
			return fmt.Errorf("cannot withdraw: %s", err)
		}
	}
	return writeOutcome(output, out)
}

func cmdTopup(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Deposit more NEAR into a channel.
`)
		fl.PrintDefaults()
	}
	var (
		configFl = flConfig(fl)
		idFl     = flChannel(fl)
		amountFl = flNear(fl, "amount", "", "Amount of NEAR to deposit. Required.")
	)
	fl.Parse(args)

	id, err := channelID(*idFl)
	if err != nil {
		flagDie("%s", err)
	}

	c, cleanup, err := openClient(*configFl)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := withTimeout()
	defer cancel()
	out, err := c.Topup(ctx, id, *amountFl)
	if err != nil {
		return fmt.Errorf("cannot topup channel: %s", err)
	}
	return writeOutcome(output, out)
}

func cmdForceCloseStart(input io.Reader, output io.Writer, args []string) error {
	return forceClose(output, args, "force-close-start", `
Start a unilateral close of a channel. The receiver has until the ledger
timeout to withdraw. The channel can be finished with the force-close-finish
command afterwards.
`, (*client.Client).StartForceClose)
}

func cmdForceCloseFinish(input io.Reader, output io.Writer, args []string) error {
	return forceClose(output, args, "force-close-finish", `
Finish a unilateral close of a channel once the ledger timeout has passed. The
remaining deposit is returned to the sender.
`, (*client.Client).FinishForceClose)
}

type channelCall func(*client.Client, context.Context, paychan.ChannelID, ...client.CallOption) (*ledger.Outcome, error)

func forceClose(output io.Writer, args []string, name, usage string, call channelCall) error {
	fl := flag.NewFlagSet(name, flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		fl.PrintDefaults()
	}
	var (
		configFl = flConfig(fl)
		idFl     = flChannel(fl)
	)
	fl.Parse(args)

	id, err := channelID(*idFl)
	if err != nil {
		flagDie("%s", err)
	}

	c, cleanup, err := openClient(*configFl)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := withTimeout()
	defer cancel()
	out, err := call(c, ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %s", name, err)
	}
	return writeOutcome(output, out)
}

func cmdChannel(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Print the ledger record of a channel. With -local set, the local record is
printed instead and the ledger is not queried.
`)
		fl.PrintDefaults()
	}
	var (
		configFl = flConfig(fl)
		idFl     = flChannel(fl)
		localFl  = fl.Bool("local", false, "Print the local record.")
	)
	fl.Parse(args)

	id, err := channelID(*idFl)
	if err != nil {
		flagDie("%s", err)
	}

	c, cleanup, err := openClient(*configFl)
	if err != nil {
		return err
	}
	defer cleanup()

	if *localFl {
		el, err := c.LocalChannel(id)
		if err != nil {
			return fmt.Errorf("cannot get local channel: %s", err)
		}
		return writeChannels(output, []*store.Element{el})
	}

	ctx, cancel := withTimeout()
	defer cancel()
	ch, err := c.GetChannel(ctx, id)
	if err != nil {
		return fmt.Errorf("cannot get channel: %s", err)
	}
	return writeJSON(output, ch)
}

func cmdList(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
List all channels of the local store. With -refresh set, the local copy of
every open channel is first updated from the ledger.
`)
		fl.PrintDefaults()
	}
	var (
		configFl  = flConfig(fl)
		refreshFl = fl.Bool("refresh", false, "Update channels from the ledger before listing.")
	)
	fl.Parse(args)

	c, cleanup, err := openClient(*configFl)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := withTimeout()
	defer cancel()
	list, err := c.ListChannels(ctx, *refreshFl)
	if err != nil {
		return fmt.Errorf("cannot list channels: %s", err)
	}
	return writeChannels(output, list)
}
