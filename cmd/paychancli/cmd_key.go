package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/crypto"
	"github.com/iov-one/paychan/wallet"
)

func cmdKeygen(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Generate a new ed25519 key for an account and write it to a credentials file.

An implicit account ID, derived from the public key, is used when no account
is given. This command fails if the credentials file already exists. The
public key is written to the output.
`)
		fl.PrintDefaults()
	}
	var (
		configFl  = flConfig(fl)
		accountFl = fl.String("account", "", "Account ID owning the key. Defaults to the configured account.")
		keyFl     = fl.String("key", "", "Path of the credentials file. Defaults to the configured key file.")
	)
	fl.Parse(args)

	cfg, err := loadConfig(*configFl)
	if err != nil {
		return err
	}
	key, err := crypto.GenerateKeyPair(crypto.ED25519)
	if err != nil {
		return fmt.Errorf("cannot generate ed25519 key: %s", err)
	}

	account := paychan.AccountID(*accountFl)
	if account == "" {
		account = paychan.AccountID(cfg.Account)
	}
	if account == "" {
		account = paychan.ImplicitAccountID(key.PublicKey())
	}
	if err := account.Validate(); err != nil {
		flagDie("invalid account: %s", err)
	}

	path := *keyFl
	if path == "" && string(account) == cfg.Account {
		path = cfg.KeyFile
	}
	if path == "" {
		path, err = wallet.DefaultKeyPath(cfg.Network, account)
		if err != nil {
			return fmt.Errorf("cannot locate credentials directory: %s", err)
		}
	}
	if err := wallet.WriteKeyFile(path, account, key); err != nil {
		return fmt.Errorf("cannot write credentials file: %s", err)
	}
	_, err = fmt.Fprintf(output, "%s\t%s\n", account, key.PublicKey())
	return err
}
