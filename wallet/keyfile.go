package wallet

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/crypto"
	"github.com/iov-one/paychan/errors"
)

// KeyFile is the credentials file format used by the ledger command line
// tools, usually found at ~/.near-credentials/<network>/<account>.json
type KeyFile struct {
	AccountID  paychan.AccountID `json:"account_id"`
	PublicKey  crypto.PublicKey  `json:"public_key"`
	PrivateKey *crypto.KeyPair   `json:"private_key"`
}

// Validate returns an error if the file is incomplete or the keys do not
// match.
func (f *KeyFile) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "account_id", f.AccountID.Validate())
	if f.PrivateKey == nil {
		return errors.AppendField(errs, "private_key", errors.ErrKeyMissing)
	}
	errs = errors.AppendField(errs, "private_key", f.PrivateKey.Validate())
	if !f.PublicKey.IsZero() && !f.PublicKey.Equal(f.PrivateKey.PublicKey()) {
		errs = errors.AppendField(errs, "public_key",
			errors.ErrValidation.New("does not match the private key"))
	}
	return errs
}

// DefaultKeyPath returns the location of the credentials file of given
// account.
func DefaultKeyPath(network string, account paychan.AccountID) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrInput, err.Error())
	}
	return filepath.Join(home, ".near-credentials", network, account.String()+".json"), nil
}

// LoadKeyFile reads and validates a credentials file.
func LoadKeyFile(path string) (*KeyFile, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrNotFound, "key file %q", path)
		}
		return nil, errors.Wrapf(errors.ErrInput, "read key file: %s", err)
	}
	var f KeyFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrapf(errors.ErrValidation, "key file %q: %s", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, errors.Wrapf(err, "key file %q", path)
	}
	return &f, nil
}

// WriteKeyFile writes a credentials file readable only by its owner. It does
// not overwrite an existing file.
func WriteKeyFile(path string, account paychan.AccountID, key *crypto.KeyPair) error {
	f := KeyFile{AccountID: account, PublicKey: key.PublicKey(), PrivateKey: key}
	if err := f.Validate(); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrInput, err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(errors.ErrInput, err.Error())
	}
	fd, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return errors.Wrapf(errors.ErrAlreadyExists, "key file %q", path)
		}
		return errors.Wrap(errors.ErrInput, err.Error())
	}
	defer fd.Close()
	if _, err := fd.Write(raw); err != nil {
		return errors.Wrap(errors.ErrInput, err.Error())
	}
	return nil
}
