/*
Package wallet provides the identity used to submit channel transactions.

A Wallet signs with the primary key of an account. It is used for every
transaction sent to the ledger and never for payments, which are signed with
the per channel key.
*/
package wallet

import (
	"context"
	"sync"

	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/crypto"
	"github.com/iov-one/paychan/errors"
	"github.com/iov-one/paychan/ledger"
)

// Wallet signs transactions on behalf of a single account and submits them.
type Wallet interface {
	AccountID() paychan.AccountID
	SignAndSendTransaction(ctx context.Context, tx *ledger.Transaction) (*ledger.Outcome, error)
}

// Node is the part of the ledger client a KeyWallet needs.
type Node interface {
	ledger.Querier
	ledger.Broadcaster
}

// KeyWallet is a Wallet holding a full access key of the account in memory.
type KeyWallet struct {
	account paychan.AccountID
	key     *crypto.KeyPair
	node    Node

	// mu serializes submissions so that consecutive transactions use
	// increasing nonces.
	mu sync.Mutex
	// lastNonce is the nonce of the last signed transaction. The node may
	// report an older nonce until that transaction is part of a block.
	lastNonce uint64
}

var _ Wallet = (*KeyWallet)(nil)

// NewKeyWallet returns a wallet signing with given key. Only ed25519 keys can
// sign transactions.
func NewKeyWallet(account paychan.AccountID, key *crypto.KeyPair, node Node) (*KeyWallet, error) {
	if err := account.Validate(); err != nil {
		return nil, errors.Wrap(err, "account")
	}
	if key == nil {
		return nil, errors.Wrap(errors.ErrKeyMissing, "wallet key")
	}
	if key.Curve() != crypto.ED25519 {
		return nil, errors.ErrInput.Newf("wallet key must be ed25519, got %s", key.Curve())
	}
	return &KeyWallet{account: account, key: key, node: node}, nil
}

// AccountID returns the account that signs all transactions.
func (w *KeyWallet) AccountID() paychan.AccountID {
	return w.account
}

// PublicKey returns the access key used for signing.
func (w *KeyWallet) PublicKey() crypto.PublicKey {
	return w.key.PublicKey()
}

// SignAndSendTransaction fills in the signer, signs the transaction with the
// next nonce of the access key and waits for its outcome. The nonce is above
// both the one reported by the node and the last one used by this wallet.
//
// A transaction naming another signer is rejected with ErrUnauthorized.
func (w *KeyWallet) SignAndSendTransaction(ctx context.Context, tx *ledger.Transaction) (*ledger.Outcome, error) {
	if tx.SignerID == "" {
		cp := *tx
		cp.SignerID = w.account
		tx = &cp
	}
	if tx.SignerID != w.account {
		return nil, errors.Wrapf(errors.ErrUnauthorized, "wallet of %q cannot sign for %q", w.account, tx.SignerID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ak, err := ledger.GetAccessKey(ctx, w.node, w.account, w.key.PublicKey())
	if err != nil {
		return nil, err
	}
	if !ak.IsFullAccess() {
		return nil, errors.Wrapf(errors.ErrUnauthorized, "key %s is not a full access key of %q", w.key.PublicKey(), w.account)
	}
	blockHash, err := ak.RecentBlockHash()
	if err != nil {
		return nil, err
	}
	nonce := ak.Nonce
	if w.lastNonce > nonce {
		nonce = w.lastNonce
	}
	nonce++
	signed, _, err := ledger.SignTransaction(tx, w.key, nonce, blockHash)
	if err != nil {
		return nil, err
	}
	// A broadcast failing after the node received it may still consume the
	// nonce, so it is never reused.
	w.lastNonce = nonce
	return w.node.BroadcastTxCommit(ctx, signed)
}
