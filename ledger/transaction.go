package ledger

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"

	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/codec"
	"github.com/iov-one/paychan/crypto"
	"github.com/iov-one/paychan/errors"
)

// TGas is the unit gas budgets are usually expressed in.
const TGas uint64 = 1000000000000

// Transaction is a single function call of a contract, signed by the account
// of SignerID.
type Transaction struct {
	SignerID   paychan.AccountID
	ReceiverID paychan.AccountID
	Method     string
	// Args is serialized to JSON before being attached to the call.
	Args    interface{}
	Gas     uint64
	Deposit paychan.Balance
}

// Validate returns an error if the transaction cannot be submitted.
func (tx *Transaction) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "SignerID", tx.SignerID.Validate())
	errs = errors.AppendField(errs, "ReceiverID", tx.ReceiverID.Validate())
	if tx.Method == "" {
		errs = errors.AppendField(errs, "Method", errors.ErrInput.New("required"))
	}
	if tx.Gas == 0 {
		errs = errors.AppendField(errs, "Gas", errors.ErrInput.New("required"))
	}
	return errs
}

// actionFunctionCall is the enum tag of a function call action.
const actionFunctionCall = 2

// Encode returns the binary representation of the transaction, signed with
// given access key.
func (tx *Transaction) Encode(key crypto.PublicKey, nonce uint64, blockHash [32]byte) ([]byte, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	args, err := json.Marshal(tx.Args)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "args: %s", err)
	}

	e := codec.NewEncoder()
	e.WriteString(tx.SignerID.String())
	if err := codec.MarshalValue(e, key); err != nil {
		return nil, errors.Wrap(err, "public key")
	}
	e.WriteU64(nonce)
	e.WriteString(tx.ReceiverID.String())
	e.WriteFixed(blockHash[:])
	// A single function call action.
	e.WriteU32(1)
	e.WriteU8(actionFunctionCall)
	e.WriteString(tx.Method)
	e.WriteBytes(args)
	e.WriteU64(tx.Gas)
	if err := codec.MarshalValue(e, tx.Deposit); err != nil {
		return nil, errors.Wrap(err, "deposit")
	}
	return e.Bytes(), nil
}

// SignTransaction encodes the transaction and signs its hash with given
// access key. It returns the signed transaction ready to be broadcast and
// the transaction hash.
//
// Only ed25519 access keys are supported.
func SignTransaction(tx *Transaction, key *crypto.KeyPair, nonce uint64, blockHash [32]byte) ([]byte, [32]byte, error) {
	var hash [32]byte
	if key.Curve() != crypto.ED25519 {
		return nil, hash, errors.ErrInput.Newf("cannot sign transactions with %s keys", key.Curve())
	}
	raw, err := tx.Encode(key.PublicKey(), nonce, blockHash)
	if err != nil {
		return nil, hash, err
	}
	hash = sha256.Sum256(raw)
	sig, err := key.Sign(hash[:])
	if err != nil {
		return nil, hash, err
	}

	e := codec.NewEncoder()
	e.WriteFixed(raw)
	if err := codec.MarshalValue(e, sig); err != nil {
		return nil, hash, errors.Wrap(err, "signature")
	}
	return e.Bytes(), hash, nil
}

// Outcome is the final execution outcome of a submitted transaction.
type Outcome struct {
	// Status is an object with a single key, SuccessValue or Failure,
	// or a string for transactions that were not executed yet.
	Status      json.RawMessage `json:"status"`
	Transaction struct {
		Hash     string `json:"hash"`
		SignerID string `json:"signer_id"`
	} `json:"transaction"`
}

func (o *Outcome) status() map[string]json.RawMessage {
	var s map[string]json.RawMessage
	if o == nil || json.Unmarshal(o.Status, &s) != nil {
		return nil
	}
	return s
}

// Succeeded returns true only if the outcome carries a success value.
func (o *Outcome) Succeeded() bool {
	_, ok := o.status()["SuccessValue"]
	return ok
}

// SuccessValue returns the decoded value returned by the called method.
func (o *Outcome) SuccessValue() ([]byte, error) {
	raw, ok := o.status()["SuccessValue"]
	if !ok {
		return nil, errors.Wrap(errors.ErrTransactionRejected, o.Failure())
	}
	var enc string
	if err := json.Unmarshal(raw, &enc); err != nil {
		return nil, errors.Wrap(errors.ErrValidation, "success value is not a string")
	}
	val, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrValidation, "success value is not base64")
	}
	return val, nil
}

// Failure returns a human readable description of a failed outcome.
func (o *Outcome) Failure() string {
	if o == nil {
		return "no outcome"
	}
	if f, ok := o.status()["Failure"]; ok {
		return "failure: " + string(f)
	}
	if len(o.Status) == 0 {
		return "no status"
	}
	return "status: " + string(o.Status)
}
