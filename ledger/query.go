package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/btcsuite/btcutil/base58"
	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/codec"
	"github.com/iov-one/paychan/crypto"
	"github.com/iov-one/paychan/errors"
)

const (
	// FinalityFinal requests the state of the last finalized block.
	FinalityFinal = "final"
	// FinalityOptimistic requests the state of the latest block, which may
	// not be final yet.
	FinalityOptimistic = "optimistic"
)

// QueryRequest is the parameter object of the query method.
type QueryRequest struct {
	RequestType string      `json:"request_type"`
	Finality    string      `json:"finality,omitempty"`
	BlockID     interface{} `json:"block_id,omitempty"`
	AccountID   string      `json:"account_id"`
	PublicKey   string      `json:"public_key,omitempty"`
	MethodName  string      `json:"method_name,omitempty"`
	ArgsBase64  string      `json:"args_base64,omitempty"`
}

// CallFunctionRequest returns a request calling a view method of a contract.
func CallFunctionRequest(contract paychan.AccountID, method string, args interface{}) (QueryRequest, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return QueryRequest{}, errors.Wrap(errors.ErrInput, err.Error())
	}
	return QueryRequest{
		RequestType: "call_function",
		AccountID:   contract.String(),
		MethodName:  method,
		ArgsBase64:  base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// CallResult is the result of a view method call.
type CallResult struct {
	Result      byteArray `json:"result"`
	Logs        []string  `json:"logs"`
	BlockHeight uint64    `json:"block_height"`
	BlockHash   string    `json:"block_hash"`
}

// byteArray decodes a JSON array of numbers, the way the node returns raw
// bytes.
type byteArray []byte

func (b *byteArray) UnmarshalJSON(raw []byte) error {
	var nums []int
	if err := json.Unmarshal(raw, &nums); err != nil {
		return err
	}
	out := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return errors.ErrValidation.Newf("byte value %d out of range", n)
		}
		out[i] = byte(n)
	}
	*b = out
	return nil
}

// GetChannel returns the channel record kept by the contract. It fails with
// ErrNotFound if the contract does not know the channel.
func GetChannel(ctx context.Context, q Querier, contract paychan.AccountID, id paychan.ChannelID) (*paychan.Channel, error) {
	req, err := CallFunctionRequest(contract, "channel", map[string]string{"channel_id": id.String()})
	if err != nil {
		return nil, err
	}
	var res CallResult
	if err := q.Query(ctx, req, &res); err != nil {
		return nil, errors.Wrapf(err, "query channel %q", id)
	}
	raw := bytes.TrimSpace(res.Result)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errors.Wrapf(errors.ErrNotFound, "channel %q", id)
	}
	var c paychan.Channel
	if err := codec.DecodeJSON(raw, &c); err != nil {
		return nil, errors.Wrapf(err, "channel %q", id)
	}
	return &c, nil
}

// AccessKeyInfo describes a single access key of an account.
type AccessKeyInfo struct {
	PublicKey crypto.PublicKey `json:"public_key"`
	AccessKey AccessKey        `json:"access_key"`
}

// AccessKey is the state of an access key. Permission is either the string
// FullAccess or an object describing a function call allowance.
type AccessKey struct {
	Nonce       uint64          `json:"nonce"`
	Permission  json.RawMessage `json:"permission"`
	BlockHeight uint64          `json:"block_height"`
	BlockHash   string          `json:"block_hash"`
}

// IsFullAccess returns true if the key can sign any transaction of its
// account.
func (k *AccessKey) IsFullAccess() bool {
	var s string
	return json.Unmarshal(k.Permission, &s) == nil && s == "FullAccess"
}

// RecentBlockHash returns the decoded hash of the block at which this key
// state was read.
func (k *AccessKey) RecentBlockHash() ([32]byte, error) {
	var h [32]byte
	raw := base58.Decode(k.BlockHash)
	if len(raw) != len(h) {
		return h, errors.ErrValidation.Newf("invalid block hash %q", k.BlockHash)
	}
	copy(h[:], raw)
	return h, nil
}

// FullAccessKeys returns all public keys that have full access to given
// account.
func FullAccessKeys(ctx context.Context, q Querier, account paychan.AccountID) ([]crypto.PublicKey, error) {
	var res struct {
		Keys []AccessKeyInfo `json:"keys"`
	}
	req := QueryRequest{RequestType: "view_access_key_list", AccountID: account.String()}
	if err := q.Query(ctx, req, &res); err != nil {
		return nil, errors.Wrapf(err, "access keys of %q", account)
	}
	var keys []crypto.PublicKey
	for _, k := range res.Keys {
		if k.AccessKey.IsFullAccess() {
			keys = append(keys, k.PublicKey)
		}
	}
	return keys, nil
}

// GetAccessKey returns the state of a single access key, including the nonce
// and a recent block hash needed to build a transaction.
//
// The key is read at optimistic finality. The nonce of the last final block
// lags behind transactions that were already committed.
func GetAccessKey(ctx context.Context, q Querier, account paychan.AccountID, key crypto.PublicKey) (*AccessKey, error) {
	var res AccessKey
	req := QueryRequest{
		RequestType: "view_access_key",
		Finality:    FinalityOptimistic,
		AccountID:   account.String(),
		PublicKey:   key.String(),
	}
	if err := q.Query(ctx, req, &res); err != nil {
		return nil, errors.Wrapf(err, "access key %s of %q", key, account)
	}
	return &res, nil
}
