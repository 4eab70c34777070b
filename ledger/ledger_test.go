package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcutil/base58"
	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/crypto"
	"github.com/iov-one/paychan/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcCall struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// fakeNode serves JSON-RPC requests by passing them to handle, which returns
// the raw result or the raw error object.
func fakeNode(t *testing.T, handle func(rpcCall) (result, rpcErr string)) (*HTTPClient, *[]rpcCall) {
	t.Helper()
	var calls []rpcCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var c rpcCall
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			t.Errorf("cannot decode request: %s", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		calls = append(calls, c)
		result, rpcErr := handle(c)
		w.Header().Set("Content-Type", "application/json")
		if rpcErr != "" {
			_, _ = w.Write([]byte(`{"jsonrpc": "2.0", "id": "1", "error": ` + rpcErr + `}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc": "2.0", "id": "1", "result": ` + result + `}`))
	}))
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL), &calls
}

func asByteArray(t *testing.T, v interface{}) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	nums := make([]int, len(raw))
	for i, b := range raw {
		nums[i] = int(b)
	}
	out, err := json.Marshal(nums)
	require.NoError(t, err)
	return `{"result": ` + string(out) + `, "logs": [], "block_height": 7, "block_hash": "x"}`
}

func testKey(t *testing.T, seed byte) *crypto.KeyPair {
	t.Helper()
	k, err := crypto.KeyPairFromSeed(bytes.Repeat([]byte{seed}, 32))
	require.NoError(t, err)
	return k
}

func TestCallErrors(t *testing.T) {
	cases := map[string]struct {
		result  string
		rpcErr  string
		wantErr *errors.Error
	}{
		"unknown account": {
			rpcErr:  `{"name": "HANDLER_ERROR", "cause": {"name": "UNKNOWN_ACCOUNT", "info": {}}, "code": -32000, "message": "Server error", "data": "account bob.near does not exist"}`,
			wantErr: errors.ErrNotFound,
		},
		"unknown access key": {
			rpcErr:  `{"name": "HANDLER_ERROR", "cause": {"name": "UNKNOWN_ACCESS_KEY", "info": {}}, "code": -32000, "message": "Server error"}`,
			wantErr: errors.ErrNotFound,
		},
		"contract panic": {
			rpcErr:  `{"name": "HANDLER_ERROR", "cause": {"name": "CONTRACT_EXECUTION_ERROR", "info": {}}, "code": -32000, "message": "Server error"}`,
			wantErr: errors.ErrTransport,
		},
		"plain rpc error": {
			rpcErr:  `{"code": -32601, "message": "Method not found"}`,
			wantErr: errors.ErrTransport,
		},
		"error inside of the result": {
			result:  `{"error": "wasm execution failed", "logs": []}`,
			wantErr: errors.ErrTransport,
		},
		"null result": {
			result:  `null`,
			wantErr: errors.ErrTransport,
		},
		"success": {
			result:  `{"nonce": 4, "permission": "FullAccess", "block_height": 1, "block_hash": "x"}`,
			wantErr: nil,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			c, _ := fakeNode(t, func(rpcCall) (string, string) { return tc.result, tc.rpcErr })
			var dest AccessKey
			err := c.Query(context.Background(), QueryRequest{RequestType: "view_access_key", AccountID: "bob.near"}, &dest)
			if !tc.wantErr.Is(err) {
				t.Fatalf("want %v, got %+v", tc.wantErr, err)
			}
		})
	}
}

func TestHTTPStatusIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewHTTPClient(srv.URL).Call(context.Background(), "status", []string{}, nil)
	assert.True(t, errors.ErrTransport.Is(err), "%+v", err)
	assert.Contains(t, err.Error(), "503")

	err = NewHTTPClient("http://127.0.0.1:1").Call(context.Background(), "status", []string{}, nil)
	assert.True(t, errors.ErrTransport.Is(err), "%+v", err)
}

func TestQueryDefaultsToFinal(t *testing.T) {
	c, calls := fakeNode(t, func(rpcCall) (string, string) { return `{"keys": []}`, "" })
	_, err := FullAccessKeys(context.Background(), c, "bob.near")
	require.NoError(t, err)
	require.Len(t, *calls, 1)

	var params map[string]interface{}
	require.NoError(t, json.Unmarshal((*calls)[0].Params, &params))
	assert.Equal(t, "query", (*calls)[0].Method)
	assert.Equal(t, "final", params["finality"])
	assert.Equal(t, "view_access_key_list", params["request_type"])
	assert.Equal(t, "bob.near", params["account_id"])
}

func TestGetChannel(t *testing.T) {
	sender := testKey(t, 1)
	receiver := testKey(t, 2)
	want := paychan.Channel{
		Sender:           paychan.Account{AccountID: "alice.near", PublicKey: sender.PublicKey()},
		Receiver:         paychan.Account{AccountID: "bob.near", PublicKey: receiver.PublicKey()},
		AddedBalance:     paychan.MustParseNear("2"),
		WithdrawnBalance: paychan.MustParseNear("0.5"),
	}

	c, calls := fakeNode(t, func(call rpcCall) (string, string) {
		var req QueryRequest
		if err := json.Unmarshal(call.Params, &req); err != nil {
			return "", `{"code": -32602, "message": "bad params"}`
		}
		args, _ := base64.StdEncoding.DecodeString(req.ArgsBase64)
		switch string(args) {
		case `{"channel_id":"c1"}`:
			return asByteArray(t, want), ""
		case `{"channel_id":"broken"}`:
			return asByteArray(t, map[string]string{"sender": "alice.near"}), ""
		}
		return asByteArray(t, nil), ""
	})

	ch, err := GetChannel(context.Background(), c, "channels.near", "c1")
	require.NoError(t, err)
	assert.Equal(t, want.Sender.AccountID, ch.Sender.AccountID)
	assert.True(t, want.Receiver.PublicKey.Equal(ch.Receiver.PublicKey))
	assert.Equal(t, 0, want.AddedBalance.Cmp(ch.AddedBalance))
	assert.Equal(t, 0, want.WithdrawnBalance.Cmp(ch.WithdrawnBalance))
	assert.Nil(t, ch.ForceCloseStarted)

	var req QueryRequest
	require.NoError(t, json.Unmarshal((*calls)[0].Params, &req))
	assert.Equal(t, "call_function", req.RequestType)
	assert.Equal(t, "channels.near", req.AccountID)
	assert.Equal(t, "channel", req.MethodName)

	_, err = GetChannel(context.Background(), c, "channels.near", "missing")
	assert.True(t, errors.ErrNotFound.Is(err), "%+v", err)

	_, err = GetChannel(context.Background(), c, "channels.near", "broken")
	assert.True(t, errors.ErrValidation.Is(err), "%+v", err)
}

func TestFullAccessKeys(t *testing.T) {
	full := testKey(t, 1).PublicKey()
	limited := testKey(t, 2).PublicKey()
	c, _ := fakeNode(t, func(rpcCall) (string, string) {
		return `{"keys": [
			{"public_key": "` + limited.String() + `", "access_key": {"nonce": 1, "permission": {"FunctionCall": {"allowance": null, "receiver_id": "x.near", "method_names": []}}}},
			{"public_key": "` + full.String() + `", "access_key": {"nonce": 2, "permission": "FullAccess"}}
		], "block_height": 1, "block_hash": "x"}`, ""
	})

	keys, err := FullAccessKeys(context.Background(), c, "bob.near")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, full.Equal(keys[0]))
}

func TestAccessKeyBlockHash(t *testing.T) {
	hash := sha256.Sum256([]byte("block"))
	k := AccessKey{BlockHash: base58.Encode(hash[:])}
	got, err := k.RecentBlockHash()
	require.NoError(t, err)
	assert.Equal(t, hash, got)

	k.BlockHash = "abc"
	_, err = k.RecentBlockHash()
	assert.True(t, errors.ErrValidation.Is(err))
}

func TestSignTransaction(t *testing.T) {
	key := testKey(t, 9)
	tx := &Transaction{
		SignerID:   "alice.near",
		ReceiverID: "channels.near",
		Method:     "topup",
		Args:       map[string]string{"channel_id": "c1"},
		Gas:        300 * TGas,
		Deposit:    paychan.MustParseNear("1"),
	}
	blockHash := sha256.Sum256([]byte("block"))

	signed, hash, err := SignTransaction(tx, key, 7, blockHash)
	require.NoError(t, err)

	raw, err := tx.Encode(key.PublicKey(), 7, blockHash)
	require.NoError(t, err)
	assert.Equal(t, sha256.Sum256(raw), hash)
	require.Len(t, signed, len(raw)+1+crypto.SignatureSize)
	assert.Equal(t, raw, signed[:len(raw)])

	// signer id, then the ed25519 access key
	assert.Equal(t, uint32(len("alice.near")), binary.LittleEndian.Uint32(raw))
	assert.Equal(t, "alice.near", string(raw[4:14]))
	assert.Equal(t, byte(crypto.ED25519), raw[14])
	assert.Equal(t, []byte(key.PublicKey().Data), raw[15:47])
	assert.Equal(t, uint64(7), binary.LittleEndian.Uint64(raw[47:55]))

	var sig crypto.Signature
	sig.Curve = crypto.Curve(signed[len(raw)])
	copy(sig.Data[:], signed[len(raw)+1:])
	assert.True(t, key.PublicKey().Verify(hash[:], sig))

	_, _, err = SignTransaction(tx, testSecp(t), 7, blockHash)
	assert.True(t, errors.ErrInput.Is(err))

	_, _, err = SignTransaction(&Transaction{SignerID: "alice.near"}, key, 7, blockHash)
	assert.True(t, errors.ErrInput.Is(err))
	assert.NotEmpty(t, errors.FieldErrors(err, "Gas"))
}

func testSecp(t *testing.T) *crypto.KeyPair {
	t.Helper()
	k, err := crypto.GenerateKeyPair(crypto.SECP256K1)
	require.NoError(t, err)
	return k
}

func TestBroadcastOutcome(t *testing.T) {
	cases := map[string]struct {
		result      string
		wantSuccess bool
	}{
		"success value": {
			result:      `{"status": {"SuccessValue": ""}, "transaction": {"hash": "abc", "signer_id": "alice.near"}}`,
			wantSuccess: true,
		},
		"failure": {
			result:      `{"status": {"Failure": {"ActionError": {"index": 0}}}, "transaction": {"hash": "abc"}}`,
			wantSuccess: false,
		},
		"not started": {
			result:      `{"status": "NotStarted", "transaction": {"hash": "abc"}}`,
			wantSuccess: false,
		},
		"no status": {
			result:      `{"transaction": {"hash": "abc"}}`,
			wantSuccess: false,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			c, calls := fakeNode(t, func(rpcCall) (string, string) { return tc.result, "" })
			out, err := c.BroadcastTxCommit(context.Background(), []byte{1, 2, 3})
			require.NoError(t, err)
			assert.Equal(t, tc.wantSuccess, out.Succeeded())
			assert.Equal(t, "abc", out.Transaction.Hash)
			if !tc.wantSuccess {
				_, err := out.SuccessValue()
				assert.True(t, errors.ErrTransactionRejected.Is(err))
				assert.NotEmpty(t, out.Failure())
			}

			assert.Equal(t, "broadcast_tx_commit", (*calls)[0].Method)
			assert.JSONEq(t, `["AQID"]`, string((*calls)[0].Params))
		})
	}
}

func TestSuccessValue(t *testing.T) {
	out := Outcome{Status: json.RawMessage(`{"SuccessValue": "` + base64.StdEncoding.EncodeToString([]byte(`true`)) + `"}`)}
	val, err := out.SuccessValue()
	require.NoError(t, err)
	assert.Equal(t, "true", string(val))
}
