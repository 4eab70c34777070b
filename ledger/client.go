package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"sync/atomic"

	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/errors"
)

// Querier is implemented by any service that provides read access to the
// ledger state.
type Querier interface {
	Query(ctx context.Context, req QueryRequest, dest interface{}) error
}

// Broadcaster is implemented by any service that accepts signed transactions
// and returns their execution outcome.
type Broadcaster interface {
	BroadcastTxCommit(ctx context.Context, signedTx []byte) (*Outcome, error)
}

// HTTPClient implements Querier and Broadcaster. It is using the JSON-RPC
// over HTTP transport to communicate with a ledger node.
type HTTPClient struct {
	rpcURL string
	cli    http.Client
	nextID uint64
}

var (
	_ Querier     = (*HTTPClient)(nil)
	_ Broadcaster = (*HTTPClient)(nil)
)

// NewHTTPClient returns a client talking to the JSON-RPC endpoint at given
// URL, for example https://rpc.testnet.near.org
func NewHTTPClient(rpcURL string) *HTTPClient {
	return &HTTPClient{
		rpcURL: rpcURL,
	}
}

// Call executes a single JSON-RPC method and decodes the result into dest.
//
// Network and protocol failures are returned as ErrTransport. Errors
// reporting an unknown account, access key or contract state are returned as
// ErrNotFound.
func (c *HTTPClient) Call(ctx context.Context, method string, params interface{}, dest interface{}) error {
	body, err := json.Marshal(jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      fmt.Sprint(atomic.AddUint64(&c.nextID, 1)),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.Wrap(errors.ErrInput, err.Error())
	}

	req, err := http.NewRequest("POST", c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(errors.ErrTransport, err.Error())
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", paychan.UserAgent())

	resp, err := c.cli.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrTransport, "do request: %s", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 1e5))
		return errors.Wrapf(errors.ErrTransport, "bad response: %d %s", resp.StatusCode, string(b))
	}

	var payload jsonrpcResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1e7)).Decode(&payload); err != nil {
		return errors.Wrapf(errors.ErrTransport, "decode response: %s", err)
	}
	if payload.Error != nil {
		return payload.Error.asError(method)
	}
	if len(payload.Result) == 0 || bytes.Equal(payload.Result, []byte("null")) {
		return errors.Wrapf(errors.ErrTransport, "%s: empty result", method)
	}
	// Older nodes report query failures inside of the result.
	var inline struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(payload.Result, &inline) == nil && inline.Error != "" {
		return errors.Wrapf(errors.ErrTransport, "%s: %s", method, inline.Error)
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(payload.Result, dest); err != nil {
		return errors.Wrapf(errors.ErrValidation, "%s result: %s", method, err)
	}
	return nil
}

// Query executes a read only query.
func (c *HTTPClient) Query(ctx context.Context, req QueryRequest, dest interface{}) error {
	if req.Finality == "" && req.BlockID == nil {
		req.Finality = FinalityFinal
	}
	return c.Call(ctx, "query", req, dest)
}

// BroadcastTxCommit submits a signed transaction and waits until it is
// executed.
func (c *HTTPClient) BroadcastTxCommit(ctx context.Context, signedTx []byte) (*Outcome, error) {
	var out Outcome
	params := []string{base64.StdEncoding.EncodeToString(signedTx)}
	if err := c.Call(ctx, "broadcast_tx_commit", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type jsonrpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type jsonrpcResponse struct {
	Error  *jsonResponseError `json:"error"`
	Result json.RawMessage    `json:"result"`
}

type jsonResponseError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Name    string          `json:"name"`
	Cause   *struct {
		Name string          `json:"name"`
		Info json.RawMessage `json:"info"`
	} `json:"cause"`
}

func (e *jsonResponseError) Error() string {
	var data string
	if len(e.Data) != 0 {
		if json.Unmarshal(e.Data, &data) != nil {
			data = string(e.Data)
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("code %d, %s: %s", e.Code, e.Cause.Name, data)
	}
	if data != "" {
		return fmt.Sprintf("code %d, %s", e.Code, data)
	}
	return fmt.Sprintf("code %d, %s", e.Code, e.Message)
}

// notFoundCauses are error causes reported by the node for queries of
// missing entities.
var notFoundCauses = map[string]bool{
	"UNKNOWN_ACCOUNT":    true,
	"UNKNOWN_ACCESS_KEY": true,
	"NO_CONTRACT_CODE":   true,
}

func (e *jsonResponseError) asError(method string) error {
	if e.Cause != nil && notFoundCauses[e.Cause.Name] {
		return errors.Wrapf(errors.ErrNotFound, "%s: %s", method, e.Error())
	}
	return errors.Wrapf(errors.ErrTransport, "%s: %s", method, e.Error())
}
