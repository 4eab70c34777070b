/*
Package client implements the channel protocol on top of the local store,
the signing engine, the ledger and a wallet.

Operations changing the ledger are submitted through the Wallet. Payments are
signed locally with the per channel key and never touch the ledger. All
channel records read from the ledger are authoritative, the local store only
caches a copy.

The client assumes it is the only user of its store.
*/
package client

import (
	"sync"

	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/errors"
	"github.com/iov-one/paychan/ledger"
	"github.com/iov-one/paychan/signing"
	"github.com/iov-one/paychan/store"
	"github.com/iov-one/paychan/wallet"
	"github.com/tendermint/tendermint/libs/log"
)

const (
	// DefaultGas is the gas budget attached to every transaction unless
	// configured otherwise.
	DefaultGas = 300 * ledger.TGas

	// DefaultConcurrency is the maximum number of ledger queries in flight
	// while refreshing channels.
	DefaultConcurrency = 16
)

// Store is the local channel storage used by the client.
type Store interface {
	Get(paychan.ChannelID) (*store.Element, error)
	Exists(paychan.ChannelID) (bool, error)
	Create(*store.Element) error
	Delete(paychan.ChannelID) error
	Export() (store.Snapshot, error)
	Import(store.Snapshot) error
}

var _ Store = (*store.Store)(nil)

// Client exposes the protocol operations of channels kept by a single
// contract.
type Client struct {
	contract paychan.AccountID
	store    Store
	engine   *signing.Engine
	ledger   ledger.Querier
	wallet   wallet.Wallet

	logger      log.Logger
	metrics     *Metrics
	gas         uint64
	concurrency int

	// records serializes changes that read a stored channel and write it
	// back, so that none of them loses the update of another.
	records sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used to report the outcome of every operation.
func WithLogger(l log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics enables collecting metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithConcurrency limits the number of ledger queries in flight during a
// refresh.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		c.concurrency = n
	}
}

// WithDefaultGas sets the gas budget of transactions that do not specify
// their own.
func WithDefaultGas(gas uint64) Option {
	return func(c *Client) {
		c.gas = gas
	}
}

// New returns a client of the contract deployed at given account.
func New(contract paychan.AccountID, s Store, q ledger.Querier, w wallet.Wallet, opts ...Option) (*Client, error) {
	c := &Client{
		contract:    contract,
		store:       s,
		ledger:      q,
		wallet:      w,
		logger:      log.NewNopLogger(),
		gas:         DefaultGas,
		concurrency: DefaultConcurrency,
	}
	for _, fn := range opts {
		fn(c)
	}

	var errs error
	errs = errors.AppendField(errs, "contract", contract.Validate())
	if s == nil {
		errs = errors.AppendField(errs, "store", errors.ErrInput.New("required"))
	}
	if q == nil {
		errs = errors.AppendField(errs, "ledger", errors.ErrInput.New("required"))
	}
	if w == nil {
		errs = errors.AppendField(errs, "wallet", errors.ErrInput.New("required"))
	}
	if c.gas == 0 {
		errs = errors.AppendField(errs, "gas", errors.ErrInput.New("must be positive"))
	}
	if c.concurrency < 1 {
		errs = errors.AppendField(errs, "concurrency", errors.ErrInput.New("must be positive"))
	}
	if errs != nil {
		return nil, errs
	}

	c.engine = signing.NewEngine(s)
	c.logger = c.logger.With("module", "paychan", "contract", contract)
	return c, nil
}

// Contract returns the account of the contract holding the channels.
func (c *Client) Contract() paychan.AccountID {
	return c.contract
}

type callConfig struct {
	channelID paychan.ChannelID
	gas       uint64
}

// CallOption configures a single operation.
type CallOption func(*callConfig)

// WithChannelID sets the identifier of a channel being opened. A random
// identifier is used by default.
func WithChannelID(id paychan.ChannelID) CallOption {
	return func(cfg *callConfig) {
		cfg.channelID = id
	}
}

// WithGas sets the gas budget of the submitted transaction.
func WithGas(gas uint64) CallOption {
	return func(cfg *callConfig) {
		cfg.gas = gas
	}
}

func (c *Client) callConfig(opts []CallOption) callConfig {
	cfg := callConfig{gas: c.gas}
	for _, fn := range opts {
		fn(&cfg)
	}
	if cfg.gas == 0 {
		cfg.gas = c.gas
	}
	return cfg
}
