/*
Package config loads the settings of a channel client.

Settings are read from a TOML file and can be overwritten with PAYCHAN_*
environment variables, for example PAYCHAN_NODE_URL or PAYCHAN_ACCOUNT.
*/
package config

import (
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/client"
	"github.com/iov-one/paychan/errors"
	"github.com/iov-one/paychan/ledger"
	"github.com/iov-one/paychan/store"
	"github.com/iov-one/paychan/wallet"
	dbm "github.com/tendermint/tendermint/libs/db"
	"github.com/tendermint/tendermint/libs/log"
)

// Config holds all settings of a client.
type Config struct {
	// Network is the name of the ledger network, mainnet or testnet. It
	// selects the default node and the credentials directory.
	Network string `toml:"network"`
	// NodeURL is the JSON-RPC endpoint of a ledger node.
	NodeURL string `toml:"node_url"`
	// Contract is the account of the channel contract.
	Contract string `toml:"contract"`
	// Account is the account signing transactions.
	Account string `toml:"account"`
	// KeyFile is the credentials file of Account. It defaults to the
	// location used by the ledger command line tools.
	KeyFile string `toml:"key_file"`
	// GasTGas is the gas budget of every transaction in TGas.
	GasTGas uint64 `toml:"gas_tgas"`
	// Concurrency limits ledger queries in flight while listing channels.
	Concurrency int `toml:"concurrency"`
	// LogLevel is one of debug, info, error or none.
	LogLevel string `toml:"log_level"`

	Store StoreConfig `toml:"store"`
}

// StoreConfig describes the local channel store.
type StoreConfig struct {
	// Backend is goleveldb or memdb.
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	Name    string `toml:"name"`
	Prefix  string `toml:"prefix"`
}

// DefaultContract is the account of the contract on mainnet.
const DefaultContract = "paymentchannel.near"

var nodeURLs = map[string]string{
	"mainnet": "https://rpc.mainnet.near.org",
	"testnet": "https://rpc.testnet.near.org",
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Network:     "mainnet",
		Contract:    DefaultContract,
		GasTGas:     client.DefaultGas / ledger.TGas,
		Concurrency: client.DefaultConcurrency,
		LogLevel:    "info",
		Store: StoreConfig{
			Backend: "goleveldb",
			Dir:     defaultStoreDir(),
			Name:    "channels",
			Prefix:  store.DefaultPrefix,
		},
	}
}

func defaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".paychan"
	}
	return home + "/.paychan"
}

// Load parses the body of a TOML file on top of the defaults, applies
// environment overrides and validates the result. Unknown keys are rejected.
func Load(b []byte, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(b), &cfg)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "toml: %s", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, errors.ErrInput.Newf("undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.applyEnv(lookupEnv); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile loads the configuration file at path using the process
// environment. An empty path loads the defaults.
func LoadFile(path string) (*Config, error) {
	var b []byte
	if path != "" {
		var err error
		b, err = ioutil.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInput, "read config: %s", err)
		}
	}
	return Load(b, os.LookupEnv)
}

func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) error {
	strs := map[string]*string{
		"PAYCHAN_NETWORK":       &c.Network,
		"PAYCHAN_NODE_URL":      &c.NodeURL,
		"PAYCHAN_CONTRACT":      &c.Contract,
		"PAYCHAN_ACCOUNT":       &c.Account,
		"PAYCHAN_KEY_FILE":      &c.KeyFile,
		"PAYCHAN_LOG_LEVEL":     &c.LogLevel,
		"PAYCHAN_STORE_BACKEND": &c.Store.Backend,
		"PAYCHAN_STORE_DIR":     &c.Store.Dir,
	}
	for name, dest := range strs {
		if v, ok := lookupEnv(name); ok {
			*dest = v
		}
	}

	var errs error
	if v, ok := lookupEnv("PAYCHAN_GAS_TGAS"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = errors.AppendField(errs, "PAYCHAN_GAS_TGAS", errors.Wrap(errors.ErrInput, err.Error()))
		}
		c.GasTGas = n
	}
	if v, ok := lookupEnv("PAYCHAN_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = errors.AppendField(errs, "PAYCHAN_CONCURRENCY", errors.Wrap(errors.ErrInput, err.Error()))
		}
		c.Concurrency = n
	}
	return errs
}

func (c *Config) fillDefaults() {
	if c.NodeURL == "" {
		c.NodeURL = nodeURLs[c.Network]
	}
	if c.KeyFile == "" && c.Account != "" {
		if path, err := wallet.DefaultKeyPath(c.Network, paychan.AccountID(c.Account)); err == nil {
			c.KeyFile = path
		}
	}
}

// Validate returns an error describing every invalid setting.
func (c *Config) Validate() error {
	var errs error
	if c.NodeURL == "" {
		errs = errors.AppendField(errs, "node_url", errors.ErrInput.Newf("required for network %q", c.Network))
	} else if !strings.HasPrefix(c.NodeURL, "http://") && !strings.HasPrefix(c.NodeURL, "https://") {
		errs = errors.AppendField(errs, "node_url", errors.ErrInput.New("must be an http or https URL"))
	}
	errs = errors.AppendField(errs, "contract", paychan.AccountID(c.Contract).Validate())
	if c.Account != "" {
		errs = errors.AppendField(errs, "account", paychan.AccountID(c.Account).Validate())
	}
	if c.GasTGas == 0 {
		errs = errors.AppendField(errs, "gas_tgas", errors.ErrInput.New("must be positive"))
	} else if c.GasTGas > 300 {
		errs = errors.AppendField(errs, "gas_tgas", errors.ErrInput.New("must not exceed 300"))
	}
	if c.Concurrency < 1 {
		errs = errors.AppendField(errs, "concurrency", errors.ErrInput.New("must be positive"))
	}
	if _, err := log.AllowLevel(c.LogLevel); err != nil {
		errs = errors.AppendField(errs, "log_level", errors.Wrap(errors.ErrInput, err.Error()))
	}
	switch c.Store.Backend {
	case "memdb":
	case "goleveldb":
		if c.Store.Dir == "" || c.Store.Name == "" {
			errs = errors.AppendField(errs, "store", errors.ErrInput.New("goleveldb requires dir and name"))
		}
	default:
		errs = errors.AppendField(errs, "store.backend", errors.ErrInput.Newf("unknown backend %q", c.Store.Backend))
	}
	return errs
}

// Gas returns the transaction gas budget.
func (c *Config) Gas() uint64 {
	return c.GasTGas * ledger.TGas
}

// Logger returns a logger writing to w, filtered by the configured level.
func (c *Config) Logger(w io.Writer) (log.Logger, error) {
	opt, err := log.AllowLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInput, err.Error())
	}
	return log.NewFilter(log.NewTMLogger(log.NewSyncWriter(w)), opt), nil
}

// OpenStore opens the configured local channel store.
func (c *Config) OpenStore(logger log.Logger) (*store.Store, error) {
	switch c.Store.Backend {
	case "memdb":
		return store.New(dbm.NewMemDB(), c.Store.Prefix, logger), nil
	case "goleveldb":
		if err := os.MkdirAll(c.Store.Dir, 0700); err != nil {
			return nil, errors.Wrap(errors.ErrInput, err.Error())
		}
		return store.OpenLevelDB(c.Store.Name, c.Store.Dir, c.Store.Prefix, logger)
	}
	return nil, errors.ErrInput.Newf("unknown store backend %q", c.Store.Backend)
}

// Wallet loads the key file of the configured account.
func (c *Config) Wallet(node wallet.Node) (*wallet.KeyWallet, error) {
	if c.Account == "" {
		return nil, errors.Field("account", errors.ErrInput, "required to sign transactions")
	}
	f, err := wallet.LoadKeyFile(c.KeyFile)
	if err != nil {
		return nil, err
	}
	if f.AccountID != paychan.AccountID(c.Account) {
		return nil, errors.Wrapf(errors.ErrValidation, "key file %q belongs to %q", c.KeyFile, f.AccountID)
	}
	return wallet.NewKeyWallet(f.AccountID, f.PrivateKey, node)
}

// Client returns a channel client using the configured node, store and
// wallet.
func (c *Config) Client(logger log.Logger, opts ...client.Option) (*client.Client, *store.Store, error) {
	node := ledger.NewHTTPClient(c.NodeURL)
	w, err := c.Wallet(node)
	if err != nil {
		return nil, nil, err
	}
	s, err := c.OpenStore(logger)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]client.Option{
		client.WithLogger(logger),
		client.WithDefaultGas(c.Gas()),
		client.WithConcurrency(c.Concurrency),
	}, opts...)
	cl, err := client.New(paychan.AccountID(c.Contract), s, node, w, opts...)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return cl, s, nil
}
