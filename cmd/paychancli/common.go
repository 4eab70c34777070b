package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/client"
	"github.com/iov-one/paychan/config"
	"github.com/iov-one/paychan/ledger"
	"github.com/iov-one/paychan/store"
)

// requestTimeout bounds every command talking to the ledger.
const requestTimeout = 2 * time.Minute

// loadConfig reads the configuration file at path. A missing file is not an
// error, defaults and environment variables are used instead.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = ""
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load configuration: %s", err)
	}
	return cfg, nil
}

// openClient returns a channel client built from the configuration file. The
// returned function must be called to release the local store.
func openClient(configPath string) (*client.Client, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	c, s, err := cfg.Client(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create client: %s", err)
	}
	return c, func() { s.Close() }, nil
}

func channelID(raw string) (paychan.ChannelID, error) {
	id := paychan.ChannelID(raw)
	if err := id.Validate(); err != nil {
		return "", fmt.Errorf("invalid channel flag: %s", err)
	}
	return id, nil
}

// readSignedState reads a single encoded signed state from the input.
func readSignedState(input io.Reader) (*paychan.SignedState, error) {
	raw, err := ioutil.ReadAll(input)
	if err != nil {
		return nil, fmt.Errorf("cannot read input: %s", err)
	}
	s, err := paychan.DecodeSignedState(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("cannot decode signed state: %s", err)
	}
	return s, nil
}

func writeSignedState(output io.Writer, s *paychan.SignedState) error {
	encoded, err := s.Encode()
	if err != nil {
		return fmt.Errorf("cannot encode signed state: %s", err)
	}
	_, err = fmt.Fprintln(output, encoded)
	return err
}

func writeOutcome(output io.Writer, out *ledger.Outcome) error {
	_, err := fmt.Fprintf(output, "transaction %s succeeded\n", out.Transaction.Hash)
	return err
}

// writeJSON writes an indented JSON representation of v.
func writeJSON(output io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		return fmt.Errorf("cannot serialize: %s", err)
	}
	_, err = fmt.Fprintln(output, string(b))
	return err
}

func writeChannels(output io.Writer, list []*store.Element) error {
	w := tabwriter.NewWriter(output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROLE\tRECEIVER\tADDED\tWITHDRAWN\tSPENT\tSTATE")
	for _, el := range list {
		role := "receiver"
		if el.IsSender() {
			role = "sender"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			el.ID, role, el.Channel.Receiver.AccountID,
			el.Channel.AddedBalance.Near(), el.Channel.WithdrawnBalance.Near(),
			el.LatestSpentBalance.Near(), channelState(&el.Channel))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(output, "%s channels\n", humanize.Comma(int64(len(list))))
	return err
}

func channelState(ch *paychan.Channel) string {
	switch {
	case ch.IsClosed():
		return "closed"
	case ch.IsForceClosing():
		return "force close started " + humanize.Time(ch.ForceCloseStarted.Time())
	default:
		return "open"
	}
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}
