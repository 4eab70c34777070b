package client

import (
	"context"
	"time"

	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/errors"
	"github.com/iov-one/paychan/store"
	"golang.org/x/sync/errgroup"
)

// ListChannels returns all channels of the local store ordered by id.
//
// With refresh set, the cached copy of every channel that is not closed yet
// is first replaced with the ledger record. At most the configured number of
// ledger queries are in flight at once. A channel that cannot be refreshed
// is logged and left unchanged.
func (c *Client) ListChannels(ctx context.Context, refresh bool) (list []*store.Element, err error) {
	start := time.Now()
	defer func() {
		c.metrics.observe("list_channels", start)
		logDuration(c.logger, start, "list channels", err, true, "refresh", refresh, "channels", len(list))
	}()

	snap, err := c.store.Export()
	if err != nil {
		return nil, err
	}
	if refresh {
		c.refresh(ctx, snap)
	}

	ids := snap.IDs()
	list = make([]*store.Element, 0, len(ids))
	for _, id := range ids {
		list = append(list, snap[id])
	}
	return list, nil
}

// refresh updates the channels of snap in place and in the store.
func (c *Client) refresh(ctx context.Context, snap store.Snapshot) {
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, el := range snap {
		if el.Channel.IsClosed() {
			continue
		}
		el := el
		g.Go(func() error {
			updated, err := c.refreshOne(ctx, el.ID)
			if err != nil {
				c.metrics.refreshFailed()
				c.logger.Error("cannot refresh channel", "channel", el.ID, "err", err)
				return nil
			}
			*el = *updated
			return nil
		})
	}
	// Failures are never returned.
	_ = g.Wait()
}

// refreshOne replaces the cached channel of the stored record with the ledger
// copy. The record is read again after the query, as payments may have been
// remembered in the meantime.
func (c *Client) refreshOne(ctx context.Context, id paychan.ChannelID) (*store.Element, error) {
	ch, err := c.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}

	c.records.Lock()
	defer c.records.Unlock()
	current, err := c.store.Get(id)
	if err != nil {
		return nil, errors.Wrap(err, "reload channel")
	}
	current.Channel = *ch
	if err := c.store.Create(current); err != nil {
		return nil, errors.Wrap(err, "store refreshed channel")
	}
	return current, nil
}

// Export returns all channels of the local store.
func (c *Client) Export() (store.Snapshot, error) {
	return c.store.Export()
}

// Import writes all channels of snap into the local store, replacing records
// with the same id. Nothing is written if any channel is invalid.
func (c *Client) Import(snap store.Snapshot) (err error) {
	start := time.Now()
	defer func() {
		logDuration(c.logger, start, "import channels", err, false, "channels", len(snap))
	}()
	c.records.Lock()
	defer c.records.Unlock()
	return c.store.Import(snap)
}

// LocalChannel returns the locally cached record of a channel.
func (c *Client) LocalChannel(id paychan.ChannelID) (*store.Element, error) {
	return c.store.Get(id)
}
