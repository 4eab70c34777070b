package store

import (
	"encoding/json"
	"strings"

	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/codec"
	"github.com/iov-one/paychan/errors"
	dbm "github.com/tendermint/tendermint/libs/db"
	"github.com/tendermint/tendermint/libs/log"
)

// DefaultPrefix is used for record keys when no prefix is configured.
const DefaultPrefix = "payment-channel-storage"

// Store keeps channel records in a key value database. Each record is a JSON
// document kept under the <prefix>_<channel id> key.
//
// Store is not safe for concurrent use by more than one process. A single
// client instance is expected to own the database.
type Store struct {
	db     dbm.DB
	prefix string
	logger log.Logger
}

// New returns a store using given database. An empty prefix means
// DefaultPrefix.
func New(db dbm.DB, prefix string, logger log.Logger) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Store{
		db:     db,
		prefix: prefix,
		logger: logger.With("module", "store"),
	}
}

// OpenLevelDB returns a store persisted in a goleveldb database located in
// dir.
func OpenLevelDB(name, dir, prefix string, logger log.Logger) (*Store, error) {
	var s *Store
	err := safe(func() error {
		db, err := dbm.NewGoLevelDB(name, dir)
		if err != nil {
			return errors.Wrapf(err, "open %s in %s", name, dir)
		}
		s = New(db, prefix, logger)
		return nil
	})
	return s, err
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return safe(func() error {
		s.db.Close()
		return nil
	})
}

func (s *Store) key(id paychan.ChannelID) []byte {
	return []byte(s.prefix + "_" + string(id))
}

// Get returns the record of given channel. It fails with ErrNotFound if no
// record exists and with ErrValidation if the stored value is malformed.
func (s *Store) Get(id paychan.ChannelID) (*Element, error) {
	var raw []byte
	if err := safe(func() error {
		raw = s.db.Get(s.key(id))
		return nil
	}); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "channel %q", id)
	}
	el, err := decodeElement(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "channel %q", id)
	}
	return el, nil
}

// Exists returns true if a record of given channel exists.
func (s *Store) Exists(id paychan.ChannelID) (bool, error) {
	var ok bool
	err := safe(func() error {
		ok = s.db.Has(s.key(id))
		return nil
	})
	return ok, err
}

// Create writes the record, replacing any existing record with the same id.
func (s *Store) Create(el *Element) error {
	if err := el.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(el)
	if err != nil {
		return errors.Wrap(errors.ErrValidation, err.Error())
	}
	return safe(func() error {
		s.db.SetSync(s.key(el.ID), raw)
		return nil
	})
}

// Delete removes the record of given channel. Deleting a missing record is
// not an error.
func (s *Store) Delete(id paychan.ChannelID) error {
	return safe(func() error {
		s.db.DeleteSync(s.key(id))
		return nil
	})
}

// Export returns all records. A record that cannot be decoded is skipped and
// reported to the logger so that a single corrupted value does not block
// access to the remaining channels.
func (s *Store) Export() (Snapshot, error) {
	snap := make(Snapshot)
	err := safe(func() error {
		prefix := s.prefix + "_"
		it := dbm.IteratePrefix(s.db, []byte(prefix))
		defer it.Close()

		for ; it.Valid(); it.Next() {
			key := string(it.Key())
			el, err := decodeElement(it.Value())
			if err != nil {
				s.logger.Error("skipping corrupted channel record", "key", key, "err", err)
				continue
			}
			if id := strings.TrimPrefix(key, prefix); string(el.ID) != id {
				s.logger.Error("skipping channel record stored under a foreign key", "key", key, "id", el.ID)
				continue
			}
			snap[el.ID] = el
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Import writes all records of the snapshot, replacing records with the same
// id. The snapshot is validated first and nothing is written unless every
// record is valid.
func (s *Store) Import(snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	values := make(map[paychan.ChannelID][]byte, len(snap))
	for id, el := range snap {
		raw, err := json.Marshal(el)
		if err != nil {
			return errors.Field(string(id), errors.Wrap(errors.ErrValidation, err.Error()), "")
		}
		values[id] = raw
	}
	return safe(func() error {
		batch := s.db.NewBatch()
		for id, raw := range values {
			batch.Set(s.key(id), raw)
		}
		batch.WriteSync()
		return nil
	})
}

func decodeElement(raw []byte) (*Element, error) {
	var el Element
	if err := codec.DecodeJSON(raw, &el); err != nil {
		return nil, err
	}
	if err := el.Validate(); err != nil {
		return nil, err
	}
	return &el, nil
}

// safe converts a panic of the database layer into an error.
func safe(fn func() error) (err error) {
	defer errors.Recover(&err)
	return fn()
}
