package store

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/codec"
	"github.com/iov-one/paychan/errors"
)

// Snapshot is a full copy of the store, keyed by channel id.
type Snapshot map[paychan.ChannelID]*Element

// Validate returns an error if any of the records is invalid or is stored
// under a different id. Errors are reported per channel id.
func (s Snapshot) Validate() error {
	var errs error
	for _, id := range s.IDs() {
		el := s[id]
		if el == nil {
			errs = errors.AppendField(errs, string(id), errors.ErrValidation.New("empty record"))
			continue
		}
		if el.ID != id {
			errs = errors.AppendField(errs, string(id), errors.ErrValidation.Newf("record id %q does not match its key", el.ID))
			continue
		}
		errs = errors.AppendField(errs, string(id), el.Validate())
	}
	return errs
}

// IDs returns all channel ids in lexicographical order.
func (s Snapshot) IDs() []paychan.ChannelID {
	ids := make([]paychan.ChannelID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ParseSnapshot decodes a JSON backup as produced by encoding a Snapshot.
// Every record is validated against the record schema. All problems are
// reported together, one field error per channel id.
func ParseSnapshot(raw []byte) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var records map[string]json.RawMessage
	if err := dec.Decode(&records); err != nil {
		return nil, errors.Wrap(errors.ErrValidation, "snapshot must be a JSON object")
	}

	snap := make(Snapshot, len(records))
	var errs error
	for id, rec := range records {
		var el Element
		if err := codec.DecodeJSON(rec, &el); err != nil {
			errs = errors.AppendField(errs, id, err)
			continue
		}
		snap[paychan.ChannelID(id)] = &el
	}
	if errs != nil {
		return nil, errs
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}
