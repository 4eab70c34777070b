package paychan

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/iov-one/paychan/codec"
	"github.com/iov-one/paychan/errors"
)

// Timestamp represents a point in time as nanoseconds since the UNIX epoch,
// the ledger block time precision.
type Timestamp uint64

// AsTimestamp converts given Time structure into its ledger representation.
func AsTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UnixNano())
}

// Time returns a time.Time structure that represents the same moment in time.
func (t Timestamp) Time() time.Time {
	return time.Unix(0, int64(t))
}

// Add modifies this timestamp by given duration. This is compatible with
// time.Time.Add method.
func (t Timestamp) Add(d time.Duration) Timestamp {
	return t + Timestamp(d)
}

// String returns the usual string representation of this time as the
// time.Time structure would.
func (t Timestamp) String() string {
	return t.Time().UTC().String()
}

// MarshalJSON returns the nanoseconds as a decimal string.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(t), 10))
}

// UnmarshalJSON supports both a number and a decimal string. The ledger
// returns a number while the local store keeps a string.
func (t *Timestamp) UnmarshalJSON(raw []byte) error {
	var v interface{}
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte(`"`)) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return errors.Wrap(errors.ErrValidation, err.Error())
		}
		v = s
	} else {
		v = json.Number(bytes.TrimSpace(raw))
	}
	dec, err := codec.NormalizeInteger(v, 64)
	if err != nil {
		return errors.Wrap(err, "timestamp")
	}
	n, err := strconv.ParseUint(dec, 10, 64)
	if err != nil {
		return errors.Wrap(errors.ErrValidation, err.Error())
	}
	*t = Timestamp(n)
	return nil
}
