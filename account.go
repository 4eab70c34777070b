package paychan

import (
	"encoding/hex"
	"strings"

	"github.com/iov-one/paychan/codec"
	"github.com/iov-one/paychan/crypto"
	"github.com/iov-one/paychan/errors"
)

const (
	minAccountIDLength = 2
	maxAccountIDLength = 64
)

// AccountID is the name of a ledger identity, for example alice.near.
type AccountID string

// ParseAccountID returns the account id after checking that it follows the
// ledger naming rules: 2 to 64 characters of lower case letters, digits and
// the separators "-", "_" and ".". A separator cannot start or end the id and
// two separators cannot follow each other.
func ParseAccountID(s string) (AccountID, error) {
	if n := len(s); n < minAccountIDLength || n > maxAccountIDLength {
		return "", errors.ErrValidation.Newf("account id must be %d to %d characters long, got %d", minAccountIDLength, maxAccountIDLength, n)
	}
	prevSeparator := true
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			prevSeparator = false
		case c == '-' || c == '_' || c == '.':
			if prevSeparator {
				return "", errors.ErrValidation.Newf("account id %q has a misplaced separator at %d", s, i)
			}
			prevSeparator = true
		default:
			return "", errors.ErrValidation.Newf("account id %q contains invalid character %q", s, c)
		}
	}
	if prevSeparator {
		return "", errors.ErrValidation.Newf("account id %q ends with a separator", s)
	}
	return AccountID(s), nil
}

// Validate returns an error if the id does not follow the ledger naming rules.
func (id AccountID) Validate() error {
	_, err := ParseAccountID(string(id))
	return err
}

// IsImplicit returns true for ids derived from an ed25519 public key, which
// are 64 hex characters.
func (id AccountID) IsImplicit() bool {
	return len(id) == 64 && strings.Trim(string(id), "0123456789abcdef") == ""
}

// ImplicitAccountID returns the id of the account owned by given ed25519
// key. Such an account exists without being created on the ledger.
func ImplicitAccountID(key crypto.PublicKey) AccountID {
	if key.Curve != crypto.ED25519 {
		return ""
	}
	return AccountID(hex.EncodeToString(key.Data))
}

func (id AccountID) String() string {
	return string(id)
}

func (AccountID) JSONShape() codec.Shape {
	s := codec.Leaf(codec.KindString)
	s.Check = func(v interface{}) (interface{}, error) {
		id, err := ParseAccountID(v.(string))
		if err != nil {
			return nil, err
		}
		return string(id), nil
	}
	return s
}

// Account identifies a ledger identity and the key authorized to act for it.
type Account struct {
	AccountID AccountID        `borsh:"account_id" json:"account_id"`
	PublicKey crypto.PublicKey `borsh:"public_key" json:"public_key"`
}

// NewAccount returns an account after validating both attributes.
func NewAccount(id string, publicKey string) (Account, error) {
	accountID, err := ParseAccountID(id)
	if err != nil {
		return Account{}, errors.Field("account_id", err, "")
	}
	key, err := crypto.ParsePublicKey(publicKey)
	if err != nil {
		return Account{}, errors.Field("public_key", errors.Wrap(errors.ErrValidation, err.Error()), "")
	}
	return Account{AccountID: accountID, PublicKey: key}, nil
}

// Validate returns an error if any of the attributes is malformed.
func (a Account) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "account_id", a.AccountID.Validate())
	if err := a.PublicKey.Validate(); err != nil {
		errs = errors.AppendField(errs, "public_key", errors.Wrap(errors.ErrValidation, err.Error()))
	}
	return errs
}

func (a Account) String() string {
	return a.AccountID.String() + "/" + a.PublicKey.String()
}

// burnedAccountID and burnedPublicKey form the identity the ledger writes
// into both parties of a closed channel.
const (
	burnedAccountID = "0000000000000000000000000000000000000000000000000000000000000000"
	burnedPublicKey = "ed25519:11111111111111111111111111111111"
)

// BurnedAccount returns the sentinel identity of a closed channel.
func BurnedAccount() Account {
	a, err := NewAccount(burnedAccountID, burnedPublicKey)
	if err != nil {
		panic(err)
	}
	return a
}

// IsBurned returns true if this is the sentinel identity of a closed channel.
func (a Account) IsBurned() bool {
	return a.AccountID == burnedAccountID && a.PublicKey.Equal(BurnedAccount().PublicKey)
}
