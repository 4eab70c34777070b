package paychan

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/iov-one/paychan/codec"
	"github.com/iov-one/paychan/errors"
)

// NearDecimals is the number of decimal places of one NEAR expressed in
// yoctoNEAR, the unit of every Balance.
const NearDecimals = 24

// Balance is an unsigned 128 bit amount of yoctoNEAR.
//
// The zero value is a zero balance.
type Balance struct {
	v uint256.Int
}

// NewBalance returns a balance of n yoctoNEAR.
func NewBalance(n uint64) Balance {
	var b Balance
	b.v.SetUint64(n)
	return b
}

// ParseBalance decodes a yoctoNEAR amount in its decimal form.
func ParseBalance(s string) (Balance, error) {
	dec, err := codec.NormalizeInteger(s, 128)
	if err != nil {
		return Balance{}, err
	}
	return fromDecimal(dec)
}

// BalanceFromBig returns a balance of n yoctoNEAR.
func BalanceFromBig(n *big.Int) (Balance, error) {
	dec, err := codec.NormalizeInteger(n, 128)
	if err != nil {
		return Balance{}, err
	}
	return fromDecimal(dec)
}

func fromDecimal(dec string) (Balance, error) {
	v, err := uint256.FromDecimal(dec)
	if err != nil {
		return Balance{}, errors.Wrap(errors.ErrValidation, err.Error())
	}
	return Balance{v: *v}, nil
}

// ParseNear decodes an amount given in NEAR, for example "1.5", into its
// yoctoNEAR balance.
func ParseNear(s string) (Balance, error) {
	if s == "" || s == "." {
		return Balance{}, errors.ErrInput.New("empty near amount")
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > NearDecimals {
		return Balance{}, errors.ErrInput.Newf("%q has more than %d decimal places", s, NearDecimals)
	}
	b, err := ParseBalance(whole + frac + strings.Repeat("0", NearDecimals-len(frac)))
	if err != nil {
		return Balance{}, errors.Wrapf(err, "near amount %q", s)
	}
	return b, nil
}

// MustParseNear is ParseNear that panics on invalid input. Use it for
// constants and in tests.
func MustParseNear(s string) Balance {
	b, err := ParseNear(s)
	if err != nil {
		panic(err)
	}
	return b
}

// String returns the decimal yoctoNEAR form.
func (b Balance) String() string {
	return b.v.Dec()
}

// Near returns the amount in NEAR with trailing zero decimals removed.
func (b Balance) Near() string {
	dec := b.v.Dec()
	if len(dec) <= NearDecimals {
		dec = strings.Repeat("0", NearDecimals-len(dec)+1) + dec
	}
	whole, frac := dec[:len(dec)-NearDecimals], strings.TrimRight(dec[len(dec)-NearDecimals:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// ToBig returns the amount as a big integer.
func (b Balance) ToBig() *big.Int {
	return b.v.ToBig()
}

// IsZero returns true if the balance is zero.
func (b Balance) IsZero() bool {
	return b.v.IsZero()
}

// Cmp returns -1, 0 or 1 if b is respectively less than, equal to or greater
// than o.
func (b Balance) Cmp(o Balance) int {
	return b.v.Cmp(&o.v)
}

// Add returns the sum of both balances. It fails if the result does not fit
// in 128 bits.
func (b Balance) Add(o Balance) (Balance, error) {
	var res Balance
	res.v.Add(&b.v, &o.v)
	if res.v.BitLen() > 128 {
		return Balance{}, errors.ErrOverflow.Newf("%s + %s", b, o)
	}
	return res, nil
}

// Sub returns b - o. It fails if o is greater than b.
func (b Balance) Sub(o Balance) (Balance, error) {
	if b.Cmp(o) < 0 {
		return Balance{}, errors.ErrOverflow.Newf("%s - %s is negative", b, o)
	}
	var res Balance
	res.v.Sub(&b.v, &o.v)
	return res, nil
}

func (Balance) BorshShape() codec.Shape {
	return codec.Leaf(codec.KindU128)
}

func (Balance) JSONShape() codec.Shape {
	return codec.Leaf(codec.KindU128)
}

func (b Balance) MarshalBorsh(e *codec.Encoder) error {
	e.WriteU128(b.v[0], b.v[1])
	return nil
}

func (b *Balance) UnmarshalBorsh(d *codec.Decoder) error {
	lo, hi, err := d.ReadU128()
	if err != nil {
		return err
	}
	b.v = uint256.Int{lo, hi, 0, 0}
	return nil
}

// MarshalJSON returns the decimal form as a JSON string.
func (b Balance) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON accepts both a decimal string and a JSON number.
func (b *Balance) UnmarshalJSON(raw []byte) error {
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
	dec, err := codec.NormalizeInteger(v, 128)
	if err != nil {
		return err
	}
	res, err := fromDecimal(dec)
	if err != nil {
		return err
	}
	*b = res
	return nil
}
