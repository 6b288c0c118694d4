// Package asset implements the fixed-point "<amount> <SYMBOL>" strings used
// for every monetary quantity on chain.
package asset

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bimakw/vesting-indexer/internal/domain/errs"
)

// assetRegexp accepts canonical asset strings only: no leading zeros, no
// exponent, a single space before a 1-7 char symbol.
var assetRegexp = regexp.MustCompile(`^(-?(?:0|[1-9][0-9]*)(?:\.([0-9]+))?) ([A-Z][A-Z0-9]{0,6})$`)

// Asset is a parsed asset string. Decimals is the precision carried by the
// string and is significant: "1.000 GOLOS" and "1.000000 GOLOS" differ.
type Asset struct {
	Raw      string
	Value    decimal.Decimal
	Decimals int32
	Symbol   string
}

// Parse splits "<amount>.<frac> SYM" into its parts
func Parse(s string) (Asset, error) {
	if s == "" {
		return Asset{}, errs.New(errs.KindFormat, "asset.parse", "empty asset string")
	}

	m := assetRegexp.FindStringSubmatch(s)
	if m == nil {
		return Asset{}, errs.Newf(errs.KindFormat, "asset.parse", "invalid asset %q", s)
	}

	value, err := decimal.NewFromString(m[1])
	if err != nil {
		return Asset{}, errs.Wrap(errs.KindFormat, "asset.parse", err)
	}
	if value.IsZero() && strings.HasPrefix(m[1], "-") {
		return Asset{}, errs.Newf(errs.KindFormat, "asset.parse", "negative zero in %q", s)
	}

	decimals := int32(len(m[2]))
	if !fitsUnits(value, decimals) {
		return Asset{}, errs.Newf(errs.KindFormat, "asset.parse", "amount of %q overflows int64 units", s)
	}

	return Asset{
		Raw:      s,
		Value:    value,
		Decimals: decimals,
		Symbol:   m[3],
	}, nil
}

// MustParse is Parse for constants and fixtures; it panics on bad input.
func MustParse(s string) Asset {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Format renders an integer amount scaled by -decimals, e.g. (1500, 3, "GOLOS") -> "1.500 GOLOS".
// Format(Parse(s).Units(), ...) reproduces s for every canonical s.
func Format(amount int64, decimals int32, symbol string) string {
	return decimal.New(amount, -decimals).StringFixed(decimals) + " " + symbol
}

// New builds an asset from integer units
func New(units int64, decimals int32, symbol string) Asset {
	return fromValue(decimal.New(units, -decimals), decimals, symbol)
}

// Zero returns a zero amount of the given precision and symbol
func Zero(decimals int32, symbol string) Asset {
	return New(0, decimals, symbol)
}

// fitsUnits reports whether value has an int64 amount of smallest units
func fitsUnits(value decimal.Decimal, decimals int32) bool {
	return value.Shift(decimals).BigInt().IsInt64()
}

// checked is fromValue for computed results, which may leave the int64 range
func checked(op string, value decimal.Decimal, decimals int32, symbol string) (Asset, error) {
	if !fitsUnits(value, decimals) {
		return Asset{}, errs.Newf(errs.KindFormat, op, "%s %s overflows int64 units", value.StringFixed(decimals), symbol)
	}
	return fromValue(value, decimals, symbol), nil
}

func fromValue(value decimal.Decimal, decimals int32, symbol string) Asset {
	a := Asset{Value: value, Decimals: decimals, Symbol: symbol}
	a.Raw = a.String()
	return a
}

// String renders the canonical asset string
func (a Asset) String() string {
	return a.Amount() + " " + a.Symbol
}

// Amount renders the numeric part only, e.g. "25.000000"
func (a Asset) Amount() string {
	return a.Value.StringFixed(a.Decimals)
}

// Units returns the integer amount in the smallest denomination. Parse and
// the arithmetic below keep it within int64.
func (a Asset) Units() int64 {
	return a.Value.Shift(a.Decimals).IntPart()
}

// IsZero reports whether the amount is zero
func (a Asset) IsZero() bool {
	return a.Value.IsZero()
}

// Sign returns -1, 0 or 1
func (a Asset) Sign() int {
	return a.Value.Sign()
}

// Add sums two assets of the same symbol and precision
func (a Asset) Add(b Asset) (Asset, error) {
	if err := a.compatible(b, "asset.add"); err != nil {
		return Asset{}, err
	}
	return checked("asset.add", a.Value.Add(b.Value), a.Decimals, a.Symbol)
}

// Sub subtracts b from a; both must share symbol and precision
func (a Asset) Sub(b Asset) (Asset, error) {
	if err := a.compatible(b, "asset.sub"); err != nil {
		return Asset{}, err
	}
	return checked("asset.sub", a.Value.Sub(b.Value), a.Decimals, a.Symbol)
}

// DivFloor divides by n and floors to the asset's own precision
func (a Asset) DivFloor(n int64) (Asset, error) {
	if n <= 0 {
		return Asset{}, errs.Newf(errs.KindFormat, "asset.div", "divisor must be positive, got %d", n)
	}
	units := floorDiv(a.Value.Shift(a.Decimals), decimal.NewFromInt(n))
	return fromValue(units.Shift(-a.Decimals), a.Decimals, a.Symbol), nil
}

// Rescale computes floor(a * num / den) at the target precision and symbol.
func Rescale(a Asset, num, den decimal.Decimal, decimals int32, symbol string) (Asset, error) {
	if den.Sign() <= 0 {
		return Asset{}, errs.New(errs.KindFormat, "asset.rescale", "denominator must be positive")
	}
	units := floorDiv(a.Value.Mul(num).Shift(decimals), den)
	return checked("asset.rescale", units.Shift(-decimals), decimals, symbol)
}

// floorDiv is integer division rounding toward negative infinity; y must be positive.
func floorDiv(x, y decimal.Decimal) decimal.Decimal {
	q, r := x.QuoRem(y, 0)
	if r.Sign() < 0 {
		q = q.Sub(decimal.NewFromInt(1))
	}
	return q
}

func (a Asset) compatible(b Asset, op string) error {
	if a.Symbol != b.Symbol {
		return errs.Newf(errs.KindFormat, op, "symbol mismatch: %s vs %s", a.Symbol, b.Symbol)
	}
	if a.Decimals != b.Decimals {
		return errs.Newf(errs.KindFormat, op, "precision mismatch for %s: %d vs %d", a.Symbol, a.Decimals, b.Decimals)
	}
	return nil
}
