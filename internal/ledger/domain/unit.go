package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit is the denomination an input amount is expressed in.
type Unit uint8

const (
	UnitInvalid  Unit = iota
	UnitWhole         // 1 BTC = 1e8 sats
	UnitMilli         // legacy "mbtc": 1 unit = 1e6 smallest units
	UnitKilo          // 1 ksat = 1e3 sats
	UnitSmallest      // sats, or 1e-8 share
	UnitNative        // whole shares/ounces of a non-base asset
)

var unitNames = map[string]Unit{
	"btc":      UnitWhole,
	"whole":    UnitWhole,
	"mbtc":     UnitMilli,
	"milli":    UnitMilli,
	"ksats":    UnitKilo,
	"kilo":     UnitKilo,
	"sats":     UnitSmallest,
	"smallest": UnitSmallest,
	"native":   UnitNative,
	"shares":   UnitNative,
}

// ParseUnit maps a wire name to a Unit. Unknown names are rejected rather
// than defaulting to whole units.
func ParseUnit(s string) (Unit, error) {
	if u, ok := unitNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return u, nil
	}
	return UnitInvalid, NewError(KindInvalidAmount, fmt.Sprintf("unknown amount unit %q", s))
}

func (u Unit) String() string {
	switch u {
	case UnitWhole:
		return "btc"
	case UnitMilli:
		return "mbtc"
	case UnitKilo:
		return "ksats"
	case UnitSmallest:
		return "sats"
	case UnitNative:
		return "native"
	default:
		return "invalid"
	}
}

// Factor is the number of smallest units in one u.
func (u Unit) Factor() int64 {
	switch u {
	case UnitWhole, UnitNative:
		return Scale
	case UnitMilli:
		return 1_000_000
	case UnitKilo:
		return 1_000
	case UnitSmallest:
		return 1
	default:
		return 0
	}
}

func (u Unit) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

func (u *Unit) UnmarshalText(b []byte) error {
	parsed, err := ParseUnit(string(b))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

var maxSmallest = decimal.NewFromInt(1<<63 - 1)

// Normalize converts raw (a decimal string in unit u) to smallest units,
// rounding half away from zero. The result is always > 0.
func (u Unit) Normalize(raw string) (int64, error) {
	if u.Factor() == 0 {
		return 0, NewError(KindInvalidAmount, "amount unit is required")
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, NewError(KindInvalidAmount, fmt.Sprintf("amount %q is not a number", raw))
	}
	if !d.IsPositive() {
		return 0, NewError(KindInvalidAmount, fmt.Sprintf("amount %s must be positive", d))
	}
	scaled := d.Mul(decimal.NewFromInt(u.Factor())).Round(0)
	if !scaled.IsPositive() {
		return 0, NewError(KindInvalidAmount, fmt.Sprintf("amount %s %s is less than one smallest unit", d, u))
	}
	if scaled.GreaterThan(maxSmallest) {
		return 0, NewError(KindInvalidAmount, fmt.Sprintf("amount %s %s is too large", d, u))
	}
	return scaled.IntPart(), nil
}

// FormatAmount renders smallest units as a whole-unit decimal string.
func FormatAmount(smallest int64) string {
	return decimal.New(smallest, -8).String()
}
