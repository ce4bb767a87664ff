package tracking

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/shopspring/decimal"
)

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(parser.MaxCents)
)

// Amount accepts a JSON number (129.9) or a string ("129.90", "R$ 1.299,90")
// and keeps the value in integer cents.
type Amount struct {
	Cents int64
	Set   bool
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*a = Amount{}
			return nil
		}
		if d, err := decimal.NewFromString(s); err == nil {
			cents, err := toCents(d)
			if err != nil {
				return err
			}
			*a = Amount{Cents: cents, Set: true}
			return nil
		}
		cents, err := parser.CentsFromString(s)
		if errors.Is(err, parser.ErrAmountTooLarge) {
			return err
		}
		if err != nil {
			return errors.New("invalid amount")
		}
		*a = Amount{Cents: cents, Set: true}
		return nil
	}

	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return errors.New("invalid amount")
	}
	cents, err := toCents(d)
	if err != nil {
		return err
	}
	*a = Amount{Cents: cents, Set: true}
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Set {
		return []byte("null"), nil
	}
	return []byte(decimal.New(a.Cents, -2).StringFixed(2)), nil
}

// toCents rejects values past parser.MaxCents before IntPart can wrap them.
func toCents(d decimal.Decimal) (int64, error) {
	c := d.Mul(hundred).Round(0)
	if c.Abs().GreaterThan(maxCents) {
		return 0, parser.ErrAmountTooLarge
	}
	return c.IntPart(), nil
}

// Commission returns amountCents * rateBps / 10000 rounded half-up to a cent.
func Commission(amountCents int64, rateBps int32) int64 {
	return decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromInt32(rateBps)).
		Div(decimal.NewFromInt(10000)).
		Round(0).
		IntPart()
}
