package compare

import (
	"bytes"
	"encoding/json"

	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/shopspring/decimal"
)

// Price decodes a price given either as a JSON number (in currency units) or
// as a display string such as "R$ 1.299,90" or "$1,299.90".
type Price struct {
	Cents int64
	Set   bool
}

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = Price{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		cents, err := parser.CentsFromString(s)
		if err != nil {
			// unparseable display prices are treated as missing
			*p = Price{}
			return nil
		}
		*p = Price{Cents: cents, Set: true}
		return nil
	}

	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return err
	}
	c := d.Shift(2).Round(0)
	if c.Abs().GreaterThan(decimal.NewFromInt(parser.MaxCents)) {
		// out of range like an unparseable display price
		*p = Price{}
		return nil
	}
	*p = Price{Cents: c.IntPart(), Set: true}
	return nil
}

func (p Price) Valid() bool {
	return p.Set && p.Cents > 0
}
