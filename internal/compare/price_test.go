package compare

import (
	"encoding/json"
	"testing"
)

func TestPrice_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		raw   string
		cents int64
		set   bool
	}{
		{`"R$ 1.299,90"`, 129990, true},
		{`"$1,299.90"`, 129990, true},
		{`1299.9`, 129990, true},
		{`49`, 4900, true},
		{`"consulte"`, 0, false},
		{`null`, 0, false},
		{`1e20`, 0, false},
		{`92233720368547758.08`, 0, false},
		{`"184467440737095516,17"`, 0, false},
	}
	for _, tt := range tests {
		var p Price
		if err := json.Unmarshal([]byte(tt.raw), &p); err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.raw, err)
		}
		if p.Cents != tt.cents || p.Set != tt.set {
			t.Errorf("%s: got %+v, want cents=%d set=%v", tt.raw, p, tt.cents, tt.set)
		}
	}
}

func TestPrice_RejectsGarbage(t *testing.T) {
	var p Price
	if err := json.Unmarshal([]byte(`true`), &p); err == nil {
		t.Error("expected error for boolean price")
	}
}
