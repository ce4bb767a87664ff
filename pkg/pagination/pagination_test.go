package pagination

import "testing"

func TestParams(t *testing.T) {
	tests := []struct {
		in         Params
		wantLimit  int32
		wantOffset int32
	}{
		{Params{}, 20, 0},
		{Params{Page: 3, PageSize: 10}, 10, 20},
		{Params{Page: -1, PageSize: 1000}, 100, 0},
	}

	for _, tt := range tests {
		if got := tt.in.Limit(); got != tt.wantLimit {
			t.Errorf("%+v Limit() = %d, want %d", tt.in, got, tt.wantLimit)
		}
		if got := tt.in.Offset(); got != tt.wantOffset {
			t.Errorf("%+v Offset() = %d, want %d", tt.in, got, tt.wantOffset)
		}
	}
}

func TestMeta(t *testing.T) {
	m := Params{Page: 2, PageSize: 20}.Meta(41)
	if m.TotalPages != 3 || m.Page != 2 || m.Total != 41 {
		t.Errorf("unexpected meta %+v", m)
	}
	if (Params{}).Meta(0).TotalPages != 0 {
		t.Error("expected zero pages for empty result")
	}
}
