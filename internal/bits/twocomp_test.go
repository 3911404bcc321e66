package bits

import "testing"

func TestIntN(t *testing.T) {
	golden := []struct {
		x    uint64
		n    uint
		want int64
	}{
		{x: 0b011, n: 3, want: 3},
		{x: 0b010, n: 3, want: 2},
		{x: 0b001, n: 3, want: 1},
		{x: 0b000, n: 3, want: 0},
		{x: 0b111, n: 3, want: -1},
		{x: 0b110, n: 3, want: -2},
		{x: 0b101, n: 3, want: -3},
		{x: 0b100, n: 3, want: -4},
		{x: 0xFFFF, n: 16, want: -1},
		{x: 0x7FFF, n: 16, want: 32767},
		{x: 0x800000, n: 24, want: -8388608},
		{x: 0xFFFFFFFF, n: 32, want: -1},
		{x: 0x1FFFFFFFF, n: 33, want: -1},
		{x: 0x0FFFFFFFF, n: 33, want: 4294967295},
		{x: 0b1, n: 1, want: -1},
		{x: 0, n: 0, want: 0},
	}
	for _, g := range golden {
		got := IntN(g.x, g.n)
		if g.want != got {
			t.Errorf("result mismatch of IntN(x=0b%b, n=%d); expected %d, got %d", g.x, g.n, g.want, got)
		}
	}
}

func TestUintN(t *testing.T) {
	golden := []struct {
		x    int64
		n    uint
		want uint64
	}{
		{x: 3, n: 3, want: 0b011},
		{x: -1, n: 3, want: 0b111},
		{x: -4, n: 3, want: 0b100},
		{x: -1, n: 16, want: 0xFFFF},
		{x: -8388608, n: 24, want: 0x800000},
	}
	for _, g := range golden {
		got := UintN(g.x, g.n)
		if g.want != got {
			t.Errorf("result mismatch of UintN(x=%d, n=%d); expected 0b%b, got 0b%b", g.x, g.n, g.want, got)
			continue
		}
		if back := IntN(got, g.n); back != g.x {
			t.Errorf("round trip mismatch of UintN(x=%d, n=%d); expected %d, got %d", g.x, g.n, g.x, back)
		}
	}
}

func TestMinWidth(t *testing.T) {
	golden := []struct {
		x    int64
		want uint
	}{
		{x: 0, want: 0},
		{x: 1, want: 2},
		{x: -1, want: 1},
		{x: -2, want: 2},
		{x: 3, want: 3},
		{x: -4, want: 3},
		{x: 4, want: 4},
		{x: 32767, want: 16},
		{x: -32768, want: 16},
	}
	for _, g := range golden {
		got := MinWidth(g.x)
		if g.want != got {
			t.Errorf("result mismatch of MinWidth(x=%d); expected %d, got %d", g.x, g.want, got)
		}
	}
}
