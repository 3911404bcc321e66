package bits_test

import (
	"bytes"
	"testing"

	"github.com/icza/bitio"
	"github.com/litesound/flac/internal/bits"
)

func TestUnary(t *testing.T) {
	buf := new(bytes.Buffer)
	bw := bitio.NewWriter(buf)
	const n = 1000
	for x := uint64(0); x < n; x++ {
		if err := bits.WriteUnary(bw, x); err != nil {
			t.Fatalf("x=%d: error writing unary: %v", x, err)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("error flushing bit writer: %v", err)
	}

	br := bitio.NewReader(bytes.NewReader(buf.Bytes()))
	for want := uint64(0); want < n; want++ {
		got, err := bits.ReadUnary(br)
		if err != nil {
			t.Fatalf("x=%d: error reading unary: %v", want, err)
		}
		if got != want {
			t.Fatalf("unary mismatch; expected %d, got %d", want, got)
		}
	}
}

func TestReadUnaryGolden(t *testing.T) {
	golden := []struct {
		in   []byte
		want []uint64
	}{
		{in: []byte{0b10100100}, want: []uint64{0, 1, 2}},
		{in: []byte{0b00000001, 0b10000000}, want: []uint64{7, 0}},
		{in: []byte{0x00, 0b01000000}, want: []uint64{9}},
	}
	for i, g := range golden {
		br := bitio.NewReader(bytes.NewReader(g.in))
		for j, want := range g.want {
			got, err := bits.ReadUnary(br)
			if err != nil {
				t.Errorf("i=%d, j=%d: unexpected error: %v", i, j, err)
				break
			}
			if got != want {
				t.Errorf("i=%d, j=%d: expected %d, got %d", i, j, want, got)
			}
		}
	}
}
