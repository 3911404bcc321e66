package crc8

import "testing"

func TestChecksumATM(t *testing.T) {
	golden := []struct {
		data string
		want uint8
	}{
		{data: "", want: 0x00},
		{data: "123456789", want: 0xF4},
		// Frame header of a fixed block size frame; 4096 samples, 44.1 kHz,
		// stereo, 16 bits-per-sample, frame number 0.
		{data: "\xFF\xF8\xC9\x18\x00", want: 0xC2},
	}
	for i, g := range golden {
		got := ChecksumATM([]byte(g.data))
		if got != g.want {
			t.Errorf("i=%d: checksum mismatch; expected 0x%02X, got 0x%02X", i, g.want, got)
		}
	}
}

func TestHash(t *testing.T) {
	h := NewATM()
	h.Write([]byte("1234"))
	h.Write([]byte("56789"))
	if got := h.Sum8(); got != 0xF4 {
		t.Fatalf("checksum mismatch; expected 0xF4, got 0x%02X", got)
	}
	if got := h.Sum([]byte{0x01}); len(got) != 2 || got[0] != 0x01 || got[1] != 0xF4 {
		t.Fatalf("sum mismatch; expected [01 F4], got % X", got)
	}
	h.Reset()
	if got := h.Sum8(); got != 0 {
		t.Fatalf("checksum mismatch after reset; expected 0, got 0x%02X", got)
	}
	if h.Size() != Size {
		t.Fatalf("size mismatch; expected %d, got %d", Size, h.Size())
	}
}
