package rsyncwire

import (
	"bytes"
	"testing"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 16_383, 16_384, 1 << 20, 1<<31 - 1, 1<<32 - 1}
	for _, v := range values {
		var buf bytes.Buffer
		if err := WriteVarint(&buf, v); err != nil {
			t.Fatalf("WriteVarint(%d): %v", v, err)
		}
		got, err := ReadVarint(&buf)
		if err != nil {
			t.Fatalf("ReadVarint(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
		if buf.Len() != 0 {
			t.Errorf("round trip %d: %d trailing bytes", v, buf.Len())
		}
	}
}

func TestVarlongRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 127, 128, 1 << 40, 1<<62 - 1, 1<<63 - 1}
	for _, v := range values {
		var buf bytes.Buffer
		if err := WriteVarlong(&buf, v, 3); err != nil {
			t.Fatalf("WriteVarlong(%d): %v", v, err)
		}
		got, err := ReadVarlong(&buf, 3)
		if err != nil {
			t.Fatalf("ReadVarlong(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}
}

func TestVstringRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("hello"),
		bytes.Repeat([]byte("x"), 5000),
	}
	for _, c := range cases {
		var buf bytes.Buffer
		if err := WriteVstring(&buf, c); err != nil {
			t.Fatalf("WriteVstring: %v", err)
		}
		got, err := ReadVstring(&buf)
		if err != nil {
			t.Fatalf("ReadVstring: %v", err)
		}
		if !bytes.Equal(got, c) {
			t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(c))
		}
	}
}

func TestSelectVersion(t *testing.T) {
	v, err := SelectVersion(28, 32, 28, 30)
	if err != nil || v != 30 {
		t.Fatalf("SelectVersion: got (%d, %v), want (30, nil)", v, err)
	}
	if _, err := SelectVersion(31, 32, 28, 29); err == nil {
		t.Fatal("expected unsupported version error")
	}
}

func TestCheckFlagUpgrade(t *testing.T) {
	negotiated := uint32(0b0011)
	if err := CheckFlagUpgrade(negotiated, 0b0001); err != nil {
		t.Errorf("unexpected error for subset: %v", err)
	}
	if err := CheckFlagUpgrade(negotiated, 0b0100); err == nil {
		t.Error("expected flag-upgrade error")
	}
}
