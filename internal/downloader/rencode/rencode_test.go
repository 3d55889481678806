package rencode

import (
	"reflect"
	"strings"
	"testing"
)

func roundTrip(t *testing.T, in, want any) {
	t.Helper()
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode(%v): %v", in, err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode(%v): %v", in, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip %v: got %#v, want %#v", in, got, want)
	}
}

func TestRoundTripScalars(t *testing.T) {
	roundTrip(t, nil, nil)
	roundTrip(t, true, true)
	roundTrip(t, false, false)
	roundTrip(t, 3.5, 3.5)
	roundTrip(t, "", "")
	roundTrip(t, "hello", "hello")
	roundTrip(t, strings.Repeat("x", 500), strings.Repeat("x", 500))
}

func TestRoundTripIntegers(t *testing.T) {
	// boundary values for every width class
	for _, n := range []int64{
		0, 1, 43, 44, -1, -32, -33,
		127, -128, 128, -129,
		32767, -32768, 32768, -32769,
		2147483647, -2147483648, 2147483648, -2147483649,
		9223372036854775807, -9223372036854775808,
	} {
		roundTrip(t, n, n)
	}
}

func TestIntegerWireWidths(t *testing.T) {
	tests := []struct {
		n    int64
		size int
	}{
		{0, 1},     // positive fixed
		{43, 1},    // last positive fixed
		{-32, 1},   // last negative fixed
		{44, 2},    // int8
		{200, 3},   // int16
		{40000, 5}, // int32
		{1 << 40, 9},
	}
	for _, tt := range tests {
		data, err := Encode(tt.n)
		if err != nil {
			t.Fatalf("Encode(%d): %v", tt.n, err)
		}
		if len(data) != tt.size {
			t.Errorf("Encode(%d) = %d bytes, want %d", tt.n, len(data), tt.size)
		}
	}
}

func TestRoundTripNested(t *testing.T) {
	in := []any{
		[]any{
			int64(7),
			"daemon.login",
			[]any{"user", "pass"},
			map[string]any{"client_version": "2.1.1"},
		},
	}
	roundTrip(t, in, in)
}

func TestRoundTripLargeCollections(t *testing.T) {
	// past the fixed-size encodings so the terminated forms are exercised
	list := make([]any, 100)
	for i := range list {
		list[i] = int64(i)
	}
	roundTrip(t, list, list)

	dict := make(map[string]any, 30)
	for i := 0; i < 30; i++ {
		dict[strings.Repeat("k", i+1)] = int64(i)
	}
	roundTrip(t, dict, dict)
}

func TestDecodeTorrentStatusShape(t *testing.T) {
	// the shape the daemon returns from core.get_torrents_status
	in := map[string]any{
		"abc123": map[string]any{
			"name":       "Some.Release.1080p",
			"state":      "Downloading",
			"progress":   42.5,
			"eta":        int64(120),
			"time_added": 1700000000.0,
		},
	}
	roundTrip(t, in, in)
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	data, err := Encode(int64(5))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(append(data, 0x01)); err == nil {
		t.Error("expected error for trailing bytes")
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	data, err := Encode("a longer string that will not fit in a fixed code once truncated")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(data[:len(data)-3]); err == nil {
		t.Error("expected error for truncated input")
	}
}

func TestEncodeRejectsUnsupportedType(t *testing.T) {
	if _, err := Encode(struct{}{}); err == nil {
		t.Error("expected error for unsupported type")
	}
}
