package serialmcp

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodePayloadUTF8Escapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []byte
	}{
		{"plain text", "AT+GMR", []byte("AT+GMR")},
		{"crlf escape", `AT+GMR\r\n`, []byte("AT+GMR\r\n")},
		{"lf escape", `line\n`, []byte("line\n")},
		{"cr escape", `line\r`, []byte("line\r")},
		{"mixed", `a\r\nb\nc\r`, []byte("a\r\nb\nc\r")},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := EncodePayload(test.payload, "utf8")
			if err != nil {
				t.Fatalf("EncodePayload failed: %v", err)
			}
			if !bytes.Equal(got, test.want) {
				t.Errorf("Expected %q, got %q", test.want, got)
			}
		})
	}
}

func TestEncodePayloadHex(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []byte
	}{
		{"plain", "0abc", []byte{0x0a, 0xbc}},
		{"spaced groups", "0a bc", []byte{0x0a, 0xbc}},
		{"odd length left-padded", "abc", []byte{0x0a, 0xbc}},
		{"junk stripped", "0x0A-BC!", []byte{0x0a, 0xbc}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := EncodePayload(test.payload, "hex")
			if err != nil {
				t.Fatalf("EncodePayload failed: %v", err)
			}
			if !bytes.Equal(got, test.want) {
				t.Errorf("Expected % x, got % x", test.want, got)
			}
		})
	}
}

func TestEncodePayloadRejectsUnknownEncoding(t *testing.T) {
	if _, err := EncodePayload("data", "base64"); !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("Expected ErrInvalidEncoding, got %v", err)
	}
}

func TestEncodePayloadRejectsEmptyHex(t *testing.T) {
	if _, err := EncodePayload("zz--", "hex"); !errors.Is(err, ErrInvalidHex) {
		t.Errorf("Expected ErrInvalidHex, got %v", err)
	}
}

func TestNormalizeHex(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a b c", "0a bc"},
		{"0abc", "0a bc"},
		{"0A BC", "0a bc"},
		{"f", "0f"},
		{"", ""},
	}

	for _, test := range tests {
		if got := NormalizeHex(test.input); got != test.want {
			t.Errorf("NormalizeHex(%q): expected %q, got %q", test.input, test.want, got)
		}
	}
}

func TestHexRoundTrip(t *testing.T) {
	normalized := NormalizeHex("a b c")
	if normalized != "0a bc" {
		t.Fatalf("Expected %q, got %q", "0a bc", normalized)
	}
	decoded, err := DecodeHexPayload(normalized)
	if err != nil {
		t.Fatalf("DecodeHexPayload failed: %v", err)
	}
	if !bytes.Equal(decoded, []byte{0x0a, 0xbc}) {
		t.Errorf("Expected [0a bc], got % x", decoded)
	}
}

func TestDecodeBytes(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    string
		wantHex bool
	}{
		{"empty", nil, "", false},
		{"ascii", []byte("OK\r\n"), "OK\r\n", false},
		{"utf8", []byte("temp 23°C"), "temp 23°C", false},
		{"binary", []byte{0xff, 0xfe}, "fffe", true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, isHex := DecodeBytes(test.input)
			if got != test.want || isHex != test.wantHex {
				t.Errorf("Expected (%q, %v), got (%q, %v)", test.want, test.wantHex, got, isHex)
			}
		})
	}
}

func TestGroupHex(t *testing.T) {
	if got := GroupHex([]byte{0x0a, 0xbc, 0x01}); got != "0a bc 01" {
		t.Errorf("Expected %q, got %q", "0a bc 01", got)
	}
	if got := GroupHex(nil); got != "" {
		t.Errorf("Expected empty string for nil input, got %q", got)
	}
}
