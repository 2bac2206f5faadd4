package serialmcp

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// EncodePayload converts caller-supplied text into wire bytes.
//
// Encoding "utf8" (or empty) expands the escape sequences `\r\n`, `\n` and
// `\r` into literal control bytes before encoding. Encoding "hex" strips
// every non-hex character, left-pads an odd-length string with a zero, and
// decodes the result.
func EncodePayload(payload, encoding string) ([]byte, error) {
	switch strings.ToLower(encoding) {
	case "", "utf8", "utf-8":
		return []byte(expandEscapes(payload)), nil
	case "hex":
		return DecodeHexPayload(payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidEncoding, encoding)
	}
}

// expandEscapes turns the two-character escape forms into control bytes.
// CRLF is handled first so `\r\n` becomes two bytes, not three.
func expandEscapes(s string) string {
	s = strings.ReplaceAll(s, `\r\n`, "\r\n")
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\r`, "\r")
	return s
}

// DecodeHexPayload decodes a forgiving hex string: separators and prefixes
// are stripped, and an odd-length string is left-padded with a zero.
func DecodeHexPayload(s string) ([]byte, error) {
	cleaned := stripNonHex(s)
	if cleaned == "" {
		return nil, ErrInvalidHex
	}
	if len(cleaned)%2 != 0 {
		cleaned = "0" + cleaned
	}
	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return data, nil
}

// NormalizeHex canonicalizes a hex string into lowercase two-character
// groups separated by single spaces, left-padding an odd-length input:
// "a b c" becomes "0a bc".
func NormalizeHex(s string) string {
	cleaned := strings.ToLower(stripNonHex(s))
	if cleaned == "" {
		return ""
	}
	if len(cleaned)%2 != 0 {
		cleaned = "0" + cleaned
	}
	var b strings.Builder
	b.Grow(len(cleaned) + len(cleaned)/2)
	for i := 0; i < len(cleaned); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(cleaned[i : i+2])
	}
	return b.String()
}

func stripNonHex(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DecodeBytes applies the response decoding rule used everywhere in the
// driver: UTF-8-decodable bytes come back as text, anything else as lowercase
// hex with isHex true. Empty input decodes to an empty string.
func DecodeBytes(data []byte) (text string, isHex bool) {
	if len(data) == 0 {
		return "", false
	}
	if utf8.Valid(data) {
		return string(data), false
	}
	return hex.EncodeToString(data), true
}

// GroupHex renders bytes as lowercase hex in space-separated two-character
// groups, the display form used by the hex-optimized boundary.
func GroupHex(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return NormalizeHex(hex.EncodeToString(data))
}
