package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// HexBytes is a []byte which encodes as 0x-prefixed hexadecimal in JSON, as
// opposed to the base64 default.
type HexBytes []byte

// HexStringToHexBytes decodes a hex string, with or without the 0x prefix.
func HexStringToHexBytes(s string) (HexBytes, error) {
	s = TrimHex(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string %q: %w", s, err)
	}
	return b, nil
}

// TrimHex trims the 0x prefix from a hex string.
func TrimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// Hex returns the hexadecimal representation without prefix.
func (b HexBytes) Hex() string {
	return hex.EncodeToString(b)
}

// String returns the hexadecimal representation prefixed with "0x".
func (b HexBytes) String() string {
	return "0x" + b.Hex()
}

// LeftPad returns a copy of b padded with leading zeros to n bytes.
func (b HexBytes) LeftPad(n int) HexBytes {
	if len(b) >= n {
		return bytes.Clone(b)
	}
	out := make(HexBytes, n)
	copy(out[n-len(b):], b)
	return out
}

// Equal reports whether b and other hold the same bytes.
func (b HexBytes) Equal(other HexBytes) bool {
	return bytes.Equal(b, other)
}

// MarshalJSON implements json.Marshaler.
func (b HexBytes) MarshalJSON() ([]byte, error) {
	enc := make([]byte, hex.EncodedLen(len(b))+4)
	enc[0] = '"'
	enc[1] = '0'
	enc[2] = 'x'
	hex.Encode(enc[3:], b)
	enc[len(enc)-1] = '"'
	return enc, nil
}

// UnmarshalJSON implements json.Unmarshaler. The 0x prefix is optional.
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid JSON string: %q", data)
	}
	decoded, err := HexStringToHexBytes(strings.TrimSpace(string(data[1 : len(data)-1])))
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}
