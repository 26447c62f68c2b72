// Package testutil provides small, deterministic helpers shared by this
// module's package tests.
package testutil

import "encoding/hex"

// MustDecodeHex must decode a hexadecimal string or else panics. Handy for
// writing literal corrupt-input fixtures in table-driven tests.
func MustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
