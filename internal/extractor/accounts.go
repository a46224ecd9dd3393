package extractor

import (
	"bytes"
	"errors"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// findAccountIndex locates a pubkey within the transaction's static
// account-key list by 32-byte equality. Index positions are dynamic per
// transaction; a fixed index is never trusted.
func findAccountIndex(accountKeys []string, pubkey string) (int, bool) {
	want, err := decodePubkey(pubkey)
	if err != nil {
		return 0, false
	}

	for i, key := range accountKeys {
		got, err := decodePubkey(key)
		if err != nil {
			continue
		}
		if bytes.Equal(want, got) {
			return i, true
		}
	}
	return 0, false
}

// decodePubkey decodes a base58 account key to its 32 raw bytes.
func decodePubkey(key string) ([]byte, error) {
	raw, err := base58.Decode(key)
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, errInvalidKeyLength
	}
	return raw, nil
}

var errInvalidKeyLength = errors.New("account key is not 32 bytes")

// isOnCurve reports whether the pubkey decodes to a valid ed25519 point.
// User wallets are on-curve; program-derived addresses are not, which makes
// this a cheap sanity check that a venue's "user" account really is a wallet.
func isOnCurve(pubkey string) bool {
	raw, err := decodePubkey(pubkey)
	if err != nil {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}
