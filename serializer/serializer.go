package serializer

import (
	"bytes"
	"crypto/sha256"
	"errors"

	"github.com/mr-tron/base58"
)

// ChecksumLength is the number of checksum bytes appended to base58check payloads.
const ChecksumLength = 4

var (
	ErrPayloadTooShort  = errors.New("base58check payload is too short")
	ErrChecksumMismatch = errors.New("base58check checksum is not equal")
)

// Base58CheckEncode prefixes the payload with version, appends the double sha256 checksum
// and encodes the result to base58 string.
func Base58CheckEncode(version byte, payload []byte) string {
	full := make([]byte, 0, 1+len(payload)+ChecksumLength)
	full = append(full, version)
	full = append(full, payload...)
	full = append(full, Checksum(full)...)

	return base58.Encode(full)
}

// Base58CheckDecode decodes base58check string returning the version and the payload.
// The checksum is verified.
func Base58CheckDecode(s string) (byte, []byte, error) {
	full, err := base58.Decode(s)
	if err != nil {
		return 0, nil, err
	}
	if len(full) < 1+ChecksumLength {
		return 0, nil, ErrPayloadTooShort
	}

	body := full[:len(full)-ChecksumLength]
	if !bytes.Equal(full[len(full)-ChecksumLength:], Checksum(body)) {
		return 0, nil, ErrChecksumMismatch
	}

	return body[0], body[1:], nil
}

// Checksum returns the first ChecksumLength bytes of double sha256 of the payload.
func Checksum(payload []byte) []byte {
	firstHash := sha256.Sum256(payload)
	secondHash := sha256.Sum256(firstHash[:])

	return secondHash[:ChecksumLength]
}
