package serializer

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
)

func TestBase58CheckSuccess(t *testing.T) {
	payload := []byte("this is a public key payload")

	encoded := Base58CheckEncode(0x00, payload)
	assert.NotEmpty(t, encoded)

	version, decoded, err := Base58CheckDecode(encoded)
	assert.Nil(t, err)
	assert.Equal(t, byte(0x00), version)
	assert.Equal(t, payload, decoded)
}

func TestBase58CheckCorruptedChecksum(t *testing.T) {
	encoded := Base58CheckEncode(0x00, []byte("this is a public key payload"))

	raw, err := base58.Decode(encoded)
	assert.Nil(t, err)
	raw[len(raw)-1] ^= 0xff

	_, _, err = Base58CheckDecode(base58.Encode(raw))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestBase58CheckTooShort(t *testing.T) {
	_, _, err := Base58CheckDecode(base58.Encode([]byte{1, 2}))
	assert.ErrorIs(t, err, ErrPayloadTooShort)
}

func TestBase58CheckInvalidAlphabet(t *testing.T) {
	_, _, err := Base58CheckDecode("0OIl")
	assert.NotNil(t, err)
}
