package aeswrapper

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var data = []byte("2a7afdd039c69497d6591f1f2aa3d72a9119f53d0166b6227feeb84f95b5020d1706f36d5f20197328e883f9e7048a4b5395953aec2633047f32e15cd834d627a5d985ef7299a5a91bd216c2eee8f4abc9147fae55e2abfc615041084a849c880a7e99e7c6c8f313ed125d0ba1bbdb0e7c18435d80016bbc67dffcfcd3c95167fb6da64df411553e4faeb4a880bd2d5ab14da54a29108c07d98aab2ed61f621087677dc310b98459192239373b2e38a186ec9a48558a35485e0e7671ea3a2c41ea750ec3026c14be8801c41d9c70cc3593ffb3e98f2026903c1b86401a4ae02844cf3ccf336ad5df7340173bd245d1662aa88201253b41dfbda4c5238f627dfd")

func TestEncryptDecryptSuccess(t *testing.T) {
	passphrases := []string{
		"a",
		"correct horse battery staple",
		"f5f9fb83df631c6746dcc7fe7b21de1e2e33b2584428b37b911cf818a7cd9d84f5f9fb83df631c6746dcc7fe7b21de1e",
	}

	for i, p := range passphrases {
		t.Run(fmt.Sprintf("TestEncryptDecryptSuccess-%d-%d", i, len(p)), func(t *testing.T) {
			h := New()
			enc, err := h.Encrypt([]byte(p), data)
			require.Nil(t, err)
			assert.Len(t, enc, saltSize+nonceSize+len(data)+16)
			dec, err := h.Decrypt([]byte(p), enc)
			assert.Nil(t, err)
			assert.Equal(t, data, dec)
		})
	}
}

func TestEncryptIsSalted(t *testing.T) {
	h := New()
	first, err := h.Encrypt([]byte("passphrase"), data)
	require.Nil(t, err)
	second, err := h.Encrypt([]byte("passphrase"), data)
	require.Nil(t, err)

	assert.NotEqual(t, first[:saltSize], second[:saltSize])
	assert.NotEqual(t, first, second)
}

func TestEncryptEmptyPassphraseFail(t *testing.T) {
	h := New()
	_, err := h.Encrypt(nil, data)
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
	_, err = h.Decrypt([]byte{}, data)
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
}

func TestDecryptWrongPassphraseFail(t *testing.T) {
	h := New()
	enc, err := h.Encrypt([]byte("passphrase"), data)
	require.Nil(t, err)

	_, err = h.Decrypt([]byte("Passphrase"), enc)
	assert.ErrorIs(t, err, ErrOpenDataFailure)
}

func TestDecryptCorruptedDataFail(t *testing.T) {
	h := New()
	enc, err := h.Encrypt([]byte("passphrase"), data)
	require.Nil(t, err)

	enc[len(enc)-1] ^= 0x01
	_, err = h.Decrypt([]byte("passphrase"), enc)
	assert.ErrorIs(t, err, ErrOpenDataFailure)

	_, err = h.Decrypt([]byte("passphrase"), enc[:saltSize+nonceSize-1])
	assert.ErrorIs(t, err, ErrDataTooShort)
}
