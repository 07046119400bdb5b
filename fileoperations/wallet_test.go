package fileoperations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartossh/Ledgerium/aeswrapper"
	"github.com/bartossh/Ledgerium/wallet"
)

func TestSaveReadWallet(t *testing.T) {
	cfg := Config{WalletPath: filepath.Join(t.TempDir(), "wallet"), WalletPasswd: "passphrase"}
	h := New(cfg, aeswrapper.New())

	w, err := wallet.New()
	require.Nil(t, err)
	require.Nil(t, h.SaveWallet(&w))

	raw, err := os.ReadFile(cfg.WalletPath)
	require.Nil(t, err)
	plain, err := w.EncodeGOB()
	require.Nil(t, err)
	assert.NotContains(t, string(raw), string(plain))

	read, err := h.ReadWallet()
	require.Nil(t, err)
	assert.Equal(t, w.Address(), read.Address())

	msg := []byte("message")
	digest, signature := read.Sign(msg)
	assert.True(t, w.Verify(msg, signature, digest))
}

func TestReadWalletWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet")
	w, err := wallet.New()
	require.Nil(t, err)
	require.Nil(t, New(Config{WalletPath: path, WalletPasswd: "passphrase"}, aeswrapper.New()).SaveWallet(&w))

	_, err = New(Config{WalletPath: path, WalletPasswd: "wrong"}, aeswrapper.New()).ReadWallet()
	assert.ErrorIs(t, err, aeswrapper.ErrOpenDataFailure)
}

func TestWalletPathMissing(t *testing.T) {
	h := New(Config{WalletPasswd: "passphrase"}, aeswrapper.New())

	w, err := wallet.New()
	require.Nil(t, err)
	assert.ErrorIs(t, h.SaveWallet(&w), ErrEmptyWalletPath)

	_, err = h.ReadWallet()
	assert.ErrorIs(t, err, ErrEmptyWalletPath)

	_, err = New(Config{WalletPath: filepath.Join(t.TempDir(), "none"), WalletPasswd: "p"}, aeswrapper.New()).ReadWallet()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveWalletKeepsExistingFile(t *testing.T) {
	cfg := Config{WalletPath: filepath.Join(t.TempDir(), "wallet"), WalletPasswd: "passphrase"}
	h := New(cfg, aeswrapper.New())

	first, err := wallet.New()
	require.Nil(t, err)
	require.Nil(t, h.SaveWallet(&first))

	second, err := wallet.New()
	require.Nil(t, err)
	err = h.SaveWallet(&second)
	assert.ErrorIs(t, err, ErrWalletExists)
	assert.ErrorIs(t, err, os.ErrExist)

	read, err := h.ReadWallet()
	require.Nil(t, err)
	assert.Equal(t, first.Address(), read.Address())
}
