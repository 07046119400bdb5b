package fileoperations

import (
	"errors"
	"fmt"
	"os"

	"github.com/bartossh/Ledgerium/wallet"
)

// Sealer offers behaviour to seal and open the bytes with the passphrase.
type Sealer interface {
	Encrypt(passphrase, data []byte) ([]byte, error)
	Decrypt(passphrase, data []byte) ([]byte, error)
}

// ReadWallet reads wallet from the sealed file.
func (h Helper) ReadWallet() (wallet.Wallet, error) {
	if h.cfg.WalletPath == "" {
		return wallet.Wallet{}, ErrEmptyWalletPath
	}

	raw, err := os.ReadFile(h.cfg.WalletPath)
	if err != nil {
		return wallet.Wallet{}, err
	}

	opened, err := h.s.Decrypt([]byte(h.cfg.WalletPasswd), raw)
	if err != nil {
		return wallet.Wallet{}, fmt.Errorf("opening wallet file %q: %w", h.cfg.WalletPath, err)
	}

	return wallet.DecodeGOBWallet(opened)
}

// SaveWallet seals wallet and saves it to the new file. Existing wallet file is never overwritten.
func (h Helper) SaveWallet(w *wallet.Wallet) error {
	if h.cfg.WalletPath == "" {
		return ErrEmptyWalletPath
	}

	raw, err := w.EncodeGOB()
	if err != nil {
		return err
	}

	closed, err := h.s.Encrypt([]byte(h.cfg.WalletPasswd), raw)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(h.cfg.WalletPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return errors.Join(ErrWalletExists, err)
		}
		return err
	}

	if _, err := f.Write(closed); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
