package fileoperations

import "errors"

var (
	ErrEmptyWalletPath = errors.New("wallet path is empty")
	ErrWalletExists    = errors.New("wallet file already exists")
)

// Config holds configuration of the file operator Helper.
type Config struct {
	WalletPath   string `yaml:"wallet_path"`   // wallet path to the wallet file
	WalletPasswd string `yaml:"wallet_passwd"` // passphrase sealing the wallet file
}

// Helper holds all file operation methods.
type Helper struct {
	s   Sealer
	cfg Config
}

// New creates new Helper.
func New(cfg Config, s Sealer) Helper {
	return Helper{
		cfg: cfg,
		s:   s,
	}
}
