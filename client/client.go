package client

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bartossh/Ledgerium/block"
	"github.com/bartossh/Ledgerium/httpclient"
	"github.com/bartossh/Ledgerium/server"
	"github.com/bartossh/Ledgerium/transaction"
	"github.com/bartossh/Ledgerium/wallet"
)

const (
	checksumLength = 4
	version        = byte(0x00)
)

var (
	ErrApiVersionMismatch            = errors.New("api version mismatch")
	ErrApiHeaderMismatch             = errors.New("api header mismatch")
	ErrWalletChecksumMismatch        = errors.New("wallet checksum mismatch")
	ErrWalletVersionMismatch         = errors.New("wallet version mismatch")
	ErrServerReturnsInconsistentData = errors.New("server returns inconsistent data")
	ErrWalletNotReady                = errors.New("wallet not ready, read wallet first")
	ErrSigningFailed                 = errors.New("signing failed")
)

// Config holds configuration of the Rest client.
type Config struct {
	NodeURL        string `yaml:"node_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns request timeout, five seconds when not configured.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return time.Second * 5
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WalletReadSaver allows to read and save the wallet.
type WalletReadSaver interface {
	ReadWallet() (wallet.Wallet, error)
	SaveWallet(w *wallet.Wallet) error
}

// NewWalletCreator is a function that creates a new Wallet.
type NewWalletCreator func() (wallet.Wallet, error)

// Rest is a rest client for the node API.
type Rest struct {
	apiRoot       string
	timeout       time.Duration
	wrs           WalletReadSaver
	w             wallet.Wallet
	walletCreator NewWalletCreator
	ready         bool
}

// NewRest creates a new rest client.
func NewRest(apiRoot string, timeout time.Duration, wrs WalletReadSaver, walletCreator NewWalletCreator) *Rest {
	return &Rest{apiRoot: strings.TrimSuffix(apiRoot, "/"), timeout: timeout, wrs: wrs, walletCreator: walletCreator}
}

// ValidateApiVersion makes a call to the API server and validates client and server API versions and header correctness.
func (r *Rest) ValidateApiVersion() error {
	var alive server.AliveResponse
	if err := httpclient.MakeGet(r.timeout, r.url(server.AliveURL), &alive); err != nil {
		return err
	}

	if alive.APIVersion != server.ApiVersion {
		return errors.Join(ErrApiVersionMismatch, fmt.Errorf("expected %s but got %s", server.ApiVersion, alive.APIVersion))
	}

	if alive.APIHeader != server.Header {
		return errors.Join(ErrApiHeaderMismatch, fmt.Errorf("expected %s but got %s", server.Header, alive.APIHeader))
	}

	return nil
}

// NewWallet creates a new wallet and saves it.
func (r *Rest) NewWallet() error {
	w, err := r.walletCreator()
	if err != nil {
		return err
	}
	if w.ChecksumLength() != checksumLength {
		return errors.Join(
			ErrWalletChecksumMismatch,
			fmt.Errorf("checksum length mismatch, expected %d but got %d", checksumLength, w.ChecksumLength()))
	}
	if w.Version() != version {
		return errors.Join(
			ErrWalletVersionMismatch,
			fmt.Errorf("version mismatch, expected %d but got %d", version, w.Version()))
	}

	if err := r.wrs.SaveWallet(&w); err != nil {
		return err
	}

	r.w = w
	r.ready = true

	return nil
}

// ReadWallet reads the saved wallet.
func (r *Rest) ReadWallet() error {
	w, err := r.wrs.ReadWallet()
	if err != nil {
		return err
	}
	r.w = w
	r.ready = true
	return nil
}

// Address reads the wallet address.
// Address is a string representation of wallet public key.
func (r *Rest) Address() (string, error) {
	if !r.ready {
		return "", ErrWalletNotReady
	}

	return r.w.Address(), nil
}

// SendTransaction signs the transfer of the amount to the recipient and sends it to the node pending pool.
// Returns the transaction content hash confirmed by the node.
func (r *Rest) SendTransaction(recipient string, amount int64) ([32]byte, error) {
	if !r.ready {
		return [32]byte{}, ErrWalletNotReady
	}

	trx := transaction.New(r.w.Address(), recipient, amount)
	if err := trx.Sign(&r.w); err != nil {
		return [32]byte{}, errors.Join(ErrSigningFailed, err)
	}

	var res server.TransactionAddResponse
	if err := httpclient.MakePost(r.timeout, r.url(server.AddTransactionURL), trx, &res); err != nil {
		return [32]byte{}, err
	}

	if !res.Success || res.ContentHash != trx.ContentHash() {
		return [32]byte{}, errors.Join(ErrServerReturnsInconsistentData, errors.New("failed to send transaction"))
	}

	return res.ContentHash, nil
}

// Balance reads the balance of the address. Empty address reads the balance of the wallet.
func (r *Rest) Balance(address string) (int64, error) {
	address, err := r.addressOrOwn(address)
	if err != nil {
		return 0, err
	}

	var res server.BalanceResponse
	if err := httpclient.MakePost(r.timeout, r.url(server.AddressBalanceURL), server.AddressRequest{Address: address}, &res); err != nil {
		return 0, err
	}

	if res.Address != address {
		return 0, errors.Join(ErrServerReturnsInconsistentData, errors.New("failed to read balance"))
	}

	return res.Balance, nil
}

// Transactions reads the transactions history of the address. Empty address reads the history of the wallet.
func (r *Rest) Transactions(address string) ([]transaction.Transaction, error) {
	address, err := r.addressOrOwn(address)
	if err != nil {
		return nil, err
	}

	var res server.TransactionsResponse
	if err := httpclient.MakePost(r.timeout, r.url(server.AddressTransactionURL), server.AddressRequest{Address: address}, &res); err != nil {
		return nil, err
	}

	return res.Transactions, nil
}

// Pending reads transactions awaiting to be mined.
func (r *Rest) Pending() ([]transaction.Transaction, error) {
	var res server.TransactionsResponse
	if err := httpclient.MakeGet(r.timeout, r.url(server.PendingTransactionURL), &res); err != nil {
		return nil, err
	}
	return res.Transactions, nil
}

// Mine requests the node to mine pending transactions paying the reward to the miner address.
// Empty miner address pays the reward to the wallet.
func (r *Rest) Mine(minerAddress string) (block.Block, error) {
	minerAddress, err := r.addressOrOwn(minerAddress)
	if err != nil {
		return block.Block{}, err
	}

	var res server.BlockResponse
	if err := httpclient.MakePost(r.timeout, r.url(server.MineBlockURL), server.MineRequest{MinerAddress: minerAddress}, &res); err != nil {
		return block.Block{}, err
	}

	if res.Block.Hash != res.Block.HashValue() {
		return block.Block{}, errors.Join(ErrServerReturnsInconsistentData, errors.New("mined block hash is corrupted"))
	}

	return res.Block, nil
}

// ChainValid requests the node to validate the whole chain.
func (r *Rest) ChainValid() (server.ChainValidResponse, error) {
	var res server.ChainValidResponse
	if err := httpclient.MakeGet(r.timeout, r.url(server.ChainValidURL), &res); err != nil {
		return server.ChainValidResponse{}, err
	}
	return res, nil
}

// FlushWalletFromMemory flushes the wallet from the memory.
func (r *Rest) FlushWalletFromMemory() {
	r.w = wallet.Wallet{}
	r.ready = false
}

func (r *Rest) addressOrOwn(address string) (string, error) {
	if address != "" {
		return address, nil
	}
	return r.Address()
}

func (r *Rest) url(path string) string {
	return r.apiRoot + path
}
