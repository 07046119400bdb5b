package bookkeeping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bartossh/Ledgerium/block"
	"github.com/bartossh/Ledgerium/logger"
	"github.com/bartossh/Ledgerium/transaction"
)

const (
	minBlockWriteInterval = time.Second
	maxBlockWriteInterval = time.Hour * 4 // value is picked arbitrary

	minBlockTransactionsSize = 1
	maxBlockTransactionsSize = 60000
)

var (
	ErrMinerAddressEmpty               = errors.New("miner address is empty")
	ErrBlockWriteIntervalNotInRange    = errors.New("block write interval is not in range of [one second : four hours]")
	ErrBlockTransactionsSizeNotInRange = errors.New("block transactions size is not in range of [1 : 60000]")
)

// Chain provides the blockchain operations the Ledger works on.
type Chain interface {
	AddTransaction(trx transaction.Transaction) error
	MinePendingTransactions(ctx context.Context, minerAddress string) (block.Block, error)
	PendingLen() int
	Pending() []transaction.Transaction
	Blocks() []block.Block
	LatestBlock() block.Block
	BalanceOf(address string) int64
	TransactionsFor(address string) []transaction.Transaction
	Validate() error
}

// Config is a configuration of the Ledger.
type Config struct {
	MinerAddress          string `yaml:"miner_address"`
	BlockWriteInterval    uint64 `yaml:"block_write_interval"`
	BlockTransactionsSize int    `yaml:"block_transactions_size"`
	MiningTimeout         uint64 `yaml:"mining_timeout"`
}

// Validate validates the Ledger configuration.
func (c Config) Validate() error {
	if c.MinerAddress == "" {
		return ErrMinerAddressEmpty
	}

	if time.Duration(c.BlockWriteInterval)*time.Second < minBlockWriteInterval ||
		time.Duration(c.BlockWriteInterval)*time.Second > maxBlockWriteInterval {
		return ErrBlockWriteIntervalNotInRange
	}

	if c.BlockTransactionsSize < minBlockTransactionsSize || c.BlockTransactionsSize > maxBlockTransactionsSize {
		return ErrBlockTransactionsSizeNotInRange
	}

	return nil
}

// Ledger performs bookkeeping on the chain.
// It accepts transactions in to the pending pool and seals them in blocks
// every block write interval or as soon as the pool reaches the block transactions size.
type Ledger struct {
	config Config
	chain  Chain
	log    logger.Logger
	wake   chan struct{}
	done   chan struct{}
}

// New creates new Ledger if config is valid or returns error otherwise.
func New(config Config, chain Chain, log logger.Logger) (*Ledger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Ledger{
		config: config,
		chain:  chain,
		log:    log,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}, nil
}

// Run runs the Ledger engine that mines pending transactions in to blocks.
// Run starts a goroutine and can be stopped by cancelling the context.
// Transactions pending on stop are mined once more before the engine exits.
// It is non-blocking and shall be called once.
func (l *Ledger) Run(ctx context.Context) {
	go func(ctx context.Context) {
		defer close(l.done)
		ticker := time.NewTicker(time.Duration(l.config.BlockWriteInterval) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if l.chain.PendingLen() > 0 {
					l.forge(context.Background())
				}
				return
			case <-l.wake:
				l.forge(ctx)
			case <-ticker.C:
				if l.chain.PendingLen() > 0 {
					l.forge(ctx)
				}
			}
		}
	}(ctx)
}

// Done returns a channel closed when the engine started by Run stops.
func (l *Ledger) Done() <-chan struct{} {
	return l.done
}

// AddTransaction validates and adds transaction to the pending pool.
// Reaching the block transactions size wakes the engine up to mine the block.
func (l *Ledger) AddTransaction(trx transaction.Transaction) error {
	if err := l.chain.AddTransaction(trx); err != nil {
		return err
	}

	if l.chain.PendingLen() >= l.config.BlockTransactionsSize {
		select {
		case l.wake <- struct{}{}:
		default:
		}
	}

	return nil
}

// Mine mines pending transactions on demand. Empty miner address pays the reward to the configured miner.
func (l *Ledger) Mine(ctx context.Context, minerAddress string) (block.Block, error) {
	if minerAddress == "" {
		minerAddress = l.config.MinerAddress
	}
	ctx, cancel := l.withMiningTimeout(ctx)
	defer cancel()
	return l.chain.MinePendingTransactions(ctx, minerAddress)
}

// Pending returns transactions awaiting to be mined.
func (l *Ledger) Pending() []transaction.Transaction {
	return l.chain.Pending()
}

// Blocks returns all the blocks in the chain.
func (l *Ledger) Blocks() []block.Block {
	return l.chain.Blocks()
}

// LatestBlock returns the last block in the chain.
func (l *Ledger) LatestBlock() block.Block {
	return l.chain.LatestBlock()
}

// BalanceOf returns the balance of the address.
func (l *Ledger) BalanceOf(address string) int64 {
	return l.chain.BalanceOf(address)
}

// TransactionsFor returns transactions of the address in chain order.
func (l *Ledger) TransactionsFor(address string) []transaction.Transaction {
	return l.chain.TransactionsFor(address)
}

// Validate validates the whole chain.
func (l *Ledger) Validate() error {
	return l.chain.Validate()
}

func (l *Ledger) forge(ctx context.Context) {
	ctx, cancel := l.withMiningTimeout(ctx)
	defer cancel()

	nb, err := l.chain.MinePendingTransactions(ctx, l.config.MinerAddress)
	if err != nil {
		l.log.Error(fmt.Sprintf("ledger engine failed to mine block: %s", err))
		return
	}
	l.log.Info(fmt.Sprintf("ledger engine forged block %x with %d transactions", nb.Hash, len(nb.Transactions)))
}

func (l *Ledger) withMiningTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.config.MiningTimeout == 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(l.config.MiningTimeout)*time.Second)
}
