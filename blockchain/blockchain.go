package blockchain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bartossh/Ledgerium/block"
	"github.com/bartossh/Ledgerium/logger"
	"github.com/bartossh/Ledgerium/transaction"
)

const (
	DefaultDifficulty   = 2
	DefaultMiningReward = 100
)

const (
	metricMiningDuration = "ledgerium_mining_duration"
	metricPending        = "ledgerium_pending_transactions"
	metricChainLength    = "ledgerium_chain_length"
	metricMinedBlocks    = "ledgerium_mined_blocks_total"
)

var (
	ErrDifficultyNotInRange    = errors.New("invalid difficulty, difficulty can be in range [0 : 64]")
	ErrMiningRewardNotPositive = errors.New("mining reward should be higher than 0")
)

var (
	ErrInvalidTransactions  = errors.New("block contains invalid transaction")
	ErrInvalidBlockHash     = errors.New("block hash is invalid")
	ErrInvalidBlockPrevHash = errors.New("block prev hash is invalid")
	ErrInsufficientWork     = errors.New("block hash does not meet the difficulty")
)

var genesisCreatedAt = time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)

// InvalidBlockError points at the first block failing the chain validation.
type InvalidBlockError struct {
	Index int
	Err   error
}

func (e *InvalidBlockError) Error() string {
	return fmt.Sprintf("block %d is invalid: %s", e.Index, e.Err)
}

func (e *InvalidBlockError) Unwrap() error {
	return e.Err
}

// BlockPublisher publishes mined blocks. Publish must not block.
type BlockPublisher interface {
	Publish(block.Block) int
}

// Recorder records chain metrics.
type Recorder interface {
	CreateObservableHistogram(name, description string)
	CreateObservableGauge(name, description string)
	CreateObservableCounter(name, description string)
	RecordHistogramTime(name string, t time.Duration) bool
	SetGauge(name string, f float64) bool
	IncrementCounter(name string) bool
}

// Config is a configuration of the Chain.
type Config struct {
	Difficulty   uint64 `yaml:"difficulty"`
	MiningReward int64  `yaml:"mining_reward"`
}

// DefaultConfig returns the Config with default difficulty and mining reward.
func DefaultConfig() Config {
	return Config{Difficulty: DefaultDifficulty, MiningReward: DefaultMiningReward}
}

// Validate validates the Chain configuration.
func (c Config) Validate() error {
	if c.Difficulty > block.MaxDifficulty {
		return ErrDifficultyNotInRange
	}
	if c.MiningReward <= 0 {
		return ErrMiningRewardNotPositive
	}
	return nil
}

// Chain keeps the blocks creating immutable chain of transactions and the pool of
// transactions awaiting to be mined. Chain is safe for concurrent use.
// State is mutated under mux, miners are serialized by mining so the state stays
// readable while the proof of work is searched.
type Chain struct {
	mux     sync.RWMutex
	mining  sync.Mutex
	config  Config
	blocks  []block.Block
	pending []transaction.Transaction
	vr      transaction.Verifier
	log     logger.Logger
	pub     BlockPublisher
	rec     Recorder
}

// GenesisBlock creates the genesis block. It is the first block in every chain and is identical for each call.
func GenesisBlock() block.Block {
	return block.New(genesisCreatedAt, []transaction.Transaction{}, [32]byte{})
}

// New creates a new Chain holding only the genesis block.
func New(config Config, vr transaction.Verifier, log logger.Logger, pub BlockPublisher, rec Recorder) (*Chain, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	rec.CreateObservableHistogram(metricMiningDuration, "Time spent on proof of work of mined blocks in microseconds.")
	rec.CreateObservableGauge(metricPending, "Count of transactions awaiting to be mined.")
	rec.CreateObservableGauge(metricChainLength, "Count of blocks in the chain.")
	rec.CreateObservableCounter(metricMinedBlocks, "Count of mined blocks.")
	rec.SetGauge(metricChainLength, 1)

	return &Chain{
		config:  config,
		blocks:  []block.Block{GenesisBlock()},
		pending: make([]transaction.Transaction, 0),
		vr:      vr,
		log:     log,
		pub:     pub,
		rec:     rec,
	}, nil
}

// LatestBlock returns the last block in the chain.
func (c *Chain) LatestBlock() block.Block {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return cloneBlock(c.blocks[len(c.blocks)-1])
}

// Len returns the count of blocks in the chain including the genesis block.
func (c *Chain) Len() int {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return len(c.blocks)
}

// Blocks returns copy of all the blocks in consecutive order.
func (c *Chain) Blocks() []block.Block {
	c.mux.RLock()
	defer c.mux.RUnlock()
	blocks := make([]block.Block, 0, len(c.blocks))
	for _, b := range c.blocks {
		blocks = append(blocks, cloneBlock(b))
	}
	return blocks
}

// Pending returns copy of transactions awaiting to be mined.
func (c *Chain) Pending() []transaction.Transaction {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return cloneTransactions(c.pending)
}

// PendingLen returns the count of transactions awaiting to be mined.
func (c *Chain) PendingLen() int {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return len(c.pending)
}

// AddTransaction validates the transaction and adds it to the pending pool.
// The sender balance is not checked.
func (c *Chain) AddTransaction(trx transaction.Transaction) error {
	if trx.SenderAddress == "" || trx.RecipientAddress == "" {
		return errors.Join(transaction.ErrValidation, transaction.ErrMissingAddress)
	}

	ok, err := trx.IsValid(c.vr)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Join(transaction.ErrValidation, transaction.ErrInvalidSignature)
	}

	if trx.Amount <= 0 {
		return errors.Join(transaction.ErrValidation, transaction.ErrNonPositiveAmount)
	}

	c.mux.Lock()
	c.pending = append(c.pending, cloneTransaction(trx))
	size := len(c.pending)
	c.mux.Unlock()

	c.rec.SetGauge(metricPending, float64(size))
	c.log.Debug(fmt.Sprintf("transaction from %s to %s of amount %d added, pending %d",
		trx.SenderAddress, trx.RecipientAddress, trx.Amount, size))

	return nil
}

// MinePendingTransactions mines all pending transactions together with the reward for the miner
// in to a new block and appends it to the chain.
// The search may be stopped by cancelling ctx, then the chain and pending pool stay untouched.
// Transactions added while mining are left pending for the next block.
func (c *Chain) MinePendingTransactions(ctx context.Context, minerAddress string) (block.Block, error) {
	if minerAddress == "" {
		return block.Block{}, errors.Join(transaction.ErrValidation, transaction.ErrMissingAddress)
	}

	c.mining.Lock()
	defer c.mining.Unlock()

	c.mux.RLock()
	trxs := cloneTransactions(c.pending)
	prevHash := c.blocks[len(c.blocks)-1].Hash
	c.mux.RUnlock()

	mined := len(trxs)
	trxs = append(trxs, transaction.NewReward(minerAddress, c.config.MiningReward))

	nb := block.New(time.Now(), trxs, prevHash)
	start := time.Now()
	if err := nb.Mine(ctx, c.config.Difficulty); err != nil {
		c.log.Warn(fmt.Sprintf("mining block of %d transactions failed: %s", len(trxs), err))
		return block.Block{}, err
	}
	elapsed := time.Since(start)

	c.mux.Lock()
	c.blocks = append(c.blocks, nb)
	c.pending = append(make([]transaction.Transaction, 0, len(c.pending)-mined), c.pending[mined:]...)
	length, size := len(c.blocks), len(c.pending)
	c.mux.Unlock()

	c.rec.RecordHistogramTime(metricMiningDuration, elapsed)
	c.rec.IncrementCounter(metricMinedBlocks)
	c.rec.SetGauge(metricChainLength, float64(length))
	c.rec.SetGauge(metricPending, float64(size))

	if missed := c.pub.Publish(cloneBlock(nb)); missed > 0 {
		c.log.Warn(fmt.Sprintf("block %x not delivered to %d subscribers", nb.Hash, missed))
	}
	c.log.Info(fmt.Sprintf("block %x mined with nonce %d in %s, transactions %d, reward to %s",
		nb.Hash, nb.Nonce, elapsed, len(trxs), minerAddress))

	return cloneBlock(nb), nil
}

// BalanceOf returns the balance of the address calculated from all the blocks in the chain.
// Pending transactions are not taken in to account. Empty address has no balance.
func (c *Chain) BalanceOf(address string) int64 {
	if address == "" {
		return 0
	}

	c.mux.RLock()
	defer c.mux.RUnlock()

	var balance int64
	for _, b := range c.blocks {
		for _, trx := range b.Transactions {
			if trx.SenderAddress == address {
				balance -= trx.Amount
			}
			if trx.RecipientAddress == address {
				balance += trx.Amount
			}
		}
	}
	return balance
}

// TransactionsFor returns all the transactions in chain order where address is the sender or the recipient.
func (c *Chain) TransactionsFor(address string) []transaction.Transaction {
	trxs := make([]transaction.Transaction, 0)
	if address == "" {
		return trxs
	}

	c.mux.RLock()
	defer c.mux.RUnlock()

	for _, b := range c.blocks {
		for _, trx := range b.Transactions {
			if trx.SenderAddress == address || trx.RecipientAddress == address {
				trxs = append(trxs, cloneTransaction(trx))
			}
		}
	}
	return trxs
}

// IsValid returns true if Validate finds no invalid block.
func (c *Chain) IsValid() bool {
	return c.Validate() == nil
}

// Validate validates every block after the genesis block, returning *InvalidBlockError
// for the first block with invalid transactions, hash, proof of work or link to the previous block.
func (c *Chain) Validate() error {
	c.mux.RLock()
	defer c.mux.RUnlock()

	for i := 1; i < len(c.blocks); i++ {
		if err := ValidateBlock(&c.blocks[i], &c.blocks[i-1], c.config.Difficulty, c.vr); err != nil {
			return &InvalidBlockError{Index: i, Err: err}
		}
	}
	return nil
}

// ValidateBlock validates the block transactions, hash and proof of work, and the link to the previous block.
func ValidateBlock(current, previous *block.Block, difficulty uint64, vr transaction.Verifier) error {
	if !current.HasValidTransactions(vr) {
		return ErrInvalidTransactions
	}
	if current.Hash != current.HashValue() {
		return ErrInvalidBlockHash
	}
	if !current.MeetsDifficulty(difficulty) {
		return ErrInsufficientWork
	}
	if current.PrevHash != previous.Hash {
		return ErrInvalidBlockPrevHash
	}
	return nil
}

func cloneBlock(b block.Block) block.Block {
	b.Transactions = cloneTransactions(b.Transactions)
	return b
}

func cloneTransactions(trxs []transaction.Transaction) []transaction.Transaction {
	cp := make([]transaction.Transaction, 0, len(trxs))
	for _, trx := range trxs {
		cp = append(cp, cloneTransaction(trx))
	}
	return cp
}

func cloneTransaction(trx transaction.Transaction) transaction.Transaction {
	trx.Signature = append([]byte{}, trx.Signature...)
	return trx
}
