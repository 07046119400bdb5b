package block

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"time"

	"github.com/shamaton/msgpack/v2"

	"github.com/bartossh/Ledgerium/transaction"
)

// MaxDifficulty is the count of hexadecimal characters in a sha256 hash.
const MaxDifficulty = 64

const cancellationCheckInterval = 1024

var separator = []byte{}

var (
	ErrDifficultyOutOfRange = errors.New("difficulty is not in range [0 : 64]")
	ErrMiningInterrupted    = errors.New("mining interrupted, block not found")
	ErrNonceExhausted       = errors.New("nonce space exhausted, block not found")
)

// Block holds a batch of transactions linked to the previous block by its hash.
// Hash is sealed with proof of work by mining the Nonce.
type Block struct {
	CreatedAt    time.Time                 `json:"created_at"`
	Transactions []transaction.Transaction `json:"transactions"`
	PrevHash     [32]byte                  `json:"prev_hash"`
	Hash         [32]byte                  `json:"hash"`
	Nonce        uint64                    `json:"nonce"`
}

// record is the serialized form of the transaction taking part in the block hash.
type record struct {
	CreatedAt        int64
	SenderAddress    string
	RecipientAddress string
	Amount           int64
	Signature        string
}

// New creates a new not mined Block with nonce set to 0 and hash calculated.
func New(createdAt time.Time, trxs []transaction.Transaction, prevHash [32]byte) Block {
	b := Block{
		CreatedAt:    createdAt,
		Transactions: trxs,
		PrevHash:     prevHash,
		Nonce:        0,
	}
	b.Hash = b.HashValue()
	return b
}

// HashValue calculates the block hash from the current block content.
func (b *Block) HashValue() [32]byte {
	return newProof(b).hash(b.Nonce)
}

// MeetsDifficulty returns true if hexadecimal representation of the block hash
// starts with difficulty zero characters.
func (b *Block) MeetsDifficulty(difficulty uint64) bool {
	return meetsDifficulty(b.Hash, difficulty)
}

// Mine searches for the nonce that makes the block hash meet the difficulty.
// The search stops when ctx is done, restoring the nonce and hash from before the search.
func (b *Block) Mine(ctx context.Context, difficulty uint64) error {
	if difficulty > MaxDifficulty {
		return ErrDifficultyOutOfRange
	}

	nonce, hash, err := newProof(b).run(ctx, b.Nonce, difficulty)
	if err != nil {
		return err
	}
	b.Nonce, b.Hash = nonce, hash
	return nil
}

// HasValidTransactions returns true if all transactions in the block are valid.
func (b *Block) HasValidTransactions(v transaction.Verifier) bool {
	for i := range b.Transactions {
		ok, err := b.Transactions[i].IsValid(v)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

type proofOfWork struct {
	prefix []byte
}

func newProof(b *Block) *proofOfWork {
	records := make([]record, 0, len(b.Transactions))
	for _, trx := range b.Transactions {
		records = append(records, record{
			CreatedAt:        trx.CreatedAt.UnixNano(),
			SenderAddress:    trx.SenderAddress,
			RecipientAddress: trx.RecipientAddress,
			Amount:           trx.Amount,
			Signature:        hex.EncodeToString(trx.Signature),
		})
	}
	serialized, err := msgpack.Marshal(records)
	if err != nil {
		// records hold only primitives
		panic(err)
	}

	ts := binary.LittleEndian.AppendUint64(make([]byte, 0, 8), uint64(b.CreatedAt.UnixNano()))

	return &proofOfWork{
		prefix: bytes.Join(
			[][]byte{
				b.PrevHash[:],
				ts,
				serialized,
			},
			separator,
		),
	}
}

func (pow *proofOfWork) hash(nonce uint64) [32]byte {
	data := make([]byte, 0, len(pow.prefix)+8)
	data = append(data, pow.prefix...)
	data = binary.LittleEndian.AppendUint64(data, nonce)
	return sha256.Sum256(data)
}

func (pow *proofOfWork) run(ctx context.Context, nonce, difficulty uint64) (uint64, [32]byte, error) {
	data := make([]byte, len(pow.prefix)+8)
	copy(data, pow.prefix)
	tail := data[len(pow.prefix):]

	for attempt := uint64(1); ; attempt++ {
		binary.LittleEndian.PutUint64(tail, nonce)
		hash := sha256.Sum256(data)
		if meetsDifficulty(hash, difficulty) {
			return nonce, hash, nil
		}
		if nonce == math.MaxUint64 {
			return 0, [32]byte{}, ErrNonceExhausted
		}
		nonce++

		if attempt%cancellationCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return 0, [32]byte{}, errors.Join(ErrMiningInterrupted, ctx.Err())
			default:
			}
		}
	}
}

func meetsDifficulty(hash [32]byte, difficulty uint64) bool {
	if difficulty > MaxDifficulty {
		return false
	}
	for i := uint64(0); i < difficulty; i++ {
		nibble := hash[i/2] >> 4
		if i%2 == 1 {
			nibble = hash[i/2] & 0x0f
		}
		if nibble != 0 {
			return false
		}
	}
	return true
}
