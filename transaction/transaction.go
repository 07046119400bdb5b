package transaction

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"time"
)

var (
	ErrAuthorization = errors.New("authorization failed")
	ErrValidation    = errors.New("validation failed")
)

var (
	ErrSignerMismatch    = errors.New("signing key does not belong to the sender address")
	ErrRewardNotSignable = errors.New("reward transaction has no sender to sign it")
	ErrAlreadySigned     = errors.New("transaction is already signed")
	ErrNotSigned         = errors.New("transaction is not signed")
	ErrMissingAddress    = errors.New("transaction must include sender and recipient address")
	ErrInvalidSignature  = errors.New("transaction signature is not valid")
	ErrNonPositiveAmount = errors.New("transaction amount should be higher than 0")
)

// Signer provides signing and address methods.
type Signer interface {
	Sign(message []byte) (digest [32]byte, signature []byte)
	Address() string
}

// Verifier provides signature verification method.
type Verifier interface {
	Verify(message, signature []byte, hash [32]byte, address string) error
}

// Transaction is a value transfer from the sender to the recipient.
// Transaction without the sender is a reward for mining a block and needs no signature.
// Any field change after signing invalidates the signature.
type Transaction struct {
	CreatedAt        time.Time `json:"created_at"`
	SenderAddress    string    `json:"sender_address"`
	RecipientAddress string    `json:"recipient_address"`
	Amount           int64     `json:"amount"`
	Signature        []byte    `json:"signature"`
}

// New creates new unsigned transaction.
func New(sender, recipient string, amount int64) Transaction {
	return Transaction{
		CreatedAt:        time.Now(),
		SenderAddress:    sender,
		RecipientAddress: recipient,
		Amount:           amount,
		Signature:        []byte{},
	}
}

// NewReward creates a reward transaction paying the amount to the recipient.
func NewReward(recipient string, amount int64) Transaction {
	return New("", recipient, amount)
}

// IsReward returns true if transaction has no sender.
func (t *Transaction) IsReward() bool {
	return t.SenderAddress == ""
}

// ContentHash returns sha256 digest of the signed transaction content.
func (t *Transaction) ContentHash() [32]byte {
	return sha256.Sum256(t.message())
}

// Sign signs the transaction content by the sender.
// The signer address has to be equal to the sender address.
func (t *Transaction) Sign(s Signer) error {
	if t.IsReward() {
		return errors.Join(ErrAuthorization, ErrRewardNotSignable)
	}
	if s.Address() != t.SenderAddress {
		return errors.Join(ErrAuthorization, ErrSignerMismatch)
	}
	if len(t.Signature) != 0 {
		return errors.Join(ErrValidation, ErrAlreadySigned)
	}

	_, signature := s.Sign(t.message())
	t.Signature = signature
	return nil
}

// IsValid verifies the sender signature against the current transaction content.
// Reward transaction is always valid. Unsigned transaction returns ErrValidation.
func (t *Transaction) IsValid(v Verifier) (bool, error) {
	if t.IsReward() {
		return true, nil
	}
	if len(t.Signature) == 0 {
		return false, errors.Join(ErrValidation, ErrNotSigned)
	}
	return v.Verify(t.message(), t.Signature, t.ContentHash(), t.SenderAddress) == nil, nil
}

// message concatenates transaction fields. Addresses are length prefixed and
// numbers have fixed width so distinct transactions never share a message.
func (t *Transaction) message() []byte {
	msg := make([]byte, 0, len(t.SenderAddress)+len(t.RecipientAddress)+2*binary.MaxVarintLen64+16)
	msg = binary.AppendUvarint(msg, uint64(len(t.SenderAddress)))
	msg = append(msg, t.SenderAddress...)
	msg = binary.AppendUvarint(msg, uint64(len(t.RecipientAddress)))
	msg = append(msg, t.RecipientAddress...)
	msg = binary.LittleEndian.AppendUint64(msg, uint64(t.Amount))
	msg = binary.LittleEndian.AppendUint64(msg, uint64(t.CreatedAt.UnixNano()))
	return msg
}
