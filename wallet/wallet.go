package wallet

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/bartossh/Ledgerium/serializer"
)

const version = byte(0x00)

var ErrEmptyPrivateKey = errors.New("wallet private key is empty")

// Wallet holds secp256k1 public and private key of the wallet owner.
type Wallet struct {
	Private *btcec.PrivateKey
	Public  *btcec.PublicKey
}

type sealedWallet struct {
	Private []byte
}

// New tries to creates a new Wallet or returns error otherwise.
func New() (Wallet, error) {
	private, err := btcec.NewPrivateKey()
	if err != nil {
		return Wallet{}, err
	}
	return Wallet{Private: private, Public: private.PubKey()}, nil
}

// FromPrivateKey recreates Wallet from serialized 32 bytes private key.
func FromPrivateKey(raw []byte) (Wallet, error) {
	if len(raw) == 0 {
		return Wallet{}, ErrEmptyPrivateKey
	}
	private, public := btcec.PrivKeyFromBytes(raw)
	return Wallet{Private: private, Public: public}, nil
}

// DecodeGOBWallet tries to decode Wallet from gob representation or returns error otherwise.
func DecodeGOBWallet(data []byte) (Wallet, error) {
	var sealed sealedWallet
	decoder := gob.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&sealed); err != nil {
		return Wallet{}, err
	}
	return FromPrivateKey(sealed.Private)
}

// EncodeGOB tries to encodes Wallet in to the gob representation or returns error otherwise.
func (w *Wallet) EncodeGOB() ([]byte, error) {
	if w.Private == nil {
		return nil, ErrEmptyPrivateKey
	}
	var content bytes.Buffer
	encoder := gob.NewEncoder(&content)
	if err := encoder.Encode(sealedWallet{Private: w.Private.Serialize()}); err != nil {
		return nil, err
	}
	return content.Bytes(), nil
}

// ChecksumLength returns checksum length.
func (w *Wallet) ChecksumLength() int {
	return serializer.ChecksumLength
}

// Version returns wallet version.
func (w *Wallet) Version() byte {
	return version
}

// Address creates address from the compressed public key that contains wallet version and checksum.
func (w *Wallet) Address() string {
	return serializer.Base58CheckEncode(version, w.Public.SerializeCompressed())
}

// Sign signs the message with deterministic (RFC 6979) ECDSA signature.
// Returns digest hash sha256 and DER encoded signature.
func (w *Wallet) Sign(message []byte) (digest [32]byte, signature []byte) {
	digest = sha256.Sum256(message)
	signature = ecdsa.Sign(w.Private, digest[:]).Serialize()
	return digest, signature
}

// Verify verifies message ECDSA signature and hash.
func (w *Wallet) Verify(message, signature []byte, hash [32]byte) bool {
	digest := sha256.Sum256(message)
	if !bytes.Equal(hash[:], digest[:]) {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(digest[:], w.Public)
}
