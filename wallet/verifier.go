package wallet

import (
	"bytes"
	"crypto/sha256"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/bartossh/Ledgerium/serializer"
)

var (
	ErrAddressVersion    = errors.New("address version is not supported")
	ErrHashCorrupted     = errors.New("hash is corrupted")
	ErrSignatureEncoding = errors.New("signature is not DER encoded")
	ErrSignatureInvalid  = errors.New("message signature isn't valid")
)

// Helper provides wallet helper functionalities without knowing about wallet private and public keys.
type Helper struct{}

// NewVerifier creates new wallet Helper verifier.
func NewVerifier() Helper {
	return Helper{}
}

// AddressToPubKey creates secp256k1 public key from address, or returns error otherwise.
func (h Helper) AddressToPubKey(address string) (*btcec.PublicKey, error) {
	v, raw, err := serializer.Base58CheckDecode(address)
	if err != nil {
		return nil, err
	}
	if v != version {
		return nil, ErrAddressVersion
	}
	return btcec.ParsePubKey(raw)
}

// Verify verifies if message is signed by the key encoded in the address and hash is equal.
func (h Helper) Verify(message, signature []byte, hash [32]byte, address string) error {
	digest := sha256.Sum256(message)
	if !bytes.Equal(hash[:], digest[:]) {
		return ErrHashCorrupted
	}

	pubKey, err := h.AddressToPubKey(address)
	if err != nil {
		return err
	}

	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return errors.Join(ErrSignatureEncoding, err)
	}

	if !sig.Verify(digest[:], pubKey) {
		return ErrSignatureInvalid
	}
	return nil
}
