package aeswrapper

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
)

var (
	ErrEmptyPassphrase    = errors.New("passphrase is empty")
	ErrDataTooShort       = errors.New("sealed data is too short")
	ErrCipherFailure      = errors.New("cipher creation failure")
	ErrGCMFailure         = errors.New("gcm creation failure")
	ErrRandomNonceFailure = errors.New("random nonce creation failure")
	ErrRandomSaltFailure  = errors.New("random salt creation failure")
	ErrOpenDataFailure    = errors.New("open data failure, cannot decrypt data")
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// Helper wraps AES encryption and decryption.
// Uses Galois Counter Mode (GCM) with 256 bit key derived from the passphrase by argon2id.
// Sealed data layout is salt, nonce and the ciphertext.
type Helper struct{}

// New creates a new Helper.
func New() Helper {
	return Helper{}
}

// Encrypt encrypts data with the key derived from the passphrase.
func (h Helper) Encrypt(passphrase, data []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}

	salt := make([]byte, saltSize, saltSize+nonceSize+len(data)+aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errors.Join(ErrRandomSaltFailure, err)
	}

	aesgcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Join(ErrRandomNonceFailure, err)
	}

	sealed := append(salt, nonce...)
	return aesgcm.Seal(sealed, nonce, data, nil), nil
}

// Decrypt decrypts data sealed by Encrypt with the key derived from the passphrase.
func (h Helper) Decrypt(passphrase, data []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}
	if len(data) < saltSize+nonceSize {
		return nil, ErrDataTooShort
	}
	salt, nonce, cipherText := data[:saltSize], data[saltSize:saltSize+nonceSize], data[saltSize+nonceSize:]

	aesGcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesGcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, errors.Join(ErrOpenDataFailure, err)
	}

	return plaintext, nil
}

func newGCM(passphrase, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, keySize)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrCipherFailure, err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrGCMFailure, err)
	}
	return aesgcm, nil
}
