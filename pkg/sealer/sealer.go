// Package sealer encrypts a plaintext secret on the client before it is
// handed to the server as an opaque encrypted_secret.
package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/nckslvrmn/stash/pkg/utils"
	"golang.org/x/crypto/scrypt"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
)

var ErrMalformed = errors.New("sealed secret is malformed")

// Sealed is the decoded form of a sealed secret: salt || nonce || ciphertext.
type Sealed struct {
	Salt       []byte
	Nonce      []byte
	Ciphertext []byte
}

func (s *Sealed) Bytes() []byte {
	out := make([]byte, 0, len(s.Salt)+len(s.Nonce)+len(s.Ciphertext))
	out = append(out, s.Salt...)
	out = append(out, s.Nonce...)
	return append(out, s.Ciphertext...)
}

func (s *Sealed) String() string {
	return utils.B64E(s.Bytes())
}

// Parse decodes the base64 form produced by Seal.
func Parse(encoded string) (*Sealed, error) {
	raw, err := utils.B64D(encoded)
	if err != nil {
		return nil, ErrMalformed
	}
	if len(raw) < saltSize+nonceSize+16 {
		return nil, ErrMalformed
	}
	return &Sealed{
		Salt:       raw[:saltSize],
		Nonce:      raw[saltSize : saltSize+nonceSize],
		Ciphertext: raw[saltSize+nonceSize:],
	}, nil
}

// Seal encrypts plaintext with a key derived from passphrase and returns
// the base64 encoding of salt, nonce and ciphertext.
func Seal(passphrase string, plaintext []byte) (string, error) {
	s := &Sealed{
		Salt:  utils.RandBytes(saltSize),
		Nonce: utils.RandBytes(nonceSize),
	}
	aesGCM, err := setupCipher(passphrase, s.Salt)
	if err != nil {
		return "", err
	}
	s.Ciphertext = aesGCM.Seal(nil, s.Nonce, plaintext, s.Salt)
	return s.String(), nil
}

// Open reverses Seal.
func Open(passphrase, encoded string) ([]byte, error) {
	s, err := Parse(encoded)
	if err != nil {
		return nil, err
	}
	aesGCM, err := setupCipher(passphrase, s.Salt)
	if err != nil {
		return nil, err
	}
	return aesGCM.Open(nil, s.Nonce, s.Ciphertext, s.Salt)
}

func setupCipher(passphrase string, salt []byte) (cipher.AEAD, error) {
	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}

func deriveKey(passphrase string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), salt, 2<<14, 8, 1, keySize)
}
