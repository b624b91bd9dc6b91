package envelope

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
)

const (
	version = 2

	minPlaintextSize = 1
	maxPlaintextSize = 65535

	minPayloadSize = 99
	maxPayloadSize = 65603
)

var (
	ErrUnsupportedVersion = errors.New("unsupported payload version")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrInvalidMAC         = errors.New("invalid MAC")
	ErrInvalidPadding     = errors.New("invalid padding")
	ErrPlaintextSize      = errors.New("plaintext size out of range")
)

// ConversationKey derives the symmetric key shared by priv and pub. The
// result is the same from either side of the conversation.
func ConversationKey(priv *btcec.PrivateKey, pub *btcec.PublicKey) []byte {
	shared := btcec.GenerateSharedSecret(priv, pub)
	return hkdf.Extract(sha256.New, shared, []byte("nip44-v2"))
}

func messageKeys(conversationKey, nonce []byte) (chachaKey, chachaNonce, hmacKey []byte, err error) {
	keys := make([]byte, 76)
	if _, err = io.ReadFull(hkdf.Expand(sha256.New, conversationKey, nonce), keys); err != nil {
		return nil, nil, nil, err
	}
	return keys[:32], keys[32:44], keys[44:76], nil
}

func calcPaddedLen(n int) int {
	if n <= 32 {
		return 32
	}
	nextPower := 1 << bits.Len(uint(n-1))
	chunk := 32
	if nextPower > 256 {
		chunk = nextPower / 8
	}
	return chunk * ((n-1)/chunk + 1)
}

func pad(plaintext []byte) ([]byte, error) {
	n := len(plaintext)
	if n < minPlaintextSize || n > maxPlaintextSize {
		return nil, ErrPlaintextSize
	}
	out := make([]byte, 2+calcPaddedLen(n))
	binary.BigEndian.PutUint16(out, uint16(n))
	copy(out[2:], plaintext)
	return out, nil
}

func unpad(padded []byte) ([]byte, error) {
	if len(padded) < 2 {
		return nil, ErrInvalidPadding
	}
	n := int(binary.BigEndian.Uint16(padded))
	if n < minPlaintextSize || 2+n > len(padded) || len(padded) != 2+calcPaddedLen(n) {
		return nil, ErrInvalidPadding
	}
	return padded[2 : 2+n], nil
}

func mac(hmacKey, nonce, ciphertext []byte) []byte {
	h := hmac.New(sha256.New, hmacKey)
	h.Write(nonce)
	h.Write(ciphertext)
	return h.Sum(nil)
}

// Encrypt seals plaintext under conversationKey with a random nonce and
// returns the base64 payload.
func Encrypt(conversationKey, plaintext []byte) (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("reading nonce: %w", err)
	}
	return encrypt(conversationKey, plaintext, nonce)
}

func encrypt(conversationKey, plaintext, nonce []byte) (string, error) {
	chachaKey, chachaNonce, hmacKey, err := messageKeys(conversationKey, nonce)
	if err != nil {
		return "", err
	}
	padded, err := pad(plaintext)
	if err != nil {
		return "", err
	}
	cipher, err := chacha20.NewUnauthenticatedCipher(chachaKey, chachaNonce)
	if err != nil {
		return "", err
	}
	ciphertext := make([]byte, len(padded))
	cipher.XORKeyStream(ciphertext, padded)

	payload := make([]byte, 0, 1+len(nonce)+len(ciphertext)+sha256.Size)
	payload = append(payload, version)
	payload = append(payload, nonce...)
	payload = append(payload, ciphertext...)
	payload = append(payload, mac(hmacKey, nonce, ciphertext)...)
	return base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt opens a base64 payload produced by Encrypt.
func Decrypt(conversationKey []byte, payload string) ([]byte, error) {
	if payload == "" {
		return nil, ErrInvalidPayload
	}
	if payload[0] == '#' {
		return nil, ErrUnsupportedVersion
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrInvalidPayload
	}
	if len(raw) < minPayloadSize || len(raw) > maxPayloadSize {
		return nil, ErrInvalidPayload
	}
	if raw[0] != version {
		return nil, ErrUnsupportedVersion
	}

	nonce := raw[1:33]
	ciphertext := raw[33 : len(raw)-sha256.Size]
	tag := raw[len(raw)-sha256.Size:]

	chachaKey, chachaNonce, hmacKey, err := messageKeys(conversationKey, nonce)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(tag, mac(hmacKey, nonce, ciphertext)) != 1 {
		return nil, ErrInvalidMAC
	}

	cipher, err := chacha20.NewUnauthenticatedCipher(chachaKey, chachaNonce)
	if err != nil {
		return nil, err
	}
	padded := make([]byte, len(ciphertext))
	cipher.XORKeyStream(padded, ciphertext)
	return unpad(padded)
}
