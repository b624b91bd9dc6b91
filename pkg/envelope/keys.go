// Package envelope implements the optional encrypted request/response
// layer: NIP-44 v2 payload encryption between two secp256k1 keys and
// BIP-340 Schnorr signatures over response bodies.
package envelope

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

var ErrInvalidKey = errors.New("invalid secp256k1 key")

// Keypair is a secp256k1 secret key with its x-only public key.
type Keypair struct {
	priv *btcec.PrivateKey
}

func GenerateKeypair() (*Keypair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// ParseSecretKey accepts a 32-byte secret key as 64 hex characters.
func ParseSecretKey(s string) (*Keypair, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != btcec.PrivKeyBytesLen {
		return nil, ErrInvalidKey
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	if priv.Key.IsZero() {
		return nil, ErrInvalidKey
	}
	return &Keypair{priv: priv}, nil
}

func (k *Keypair) SecretKeyHex() string {
	return hex.EncodeToString(k.priv.Serialize())
}

func (k *Keypair) PublicKey() *btcec.PublicKey {
	return k.priv.PubKey()
}

// PublicKeyHex returns the 32-byte x-only public key, hex encoded.
func (k *Keypair) PublicKeyHex() string {
	return hex.EncodeToString(schnorr.SerializePubKey(k.priv.PubKey()))
}

// ParsePublicKey accepts an x-only (32 byte) or compressed (33 byte)
// public key in hex.
func ParsePublicKey(s string) (*btcec.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidKey
	}
	var pub *btcec.PublicKey
	switch len(raw) {
	case schnorr.PubKeyBytesLen:
		pub, err = schnorr.ParsePubKey(raw)
	case btcec.PubKeyBytesLenCompressed:
		pub, err = btcec.ParsePubKey(raw)
	default:
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, ErrInvalidKey
	}
	return pub, nil
}
