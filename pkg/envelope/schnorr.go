package envelope

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Sign returns the hex BIP-340 signature over sha256(msg).
func (k *Keypair) Sign(msg []byte) (string, error) {
	digest := sha256.Sum256(msg)
	sig, err := schnorr.Sign(k.priv, digest[:])
	if err != nil {
		return "", fmt.Errorf("signing: %w", err)
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

// Verify reports whether sigHex is a valid signature by pub over sha256(msg).
func Verify(pub *btcec.PublicKey, msg []byte, sigHex string) bool {
	raw, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(raw)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(msg)
	return sig.Verify(digest[:], pub)
}
