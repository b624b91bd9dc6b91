package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// HashHexLength is the length of a hex encoded 256 bit value.
const HashHexLength = 64

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// Is256BitHex reports whether s is exactly 64 hex digits, in either case.
func Is256BitHex(s string) bool {
	return len(s) == HashHexLength && isHex(s)
}

// IsBase64 reports whether s is padded standard base64.
func IsBase64(s string) bool {
	if len(s)%4 != 0 {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(s)
	return err == nil
}

// DeriveSecretID returns the lowercase hex SHA-256 of identifier followed by
// authenticationKey. The bytes are joined without a separator, which is only
// unambiguous while both inputs have a fixed length; callers must validate
// them with Is256BitHex first.
func DeriveSecretID(identifier, authenticationKey string) string {
	h := sha256.New()
	h.Write([]byte(identifier))
	h.Write([]byte(authenticationKey))
	return hex.EncodeToString(h.Sum(nil))
}

func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func RandBytes(length int) []byte {
	b := make([]byte, length)
	_, _ = rand.Read(b)
	return b
}

func B64E(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func B64D(data string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(data)
}
