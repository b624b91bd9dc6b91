package sealer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nckslvrmn/stash/pkg/utils"
)

func TestSealOpen(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		passphrase string
	}{
		{
			name:       "Simple string",
			data:       []byte("Hello, World!"),
			passphrase: "test-password",
		},
		{
			name:       "Empty string",
			data:       []byte(""),
			passphrase: "test-password",
		},
		{
			name:       "Binary data",
			data:       []byte{0x00, 0xFF, 0x42, 0x13, 0x37},
			passphrase: "test-password",
		},
		{
			name:       "Long string",
			data:       bytes.Repeat([]byte("a"), 1000),
			passphrase: "another password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := Seal(tt.passphrase, tt.data)
			if err != nil {
				t.Fatalf("Seal() error = %v", err)
			}
			if !utils.IsBase64(sealed) {
				t.Errorf("Seal() = %q, not padded base64", sealed)
			}

			got, err := Open(tt.passphrase, sealed)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if !bytes.Equal(got, tt.data) {
				t.Errorf("Open() = %v, want %v", got, tt.data)
			}
		})
	}
}

func TestSealIsRandomized(t *testing.T) {
	a, err := Seal("pw", []byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Seal("pw", []byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("Seal() produced identical output for two calls")
	}
}

func TestOpenFailures(t *testing.T) {
	sealed, err := Seal("right", []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Open("wrong", sealed); err == nil {
		t.Error("Open() with wrong passphrase should fail")
	}
	if _, err := Open("right", "not base64!"); !errors.Is(err, ErrMalformed) {
		t.Errorf("Open() error = %v, want ErrMalformed", err)
	}
	if _, err := Open("right", utils.B64E([]byte("short"))); !errors.Is(err, ErrMalformed) {
		t.Errorf("Open() error = %v, want ErrMalformed", err)
	}

	s, _ := Parse(sealed)
	s.Ciphertext[0] ^= 0xff
	if _, err := Open("right", s.String()); err == nil {
		t.Error("Open() of tampered ciphertext should fail")
	}
}
