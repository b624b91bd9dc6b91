package envelope

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
)

var ErrBadSignature = errors.New("response signature does not verify")

// Request is an enveloped request body.
type Request struct {
	PublicKey     string `json:"public_key"`
	EncryptedBody string `json:"encrypted_body"`
}

// SignedResponse is an enveloped response body. Signature covers the
// decoded bytes of Response.
type SignedResponse struct {
	Response  string `json:"response"`
	Signature string `json:"signature"`
}

// Payload is the plaintext inside SignedResponse.Response. Data holds the
// unwrapped response body as a JSON string.
type Payload struct {
	Timestamp int64  `json:"timestamp"`
	Data      string `json:"data"`
}

// SealRequest encrypts body from client to server.
func SealRequest(client *Keypair, server *btcec.PublicKey, body []byte) (*Request, error) {
	payload, err := Encrypt(ConversationKey(client.priv, server), body)
	if err != nil {
		return nil, err
	}
	return &Request{PublicKey: client.PublicKeyHex(), EncryptedBody: payload}, nil
}

// OpenRequest decrypts a request addressed to server. It returns the
// sender's key so the response can be sealed back to it. Errors wrap
// ErrInvalidKey when public_key is unusable.
func OpenRequest(server *Keypair, req *Request) (*btcec.PublicKey, []byte, error) {
	pub, err := ParsePublicKey(req.PublicKey)
	if err != nil {
		return nil, nil, err
	}
	body, err := Decrypt(ConversationKey(server.priv, pub), req.EncryptedBody)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypting body: %w", err)
	}
	return pub, body, nil
}

// SealResponse wraps data for client and signs the result.
func SealResponse(server *Keypair, client *btcec.PublicKey, data []byte, now time.Time) (*SignedResponse, error) {
	plaintext, err := json.Marshal(Payload{Timestamp: now.Unix(), Data: string(data)})
	if err != nil {
		return nil, err
	}
	encrypted, err := Encrypt(ConversationKey(server.priv, client), plaintext)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, err
	}
	sig, err := server.Sign(raw)
	if err != nil {
		return nil, err
	}
	return &SignedResponse{Response: encrypted, Signature: sig}, nil
}

// OpenResponse verifies and decrypts a response sealed by server.
func OpenResponse(client *Keypair, server *btcec.PublicKey, resp *SignedResponse) (*Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(resp.Response)
	if err != nil {
		return nil, ErrInvalidPayload
	}
	if !Verify(server, raw, resp.Signature) {
		return nil, ErrBadSignature
	}
	plaintext, err := Decrypt(ConversationKey(client.priv, server), resp.Response)
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return &p, nil
}
