package main

import (
	"github.com/nckslvrmn/stash/pkg/client"
	"github.com/nckslvrmn/stash/pkg/envelope"
	"github.com/nckslvrmn/stash/pkg/sealer"
)

// Each binding takes plain strings and returns a map that is handed to
// JavaScript as an object. Failures are reported under "error".

func errorResult(msg string, err error) map[string]any {
	if err != nil {
		msg += ": " + err.Error()
	}
	return map[string]any{"error": msg}
}

func deriveCredentials(label, passphrase string) map[string]any {
	creds := client.DeriveCredentials(label, passphrase)
	return map[string]any{
		"identifier":         creds.Identifier,
		"authentication_key": creds.AuthenticationKey,
	}
}

func sealSecret(passphrase, text string) map[string]any {
	sealed, err := sealer.Seal(passphrase, []byte(text))
	if err != nil {
		return errorResult("Encryption failed", err)
	}
	return map[string]any{"encrypted_secret": sealed}
}

func openSecret(passphrase, sealed string) map[string]any {
	plaintext, err := sealer.Open(passphrase, sealed)
	if err != nil {
		return errorResult("Decryption failed", err)
	}
	return map[string]any{"data": string(plaintext)}
}

func generateKeypair() map[string]any {
	kp, err := envelope.GenerateKeypair()
	if err != nil {
		return errorResult("Key generation failed", err)
	}
	return map[string]any{
		"secret_key": kp.SecretKeyHex(),
		"public_key": kp.PublicKeyHex(),
	}
}

func sealRequest(clientSecret, serverPublic, body string) map[string]any {
	kp, err := envelope.ParseSecretKey(clientSecret)
	if err != nil {
		return errorResult("Invalid client key", err)
	}
	server, err := envelope.ParsePublicKey(serverPublic)
	if err != nil {
		return errorResult("Invalid server key", err)
	}
	req, err := envelope.SealRequest(kp, server, []byte(body))
	if err != nil {
		return errorResult("Encryption failed", err)
	}
	return map[string]any{
		"public_key":     req.PublicKey,
		"encrypted_body": req.EncryptedBody,
	}
}

func openResponse(clientSecret, serverPublic, response, signature string) map[string]any {
	kp, err := envelope.ParseSecretKey(clientSecret)
	if err != nil {
		return errorResult("Invalid client key", err)
	}
	server, err := envelope.ParsePublicKey(serverPublic)
	if err != nil {
		return errorResult("Invalid server key", err)
	}
	payload, err := envelope.OpenResponse(kp, server, &envelope.SignedResponse{Response: response, Signature: signature})
	if err != nil {
		return errorResult("Response rejected", err)
	}
	return map[string]any{
		"timestamp": payload.Timestamp,
		"data":      payload.Data,
	}
}
