// Package client talks to a stash server over HTTP, optionally through the
// encrypted envelope.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/nckslvrmn/stash/pkg/envelope"
	"github.com/nckslvrmn/stash/pkg/utils"
)

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8081".
	BaseURL string

	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client

	// ServerPublicKey enables the envelope when set. It is the hex key
	// reported by /info.
	ServerPublicKey string

	// Key is the client's envelope key. A fresh one is generated when
	// ServerPublicKey is set and Key is nil.
	Key *envelope.Keypair
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	serverKey  *btcec.PublicKey
	key        *envelope.Keypair
}

// Credentials is the identifier and authentication key pair naming a secret.
type Credentials struct {
	Identifier        string `json:"identifier"`
	AuthenticationKey string `json:"authentication_key"`
}

// DeriveCredentials hashes a human label and passphrase into credentials.
func DeriveCredentials(label, passphrase string) Credentials {
	return Credentials{
		Identifier:        utils.Sha256Hex([]byte(label)),
		AuthenticationKey: utils.Sha256Hex([]byte(passphrase)),
	}
}

type Secret struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	EncryptedSecret string    `json:"encrypted_secret"`
}

type Info struct {
	Timestamp         int64  `json:"timestamp"`
	Cooldown          int64  `json:"cooldown"`
	SecretMaxLength   int    `json:"secret_max_length"`
	MaxFailedAttempts int    `json:"max_failed_attempts"`
	Message           string `json:"message"`
	PublicKey         string `json:"public_key,omitempty"`
}

func New(config Config) (*Client, error) {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("client: base URL must be http or https (got %q)", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Client{baseURL: baseURL, httpClient: httpClient}
	if config.ServerPublicKey == "" {
		return c, nil
	}

	serverKey, err := envelope.ParsePublicKey(config.ServerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("client: server public key: %w", err)
	}
	c.serverKey = serverKey
	c.key = config.Key
	if c.key == nil {
		if c.key, err = envelope.GenerateKeypair(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Enveloped reports whether requests are encrypted.
func (c *Client) Enveloped() bool {
	return c.serverKey != nil
}

// Store saves encryptedSecret under creds.
func (c *Client) Store(ctx context.Context, creds Credentials, encryptedSecret string) error {
	body := struct {
		Credentials
		EncryptedSecret string `json:"encrypted_secret"`
	}{creds, encryptedSecret}
	_, err := c.post(ctx, "/store", body)
	return err
}

func (c *Client) Fetch(ctx context.Context, creds Credentials) (*Secret, error) {
	return c.lookup(ctx, "/fetch", creds)
}

// Trash returns the secret and deletes it from the server.
func (c *Client) Trash(ctx context.Context, creds Credentials) (*Secret, error) {
	return c.lookup(ctx, "/trash", creds)
}

func (c *Client) lookup(ctx context.Context, path string, creds Credentials) (*Secret, error) {
	data, err := c.post(ctx, path, creds)
	if err != nil {
		return nil, err
	}
	var secret Secret
	if err := json.Unmarshal(data, &secret); err != nil {
		return nil, fmt.Errorf("client: decoding secret: %w", err)
	}
	return &secret, nil
}

func (c *Client) Info(ctx context.Context) (*Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/info", nil)
	if err != nil {
		return nil, err
	}
	data, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("client: decoding info: %w", err)
	}
	return &info, nil
}

// post sends body to path and returns the unwrapped response body.
func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	if c.Enveloped() {
		sealed, err := envelope.SealRequest(c.key, c.serverKey, payload)
		if err != nil {
			return nil, fmt.Errorf("client: sealing request: %w", err)
		}
		if payload, err = json.Marshal(sealed); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := c.do(req)
	if err != nil || !c.Enveloped() || len(data) == 0 {
		return data, err
	}

	var signed envelope.SignedResponse
	if err := json.Unmarshal(data, &signed); err != nil {
		return nil, fmt.Errorf("client: decoding sealed response: %w", err)
	}
	opened, err := envelope.OpenResponse(c.key, c.serverKey, &signed)
	if err != nil {
		return nil, fmt.Errorf("client: opening response: %w", err)
	}
	return []byte(opened.Data), nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("client: reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp, data)
	}
	return data, nil
}
