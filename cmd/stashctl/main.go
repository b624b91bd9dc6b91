// stashctl stores and retrieves secrets on a stash server. Secrets are
// sealed locally with the passphrase before they leave the machine; the
// label and passphrase are hashed into the identifier and authentication
// key.
//
//	stashctl [--server URL] [--envelope] store --label L [--secret TEXT]
//	stashctl [--server URL] [--envelope] fetch --label L
//	stashctl [--server URL] [--envelope] trash --label L
//	stashctl [--server URL] info
//	stashctl keygen
//
// The passphrase is read from --passphrase or STASH_PASSPHRASE.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/nckslvrmn/stash/pkg/client"
	"github.com/nckslvrmn/stash/pkg/envelope"
	"github.com/nckslvrmn/stash/pkg/sealer"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	server     string
	envelope   bool
	serverKey  string
	label      string
	passphrase string
	secret     string
	raw        bool
	timeout    time.Duration
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var opts options

	flagSet := pflag.NewFlagSet("stashctl", pflag.ContinueOnError)
	flagSet.StringVar(&opts.server, "server", envOr("STASH_SERVER", "http://localhost:8081"), "server base URL")
	flagSet.BoolVar(&opts.envelope, "envelope", false, "encrypt requests to the key the server reports in /info")
	flagSet.StringVar(&opts.serverKey, "server-key", "", "pin the server's hex public key (implies --envelope)")
	flagSet.StringVarP(&opts.label, "label", "l", "", "name of the secret")
	flagSet.StringVarP(&opts.passphrase, "passphrase", "p", os.Getenv("STASH_PASSPHRASE"), "passphrase guarding the secret")
	flagSet.StringVarP(&opts.secret, "secret", "s", "", "secret to store (default: read stdin)")
	flagSet.BoolVar(&opts.raw, "raw", false, "print the sealed secret instead of opening it")
	flagSet.DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(stdout, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printHelp(stdout, flagSet)
		return nil
	}

	command := flagSet.Arg(0)
	if command == "keygen" {
		return keygen(stdout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	c, err := newClient(ctx, &opts)
	if err != nil {
		return err
	}

	switch command {
	case "info":
		return info(ctx, c, stdout)
	case "store":
		return store(ctx, c, &opts, stdin, stdout)
	case "fetch", "trash":
		return lookup(ctx, c, &opts, command == "trash", stdout)
	}
	return fmt.Errorf("unknown command %q", command)
}

func newClient(ctx context.Context, opts *options) (*client.Client, error) {
	config := client.Config{BaseURL: opts.server, ServerPublicKey: opts.serverKey}
	if opts.envelope && config.ServerPublicKey == "" {
		plain, err := client.New(config)
		if err != nil {
			return nil, err
		}
		info, err := plain.Info(ctx)
		if err != nil {
			return nil, err
		}
		if info.PublicKey == "" {
			return nil, errors.New("server does not offer an envelope key")
		}
		config.ServerPublicKey = info.PublicKey
	}
	return client.New(config)
}

func credentials(opts *options) (client.Credentials, error) {
	if opts.label == "" {
		return client.Credentials{}, errors.New("--label is required")
	}
	if opts.passphrase == "" {
		return client.Credentials{}, errors.New("--passphrase or STASH_PASSPHRASE is required")
	}
	return client.DeriveCredentials(opts.label, opts.passphrase), nil
}

func store(ctx context.Context, c *client.Client, opts *options, stdin io.Reader, stdout io.Writer) error {
	creds, err := credentials(opts)
	if err != nil {
		return err
	}

	plaintext := []byte(opts.secret)
	if opts.secret == "" {
		if plaintext, err = io.ReadAll(stdin); err != nil {
			return fmt.Errorf("reading secret: %w", err)
		}
		plaintext = []byte(strings.TrimRight(string(plaintext), "\r\n"))
	}
	if len(plaintext) == 0 {
		return errors.New("secret is empty")
	}

	sealed, err := sealer.Seal(opts.passphrase, plaintext)
	if err != nil {
		return err
	}
	if err := c.Store(ctx, creds, sealed); err != nil {
		if client.IsDuplicate(err) {
			return fmt.Errorf("a secret is already stored under %q", opts.label)
		}
		return err
	}
	fmt.Fprintf(stdout, "stored %q\n", opts.label)
	return nil
}

func lookup(ctx context.Context, c *client.Client, opts *options, trash bool, stdout io.Writer) error {
	creds, err := credentials(opts)
	if err != nil {
		return err
	}

	var secret *client.Secret
	if trash {
		secret, err = c.Trash(ctx, creds)
	} else {
		secret, err = c.Fetch(ctx, creds)
	}
	if err != nil {
		var apiErr *client.APIError
		if client.IsLockedOut(err) && errors.As(err, &apiErr) {
			return fmt.Errorf("too many failed attempts, retry in %s", apiErr.RetryAfter)
		}
		return err
	}

	if opts.raw {
		fmt.Fprintln(stdout, secret.EncryptedSecret)
		return nil
	}
	plaintext, err := sealer.Open(opts.passphrase, secret.EncryptedSecret)
	if err != nil {
		return fmt.Errorf("opening secret: %w", err)
	}
	fmt.Fprintln(stdout, string(plaintext))
	return nil
}

func info(ctx context.Context, c *client.Client, stdout io.Writer) error {
	i, err := c.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "message:             %s\n", i.Message)
	fmt.Fprintf(stdout, "cooldown:            %dm\n", i.Cooldown)
	fmt.Fprintf(stdout, "max failed attempts: %d\n", i.MaxFailedAttempts)
	fmt.Fprintf(stdout, "secret max length:   %d\n", i.SecretMaxLength)
	if i.PublicKey != "" {
		fmt.Fprintf(stdout, "public key:          %s\n", i.PublicKey)
	}
	return nil
}

func keygen(stdout io.Writer) error {
	kp, err := envelope.GenerateKeypair()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "SERVER_SECRET_KEY=%s\n", kp.SecretKeyHex())
	fmt.Fprintf(stdout, "public key: %s\n", kp.PublicKeyHex())
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: stashctl [flags] <store|fetch|trash|info|keygen>\n\nFlags:\n")
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
