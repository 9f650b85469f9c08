// Package keys obtains WireGuard keypairs for new servers and peers.
package keys

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-i2p/wgadmin/lib/command"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Keypair is a base64-encoded WireGuard key pair.
type Keypair struct {
	PrivateKey string
	PublicKey  string
}

// Provider generates keypairs.
type Provider interface {
	GenerateKeypair(ctx context.Context) (Keypair, error)
}

// CommandProvider generates keys with "wg genkey" and derives the public
// key by piping the private key into "wg pubkey".
type CommandProvider struct {
	Runner command.Runner
	// WG is the wg binary. Empty means "wg".
	WG string
}

// NewCommandProvider creates a CommandProvider using runner.
func NewCommandProvider(runner command.Runner, wg string) *CommandProvider {
	return &CommandProvider{Runner: runner, WG: wg}
}

func (p *CommandProvider) wg() string {
	if p.WG == "" {
		return "wg"
	}
	return p.WG
}

// GenerateKeypair implements Provider. Any spawn failure, non-zero exit or
// malformed output is returned as an error.
func (p *CommandProvider) GenerateKeypair(ctx context.Context) (Keypair, error) {
	out, err := command.Output(ctx, p.Runner, command.New(p.wg(), "genkey"))
	if err != nil {
		return Keypair{}, fmt.Errorf("generate private key: %w", err)
	}
	priv, err := parse(out)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate private key: %w", err)
	}

	out, err = command.Output(ctx, p.Runner,
		command.New(p.wg(), "pubkey").WithStdin([]byte(priv.String()+"\n")))
	if err != nil {
		return Keypair{}, fmt.Errorf("derive public key: %w", err)
	}
	pub, err := parse(out)
	if err != nil {
		return Keypair{}, fmt.Errorf("derive public key: %w", err)
	}

	log.WithField("public_key", pub.String()).Debug("generated keypair")
	return Keypair{PrivateKey: priv.String(), PublicKey: pub.String()}, nil
}

// NativeProvider generates keys in-process.
type NativeProvider struct{}

// GenerateKeypair implements Provider.
func (NativeProvider) GenerateKeypair(ctx context.Context) (Keypair, error) {
	if err := ctx.Err(); err != nil {
		return Keypair{}, err
	}
	priv, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return Keypair{}, fmt.Errorf("generate private key: %w", err)
	}
	return Keypair{PrivateKey: priv.String(), PublicKey: priv.PublicKey().String()}, nil
}

// PublicKey derives the public key of a base64 private key.
func PublicKey(private string) (string, error) {
	k, err := wgtypes.ParseKey(strings.TrimSpace(private))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return k.PublicKey().String(), nil
}

func parse(out []byte) (wgtypes.Key, error) {
	s := strings.TrimSpace(string(out))
	k, err := wgtypes.ParseKey(s)
	if err != nil {
		return wgtypes.Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, s)
	}
	return k, nil
}
