package keys

import (
	"context"
	"testing"

	"github.com/go-i2p/wgadmin/lib/command"
	"github.com/go-i2p/wgadmin/lib/command/commandtest"
	apperrors "github.com/go-i2p/wgadmin/lib/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

func TestCommandProviderGeneratesMatchingPair(t *testing.T) {
	fake := commandtest.New().Keys()
	p := NewCommandProvider(fake, "")

	kp, err := p.GenerateKeypair(context.Background())
	require.NoError(t, err)

	priv, err := wgtypes.ParseKey(kp.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, priv.PublicKey().String(), kp.PublicKey)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "wg genkey", calls[0].String())
	assert.Equal(t, "wg pubkey", calls[1].String())
	assert.Equal(t, kp.PrivateKey+"\n", string(calls[1].Stdin))
}

func TestCommandProviderCustomBinary(t *testing.T) {
	fake := commandtest.New()
	priv, err := wgtypes.GeneratePrivateKey()
	require.NoError(t, err)
	fake.Respond("/usr/bin/wg genkey", priv.String()+"\n")
	fake.Respond("/usr/bin/wg pubkey", priv.PublicKey().String()+"\n")

	kp, err := NewCommandProvider(fake, "/usr/bin/wg").GenerateKeypair(context.Background())
	require.NoError(t, err)
	assert.Equal(t, priv.String(), kp.PrivateKey)
}

func TestCommandProviderFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*commandtest.Fake)
		check func(t *testing.T, err error)
	}{
		{
			name:  "genkey exits non-zero",
			setup: func(f *commandtest.Fake) { f.Fail("wg genkey", "wg: permission denied", 1) },
			check: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsCommandFailed(err))
				assert.Contains(t, err.Error(), "wg: permission denied")
			},
		},
		{
			name:  "wg missing",
			setup: func(f *commandtest.Fake) { f.Unavailable("wg") },
			check: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsCommandUnavailable(err))
			},
		},
		{
			name:  "malformed genkey output",
			setup: func(f *commandtest.Fake) { f.Respond("wg genkey", "not-a-key\n") },
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedKey)
				assert.True(t, apperrors.IsCommandFailed(err))
			},
		},
		{
			name: "malformed pubkey output",
			setup: func(f *commandtest.Fake) {
				f.Keys()
				f.Respond("wg pubkey", "\n")
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedKey)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := commandtest.New()
			tt.setup(fake)
			_, err := NewCommandProvider(fake, "").GenerateKeypair(context.Background())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestCommandProviderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCommandProvider(commandtest.New().Keys(), "").GenerateKeypair(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNativeProvider(t *testing.T) {
	kp, err := NativeProvider{}.GenerateKeypair(context.Background())
	require.NoError(t, err)

	pub, err := PublicKey(kp.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, pub, kp.PublicKey)
}

func TestPublicKeyRejectsGarbage(t *testing.T) {
	_, err := PublicKey("nope")
	assert.ErrorIs(t, err, ErrMalformedKey)
}

var _ Provider = (*CommandProvider)(nil)
var _ Provider = NativeProvider{}
var _ command.Runner = (*commandtest.Fake)(nil)
