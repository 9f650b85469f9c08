// Package status reports which WireGuard interfaces are currently up.
//
// Probing is read-only. Results annotate listings and gate hot-reloads;
// they never drive changes to the model.
package status

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl"

	"github.com/go-i2p/wgadmin/lib/command"
)

// Set is a set of interface names.
type Set map[string]struct{}

// NewSet builds a Set from names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the members sorted.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Prober lists live interfaces.
type Prober interface {
	LiveInterfaces(ctx context.Context) (Set, error)
}

// CommandProber asks "wg show interfaces".
type CommandProber struct {
	Runner command.Runner
	// WG is the wg binary. Empty means "wg".
	WG string
}

// NewCommandProber creates a CommandProber.
func NewCommandProber(runner command.Runner, wg string) *CommandProber {
	return &CommandProber{Runner: runner, WG: wg}
}

// LiveInterfaces implements Prober.
func (p *CommandProber) LiveInterfaces(ctx context.Context) (Set, error) {
	wg := p.WG
	if wg == "" {
		wg = "wg"
	}
	out, err := command.Output(ctx, p.Runner, command.New(wg, "show", "interfaces"))
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}
	return Parse(out), nil
}

// Parse splits whitespace-separated interface names.
func Parse(out []byte) Set {
	return NewSet(strings.Fields(string(out))...)
}

// WgctrlProber asks the kernel through wgctrl instead of running wg.
type WgctrlProber struct{}

// LiveInterfaces implements Prober.
func (WgctrlProber) LiveInterfaces(ctx context.Context) (Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, err := wgctrl.New()
	if err != nil {
		return nil, fmt.Errorf("opening wgctrl: %w", err)
	}
	defer client.Close()

	devices, err := client.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	s := make(Set, len(devices))
	for _, d := range devices {
		s[d.Name] = struct{}{}
	}
	log.WithField("devices", len(devices)).Debug("probed wireguard devices")
	return s, nil
}

// Static is a Prober with a fixed answer.
type Static Set

// LiveInterfaces implements Prober.
func (s Static) LiveInterfaces(context.Context) (Set, error) {
	out := make(Set, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out, nil
}
