// Package render turns model snapshots into wg-quick configuration text.
//
// Rendering is pure: the same snapshot and Options always produce the same
// bytes. The output is the INI-like wg-quick format, which repeats [Peer]
// sections and so cannot be produced by a TOML encoder.
package render

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-i2p/wgadmin/lib/model"
)

// Defaults for Options.
const (
	DefaultEgressInterface = "eth0"
	DefaultKeepalive       = 25
	DefaultEndpointHost    = "127.0.0.1"
)

// Options holds deployment-specific values that are not part of the model.
type Options struct {
	// PostUp and PostDown are the default interface hooks. Servers with
	// their own hooks override them. %i is expanded by wg-quick.
	PostUp   string
	PostDown string
	// EgressInterface is substituted for {egress} in the default hooks.
	EgressInterface string
	// EndpointHost is the host peers dial when a server has no endpoint.
	EndpointHost string
	// Keepalive is the PersistentKeepalive written into peer configs.
	// Zero omits the line.
	Keepalive int
}

// DefaultPostUp forwards traffic from the tunnel and masquerades it out of
// the egress interface.
const DefaultPostUp = "iptables -A FORWARD -i %i -j ACCEPT; iptables -t nat -A POSTROUTING -o {egress} -j MASQUERADE"

// DefaultPostDown removes the rules added by DefaultPostUp.
const DefaultPostDown = "iptables -D FORWARD -i %i -j ACCEPT; iptables -t nat -D POSTROUTING -o {egress} -j MASQUERADE"

// DefaultOptions returns Options with the built-in hooks and keepalive.
func DefaultOptions() Options {
	return Options{
		PostUp:          DefaultPostUp,
		PostDown:        DefaultPostDown,
		EgressInterface: DefaultEgressInterface,
		EndpointHost:    DefaultEndpointHost,
		Keepalive:       DefaultKeepalive,
	}
}

func (o Options) hook(override, def string) string {
	if override != "" {
		return override
	}
	egress := o.EgressInterface
	if egress == "" {
		egress = DefaultEgressInterface
	}
	return strings.ReplaceAll(def, "{egress}", egress)
}

// Interface renders the config of a server's own interface: an [Interface]
// section followed by one [Peer] per enabled peer, in model order.
func Interface(srv model.Server, opts Options) []byte {
	var b strings.Builder

	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "Address = %s\n", srv.Address.ServerAddr())
	fmt.Fprintf(&b, "ListenPort = %d\n", srv.Port)
	fmt.Fprintf(&b, "PrivateKey = %s\n", srv.PrivateKey)
	if h := opts.hook(srv.PostUp, opts.PostUp); h != "" {
		fmt.Fprintf(&b, "PostUp = %s\n", h)
	}
	if h := opts.hook(srv.PostDown, opts.PostDown); h != "" {
		fmt.Fprintf(&b, "PostDown = %s\n", h)
	}

	for _, p := range srv.EnabledPeers() {
		b.WriteString("\n[Peer]\n")
		fmt.Fprintf(&b, "PublicKey = %s\n", p.PublicKey)
		fmt.Fprintf(&b, "AllowedIPs = %s/32\n", p.Address.Addr())
	}

	return []byte(b.String())
}

// Peer renders a config the remote end can import directly. It routes the
// server's whole subnet through the tunnel.
func Peer(srv model.Server, peer model.Peer, opts Options) []byte {
	var b strings.Builder

	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "Address = %s\n", peer.Address)
	fmt.Fprintf(&b, "PrivateKey = %s\n", peer.PrivateKey)

	b.WriteString("\n[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", srv.PublicKey)
	fmt.Fprintf(&b, "AllowedIPs = %s\n", srv.Address.Network())
	fmt.Fprintf(&b, "Endpoint = %s\n", Endpoint(srv, opts))
	if opts.Keepalive > 0 {
		fmt.Fprintf(&b, "PersistentKeepalive = %d\n", opts.Keepalive)
	}

	return []byte(b.String())
}

// Endpoint returns host:port for reaching srv, bracketing IPv6 hosts. A
// host that spans lines or contains a space is skipped, so it can never add
// directives to the rendered file.
func Endpoint(srv model.Server, opts Options) string {
	host := srv.Endpoint
	if !usableHost(host) {
		host = opts.EndpointHost
	}
	if !usableHost(host) {
		host = DefaultEndpointHost
	}
	return net.JoinHostPort(host, strconv.Itoa(srv.Port))
}

func usableHost(host string) bool {
	if host == "" {
		return false
	}
	return strings.IndexFunc(host, func(r rune) bool { return unicode.IsControl(r) || unicode.IsSpace(r) }) < 0
}

// PeerFilename derives a download filename from the peer's name. Characters
// other than letters, digits, '-', '_' and '.' become '_'.
func PeerFilename(peer model.Peer) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, peer.Name)
	name = strings.Trim(name, ".")
	if name == "" {
		name = "peer"
	}
	return name + ".conf"
}
