// Package addr implements the address patterns servers are declared with.
//
// A pattern is a dotted IPv4 template whose trailing octets are the
// placeholder "x", for example "10.0.0.x" or "10.8.x.x". The placeholders
// span the host part of the subnet: with n placeholders the subnet is a
// /(32-8n) and host numbers run from 0 (the network) to 2^(8n)-1 (broadcast).
package addr

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	apperrors "github.com/go-i2p/wgadmin/lib/errors"
)

// Placeholder is the octet token that marks a host position.
const Placeholder = "x"

// ServerHost is the host number reserved for the server itself.
const ServerHost = 1

// FirstPeerHost is the first host number handed to a peer.
const FirstPeerHost = 2

// Pattern is a parsed address pattern. The zero value is invalid.
type Pattern struct {
	raw          string
	network      uint32
	placeholders int
}

// ParsePattern parses s, accepting 1 to 3 trailing placeholders.
func ParsePattern(s string) (Pattern, error) {
	s = strings.TrimSpace(s)
	octets := strings.Split(s, ".")
	if len(octets) != 4 {
		return Pattern{}, apperrors.Invalid("address pattern %q: want four dotted octets", s)
	}

	var (
		network uint32
		n       int
	)
	for i, o := range octets {
		if strings.EqualFold(o, Placeholder) {
			n++
			network <<= 8
			continue
		}
		if n > 0 {
			return Pattern{}, apperrors.Invalid("address pattern %q: placeholders must be the trailing octets", s)
		}
		v, err := strconv.ParseUint(o, 10, 8)
		if err != nil || (len(o) > 1 && o[0] == '0') {
			return Pattern{}, apperrors.Invalid("address pattern %q: bad octet %d %q", s, i+1, o)
		}
		network = network<<8 | uint32(v)
	}
	if n == 0 {
		return Pattern{}, apperrors.Invalid("address pattern %q: no %q placeholder", s, Placeholder)
	}
	if n > 3 {
		return Pattern{}, apperrors.Invalid("address pattern %q: at most three placeholders", s)
	}

	return Pattern{
		raw:          strings.ToLower(s),
		network:      network,
		placeholders: n,
	}, nil
}

// MustParsePattern is like ParsePattern but panics on error.
func MustParsePattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

// IsZero reports whether p was never parsed.
func (p Pattern) IsZero() bool {
	return p.placeholders == 0
}

// String returns the pattern as written, lower-cased.
func (p Pattern) String() string {
	return p.raw
}

// Placeholders returns the number of host octets.
func (p Pattern) Placeholders() int {
	return p.placeholders
}

// SubnetBits returns the prefix length, 32 - 8n.
func (p Pattern) SubnetBits() int {
	return 32 - 8*p.placeholders
}

// MaxHost returns the highest allocatable host number. The broadcast host
// is excluded.
func (p Pattern) MaxHost() int {
	return 1<<(8*p.placeholders) - 2
}

// Host returns the address of host number h inside the subnet.
func (p Pattern) Host(h int) (netip.Addr, error) {
	if p.IsZero() {
		return netip.Addr{}, apperrors.Invalid("empty address pattern")
	}
	if h < 0 || h > p.MaxHost()+1 {
		return netip.Addr{}, fmt.Errorf("host %d outside %s: %w", h, p.raw, apperrors.ErrExhausted)
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], p.network|uint32(h))
	return netip.AddrFrom4(b), nil
}

// HostPrefix returns host h with the subnet's prefix length, e.g. 10.0.0.2/24.
func (p Pattern) HostPrefix(h int) (netip.Prefix, error) {
	a, err := p.Host(h)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(a, p.SubnetBits()), nil
}

// Network returns the whole subnet, host 0.
func (p Pattern) Network() netip.Prefix {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], p.network)
	return netip.PrefixFrom(netip.AddrFrom4(b), p.SubnetBits())
}

// ServerAddr returns the server's interface address, host 1 with the
// subnet's prefix length.
func (p Pattern) ServerAddr() netip.Prefix {
	pfx, _ := p.HostPrefix(ServerHost)
	return pfx
}

// Allocate returns the address for host next and the following counter
// value. It fails with ErrExhausted once the subnet is used up.
func (p Pattern) Allocate(next int) (netip.Prefix, int, error) {
	if next < FirstPeerHost {
		next = FirstPeerHost
	}
	if next > p.MaxHost() {
		return netip.Prefix{}, next, fmt.Errorf("subnet %s: %w", p.Network(), apperrors.ErrExhausted)
	}
	pfx, err := p.HostPrefix(next)
	if err != nil {
		return netip.Prefix{}, next, err
	}
	return pfx, next + 1, nil
}

// Contains reports whether a lies inside the pattern's subnet.
func (p Pattern) Contains(a netip.Addr) bool {
	return p.Network().Contains(a)
}

// MarshalText implements encoding.TextMarshaler.
func (p Pattern) MarshalText() ([]byte, error) {
	return []byte(p.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pattern) UnmarshalText(text []byte) error {
	parsed, err := ParsePattern(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
