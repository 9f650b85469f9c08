// Package model defines the declarative state of the control plane: servers
// (tunnel interfaces) and the peers attached to them.
//
// The types carry toml tags for the durable document and json tags for the
// HTTP layer. Optional fields are omitted from the document when empty.
package model

import (
	"net/netip"

	"github.com/go-i2p/wgadmin/lib/addr"
)

// Document is the whole persisted model.
type Document struct {
	Servers []Server `toml:"servers,omitempty" json:"servers"`
}

// Server is a declared tunnel interface.
type Server struct {
	ID         string       `toml:"id" json:"id"`
	Name       string       `toml:"name" json:"name"`
	Address    addr.Pattern `toml:"address" json:"address"`
	Port       int          `toml:"port" json:"port"`
	PrivateKey string       `toml:"private_key" json:"private_key"`
	PublicKey  string       `toml:"public_key" json:"public_key"`
	Endpoint   string       `toml:"endpoint,omitempty" json:"endpoint,omitempty"`
	PostUp     string       `toml:"post_up,omitempty" json:"post_up,omitempty"`
	PostDown   string       `toml:"post_down,omitempty" json:"post_down,omitempty"`
	NextHost   int          `toml:"next_host" json:"next_host"`
	Peers      []Peer       `toml:"peers,omitempty" json:"peers"`
}

// Peer is a remote endpoint authorized on a server.
type Peer struct {
	ID         string       `toml:"id" json:"id"`
	Name       string       `toml:"name" json:"name"`
	Address    netip.Prefix `toml:"address" json:"address"`
	PrivateKey string       `toml:"private_key" json:"private_key"`
	PublicKey  string       `toml:"public_key" json:"public_key"`
	Enabled    bool         `toml:"enabled" json:"enabled"`
}

// ServerSummary is the listing view of a server.
type ServerSummary struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Port      int    `json:"port"`
	PublicKey string `json:"public_key"`
	Peers     int    `json:"peers"`
	// Up is filled in from the live runtime, never persisted.
	Up bool `json:"up"`
}

// Summary returns the listing view of s at position index.
func (s *Server) Summary(index int) ServerSummary {
	return ServerSummary{
		Index:     index,
		ID:        s.ID,
		Name:      s.Name,
		Address:   s.Address.String(),
		Port:      s.Port,
		PublicKey: s.PublicKey,
		Peers:     len(s.Peers),
	}
}

// EnabledPeers returns the peers that belong in the interface config, in
// declaration order.
func (s *Server) EnabledPeers() []Peer {
	out := make([]Peer, 0, len(s.Peers))
	for _, p := range s.Peers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a deep copy of s.
func (s *Server) Clone() Server {
	c := *s
	if c.Peers != nil {
		c.Peers = append([]Peer(nil), c.Peers...)
	}
	return c
}

// Clone returns a deep copy of d.
func (d *Document) Clone() Document {
	if d.Servers == nil {
		return Document{}
	}
	servers := make([]Server, len(d.Servers))
	for i := range d.Servers {
		servers[i] = d.Servers[i].Clone()
	}
	return Document{Servers: servers}
}
