// Package store holds the declarative model of servers and peers and keeps
// it in sync with a TOML document on disk.
//
// One RWMutex covers the whole model. Readers share it; every mutation takes
// it exclusively for validation, the change itself and the flush to disk.
// Keys are generated before the lock is taken, so a slow key provider never
// blocks readers.
//
// References to servers and peers accept either the stable id or the
// positional index into the current ordering. Indices shift after a
// deletion; ids do not.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/go-i2p/wgadmin/lib/addr"
	apperrors "github.com/go-i2p/wgadmin/lib/errors"
	"github.com/go-i2p/wgadmin/lib/keys"
	"github.com/go-i2p/wgadmin/lib/metrics"
	"github.com/go-i2p/wgadmin/lib/model"
)

// Store is the model store.
type Store struct {
	mu   sync.RWMutex
	doc  model.Document
	path string

	keys  keys.Provider
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithIDFunc replaces the id generator, which defaults to random UUIDs.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// New creates an empty store that persists to path. An empty path keeps the
// model in memory only.
func New(path string, provider keys.Provider, opts ...Option) *Store {
	s := &Store{
		path:  path,
		keys:  provider,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the document at path. A missing file yields an empty store.
func Load(path string, provider keys.Provider, opts ...Option) (*Store, error) {
	s := New(path, provider, opts...)
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Info("no model document, starting empty")
			return s, nil
		}
		return nil, fmt.Errorf("reading model: %w", err)
	}

	var doc model.Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing model %s: %w", path, err)
	}
	s.doc = doc
	s.normalize()
	s.updateGauges()

	log.WithField("path", path).
		WithField("servers", len(s.doc.Servers)).
		Info("loaded model document")
	return s, nil
}

// normalize fills in fields that documents written by hand or by older
// versions may lack: ids and the host allocation counter.
func (s *Store) normalize() {
	for i := range s.doc.Servers {
		srv := &s.doc.Servers[i]
		if srv.ID == "" {
			srv.ID = s.newID()
		}
		next := srv.NextHost
		if next < addr.FirstPeerHost {
			next = addr.FirstPeerHost
		}
		for j := range srv.Peers {
			p := &srv.Peers[j]
			if p.ID == "" {
				p.ID = s.newID()
			}
			if h := hostNumber(srv.Address, p); h >= next {
				next = h + 1
			}
		}
		srv.NextHost = next
	}
}

// hostNumber returns the host part of a peer address within the server's
// subnet, or -1 if the address lies outside it.
func hostNumber(p addr.Pattern, peer *model.Peer) int {
	if p.IsZero() || !peer.Address.IsValid() || !p.Contains(peer.Address.Addr()) {
		return -1
	}
	a := peer.Address.Addr().As4()
	n := 0
	for i := 4 - p.Placeholders(); i < 4; i++ {
		n = n<<8 | int(a[i])
	}
	return n
}

// Path returns the document path, empty for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

// flush writes the whole document. The caller holds the write lock.
func (s *Store) flush() error {
	s.updateGauges()
	if s.path == "" {
		return nil
	}

	data, err := toml.Marshal(s.doc)
	if err != nil {
		return s.persistFailed(fmt.Errorf("marshaling model: %w", err))
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return s.persistFailed(fmt.Errorf("creating model directory: %w", err))
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return s.persistFailed(fmt.Errorf("writing model: %w", err))
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return s.persistFailed(fmt.Errorf("renaming model: %w", err))
	}
	return nil
}

func (s *Store) persistFailed(err error) error {
	metrics.PersistFailures.Inc()
	log.WithField("path", s.path).WithError(err).Error("model change kept in memory but not persisted")
	return apperrors.Persistence(err)
}

func (s *Store) updateGauges() {
	peers := 0
	for i := range s.doc.Servers {
		peers += len(s.doc.Servers[i].Peers)
	}
	metrics.Servers.Set(float64(len(s.doc.Servers)))
	metrics.Peers.Set(float64(peers))
}

// Document returns a deep copy of the whole model.
func (s *Store) Document() model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// resolveServer maps a reference to an index. The caller holds a lock.
func (s *Store) resolveServer(ref string) (int, error) {
	for i := range s.doc.Servers {
		if s.doc.Servers[i].ID == ref {
			return i, nil
		}
	}
	if i, err := strconv.Atoi(ref); err == nil && i >= 0 && i < len(s.doc.Servers) {
		return i, nil
	}
	return -1, apperrors.NotFound("server", ref)
}

func resolvePeer(srv *model.Server, ref string) (int, error) {
	for i := range srv.Peers {
		if srv.Peers[i].ID == ref {
			return i, nil
		}
	}
	if i, err := strconv.Atoi(ref); err == nil && i >= 0 && i < len(srv.Peers) {
		return i, nil
	}
	return -1, apperrors.NotFound("peer", ref)
}

func (s *Store) generateKeys(ctx context.Context) (keys.Keypair, error) {
	if s.keys == nil {
		return keys.Keypair{}, fmt.Errorf("%w: no key provider configured", apperrors.ErrInternal)
	}
	return s.keys.GenerateKeypair(ctx)
}
