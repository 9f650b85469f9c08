package store

import (
	"context"
	"fmt"

	"github.com/go-i2p/wgadmin/lib/model"
	"github.com/go-i2p/wgadmin/lib/validation"
)

// UpdatePeer holds optional changes to a peer. Nil fields are left alone.
type UpdatePeer struct {
	Name    *string
	Enabled *bool
}

// ListPeers returns copies of the server's peers in declaration order.
func (s *Store) ListPeers(serverRef string) ([]model.Peer, error) {
	srv, err := s.Snapshot(serverRef)
	if err != nil {
		return nil, err
	}
	if srv.Peers == nil {
		return []model.Peer{}, nil
	}
	return srv.Peers, nil
}

// CreatePeer adds an enabled peer with a freshly generated keypair and the
// next free host address of the server's subnet. Host numbers are never
// reused, even after the peer holding one is deleted.
func (s *Store) CreatePeer(ctx context.Context, serverRef, name string) (model.Peer, error) {
	if err := validation.PeerName("name", name); err != nil {
		return model.Peer{}, err
	}

	kp, err := s.generateKeys(ctx)
	if err != nil {
		return model.Peer{}, fmt.Errorf("creating peer %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.resolveServer(serverRef)
	if err != nil {
		return model.Peer{}, err
	}
	srv := &s.doc.Servers[i]

	address, next, err := srv.Address.Allocate(srv.NextHost)
	if err != nil {
		return model.Peer{}, fmt.Errorf("server %q: %w", srv.Name, err)
	}

	peer := model.Peer{
		ID:         s.newID(),
		Name:       name,
		Address:    address,
		PrivateKey: kp.PrivateKey,
		PublicKey:  kp.PublicKey,
		Enabled:    true,
	}
	srv.Peers = append(srv.Peers, peer)
	srv.NextHost = next

	log.WithField("server", srv.Name).
		WithField("peer", peer.Name).
		WithField("address", peer.Address.String()).
		Info("peer created")

	return peer, s.flush()
}

// GetPeer returns a copy of the referenced peer.
func (s *Store) GetPeer(serverRef, peerRef string) (model.Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, err := s.resolveServer(serverRef)
	if err != nil {
		return model.Peer{}, err
	}
	srv := &s.doc.Servers[i]
	j, err := resolvePeer(srv, peerRef)
	if err != nil {
		return model.Peer{}, err
	}
	return srv.Peers[j], nil
}

// UpdatePeer renames or enables/disables a peer.
func (s *Store) UpdatePeer(serverRef, peerRef string, req UpdatePeer) (model.Peer, error) {
	if req.Name != nil {
		if err := validation.PeerName("name", *req.Name); err != nil {
			return model.Peer{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.resolveServer(serverRef)
	if err != nil {
		return model.Peer{}, err
	}
	srv := &s.doc.Servers[i]
	j, err := resolvePeer(srv, peerRef)
	if err != nil {
		return model.Peer{}, err
	}

	peer := &srv.Peers[j]
	if req.Name != nil {
		peer.Name = *req.Name
	}
	if req.Enabled != nil {
		peer.Enabled = *req.Enabled
	}

	log.WithField("server", srv.Name).
		WithField("peer", peer.Name).
		WithField("enabled", peer.Enabled).
		Info("peer updated")
	return *peer, s.flush()
}

// DeletePeer removes the referenced peer and returns it. Its host number
// is not handed out again.
func (s *Store) DeletePeer(serverRef, peerRef string) (model.Peer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.resolveServer(serverRef)
	if err != nil {
		return model.Peer{}, err
	}
	srv := &s.doc.Servers[i]
	j, err := resolvePeer(srv, peerRef)
	if err != nil {
		return model.Peer{}, err
	}

	peer := srv.Peers[j]
	srv.Peers = append(srv.Peers[:j], srv.Peers[j+1:]...)
	if len(srv.Peers) == 0 {
		srv.Peers = nil
	}

	log.WithField("server", srv.Name).WithField("peer", peer.Name).Info("peer deleted")
	return peer, s.flush()
}
