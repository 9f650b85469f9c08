package core

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/go-i2p/wgadmin/lib/errors"
	"github.com/go-i2p/wgadmin/lib/metrics"
	"github.com/go-i2p/wgadmin/lib/model"
	"github.com/go-i2p/wgadmin/lib/render"
	"github.com/go-i2p/wgadmin/lib/store"
)

// ListPeers returns the server's peers in declaration order.
func (e *Engine) ListPeers(ctx context.Context, serverRef string) (peers []model.Peer, err error) {
	defer func() { metrics.ObserveOperation("list_peers", err) }()
	return e.store.ListPeers(serverRef)
}

// GetPeer returns one peer.
func (e *Engine) GetPeer(ctx context.Context, serverRef, peerRef string) (peer model.Peer, err error) {
	defer func() { metrics.ObserveOperation("get_peer", err) }()
	return e.store.GetPeer(serverRef, peerRef)
}

// CreatePeer adds a peer and, with lifecycle.auto_reload, hot-reloads the
// server if it is up.
func (e *Engine) CreatePeer(ctx context.Context, serverRef, name string) (peer model.Peer, err error) {
	defer func() { metrics.ObserveOperation("create_peer", err) }()

	srv, err := e.store.Snapshot(serverRef)
	if err != nil {
		return model.Peer{}, err
	}
	peer, err = e.store.CreatePeer(ctx, srv.ID, name)
	return peer, e.afterPeerChange(ctx, srv.ID, err)
}

// UpdatePeer renames, enables or disables a peer, then reloads like CreatePeer.
func (e *Engine) UpdatePeer(ctx context.Context, serverRef, peerRef string, req store.UpdatePeer) (peer model.Peer, err error) {
	defer func() { metrics.ObserveOperation("update_peer", err) }()

	srv, err := e.store.Snapshot(serverRef)
	if err != nil {
		return model.Peer{}, err
	}
	peer, err = e.store.UpdatePeer(srv.ID, peerRef, req)
	return peer, e.afterPeerChange(ctx, srv.ID, err)
}

// DeletePeer removes a peer, then reloads like CreatePeer.
func (e *Engine) DeletePeer(ctx context.Context, serverRef, peerRef string) (err error) {
	defer func() { metrics.ObserveOperation("delete_peer", err) }()

	srv, err := e.store.Snapshot(serverRef)
	if err != nil {
		return err
	}
	_, err = e.store.DeletePeer(srv.ID, peerRef)
	return e.afterPeerChange(ctx, srv.ID, err)
}

// afterPeerChange hot-reloads the server once a peer mutation is committed
// in memory, even if it could not be persisted. mutErr is the mutation's
// result and is returned joined with any reload failure.
func (e *Engine) afterPeerChange(ctx context.Context, serverID string, mutErr error) error {
	if mutErr != nil && !apperrors.IsPersistence(mutErr) {
		return mutErr
	}
	if !e.lifecycle.AutoReload {
		return mutErr
	}
	if err := e.autoReload(ctx, serverID); err != nil {
		log.WithField("server_id", serverID).WithError(err).Error("peer change saved but interface not reloaded")
		return errors.Join(mutErr, fmt.Errorf("peer change saved, reload failed: %w", err))
	}
	return mutErr
}

func (e *Engine) autoReload(ctx context.Context, serverID string) error {
	unlock := e.lockServer(serverID)
	defer unlock()

	srv, err := e.store.Snapshot(serverID)
	if err != nil {
		return err
	}
	up, err := e.isLive(ctx, srv.Name)
	if err != nil {
		return err
	}
	if !up {
		return nil
	}
	return e.controller.Reload(ctx, srv)
}

// PeerConfig renders the config a peer imports, with a download filename.
func (e *Engine) PeerConfig(ctx context.Context, serverRef, peerRef string) (pc PeerConfig, err error) {
	defer func() { metrics.ObserveOperation("peer_config", err) }()

	srv, err := e.store.Snapshot(serverRef)
	if err != nil {
		return PeerConfig{}, err
	}
	peer, err := e.store.GetPeer(srv.ID, peerRef)
	if err != nil {
		return PeerConfig{}, err
	}
	return PeerConfig{
		Filename: render.PeerFilename(peer),
		Content:  render.Peer(srv, peer, e.render),
	}, nil
}
