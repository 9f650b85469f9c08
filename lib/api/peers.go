package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/go-i2p/wgadmin/lib/store"
)

// CreatePeerRequest is the body of POST /servers/{server}/peers.
type CreatePeerRequest struct {
	Name string `json:"name" validate:"required,peername"`
}

// UpdatePeerRequest is the body of PATCH /servers/{server}/peers/{peer}.
type UpdatePeerRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,peername"`
	Enabled *bool   `json:"enabled,omitempty"`
}

func refs(r *http.Request) (server, peer string) {
	return chi.URLParam(r, "server"), chi.URLParam(r, "peer")
}

func (s *Server) listPeers(w http.ResponseWriter, r *http.Request) {
	server, _ := refs(r)
	peers, err := s.engine.ListPeers(r.Context(), server)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, peers)
}

func (s *Server) createPeer(w http.ResponseWriter, r *http.Request) {
	var req CreatePeerRequest
	if err := s.decode(w, r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	server, _ := refs(r)
	peer, err := s.engine.CreatePeer(r.Context(), server, req.Name)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+peer.ID)
	writeJSON(w, http.StatusCreated, peer)
}

func (s *Server) getPeer(w http.ResponseWriter, r *http.Request) {
	server, ref := refs(r)
	peer, err := s.engine.GetPeer(r.Context(), server, ref)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, peer)
}

func (s *Server) updatePeer(w http.ResponseWriter, r *http.Request) {
	var req UpdatePeerRequest
	if err := s.decode(w, r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	server, ref := refs(r)
	peer, err := s.engine.UpdatePeer(r.Context(), server, ref, store.UpdatePeer{
		Name:    req.Name,
		Enabled: req.Enabled,
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, peer)
}

func (s *Server) deletePeer(w http.ResponseWriter, r *http.Request) {
	server, ref := refs(r)
	if err := s.engine.DeletePeer(r.Context(), server, ref); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// peerConfig returns the peer-side config as a file download.
func (s *Server) peerConfig(w http.ResponseWriter, r *http.Request) {
	server, ref := refs(r)
	pc, err := s.engine.PeerConfig(r.Context(), server, ref)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	attachment(w, pc.Filename)
	writeText(w, pc.Content)
}
