package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/go-i2p/wgadmin/lib/store"
)

// CreateServerRequest is the body of POST /servers.
type CreateServerRequest struct {
	Name     string `json:"name" validate:"required,ifname"`
	Address  string `json:"address" validate:"required,addrpattern"`
	Port     int    `json:"port" validate:"min=1,max=65535"`
	Endpoint string `json:"endpoint,omitempty" validate:"omitempty,endpointhost"`
	PostUp   string `json:"post_up,omitempty" validate:"omitempty,hook"`
	PostDown string `json:"post_down,omitempty" validate:"omitempty,hook"`
}

// UpdateServerRequest is the body of PATCH /servers/{server}. Absent
// fields are left unchanged.
type UpdateServerRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,ifname"`
	Address  *string `json:"address,omitempty" validate:"omitempty,addrpattern"`
	Port     *int    `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	Endpoint *string `json:"endpoint,omitempty" validate:"omitempty,endpointhost"`
	PostUp   *string `json:"post_up,omitempty" validate:"omitempty,hook"`
	PostDown *string `json:"post_down,omitempty" validate:"omitempty,hook"`
}

func (s *Server) listServers(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.ListServers(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createServer(w http.ResponseWriter, r *http.Request) {
	var req CreateServerRequest
	if err := s.decode(w, r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	srv, err := s.engine.CreateServer(r.Context(), store.CreateServer{
		Name:     req.Name,
		Address:  req.Address,
		Port:     req.Port,
		Endpoint: req.Endpoint,
		PostUp:   req.PostUp,
		PostDown: req.PostDown,
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+srv.ID)
	writeJSON(w, http.StatusCreated, srv)
}

func (s *Server) getServer(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.GetServer(r.Context(), chi.URLParam(r, "server"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) updateServer(w http.ResponseWriter, r *http.Request) {
	var req UpdateServerRequest
	if err := s.decode(w, r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	srv, err := s.engine.UpdateServer(r.Context(), chi.URLParam(r, "server"), store.UpdateServer{
		Name:     req.Name,
		Address:  req.Address,
		Port:     req.Port,
		Endpoint: req.Endpoint,
		PostUp:   req.PostUp,
		PostDown: req.PostDown,
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

func (s *Server) deleteServer(w http.ResponseWriter, r *http.Request) {
	s.runtime(w, r, s.engine.DeleteServer)
}

func (s *Server) startServer(w http.ResponseWriter, r *http.Request) {
	s.runtime(w, r, s.engine.StartServer)
}

func (s *Server) stopServer(w http.ResponseWriter, r *http.Request) {
	s.runtime(w, r, s.engine.StopServer)
}

func (s *Server) reloadServer(w http.ResponseWriter, r *http.Request) {
	s.runtime(w, r, s.engine.ReloadServer)
}

// runtime runs a body-less server operation and answers 204 on success.
func (s *Server) runtime(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, ref string) error) {
	if err := op(r.Context(), chi.URLParam(r, "server")); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) interfaceConfig(w http.ResponseWriter, r *http.Request) {
	data, err := s.engine.InterfaceConfig(r.Context(), chi.URLParam(r, "server"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeText(w, data)
}
