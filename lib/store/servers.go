package store

import (
	"context"
	"fmt"

	"github.com/go-i2p/wgadmin/lib/addr"
	apperrors "github.com/go-i2p/wgadmin/lib/errors"
	"github.com/go-i2p/wgadmin/lib/model"
	"github.com/go-i2p/wgadmin/lib/validation"
)

// CreateServer holds the fields of a new server.
type CreateServer struct {
	Name     string
	Address  string
	Port     int
	Endpoint string
	PostUp   string
	PostDown string
}

func (c CreateServer) validate() error {
	return validation.All(
		func() error { return validation.InterfaceName("name", c.Name) },
		func() error { return validation.AddressPattern("address", c.Address) },
		func() error { return validation.Port("port", c.Port) },
		func() error { return validation.Host("endpoint", c.Endpoint) },
		func() error { return validation.Hook("post_up", c.PostUp) },
		func() error { return validation.Hook("post_down", c.PostDown) },
	)
}

// UpdateServer holds optional changes to a server. Nil fields are left alone.
type UpdateServer struct {
	Name     *string
	Address  *string
	Port     *int
	Endpoint *string
	PostUp   *string
	PostDown *string
}

func (u UpdateServer) validate() error {
	var errs validation.Errors
	if u.Name != nil {
		errs.Add(validation.InterfaceName("name", *u.Name))
	}
	if u.Address != nil {
		errs.Add(validation.AddressPattern("address", *u.Address))
	}
	if u.Port != nil {
		errs.Add(validation.Port("port", *u.Port))
	}
	if u.Endpoint != nil {
		errs.Add(validation.Host("endpoint", *u.Endpoint))
	}
	if u.PostUp != nil {
		errs.Add(validation.Hook("post_up", *u.PostUp))
	}
	if u.PostDown != nil {
		errs.Add(validation.Hook("post_down", *u.PostDown))
	}
	return errs.First()
}

// List returns a summary of every server in declaration order.
func (s *Store) List() []model.ServerSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ServerSummary, len(s.doc.Servers))
	for i := range s.doc.Servers {
		out[i] = s.doc.Servers[i].Summary(i)
	}
	return out
}

// Create adds a server with a freshly generated keypair and persists the
// model. If persisting fails the server is kept and returned together with
// an error matching ErrPersistence.
func (s *Store) Create(ctx context.Context, req CreateServer) (model.Server, error) {
	if err := req.validate(); err != nil {
		return model.Server{}, err
	}
	pattern, err := addr.ParsePattern(req.Address)
	if err != nil {
		return model.Server{}, err
	}

	kp, err := s.generateKeys(ctx)
	if err != nil {
		return model.Server{}, fmt.Errorf("creating server %q: %w", req.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUnique(-1, req.Name, req.Port); err != nil {
		return model.Server{}, err
	}

	srv := model.Server{
		ID:         s.newID(),
		Name:       req.Name,
		Address:    pattern,
		Port:       req.Port,
		PrivateKey: kp.PrivateKey,
		PublicKey:  kp.PublicKey,
		Endpoint:   req.Endpoint,
		PostUp:     req.PostUp,
		PostDown:   req.PostDown,
		NextHost:   addr.FirstPeerHost,
	}
	s.doc.Servers = append(s.doc.Servers, srv)

	log.WithField("server", srv.Name).
		WithField("address", srv.Address.String()).
		WithField("port", srv.Port).
		Info("server created")

	return srv.Clone(), s.flush()
}

// checkUnique rejects a name or listen port already used by a server other
// than the one at skip. The caller holds a lock.
func (s *Store) checkUnique(skip int, name string, port int) error {
	for i := range s.doc.Servers {
		if i == skip {
			continue
		}
		if s.doc.Servers[i].Name == name {
			return fmt.Errorf("server %q: %w", name, apperrors.ErrAlreadyExists)
		}
		if s.doc.Servers[i].Port == port {
			return fmt.Errorf("listen port %d used by server %q: %w", port, s.doc.Servers[i].Name, apperrors.ErrAlreadyExists)
		}
	}
	return nil
}

// Get returns a copy of the referenced server.
func (s *Store) Get(ref string) (model.Server, error) {
	return s.Snapshot(ref)
}

// Snapshot returns a deep copy of the referenced server that stays valid
// after the lock is released, for rendering and running commands.
func (s *Store) Snapshot(ref string) (model.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, err := s.resolveServer(ref)
	if err != nil {
		return model.Server{}, err
	}
	return s.doc.Servers[i].Clone(), nil
}

// Update applies the non-nil fields of req. The address pattern can only
// change while the server has no peers.
func (s *Store) Update(ref string, req UpdateServer) (model.Server, error) {
	if err := req.validate(); err != nil {
		return model.Server{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.resolveServer(ref)
	if err != nil {
		return model.Server{}, err
	}
	srv := s.doc.Servers[i]

	name, port := srv.Name, srv.Port
	if req.Name != nil {
		name = *req.Name
	}
	if req.Port != nil {
		port = *req.Port
	}
	if err := s.checkUnique(i, name, port); err != nil {
		return model.Server{}, err
	}

	if req.Address != nil {
		pattern, err := addr.ParsePattern(*req.Address)
		if err != nil {
			return model.Server{}, err
		}
		if pattern.String() != srv.Address.String() {
			if len(srv.Peers) > 0 {
				return model.Server{}, fmt.Errorf("server %q has %d peers, cannot change address: %w",
					srv.Name, len(srv.Peers), apperrors.ErrInvalidState)
			}
			srv.Address = pattern
			srv.NextHost = addr.FirstPeerHost
		}
	}

	srv.Name = name
	srv.Port = port
	if req.Endpoint != nil {
		srv.Endpoint = *req.Endpoint
	}
	if req.PostUp != nil {
		srv.PostUp = *req.PostUp
	}
	if req.PostDown != nil {
		srv.PostDown = *req.PostDown
	}
	s.doc.Servers[i] = srv

	log.WithField("server", srv.Name).Info("server updated")
	return srv.Clone(), s.flush()
}

// Delete removes the referenced server and returns it.
func (s *Store) Delete(ref string) (model.Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.resolveServer(ref)
	if err != nil {
		return model.Server{}, err
	}
	srv := s.doc.Servers[i]
	s.doc.Servers = append(s.doc.Servers[:i], s.doc.Servers[i+1:]...)

	log.WithField("server", srv.Name).Info("server deleted")
	return srv, s.flush()
}
