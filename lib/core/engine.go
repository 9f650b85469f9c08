package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	apperrors "github.com/go-i2p/wgadmin/lib/errors"
	"github.com/go-i2p/wgadmin/lib/lifecycle"
	"github.com/go-i2p/wgadmin/lib/metrics"
	"github.com/go-i2p/wgadmin/lib/model"
	"github.com/go-i2p/wgadmin/lib/render"
	"github.com/go-i2p/wgadmin/lib/status"
	"github.com/go-i2p/wgadmin/lib/store"
)

// ServerDetail is a server together with its observed runtime state.
type ServerDetail struct {
	model.Server
	Up bool `json:"up"`
}

// PeerConfig is a rendered peer-side config ready for download.
type PeerConfig struct {
	Filename string
	Content  []byte
}

// Engine runs the control flow of every operation: mutate the model,
// render from a snapshot, hand the result to the tunnel tools.
//
// Model access goes through the store's lock. Rendering and external
// commands run on snapshots with no model lock held; commands for the same
// server are serialized so two reloads never interleave on one file.
type Engine struct {
	store      *store.Store
	controller *lifecycle.Controller
	prober     status.Prober
	render     render.Options
	lifecycle  LifecycleConfig

	serverLocks sync.Map // server id -> *sync.Mutex
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Store      *store.Store
	Controller *lifecycle.Controller
	Prober     status.Prober
	Render     render.Options
	Lifecycle  LifecycleConfig
}

// NewEngine creates an Engine.
func NewEngine(d Deps) (*Engine, error) {
	if d.Store == nil {
		return nil, errors.New("store is required")
	}
	if d.Controller == nil {
		return nil, errors.New("lifecycle controller is required")
	}
	if d.Prober == nil {
		return nil, errors.New("status prober is required")
	}
	return &Engine{
		store:      d.Store,
		controller: d.Controller,
		prober:     d.Prober,
		render:     d.Render,
		lifecycle:  d.Lifecycle,
	}, nil
}

// Store returns the underlying model store.
func (e *Engine) Store() *store.Store {
	return e.store
}

func (e *Engine) lockServer(id string) func() {
	m, _ := e.serverLocks.LoadOrStore(id, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// isLive reports whether the named interface is up.
func (e *Engine) isLive(ctx context.Context, name string) (bool, error) {
	live, err := e.prober.LiveInterfaces(ctx)
	if err != nil {
		return false, fmt.Errorf("probing interfaces: %w", err)
	}
	return live.Has(name), nil
}

// ListServers returns every server annotated with whether it is up. A
// failing probe is logged and leaves every server marked down.
func (e *Engine) ListServers(ctx context.Context) (list []model.ServerSummary, err error) {
	defer func() { metrics.ObserveOperation("list_servers", err) }()

	list = e.store.List()
	live, perr := e.prober.LiveInterfaces(ctx)
	if perr != nil {
		log.WithError(perr).Warn("could not probe live interfaces")
		return list, nil
	}
	for i := range list {
		list[i].Up = live.Has(list[i].Name)
	}
	return list, nil
}

// CreateServer declares a new server. It is not brought up.
func (e *Engine) CreateServer(ctx context.Context, req store.CreateServer) (srv model.Server, err error) {
	defer func() { metrics.ObserveOperation("create_server", err) }()
	return e.store.Create(ctx, req)
}

// GetServer returns a server and whether its interface is up.
func (e *Engine) GetServer(ctx context.Context, ref string) (d ServerDetail, err error) {
	defer func() { metrics.ObserveOperation("get_server", err) }()

	srv, err := e.store.Get(ref)
	if err != nil {
		return ServerDetail{}, err
	}
	up, perr := e.isLive(ctx, srv.Name)
	if perr != nil {
		log.WithField("server", srv.Name).WithError(perr).Warn("could not probe live interfaces")
	}
	return ServerDetail{Server: srv, Up: up}, nil
}

// UpdateServer changes server fields. A live interface cannot be renamed.
// Other changes reach a running interface on its next start.
func (e *Engine) UpdateServer(ctx context.Context, ref string, req store.UpdateServer) (srv model.Server, err error) {
	defer func() { metrics.ObserveOperation("update_server", err) }()

	before, err := e.store.Snapshot(ref)
	if err != nil {
		return model.Server{}, err
	}
	unlock := e.lockServer(before.ID)
	defer unlock()

	renaming := req.Name != nil && *req.Name != before.Name
	if renaming {
		up, perr := e.isLive(ctx, before.Name)
		if perr != nil {
			log.WithField("server", before.Name).WithError(perr).Warn("interface status unavailable, renaming anyway")
		}
		if up {
			return model.Server{}, fmt.Errorf("server %q is up, stop it before renaming: %w",
				before.Name, apperrors.ErrInvalidState)
		}
	}

	srv, err = e.store.Update(before.ID, req)
	if err != nil && !apperrors.IsPersistence(err) {
		return model.Server{}, err
	}
	if renaming {
		if rerr := e.controller.RemoveConfig(before.Name); rerr != nil {
			log.WithField("server", before.Name).WithError(rerr).Warn("could not remove old config files")
		}
	}
	return srv, err
}

// DeleteServer removes a server. With lifecycle.stop_on_delete the
// interface is taken down first on a best-effort basis: the runtime is not
// consulted, and a failing wg-quick down (usually an interface that is not
// up) is logged and never keeps the server in the model.
func (e *Engine) DeleteServer(ctx context.Context, ref string) (err error) {
	defer func() { metrics.ObserveOperation("delete_server", err) }()

	srv, err := e.store.Snapshot(ref)
	if err != nil {
		return err
	}
	unlock := e.lockServer(srv.ID)
	defer unlock()

	if e.lifecycle.StopOnDelete {
		if serr := e.controller.Stop(ctx, srv); serr != nil {
			log.WithField("server", srv.Name).WithError(serr).Info("interface not taken down before delete")
		}
	}

	_, err = e.store.Delete(srv.ID)
	if err != nil && !apperrors.IsPersistence(err) {
		return err
	}
	e.serverLocks.Delete(srv.ID)
	e.removeConfig(srv.Name)
	return err
}

func (e *Engine) removeConfig(name string) {
	if err := e.controller.RemoveConfig(name); err != nil {
		log.WithField("server", name).WithError(err).Warn("could not remove config files")
	}
}

// StartServer renders the server's config and brings the interface up.
func (e *Engine) StartServer(ctx context.Context, ref string) (err error) {
	defer func() { metrics.ObserveOperation("start_server", err) }()

	srv, err := e.store.Snapshot(ref)
	if err != nil {
		return err
	}
	unlock := e.lockServer(srv.ID)
	defer unlock()
	return e.controller.Start(ctx, srv)
}

// StopServer renders the server's config and takes the interface down.
func (e *Engine) StopServer(ctx context.Context, ref string) (err error) {
	defer func() { metrics.ObserveOperation("stop_server", err) }()

	srv, err := e.store.Snapshot(ref)
	if err != nil {
		return err
	}
	unlock := e.lockServer(srv.ID)
	defer unlock()
	return e.controller.Stop(ctx, srv)
}

// ReloadServer applies the current peer set to the running interface.
// With lifecycle.reload_requires_up, reloading an interface that is down
// fails with ErrInvalidState and runs no commands.
func (e *Engine) ReloadServer(ctx context.Context, ref string) (err error) {
	defer func() { metrics.ObserveOperation("reload_server", err) }()

	srv, err := e.store.Snapshot(ref)
	if err != nil {
		return err
	}
	unlock := e.lockServer(srv.ID)
	defer unlock()

	if e.lifecycle.ReloadRequiresUp {
		up, err := e.isLive(ctx, srv.Name)
		if err != nil {
			return err
		}
		if !up {
			return fmt.Errorf("server %q is not up: %w", srv.Name, apperrors.ErrInvalidState)
		}
	}
	return e.controller.Reload(ctx, srv)
}

// InterfaceConfig renders the server's interface config without writing it.
func (e *Engine) InterfaceConfig(ctx context.Context, ref string) (data []byte, err error) {
	defer func() { metrics.ObserveOperation("interface_config", err) }()

	srv, err := e.store.Snapshot(ref)
	if err != nil {
		return nil, err
	}
	return render.Interface(srv, e.render), nil
}
