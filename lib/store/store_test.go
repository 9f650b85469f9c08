package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-i2p/wgadmin/lib/command/commandtest"
	apperrors "github.com/go-i2p/wgadmin/lib/errors"
	"github.com/go-i2p/wgadmin/lib/keys"
	"github.com/go-i2p/wgadmin/lib/model"
)

func sequentialIDs() Option {
	var mu sync.Mutex
	n := 0
	return WithIDFunc(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "interfaces.toml")
	s, err := Load(path, keys.NativeProvider{}, sequentialIDs())
	require.NoError(t, err)
	return s
}

func readDocument(t *testing.T, path string) model.Document {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc model.Document
	require.NoError(t, toml.Unmarshal(data, &doc))
	return doc
}

func mustCreate(t *testing.T, s *Store, name string, port int) model.Server {
	t.Helper()
	srv, err := s.Create(context.Background(), CreateServer{Name: name, Address: "10.0.0.x", Port: port})
	require.NoError(t, err)
	return srv
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	assert.Empty(t, s.List())
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "loading must not create the file")
}

func TestLoadRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interfaces.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[servers]\nname ="), 0o600))
	_, err := Load(path, keys.NativeProvider{})
	assert.Error(t, err)
}

func TestCreateServer(t *testing.T) {
	s := newTestStore(t)
	srv := mustCreate(t, s, "wg0", 51820)

	assert.Equal(t, "id-1", srv.ID)
	assert.Equal(t, "wg0", srv.Name)
	assert.Equal(t, 24, srv.Address.SubnetBits())
	assert.Equal(t, 51820, srv.Port)
	assert.Equal(t, 2, srv.NextHost)
	assert.NotEmpty(t, srv.PrivateKey)
	assert.NotEmpty(t, srv.PublicKey)
	assert.Empty(t, srv.Peers)

	doc := readDocument(t, s.Path())
	require.Len(t, doc.Servers, 1)
	assert.Equal(t, srv, doc.Servers[0])
}

func TestCreateServerValidation(t *testing.T) {
	s := newTestStore(t)
	tests := []struct {
		name string
		req  CreateServer
	}{
		{"bad name", CreateServer{Name: "wg 0", Address: "10.0.0.x", Port: 1}},
		{"bad pattern", CreateServer{Name: "wg0", Address: "10.0.0.1", Port: 1}},
		{"bad port", CreateServer{Name: "wg0", Address: "10.0.0.x", Port: 0}},
		{"bad endpoint", CreateServer{Name: "wg0", Address: "10.0.0.x", Port: 1, Endpoint: "a:1"}},
		{"multi-line endpoint", CreateServer{Name: "wg0", Address: "10.0.0.x", Port: 1, Endpoint: "vpn.example\nPostUp=curl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(context.Background(), tt.req)
			assert.True(t, apperrors.IsInvalidInput(err), "got %v", err)
		})
	}
	assert.Empty(t, s.List())
}

func TestCreateServerUnique(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "wg0", 51820)

	_, err := s.Create(context.Background(), CreateServer{Name: "wg0", Address: "10.1.0.x", Port: 51821})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	_, err = s.Create(context.Background(), CreateServer{Name: "wg1", Address: "10.1.0.x", Port: 51820})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	assert.Len(t, s.List(), 1)
}

func TestCreateServerMalformedKeyInsertsNothing(t *testing.T) {
	fake := commandtest.New().Respond("wg genkey", "garbage\n")
	path := filepath.Join(t.TempDir(), "interfaces.toml")
	s := New(path, keys.NewCommandProvider(fake, ""))

	_, err := s.Create(context.Background(), CreateServer{Name: "wg0", Address: "10.0.0.x", Port: 51820})
	require.Error(t, err)
	assert.True(t, apperrors.IsCommandFailed(err))
	assert.Empty(t, s.List())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPeerAddressesAreNeverReused(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "wg0", 51820)
	ctx := context.Background()

	first, err := s.CreatePeer(ctx, "0", "laptop")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2/24", first.Address.String())
	assert.True(t, first.Enabled)

	_, err = s.DeletePeer("0", "0")
	require.NoError(t, err)

	second, err := s.CreatePeer(ctx, "0", "phone")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.3/24", second.Address.String())

	srv, err := s.Get("0")
	require.NoError(t, err)
	assert.Equal(t, 4, srv.NextHost)
	require.Len(t, srv.Peers, 1)
	assert.Equal(t, "phone", srv.Peers[0].Name)
}

func TestPeerAddressesMultiOctet(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(context.Background(), CreateServer{Name: "wg0", Address: "10.8.x.x", Port: 51820})
	require.NoError(t, err)

	p, err := s.CreatePeer(context.Background(), "0", "laptop")
	require.NoError(t, err)
	assert.Equal(t, "10.8.0.2/16", p.Address.String())
}

func TestPeerAddressExhaustion(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "wg0", 51820)

	s.mu.Lock()
	s.doc.Servers[0].NextHost = 254
	s.mu.Unlock()

	p, err := s.CreatePeer(context.Background(), "0", "last")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.254/24", p.Address.String())

	_, err = s.CreatePeer(context.Background(), "0", "one-too-many")
	assert.ErrorIs(t, err, apperrors.ErrExhausted)
}

func TestDeleteReflowsIndices(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "wg0", 51820)
	second := mustCreate(t, s, "wg1", 51821)

	_, err := s.Delete("0")
	require.NoError(t, err)

	got, err := s.Get("0")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = s.Get("1")
	assert.True(t, apperrors.IsNotFound(err))

	doc := readDocument(t, s.Path())
	require.Len(t, doc.Servers, 1)
	assert.Equal(t, "wg1", doc.Servers[0].Name)
}

func TestRefsResolveByID(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "wg0", 51820)
	srv := mustCreate(t, s, "wg1", 51821)

	got, err := s.Get(srv.ID)
	require.NoError(t, err)
	assert.Equal(t, "wg1", got.Name)

	peer, err := s.CreatePeer(context.Background(), srv.ID, "laptop")
	require.NoError(t, err)
	gotPeer, err := s.GetPeer(srv.ID, peer.ID)
	require.NoError(t, err)
	assert.Equal(t, peer, gotPeer)
}

func TestNotFound(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "wg0", 51820)
	ctx := context.Background()

	for _, ref := range []string{"1", "-1", "nope", ""} {
		_, err := s.Get(ref)
		assert.True(t, apperrors.IsNotFound(err), "Get(%q)", ref)
	}

	_, err := s.Delete("5")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = s.CreatePeer(ctx, "5", "laptop")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = s.GetPeer("0", "0")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = s.DeletePeer("0", "0")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = s.UpdatePeer("0", "0", UpdatePeer{})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateServer(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "wg0", 51820)
	mustCreate(t, s, "wg1", 51821)

	name, port, endpoint := "office", 51900, "vpn.example.com"
	srv, err := s.Update("0", UpdateServer{Name: &name, Port: &port, Endpoint: &endpoint})
	require.NoError(t, err)
	assert.Equal(t, "office", srv.Name)
	assert.Equal(t, 51900, srv.Port)
	assert.Equal(t, "vpn.example.com", srv.Endpoint)

	injected := "vpn.example\nPostUp=curl"
	_, err = s.Update("0", UpdateServer{Endpoint: &injected})
	assert.True(t, apperrors.IsInvalidInput(err))

	taken := "wg1"
	_, err = s.Update("0", UpdateServer{Name: &taken})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	address := "172.16.x.x"
	srv, err = s.Update("0", UpdateServer{Address: &address})
	require.NoError(t, err)
	assert.Equal(t, 16, srv.Address.SubnetBits())

	doc := readDocument(t, s.Path())
	assert.Equal(t, "office", doc.Servers[0].Name)
	assert.Equal(t, "172.16.x.x", doc.Servers[0].Address.String())
}

func TestUpdateAddressWithPeersIsRejected(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "wg0", 51820)
	_, err := s.CreatePeer(context.Background(), "0", "laptop")
	require.NoError(t, err)

	address := "10.9.0.x"
	_, err = s.Update("0", UpdateServer{Address: &address})
	assert.True(t, apperrors.IsInvalidState(err))

	same := "10.0.0.x"
	_, err = s.Update("0", UpdateServer{Address: &same})
	assert.NoError(t, err, "restating the current pattern is not a change")
}

func TestUpdatePeer(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "wg0", 51820)
	_, err := s.CreatePeer(context.Background(), "0", "laptop")
	require.NoError(t, err)

	disabled, name := false, "work laptop"
	p, err := s.UpdatePeer("0", "0", UpdatePeer{Name: &name, Enabled: &disabled})
	require.NoError(t, err)
	assert.Equal(t, "work laptop", p.Name)
	assert.False(t, p.Enabled)

	doc := readDocument(t, s.Path())
	assert.False(t, doc.Servers[0].Peers[0].Enabled)

	bad := ""
	_, err = s.UpdatePeer("0", "0", UpdatePeer{Name: &bad})
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestPersistenceFailureKeepsMutation(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "wg0", 51820)

	// A directory where the temp file should go makes every write fail.
	require.NoError(t, os.Mkdir(s.Path()+".tmp", 0o700))

	srv, err := s.Create(context.Background(), CreateServer{Name: "wg1", Address: "10.1.0.x", Port: 51821})
	require.Error(t, err)
	assert.True(t, apperrors.IsPersistence(err))
	assert.Equal(t, "wg1", srv.Name, "the created server is still returned")

	assert.Len(t, s.List(), 2, "in-memory mutation is not rolled back")
	assert.Len(t, readDocument(t, s.Path()).Servers, 1, "file holds the last successful write")
}

func TestReloadFromDisk(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "wg0", 51820)
	_, err := s.CreatePeer(context.Background(), "0", "laptop")
	require.NoError(t, err)

	reloaded, err := Load(s.Path(), keys.NativeProvider{})
	require.NoError(t, err)
	assert.Equal(t, s.Document(), reloaded.Document())
}

func TestLoadNormalizesLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interfaces.toml")
	legacy := strings.Join([]string{
		"[[servers]]",
		"name = 'wg0'",
		"address = '10.0.0.x'",
		"port = 51820",
		"private_key = 'a'",
		"public_key = 'b'",
		"",
		"[[servers.peers]]",
		"name = 'laptop'",
		"address = '10.0.0.5/24'",
		"private_key = 'c'",
		"public_key = 'd'",
		"enabled = true",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	s, err := Load(path, keys.NativeProvider{}, sequentialIDs())
	require.NoError(t, err)

	srv, err := s.Get("0")
	require.NoError(t, err)
	assert.Equal(t, "id-1", srv.ID)
	assert.Equal(t, "id-2", srv.Peers[0].ID)
	assert.Equal(t, 6, srv.NextHost, "allocation continues after the highest host in use")
}

func TestListSummaries(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "wg0", 51820)
	mustCreate(t, s, "wg1", 51821)
	_, err := s.CreatePeer(context.Background(), "1", "laptop")
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, 0, list[0].Index)
	assert.Equal(t, "wg1", list[1].Name)
	assert.Equal(t, 1, list[1].Peers)
	assert.Equal(t, "10.0.0.x", list[1].Address)
}

func TestMemoryStoreNeverWrites(t *testing.T) {
	s := New("", keys.NativeProvider{})
	_, err := s.Create(context.Background(), CreateServer{Name: "wg0", Address: "10.0.0.x", Port: 51820})
	require.NoError(t, err)
	assert.Len(t, s.List(), 1)
}

func TestConcurrentPeerCreationAllocatesDistinctHosts(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "wg0", 51820)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreatePeer(context.Background(), "0", fmt.Sprintf("peer-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	peers, err := s.ListPeers("0")
	require.NoError(t, err)
	require.Len(t, peers, n)
	seen := make(map[string]bool)
	for _, p := range peers {
		assert.False(t, seen[p.Address.String()], "duplicate address %s", p.Address)
		seen[p.Address.String()] = true
	}
}
