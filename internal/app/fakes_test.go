package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"staysense/internal/domain"
	"staysense/internal/storage/memory"
)

// ---- fakes ----

// fakeCache round-trips through JSON like the Redis adapter does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

type fakeGeo struct {
	calls []string
	err   error
}

func (g *fakeGeo) Forward(ctx context.Context, address string) (domain.Point, error) {
	g.calls = append(g.calls, address)
	if g.err != nil {
		return domain.Point{}, g.err
	}
	return domain.Point{Lon: 77.2090057, Lat: 28.6138954}, nil
}

type fakeImages struct {
	mu      sync.Mutex
	stored  map[string][]byte
	deleted []string
	failOn  string
}

func (f *fakeImages) Upload(ctx context.Context, in domain.ImageUpload) (domain.Image, error) {
	if in.Filename == f.failOn {
		return domain.Image{}, domain.Upstream("objectstore", errors.New("bucket unavailable"))
	}
	b, err := io.ReadAll(in.Data)
	if err != nil {
		return domain.Image{}, err
	}
	key := "hotels/" + in.Filename
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stored == nil {
		f.stored = map[string][]byte{}
	}
	f.stored[key] = b
	return domain.Image{URL: "https://cdn.test/" + key, Filename: key}, nil
}

func (f *fakeImages) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeGateway struct {
	got domain.CheckoutRequest
	err error
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	g.got = req
	if g.err != nil {
		return domain.CheckoutSession{}, g.err
	}
	return domain.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.test/cs_test_1"}, nil
}

// ---- helpers ----

func newUser(t *testing.T, s *memory.Store, name string) *domain.Identity {
	t.Helper()
	id, err := s.CreateUser(context.Background(), domain.User{Username: name})
	require.NoError(t, err)
	return &domain.Identity{UserID: id, Username: name}
}
