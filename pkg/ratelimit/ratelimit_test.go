package ratelimit

import (
	"context"
	"errors"
	"testing"

	extratelimit "github.com/vnmchuo/ratelimiter"
)

type mockStore struct {
	allowed bool
	err     error
	lastKey string
	lastN   int
}

func (m *mockStore) AllowN(ctx context.Context, key string, n int) (*extratelimit.Result, error) {
	m.lastKey, m.lastN = key, n
	return &extratelimit.Result{Allowed: m.allowed}, m.err
}

func (m *mockStore) Allow(ctx context.Context, key string) (*extratelimit.Result, error) {
	return m.AllowN(ctx, key, 1)
}

func (m *mockStore) Status(ctx context.Context, key string) (*extratelimit.Result, error) {
	m.lastKey = key
	return &extratelimit.Result{Allowed: m.allowed}, m.err
}

func TestAllow(t *testing.T) {
	store := &mockStore{allowed: true}
	l := NewTestLimiter(store)

	ok, err := l.Allow(context.Background(), "10.0.0.1", 1000)
	if err != nil || !ok {
		t.Fatalf("Expected allowed, got %v %v", ok, err)
	}
	if store.lastKey != "ratelimit:letter:10.0.0.1" {
		t.Errorf("Unexpected key: %s", store.lastKey)
	}
	if store.lastN != 1000 {
		t.Errorf("Expected 1000 tokens charged, got %d", store.lastN)
	}
}

func TestAllow_Error(t *testing.T) {
	l := NewTestLimiter(&mockStore{allowed: true, err: errors.New("redis down")})
	ok, err := l.Allow(context.Background(), "c", 1)
	if err == nil || ok {
		t.Errorf("Expected error and not allowed, got %v %v", ok, err)
	}
}

func TestAllow_NilLimiter(t *testing.T) {
	var l *Limiter
	ok, err := l.Allow(context.Background(), "c", 1)
	if err != nil || !ok {
		t.Errorf("Expected nil limiter to allow, got %v %v", ok, err)
	}
}

func TestStatus(t *testing.T) {
	store := &mockStore{allowed: true}
	l := NewTestLimiter(store)

	res, err := l.Status(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if res == nil || !res.Allowed {
		t.Errorf("Expected an allowed result, got %+v", res)
	}
	if store.lastKey != "ratelimit:letter:10.0.0.1" {
		t.Errorf("Unexpected key: %s", store.lastKey)
	}
}

func TestStatus_NilLimiter(t *testing.T) {
	var l *Limiter
	res, err := l.Status(context.Background(), "c")
	if err != nil || res != nil {
		t.Errorf("Expected nil result from nil limiter, got %+v %v", res, err)
	}
}
