// Package store keeps per-visitor key/value state: the selection and order
// keys a browser would otherwise hold in its local storage.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Keys shared with the storefront pages.
const (
	KeySelectedBrand = "selectedBrand"
	KeySelectedModel = "selectedModel"
	KeySelectedYear  = "selectedYear"
	KeyOrders        = "orders"
	KeyLastOrder     = "lastOrder"
)

// ErrNoVisitor is returned when an operation is attempted without a visitor id.
var ErrNoVisitor = errors.New("store: visitor id required")

// Store is a namespaced key/value store. Every visitor has its own namespace.
type Store interface {
	Get(ctx context.Context, visitor, key string) (string, bool, error)
	Set(ctx context.Context, visitor, key, value string) error
	Delete(ctx context.Context, visitor, key string) error
	// Update applies fn to the current value atomically with respect to other
	// writers of the same store.
	Update(ctx context.Context, visitor, key string, fn func(old string, ok bool) (string, error)) error
	Close() error
}

type entryKey struct {
	visitor string
	key     string
}

// Memory is an in-process Store.
type Memory struct {
	mu sync.RWMutex
	m  map[entryKey]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{m: make(map[entryKey]string)}
}

func (s *Memory) Get(_ context.Context, visitor, key string) (string, bool, error) {
	if visitor == "" {
		return "", false, ErrNoVisitor
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[entryKey{visitor, key}]
	return v, ok, nil
}

func (s *Memory) Set(_ context.Context, visitor, key, value string) error {
	if visitor == "" {
		return ErrNoVisitor
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[entryKey{visitor, key}] = value
	return nil
}

func (s *Memory) Delete(_ context.Context, visitor, key string) error {
	if visitor == "" {
		return ErrNoVisitor
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, entryKey{visitor, key})
	return nil
}

func (s *Memory) Update(_ context.Context, visitor, key string, fn func(string, bool) (string, error)) error {
	if visitor == "" {
		return ErrNoVisitor
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := entryKey{visitor, key}
	old, ok := s.m[k]
	v, err := fn(old, ok)
	if err != nil {
		return err
	}
	s.m[k] = v
	return nil
}

func (s *Memory) Close() error { return nil }

// GetJSON decodes the JSON value stored under key into v. It reports false
// when the key is absent.
func GetJSON(ctx context.Context, s Store, visitor, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, visitor, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v encoded as JSON under key.
func SetJSON(ctx context.Context, s Store, visitor, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, visitor, key, string(b))
}

// AppendJSON appends item to the JSON list stored under key. A missing or
// unreadable list starts over as an empty one.
func AppendJSON[T any](ctx context.Context, s Store, visitor, key string, item T) error {
	return s.Update(ctx, visitor, key, func(old string, ok bool) (string, error) {
		var list []T
		if ok && old != "" {
			if err := json.Unmarshal([]byte(old), &list); err != nil {
				list = nil
			}
		}
		list = append(list, item)
		b, err := json.Marshal(list)
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", key, err)
		}
		return string(b), nil
	})
}

// Open returns the Store for a driver name.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}
