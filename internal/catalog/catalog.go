// Package catalog loads the storefront catalog document once and serves
// read-only queries over the resulting snapshot.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fairyhunter13/seatcover-storefront/internal/model"
	"github.com/fairyhunter13/seatcover-storefront/internal/obs"
)

// ErrLoadFailed wraps every error that prevented the catalog from loading.
var ErrLoadFailed = errors.New("catalog load failed")

// ErrNotLoaded is returned by readers when no snapshot is available yet.
var ErrNotLoaded = errors.New("catalog not loaded")

// State is the lifecycle state of a Loader.
type State int

const (
	NotLoaded State = iota
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case NotLoaded:
		return "not_loaded"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Source fetches the raw catalog document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// DefaultFetchTimeout bounds a single catalog fetch.
const DefaultFetchTimeout = 15 * time.Second

// Loader fetches the catalog once and keeps the snapshot for its lifetime.
// There is no invalidation and no retry after a failure.
type Loader struct {
	src     Source
	log     *slog.Logger
	timeout time.Duration

	mu    sync.Mutex
	state State
	snap  *Snapshot
	err   error
}

// NewLoader returns a Loader reading from src and reporting failures to log.
func NewLoader(src Source, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{src: src, log: log, timeout: DefaultFetchTimeout}
}

// Load returns the snapshot, fetching it on the first call. The fetch ignores
// cancellation of ctx and is bounded by the loader timeout instead, so an
// aborted request never leaves the loader in the failed state.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case Loaded:
		return l.snap, nil
	case Failed:
		return nil, l.err
	}
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()
	raw, err := l.src.Fetch(fctx)
	if err == nil {
		var snap *Snapshot
		if snap, err = Parse(raw); err == nil {
			l.snap, l.state = snap, Loaded
			l.log.Info("catalog_loaded",
				"brands", len(snap.doc.Brands),
				"product_groups", len(snap.doc.ProductGroups),
				"products", len(snap.doc.Products),
			)
			return snap, nil
		}
	}
	l.err = fmt.Errorf("%w: %w", ErrLoadFailed, err)
	l.state = Failed
	obs.CatalogLoadErrors.Add(1)
	l.log.Error("catalog_load_failed", "error", err)
	return nil, l.err
}

// Snapshot returns the cached snapshot without fetching, or nil.
func (l *Loader) Snapshot() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// State reports whether the catalog is loaded, failed, or not loaded yet.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Parse decodes a catalog document and indexes it. Brand names and ids must
// be unique across all brands, since either one identifies a brand.
func Parse(raw []byte) (*Snapshot, error) {
	var doc model.Catalog
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc)
}

// New indexes an already decoded catalog.
func New(doc model.Catalog) (*Snapshot, error) {
	s := &Snapshot{
		doc:      doc,
		brands:   make(map[string]int, 2*len(doc.Brands)),
		products: make(map[string]int, len(doc.Products)),
		byGroup:  make(map[string][]int),
	}
	for i, b := range doc.Brands {
		for _, k := range uniqueKeys(b.ID, b.Name) {
			if j, dup := s.brands[k]; dup && j != i {
				return nil, fmt.Errorf("brand key %q is used by more than one brand", k)
			}
			s.brands[k] = i
		}
	}
	for i, p := range doc.Products {
		s.products[p.ID] = i
		s.byGroup[p.GroupID] = append(s.byGroup[p.GroupID], i)
	}
	return s, nil
}

func uniqueKeys(id, name string) []string {
	if id == name || name == "" {
		return []string{id}
	}
	if id == "" {
		return []string{name}
	}
	return []string{id, name}
}
