// Package selection resolves the visitor's brand/model/year choice from two
// inputs: the URL query and the visitor's persisted storage. The URL wins.
package selection

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/fairyhunter13/seatcover-storefront/internal/catalog"
	"github.com/fairyhunter13/seatcover-storefront/internal/model"
	"github.com/fairyhunter13/seatcover-storefront/internal/store"
)

// ErrIncomplete is returned when an action needs a brand and model that are
// not both selected.
var ErrIncomplete = errors.New("selection incomplete")

// Params is a partial selection; empty fields are unset.
type Params struct {
	Brand string `json:"brand,omitempty"`
	Model string `json:"model,omitempty"`
	Year  string `json:"year,omitempty"`
}

// Resolve merges the two inputs field by field.
func Resolve(fromURL, persisted Params) model.Selection {
	return model.Selection{
		Brand: firstNonEmpty(fromURL.Brand, persisted.Brand),
		Model: firstNonEmpty(fromURL.Model, persisted.Model),
		Year:  firstNonEmpty(fromURL.Year, persisted.Year),
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Query reads the selection parameters of a query string.
func Query(q url.Values) Params {
	return Params{Brand: q.Get("brand"), Model: q.Get("model"), Year: q.Get("year")}
}

// URLParams reads the selection parameters of a URL.
func URLParams(u *url.URL) Params {
	if u == nil {
		return Params{}
	}
	return Query(u.Query())
}

// Update lists URL parameters to change, keyed by "brand", "model" or "year".
// A key with an empty value is removed from the URL; a key that is absent is
// left as it was.
type Update map[string]string

// Update returns the non-empty fields of p.
func (p Params) Update() Update {
	u := Update{}
	for k, v := range map[string]string{"brand": p.Brand, "model": p.Model, "year": p.Year} {
		if v != "" {
			u[k] = v
		}
	}
	return u
}

// SetURLParams returns a copy of u with the listed parameters applied.
// Storage is not touched.
func SetURLParams(u *url.URL, partial Update) *url.URL {
	out := &url.URL{}
	if u != nil {
		*out = *u
	}
	q := out.Query()
	for k, v := range partial {
		if v != "" {
			q.Set(k, v)
		} else {
			q.Del(k)
		}
	}
	out.RawQuery = q.Encode()
	return out
}

// Snapshotter exposes the currently loaded catalog, or nil.
type Snapshotter interface {
	Snapshot() *catalog.Snapshot
}

// Service reads and writes the persisted half of the selection.
type Service struct {
	st  store.Store
	cat Snapshotter
}

// NewService returns a Service over the visitor store and catalog.
func NewService(st store.Store, cat Snapshotter) *Service {
	return &Service{st: st, cat: cat}
}

// Persisted reads the visitor's stored selection. The stored brand record
// is reduced to its name.
func (s *Service) Persisted(ctx context.Context, visitor string) (Params, error) {
	var p Params
	var b model.StoredBrand
	ok, err := store.GetJSON(ctx, s.st, visitor, store.KeySelectedBrand, &b)
	switch {
	case errors.Is(err, store.ErrNoVisitor):
		return p, err
	case err == nil && ok:
		p.Brand = b.Name
	}
	// An unreadable brand record counts as no brand.
	if p.Model, _, err = s.st.Get(ctx, visitor, store.KeySelectedModel); err != nil {
		return p, fmt.Errorf("read model: %w", err)
	}
	if p.Year, _, err = s.st.Get(ctx, visitor, store.KeySelectedYear); err != nil {
		return p, fmt.Errorf("read year: %w", err)
	}
	return p, nil
}

// GetSelected resolves the visitor's selection against the request query.
func (s *Service) GetSelected(ctx context.Context, visitor string, q url.Values) (model.Selection, error) {
	persisted, err := s.Persisted(ctx, visitor)
	if err != nil {
		return model.Selection{}, err
	}
	return Resolve(Query(q), persisted), nil
}

// SetSelected persists the non-empty fields of p. It never changes the URL.
//
// The brand is resolved by name or id against the loaded catalog and stored
// as {id, name}; without a catalog, or for an unknown brand, the brand is
// left as it was. Switching to a different brand clears the stored model and
// year unless p sets them too.
func (s *Service) SetSelected(ctx context.Context, visitor string, p Params) error {
	if p.Brand != "" {
		if err := s.setBrand(ctx, visitor, p); err != nil {
			return err
		}
	}
	if p.Model != "" {
		if err := s.st.Set(ctx, visitor, store.KeySelectedModel, p.Model); err != nil {
			return fmt.Errorf("write model: %w", err)
		}
	}
	if p.Year != "" {
		if err := s.st.Set(ctx, visitor, store.KeySelectedYear, p.Year); err != nil {
			return fmt.Errorf("write year: %w", err)
		}
	}
	return nil
}

func (s *Service) setBrand(ctx context.Context, visitor string, p Params) error {
	var snap *catalog.Snapshot
	if s.cat != nil {
		snap = s.cat.Snapshot()
	}
	if snap == nil {
		return nil
	}
	b, ok := snap.Brand(p.Brand)
	if !ok {
		return nil
	}
	var prev model.StoredBrand
	had, err := store.GetJSON(ctx, s.st, visitor, store.KeySelectedBrand, &prev)
	if errors.Is(err, store.ErrNoVisitor) {
		return err
	}
	if err := store.SetJSON(ctx, s.st, visitor, store.KeySelectedBrand, model.StoredBrand{ID: b.ID, Name: b.Name}); err != nil {
		return fmt.Errorf("write brand: %w", err)
	}
	if had && prev.ID == b.ID {
		return nil
	}
	if p.Model == "" {
		if err := s.st.Delete(ctx, visitor, store.KeySelectedModel); err != nil {
			return fmt.Errorf("clear model: %w", err)
		}
	}
	if p.Year == "" {
		if err := s.st.Delete(ctx, visitor, store.KeySelectedYear); err != nil {
			return fmt.Errorf("clear year: %w", err)
		}
	}
	return nil
}

// Require returns ErrIncomplete unless both brand and model are set.
func Require(sel model.Selection) error {
	if sel.Brand == "" || sel.Model == "" {
		return ErrIncomplete
	}
	return nil
}
