package catalog

import (
	"slices"

	"github.com/fairyhunter13/seatcover-storefront/internal/model"
)

// Snapshot is an immutable, indexed view of one catalog document. Every
// accessor hands out copies, so callers may modify what they receive.
type Snapshot struct {
	doc      model.Catalog
	brands   map[string]int
	products map[string]int
	byGroup  map[string][]int
}

// Document returns the catalog as loaded.
func (s *Snapshot) Document() model.Catalog {
	return model.Catalog{
		Brands:        s.Brands(),
		ProductGroups: s.Groups(),
		Products:      slices.Clone(s.doc.Products),
	}
}

// Brands returns all brands in catalog order.
func (s *Snapshot) Brands() []model.Brand {
	out := make([]model.Brand, len(s.doc.Brands))
	for i, b := range s.doc.Brands {
		out[i] = cloneBrand(b)
	}
	return out
}

func cloneBrand(b model.Brand) model.Brand {
	b.Models = slices.Clone(b.Models)
	return b
}

// Brand looks a brand up by name or id.
func (s *Snapshot) Brand(key string) (model.Brand, bool) {
	i, ok := s.brands[key]
	if !ok || key == "" {
		return model.Brand{}, false
	}
	return cloneBrand(s.doc.Brands[i]), true
}

// Model looks up a model of the given brand (name or id) by model name.
func (s *Snapshot) Model(brand, name string) (model.Model, bool) {
	b, ok := s.Brand(brand)
	if !ok {
		return model.Model{}, false
	}
	for _, m := range b.Models {
		if m.Name == name {
			return m, true
		}
	}
	return model.Model{}, false
}

// Years returns the descending year list of a model, or nil when the brand,
// the model, or its range is unknown.
func (s *Snapshot) Years(brand, name string) []int {
	m, ok := s.Model(brand, name)
	if !ok {
		return nil
	}
	return m.YearList()
}

// Groups returns all product groups in catalog order.
func (s *Snapshot) Groups() []model.ProductGroup { return slices.Clone(s.doc.ProductGroups) }

// ProductsInGroup returns the products of a group in catalog order.
func (s *Snapshot) ProductsInGroup(groupID string) []model.Product {
	idx := s.byGroup[groupID]
	out := make([]model.Product, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.doc.Products[i])
	}
	return out
}

// Product looks a product up by id.
func (s *Snapshot) Product(id string) (model.Product, bool) {
	i, ok := s.products[id]
	if !ok {
		return model.Product{}, false
	}
	return s.doc.Products[i], true
}

// GroupListing is a product group together with its products.
type GroupListing struct {
	Group    model.ProductGroup
	Products []model.Product
}

// Listing returns every group that has products, in catalog order.
func (s *Snapshot) Listing() []GroupListing {
	var out []GroupListing
	for _, g := range s.doc.ProductGroups {
		ps := s.ProductsInGroup(g.ID)
		if len(ps) == 0 {
			continue
		}
		out = append(out, GroupListing{Group: g, Products: ps})
	}
	return out
}
