package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/fairyhunter13/seatcover-storefront/internal/catalog"
	"github.com/fairyhunter13/seatcover-storefront/internal/model"
	"github.com/fairyhunter13/seatcover-storefront/internal/pricing"
	"github.com/fairyhunter13/seatcover-storefront/internal/selection"
)

// featuredBrands is how many brands the landing page shows before "show all".
const featuredBrands = 10

func (a *App) catalogHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := a.snapshot(r.Context())
	if err != nil {
		a.writeCatalogUnavailable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Document())
}

func (a *App) brandsHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := a.snapshot(r.Context())
	if err != nil {
		a.writeCatalogUnavailable(w, err)
		return
	}
	brands := snap.Brands()
	if r.URL.Query().Get("all") != "1" && len(brands) > featuredBrands {
		brands = brands[:featuredBrands]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"brands": brands,
		"total":  len(snap.Brands()),
	})
}

func (a *App) modelsHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := a.snapshot(r.Context())
	if err != nil {
		a.writeCatalogUnavailable(w, err)
		return
	}
	b, ok := snap.Brand(r.PathValue("brand"))
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "unknown_brand", r.PathValue("brand"))
		return
	}
	models := b.Models
	if models == nil {
		models = []model.Model{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"brand": b.Name, "models": models})
}

func (a *App) yearsHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := a.snapshot(r.Context())
	if err != nil {
		a.writeCatalogUnavailable(w, err)
		return
	}
	brand, name := r.PathValue("brand"), r.PathValue("model")
	if _, ok := snap.Model(brand, name); !ok {
		WriteJSONError(w, http.StatusNotFound, "unknown_model", name)
		return
	}
	years := snap.Years(brand, name)
	if years == nil {
		years = []int{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"model": name, "years": years})
}

func (a *App) getSelectionHandler(w http.ResponseWriter, r *http.Request) {
	sel, err := a.Selection.GetSelected(r.Context(), VisitorFromContext(r.Context()), r.URL.Query())
	if err != nil {
		WriteJSONError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// selectionRequest fields are pointers so an explicit "" (drop the parameter
// from the page URL) differs from an absent field (leave it alone).
type selectionRequest struct {
	Brand *string `json:"brand"`
	Model *string `json:"model"`
	Year  *string `json:"year"`
	// URL is the page the visitor is on; the response carries it with the
	// selection applied to its query.
	URL string `json:"url"`
}

type selectionResponse struct {
	Selection model.Selection `json:"selection"`
	URL       string          `json:"url"`
}

func (a *App) putSelectionHandler(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return
	}
	var req selectionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	page, err := url.Parse(req.URL)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "url is not a valid URL")
		return
	}
	ctx := r.Context()
	// Without a catalog the brand cannot be resolved and is left unchanged.
	_, _ = a.snapshot(ctx)
	visitor := VisitorFromContext(ctx)
	p := selection.Params{Brand: deref(req.Brand), Model: deref(req.Model), Year: deref(req.Year)}
	if err := a.Selection.SetSelected(ctx, visitor, p); err != nil {
		WriteJSONError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	sel, err := a.Selection.GetSelected(ctx, visitor, nil)
	if err != nil {
		WriteJSONError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse{
		Selection: sel,
		URL:       selection.SetURLParams(page, req.update()).String(),
	})
}

func (r selectionRequest) update() selection.Update {
	u := selection.Update{}
	for k, v := range map[string]*string{"brand": r.Brand, "model": r.Model, "year": r.Year} {
		if v != nil {
			u[k] = *v
		}
	}
	return u
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// productView is a product with the price charged for the selected model.
type productView struct {
	model.Product
	Price     model.Price `json:"price"`
	ListPrice float64     `json:"listPrice"`
}

type groupView struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Products []productView `json:"products"`
}

type listingResponse struct {
	Selection model.Selection `json:"selection"`
	Seats     int             `json:"seats"`
	Groups    []groupView     `json:"groups"`
}

func (a *App) productsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := a.snapshot(ctx)
	if err != nil {
		a.writeCatalogUnavailable(w, err)
		return
	}
	sel, err := a.Selection.GetSelected(ctx, VisitorFromContext(ctx), r.URL.Query())
	if err != nil {
		WriteJSONError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	if err := selection.Require(sel); err != nil {
		WriteJSONError(w, http.StatusUnprocessableEntity, "selection_incomplete", "brand and model are required")
		return
	}
	if _, ok := snap.Brand(sel.Brand); !ok {
		WriteJSONError(w, http.StatusUnprocessableEntity, "selection_incomplete", "unknown brand "+sel.Brand)
		return
	}
	resp := listingResponse{Selection: sel, Seats: pricing.SeatCount(sel.Model), Groups: []groupView{}}
	for _, gl := range snap.Listing() {
		g := groupView{ID: gl.Group.ID, Title: gl.Group.Title}
		for _, p := range gl.Products {
			g.Products = append(g.Products, productView{
				Product:   p,
				Price:     pricing.Price(p.Title, sel.Model),
				ListPrice: p.Price,
			})
		}
		resp.Groups = append(resp.Groups, g)
	}
	writeJSON(w, http.StatusOK, resp)
}

type priceResponse struct {
	ProductID string `json:"productId"`
	Model     string `json:"model"`
	pricing.Quote
}

func (a *App) priceHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := a.snapshot(ctx)
	if err != nil {
		a.writeCatalogUnavailable(w, err)
		return
	}
	p, ok := lookupProduct(snap, r.URL.Query().Get("product"))
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "unknown_product", r.URL.Query().Get("product"))
		return
	}
	modelName := r.URL.Query().Get("model")
	if modelName == "" {
		sel, err := a.Selection.GetSelected(ctx, VisitorFromContext(ctx), nil)
		if err != nil {
			WriteJSONError(w, http.StatusInternalServerError, "storage_error", err.Error())
			return
		}
		modelName = sel.Model
	}
	writeJSON(w, http.StatusOK, priceResponse{
		ProductID: p.ID,
		Model:     modelName,
		Quote:     pricing.Explain(p.Title, modelName),
	})
}

func lookupProduct(snap *catalog.Snapshot, id string) (*model.Product, bool) {
	if id == "" {
		return nil, false
	}
	p, ok := snap.Product(id)
	if !ok {
		return nil, false
	}
	return &p, true
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/json")
}
