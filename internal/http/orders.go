package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fairyhunter13/seatcover-storefront/internal/catalog"
	"github.com/fairyhunter13/seatcover-storefront/internal/model"
	"github.com/fairyhunter13/seatcover-storefront/internal/notify"
	"github.com/fairyhunter13/seatcover-storefront/internal/order"
	"github.com/fairyhunter13/seatcover-storefront/internal/selection"
)

type orderRequest struct {
	ProductID string `json:"productId"`
	Phone     string `json:"phone"`
}

func (a *App) postOrderHandler(w http.ResponseWriter, r *http.Request) {
	if a.closing.Load() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	if !isJSON(r) {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return
	}
	var req orderRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	ctx := r.Context()
	snap, err := a.snapshot(ctx)
	if err != nil {
		a.writeCatalogUnavailable(w, err)
		return
	}
	visitor := VisitorFromContext(ctx)
	sel, err := a.Selection.GetSelected(ctx, visitor, r.URL.Query())
	if err != nil {
		WriteJSONError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	product, _ := lookupProduct(snap, req.ProductID)
	res, err := a.Orders.Submit(ctx, visitor, order.Submission{
		Selection: sel,
		Product:   product,
		Phone:     req.Phone,
		RequestID: RequestIDFromContext(ctx),
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func writeOrderError(w http.ResponseWriter, err error) {
	status, code := errStatus(err)
	if errors.Is(err, order.ErrMissingPhone) || errors.Is(err, order.ErrInvalidPhone) {
		WriteFieldError(w, status, code, err.Error(), "phone")
		return
	}
	WriteJSONError(w, status, code, err.Error())
}

// errStatus maps storefront errors to an HTTP status and error code.
func errStatus(err error) (int, string) {
	switch {
	case errors.Is(err, order.ErrNoProductSelected):
		return http.StatusUnprocessableEntity, "no_product_selected"
	case errors.Is(err, order.ErrMissingPhone):
		return http.StatusBadRequest, "missing_phone"
	case errors.Is(err, order.ErrInvalidPhone):
		return http.StatusBadRequest, "invalid_phone"
	case errors.Is(err, selection.ErrIncomplete):
		return http.StatusUnprocessableEntity, "selection_incomplete"
	case errors.Is(err, catalog.ErrLoadFailed):
		return http.StatusServiceUnavailable, "catalog_unavailable"
	default:
		return http.StatusInternalServerError, "order_failed"
	}
}

func (a *App) lastOrderHandler(w http.ResponseWriter, r *http.Request) {
	o, ok, err := a.Orders.LastOrder(r.Context(), VisitorFromContext(r.Context()))
	if err != nil {
		WriteJSONError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "no_orders", "")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *App) listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := a.Orders.Orders(r.Context(), VisitorFromContext(r.Context()))
	if err != nil {
		WriteJSONError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

type chatLinkResponse struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}

// chatLinkHandler builds the chat deep link for the current selection. It
// records nothing; the visitor opens the link themselves. The phone is
// optional, but when given it must pass the same check as an order.
func (a *App) chatLinkHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := a.snapshot(ctx)
	if err != nil {
		a.writeCatalogUnavailable(w, err)
		return
	}
	q := r.URL.Query()
	product, ok := lookupProduct(snap, q.Get("product"))
	if !ok {
		writeOrderError(w, order.ErrNoProductSelected)
		return
	}
	if phone := q.Get("phone"); strings.TrimSpace(phone) != "" {
		if err := order.CheckPhone(phone); err != nil {
			writeOrderError(w, err)
			return
		}
	}
	sel, err := a.Selection.GetSelected(ctx, VisitorFromContext(ctx), q)
	if err != nil {
		WriteJSONError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	o := order.Build(order.Submission{Selection: sel, Product: product, Phone: q.Get("phone")}, time.Now())
	writeJSON(w, http.StatusOK, chatLinkResponse{
		URL:     notify.ChatLink(a.Cfg.ChatPhone, o),
		Message: notify.Summary(o),
	})
}
