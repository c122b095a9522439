package httpapi

import (
	"expvar"
	"net/http"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/catalog", app.catalogHandler)
	api.HandleFunc("GET /api/brands", app.brandsHandler)
	api.HandleFunc("GET /api/brands/{brand}/models", app.modelsHandler)
	api.HandleFunc("GET /api/brands/{brand}/models/{model}/years", app.yearsHandler)
	api.HandleFunc("GET /api/selection", app.getSelectionHandler)
	api.HandleFunc("PUT /api/selection", app.putSelectionHandler)
	api.HandleFunc("GET /api/products", app.productsHandler)
	api.HandleFunc("GET /api/price", app.priceHandler)
	api.Handle("POST /api/orders", RateLimit(app.Cfg.OrderRatePerSec, app.Cfg.OrderBurst)(http.HandlerFunc(app.postOrderHandler)))
	api.HandleFunc("GET /api/orders", app.listOrdersHandler)
	api.HandleFunc("GET /api/orders/last", app.lastOrderHandler)
	api.HandleFunc("GET /api/orders/chat-link", app.chatLinkHandler)

	mux := http.NewServeMux()
	mux.Handle("/api/", Chain(api, CORS(app.Cfg.CORSOrigin), WithVisitor))
	// The proxies answer CORS themselves and need no visitor.
	if app.Stock != nil {
		mux.Handle("/api/stock", app.Stock)
		mux.Handle("/.netlify/functions/stock-proxy", app.Stock)
	}
	if app.Image != nil {
		mux.Handle("/api/image", app.Image)
	}
	mux.HandleFunc("GET /healthz", app.healthHandler)
	mux.HandleFunc("GET /debug/metrics", app.metricsHandler)
	mux.Handle("GET /debug/vars", expvar.Handler())
	mux.HandleFunc("GET /openapi.yaml", app.openapiHandler)
	mux.HandleFunc("GET /docs", app.docsHandler)
	return Chain(mux, Recover, OTel("storefront"), WithRequestID, WithLogging)
}
