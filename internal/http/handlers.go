package httpapi

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/seatcover-storefront/internal/catalog"
	"github.com/fairyhunter13/seatcover-storefront/internal/config"
	httpopenapi "github.com/fairyhunter13/seatcover-storefront/internal/http/openapi"
	"github.com/fairyhunter13/seatcover-storefront/internal/obs"
	"github.com/fairyhunter13/seatcover-storefront/internal/order"
	"github.com/fairyhunter13/seatcover-storefront/internal/queue"
	"github.com/fairyhunter13/seatcover-storefront/internal/selection"
	"github.com/fairyhunter13/seatcover-storefront/internal/store"
)

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Catalog *catalog.Loader
	Store   store.Store
	// Manager dispatches remote order notifications to Sinks. Nil disables
	// remote delivery.
	Manager *queue.Manager
	Sinks   []string
	Stock   http.Handler
	Image   http.Handler
}

type App struct {
	Cfg       config.Config
	Catalog   *catalog.Loader
	Selection *selection.Service
	Orders    *order.Pipeline
	Manager   *queue.Manager
	Stock     http.Handler
	Image     http.Handler
	closing   atomic.Bool
	started   time.Time
}

func NewApp(cfg config.Config, d Deps) *App {
	var q order.Enqueuer
	if d.Manager != nil {
		q = d.Manager
	}
	return &App{
		Cfg:       cfg,
		Catalog:   d.Catalog,
		Selection: selection.NewService(d.Store, d.Catalog),
		Orders:    order.NewPipeline(d.Store, q, d.Sinks),
		Manager:   d.Manager,
		Stock:     d.Stock,
		Image:     d.Image,
		started:   time.Now(),
	}
}

// StartShutdown stops accepting orders and closes the dispatch queue intake.
func (a *App) StartShutdown() {
	a.closing.Store(true)
	if a.Manager != nil {
		a.Manager.CloseIntake()
	}
}

// snapshot loads the catalog on first use. A failed load stays failed.
func (a *App) snapshot(ctx context.Context) (*catalog.Snapshot, error) {
	return a.Catalog.Load(ctx)
}

func (a *App) writeCatalogUnavailable(w http.ResponseWriter, err error) {
	WriteJSONError(w, http.StatusServiceUnavailable, "catalog_unavailable", err.Error())
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"catalog": a.Catalog.State().String(),
	})
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	m := map[string]any{
		"orders_submitted":    obs.OrdersSubmitted.Value(),
		"orders_rejected":     obs.OrdersRejected.Value(),
		"order_sink_failures": obs.OrderSinkFailures.Value(),
		"proxy_fallbacks":     obs.ProxyFallbacks.Value(),
		"catalog_state":       a.Catalog.State().String(),
		"uptime_sec":          time.Since(a.started).Seconds(),
	}
	if a.Manager != nil {
		enq, proc, backlog, depth := a.Manager.QueueMetrics()
		m["notifications_enqueued"] = enq
		m["notifications_processed"] = proc
		m["backlog_size"] = backlog
		m["queue_depth"] = depth
		m["worker_count"] = a.Manager.WorkerCount()
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *App) openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Seat Cover Storefront API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}
