// Package server wires the storefront together and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fairyhunter13/seatcover-storefront/internal/catalog"
	"github.com/fairyhunter13/seatcover-storefront/internal/config"
	httpapi "github.com/fairyhunter13/seatcover-storefront/internal/http"
	"github.com/fairyhunter13/seatcover-storefront/internal/notify"
	"github.com/fairyhunter13/seatcover-storefront/internal/obs"
	"github.com/fairyhunter13/seatcover-storefront/internal/proxy"
	"github.com/fairyhunter13/seatcover-storefront/internal/queue"
	"github.com/fairyhunter13/seatcover-storefront/internal/store"
)

const catalogFetchTimeout = 15 * time.Second

// Server owns every long-lived component of a running storefront.
type Server struct {
	Cfg        config.Config
	App        *httpapi.App
	Manager    *queue.Manager
	Dispatcher *notify.Dispatcher

	store   store.Store
	nc      *nats.Conn
	handler http.Handler
	cancel  context.CancelFunc
}

// CatalogSource picks the catalog source from the configuration: a remote
// base URL when CatalogURL is set, the CatalogDir directory otherwise.
func CatalogSource(cfg config.Config) catalog.Source {
	if cfg.CatalogURL != "" {
		return catalog.NewHTTPSource(cfg.CatalogURL, cfg.CatalogPaths, catalogFetchTimeout)
	}
	return catalog.FileSource{FS: os.DirFS(cfg.CatalogDir), Paths: cfg.CatalogPaths}
}

// Sinks builds the remote order sinks enabled by the configuration. The
// returned connection, if any, belongs to the caller.
func Sinks(cfg config.Config) ([]notify.Sink, *nats.Conn, error) {
	var sinks []notify.Sink
	if cfg.EmailAccessKey != "" {
		sinks = append(sinks, notify.NewEmailRelay(cfg.EmailRelayURL, cfg.EmailAccessKey, cfg.EmailTimeout))
	}
	if cfg.NATSURL == "" {
		return sinks, nil, nil
	}
	nc, err := notify.ConnectNATS(cfg.NATSURL)
	if err != nil {
		return nil, nil, err
	}
	sinks = append(sinks, &notify.OrderEvents{Conn: nc, Subject: cfg.NATSSubject})
	return sinks, nc, nil
}

// New builds a Server from cfg. Nothing runs until Start.
func New(cfg config.Config, extra ...notify.Sink) (*Server, error) {
	st, err := store.Open(cfg.StoreDriver, cfg.StorePath)
	if err != nil {
		return nil, err
	}
	sinks, nc, err := Sinks(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	sinks = append(sinks, extra...)
	image, err := proxy.NewImage(cfg.ImageOrigin, cfg.ImageTimeout)
	if err != nil {
		_ = st.Close()
		if nc != nil {
			nc.Close()
		}
		return nil, err
	}

	d := notify.NewDispatcher(obs.Logger, sinks...)
	mgr := queue.NewManager(cfg, queue.New(128), d)
	app := httpapi.NewApp(cfg, httpapi.Deps{
		Catalog: catalog.NewLoader(CatalogSource(cfg), obs.Logger),
		Store:   st,
		Manager: mgr,
		Sinks:   d.Sinks(),
		Stock:   proxy.NewStock(cfg.StockFeedURL, cfg.StockFeedLogin, cfg.StockFeedPassword, cfg.StockTimeout),
		Image:   image,
	})
	return &Server{
		Cfg:        cfg,
		App:        app,
		Manager:    mgr,
		Dispatcher: d,
		store:      st,
		nc:         nc,
		handler:    httpapi.NewRouter(app),
	}, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start launches the notification workers and begins loading the catalog in
// the background so the first visitor does not pay for the fetch.
func (s *Server) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.Manager.Start(ctx)
	go func() { _, _ = s.App.Catalog.Load(ctx) }()
}

// Drain stops order intake and waits for queued notifications until ctx is
// done. It reports whether the queue emptied.
func (s *Server) Drain(ctx context.Context) bool {
	s.App.StartShutdown()
	obs.Logger.Info("shutdown_drain_begin", "backlog_size", s.Manager.BacklogSize(), "worker_count", s.Manager.WorkerCount())
	if drained := s.Manager.DrainUntil(ctx); !drained {
		obs.Logger.Warn("shutdown_drain_timeout")
		return false
	}
	obs.Logger.Info("shutdown_drain_complete")
	return true
}

// Close stops the workers and releases the store and NATS connection.
func (s *Server) Close() error {
	s.Manager.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			obs.Logger.Warn("nats_drain_error", "error", err)
		}
	}
	return s.store.Close()
}

// Run serves HTTP on cfg.HTTPAddr until ctx is cancelled, then drains the
// notification queue and shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	s.Start(ctx)
	srv := &http.Server{
		Addr:              s.Cfg.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		obs.Logger.Info("http_listen", "addr", s.Cfg.HTTPAddr, "sinks", s.Dispatcher.Sinks())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			_ = s.Close()
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		obs.Logger.Info("shutdown_signal", "cause", context.Cause(ctx).Error())
	}

	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), s.Cfg.ShutdownTimeout)
	defer cancelDrain()
	s.Drain(ctxDrain)

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}
	if err := s.Close(); err != nil {
		obs.Logger.Warn("store_close_error", "error", err)
	}
	obs.Logger.Info("service_stopped")
	return nil
}
