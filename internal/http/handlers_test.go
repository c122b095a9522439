package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fairyhunter13/seatcover-storefront/internal/catalog"
	"github.com/fairyhunter13/seatcover-storefront/internal/config"
	"github.com/fairyhunter13/seatcover-storefront/internal/http/openapi"
	"github.com/fairyhunter13/seatcover-storefront/internal/model"
	"github.com/fairyhunter13/seatcover-storefront/internal/obs"
	"github.com/fairyhunter13/seatcover-storefront/internal/proxy"
	"github.com/fairyhunter13/seatcover-storefront/internal/queue"
	"github.com/fairyhunter13/seatcover-storefront/internal/store"
)

type jobRecorder struct {
	mu   sync.Mutex
	jobs []queue.Job
}

func (r *jobRecorder) Deliver(_ context.Context, job queue.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
}

func (r *jobRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

type failingSource struct{}

func (failingSource) Fetch(context.Context) ([]byte, error) { return nil, errors.New("unreachable") }

func testCatalog() *catalog.Loader {
	src := catalog.FileSource{FS: os.DirFS("../catalog/testdata"), Paths: []string{"catalog.json"}}
	return catalog.NewLoader(src, obs.Logger)
}

type testEnv struct {
	app *App
	mgr *queue.Manager
	rec *jobRecorder
	mux http.Handler
}

func setupApp(t *testing.T, tweak ...func(*config.Config, *Deps)) *testEnv {
	t.Helper()
	cfg := config.Defaults()
	cfg.OrderRatePerSec = 0
	obs.InitLogger("error")
	rec := &jobRecorder{}
	mgr := queue.NewManager(cfg, queue.New(128), rec)
	d := Deps{Catalog: testCatalog(), Store: store.NewMemory(), Manager: mgr, Sinks: []string{"email"}}
	for _, f := range tweak {
		f(&cfg, &d)
	}
	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)
	t.Cleanup(func() { cancel(); mgr.Stop() })
	app := NewApp(cfg, d)
	return &testEnv{app: app, mgr: mgr, rec: rec, mux: NewRouter(app)}
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var rdr *bytes.Buffer
	if body != "" {
		rdr = bytes.NewBufferString(body)
	} else {
		rdr = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(VisitorHeader, testVisitor)
	rr := httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)
	return rr
}

const testVisitor = "3f2b8c1e-7a4d-4e6b-9c0f-1d2e3f4a5b6c"

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func TestOpenAPIServed(t *testing.T) {
	e := setupApp(t)
	rr := e.do(http.MethodGet, "/openapi.yaml", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct == "" {
		t.Fatalf("expected content-type set")
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("openapi:")) {
		t.Fatalf("expected openapi content")
	}
}

func TestOpenAPIDocumentsStorefrontRoutes(t *testing.T) {
	paths, err := openapi.Paths()
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	have := map[string]bool{}
	for _, p := range paths {
		have[p] = true
	}
	for _, want := range []string{"/api/catalog", "/api/selection", "/api/products", "/api/orders", "/api/orders/last", "/api/stock", "/api/image"} {
		if !have[want] {
			t.Fatalf("openapi is missing %s", want)
		}
	}
}

func TestDocsServed(t *testing.T) {
	e := setupApp(t)
	rr := e.do(http.MethodGet, "/docs", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "swagger-ui") {
		t.Fatalf("expected swagger-ui in docs body")
	}
}

func TestHealthzOK(t *testing.T) {
	e := setupApp(t)
	rr := e.do(http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestMetricsHandler(t *testing.T) {
	e := setupApp(t)
	rr := e.do(http.MethodGet, "/debug/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var m map[string]any
	decode(t, rr, &m)
	for _, k := range []string{"worker_count", "queue_depth", "orders_submitted", "catalog_state"} {
		if _, ok := m[k]; !ok {
			t.Fatalf("missing %s", k)
		}
	}
}

func TestVisitorHeaderMustBeUUID(t *testing.T) {
	var seen string
	h := WithVisitor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = VisitorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/selection", nil)
	req.Header.Set(VisitorHeader, strings.ToUpper(testVisitor))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen != testVisitor {
		t.Fatalf("expected normalized visitor %s, got %s", testVisitor, seen)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Fatalf("cookie issued for a header visitor")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/selection", nil)
	req.Header.Set(VisitorHeader, "anything-goes")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen == "anything-goes" {
		t.Fatalf("free-form header accepted as visitor id")
	}
	if len(rr.Result().Cookies()) != 1 {
		t.Fatalf("expected a fresh visitor cookie for an unusable header")
	}
}

func TestVisitorCookieIssued(t *testing.T) {
	e := setupApp(t)
	req := httptest.NewRequest(http.MethodGet, "/api/selection", nil)
	rr := httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == VisitorCookie {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("expected %s cookie", VisitorCookie)
	}

	// A returning visitor keeps the cookie.
	req = httptest.NewRequest(http.MethodGet, "/api/selection", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)
	if len(rr.Result().Cookies()) != 0 {
		t.Fatalf("cookie reissued for known visitor")
	}
}

func TestCatalogEndpoints(t *testing.T) {
	e := setupApp(t)

	rr := e.do(http.MethodGet, "/api/brands", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("brands: expected 200, got %d", rr.Code)
	}
	var brands struct {
		Brands []model.Brand `json:"brands"`
		Total  int           `json:"total"`
	}
	decode(t, rr, &brands)
	if brands.Total != 3 || len(brands.Brands) != 3 {
		t.Fatalf("unexpected brands: %+v", brands)
	}

	rr = e.do(http.MethodGet, "/api/brands/dacia/models", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Duster") {
		t.Fatalf("models: %d %s", rr.Code, rr.Body.String())
	}
	rr = e.do(http.MethodGet, "/api/brands/Tesla/models", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown brand: expected 404, got %d", rr.Code)
	}

	rr = e.do(http.MethodGet, "/api/brands/Volkswagen/models/"+url.PathEscape("Golf Plus")+"/years", "")
	var years struct {
		Years []int `json:"years"`
	}
	decode(t, rr, &years)
	if len(years.Years) != 10 || years.Years[0] != 2014 || years.Years[9] != 2005 {
		t.Fatalf("unexpected years: %v", years.Years)
	}
	rr = e.do(http.MethodGet, "/api/brands/volkswagen/models/Touran/years", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"years":[]`) {
		t.Fatalf("malformed range: %d %s", rr.Code, rr.Body.String())
	}
}

func TestCatalogUnavailable(t *testing.T) {
	e := setupApp(t, func(_ *config.Config, d *Deps) {
		d.Catalog = catalog.NewLoader(failingSource{}, obs.Logger)
	})
	for _, target := range []string{"/api/catalog", "/api/brands", "/api/products?brand=Dacia&model=Logan"} {
		rr := e.do(http.MethodGet, target, "")
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", target, rr.Code)
		}
		var body jsonError
		decode(t, rr, &body)
		if body.Error != "catalog_unavailable" {
			t.Fatalf("%s: unexpected error %+v", target, body)
		}
	}
}

func TestSelectionRoundTrip(t *testing.T) {
	e := setupApp(t)
	rr := e.do(http.MethodPut, "/api/selection", `{"brand":"dacia","model":"Logan","year":"2019","url":"/produse.html?utm=x"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var put selectionResponse
	decode(t, rr, &put)
	if put.Selection != (model.Selection{Brand: "Dacia", Model: "Logan", Year: "2019"}) {
		t.Fatalf("unexpected selection: %+v", put.Selection)
	}
	u, err := url.Parse(put.URL)
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if u.Path != "/produse.html" || u.Query().Get("brand") != "dacia" || u.Query().Get("utm") != "x" {
		t.Fatalf("unexpected url: %s", put.URL)
	}

	rr = e.do(http.MethodGet, "/api/selection?model=Duster", "")
	var sel model.Selection
	decode(t, rr, &sel)
	if sel != (model.Selection{Brand: "Dacia", Model: "Duster", Year: "2019"}) {
		t.Fatalf("query should override storage: %+v", sel)
	}

	rr = e.do(http.MethodPut, "/api/selection", `{"model":"Duster","url":"/products.html?brand=Dacia&year=2020"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("partial put: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	decode(t, rr, &put)
	if u, err = url.Parse(put.URL); err != nil {
		t.Fatalf("url: %v", err)
	}
	if q := u.Query(); q.Get("brand") != "Dacia" || q.Get("model") != "Duster" || q.Get("year") != "2020" {
		t.Fatalf("partial put should keep brand and year in the url: %s", put.URL)
	}

	rr = e.do(http.MethodPut, "/api/selection", `{"year":"","url":"/products.html?brand=Dacia&year=2020"}`)
	decode(t, rr, &put)
	if u, err = url.Parse(put.URL); err != nil {
		t.Fatalf("url: %v", err)
	}
	if u.Query().Has("year") || u.Query().Get("brand") != "Dacia" {
		t.Fatalf("explicit empty year should be removed from the url: %s", put.URL)
	}

	rr = e.do(http.MethodPut, "/api/selection", `{"brand":"Dacia","colour":"red"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400, got %d", rr.Code)
	}
}

func TestProductsListing(t *testing.T) {
	e := setupApp(t)
	rr := e.do(http.MethodGet, "/api/products", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without selection, got %d", rr.Code)
	}
	rr = e.do(http.MethodGet, "/api/products?brand=Lada&model=Niva", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown brand, got %d", rr.Code)
	}

	rr = e.do(http.MethodGet, "/api/products?brand=Dacia&model=Logan", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var listing struct {
		Seats  int `json:"seats"`
		Groups []struct {
			ID       string `json:"id"`
			Products []struct {
				ID        string      `json:"id"`
				Price     model.Price `json:"price"`
				ListPrice float64     `json:"listPrice"`
			} `json:"products"`
		} `json:"groups"`
	}
	decode(t, rr, &listing)
	if listing.Seats != 5 || len(listing.Groups) != 2 {
		t.Fatalf("unexpected listing: %+v", listing)
	}
	if got := listing.Groups[1].Products[0].Price; got != model.Fixed(4300) {
		t.Fatalf("premium price: %+v", got)
	}

	rr = e.do(http.MethodGet, "/api/products?brand=mercedes&model=Vito", "")
	if !strings.Contains(rr.Body.String(), `"price":"quote-on-request"`) {
		t.Fatalf("expected quote for Vito: %s", rr.Body.String())
	}
}

func TestPriceEndpoint(t *testing.T) {
	e := setupApp(t)
	rr := e.do(http.MethodGet, "/api/price?product=eco-black&model="+url.QueryEscape("CLK Coupe 2 uși"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var q struct {
		Seats int         `json:"seats"`
		Price model.Price `json:"price"`
	}
	decode(t, rr, &q)
	if q.Seats != 2 || q.Price != model.Fixed(2200) {
		t.Fatalf("unexpected quote: %+v", q)
	}
	rr = e.do(http.MethodGet, "/api/price?product=nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPostOrderValidation(t *testing.T) {
	e := setupApp(t)
	cases := []struct {
		body   string
		status int
		code   string
		field  string
	}{
		{`{"phone":"069123456"}`, http.StatusUnprocessableEntity, "no_product_selected", ""},
		{`{"productId":"eco-black","phone":"  "}`, http.StatusBadRequest, "missing_phone", "phone"},
		{`{"productId":"eco-black","phone":"12ab"}`, http.StatusBadRequest, "invalid_phone", "phone"},
	}
	for _, c := range cases {
		rr := e.do(http.MethodPost, "/api/orders?brand=Dacia&model=Logan", c.body)
		if rr.Code != c.status {
			t.Fatalf("%s: expected %d, got %d", c.body, c.status, rr.Code)
		}
		var body jsonError
		decode(t, rr, &body)
		if body.Error != c.code || body.Field != c.field {
			t.Fatalf("%s: unexpected error %+v", c.body, body)
		}
	}
	rr := e.do(http.MethodGet, "/api/orders/last", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("rejected orders must not be recorded, got %d", rr.Code)
	}
}

func TestPostOrderHappyPath(t *testing.T) {
	e := setupApp(t)
	rr := e.do(http.MethodPost, "/api/orders?brand=Dacia&model=Logan&year=2020", `{"productId":"romb-black","phone":"+37360000000"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var res struct {
		Order   model.Order `json:"order"`
		Message string      `json:"message"`
	}
	decode(t, rr, &res)
	if res.Order.Price != model.Fixed(4300) || res.Order.Brand != "Dacia" || res.Message == "" {
		t.Fatalf("unexpected result: %+v", res)
	}

	rr = e.do(http.MethodGet, "/api/orders/last", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var last model.Order
	decode(t, rr, &last)
	if last.ProductID != "romb-black" || last.Phone != "+37360000000" {
		t.Fatalf("unexpected last order: %+v", last)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if ok := e.mgr.DrainUntil(ctx); !ok {
		t.Fatalf("drain timeout")
	}
	if e.rec.count() != 1 {
		t.Fatalf("expected one notification job, got %d", e.rec.count())
	}
}

func TestPostOrderRateLimited(t *testing.T) {
	e := setupApp(t, func(c *config.Config, _ *Deps) {
		c.OrderRatePerSec = 0.01
		c.OrderBurst = 1
	})
	body := `{"productId":"eco-black","phone":"069123456"}`
	if rr := e.do(http.MethodPost, "/api/orders?brand=Dacia&model=Logan", body); rr.Code != http.StatusCreated {
		t.Fatalf("first order: expected 201, got %d", rr.Code)
	}
	rr := e.do(http.MethodPost, "/api/orders?brand=Dacia&model=Logan", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second order: expected 429, got %d", rr.Code)
	}
}

func TestChatLink(t *testing.T) {
	e := setupApp(t)
	rr := e.do(http.MethodGet, "/api/orders/chat-link?product=eco-black&brand=Dacia&model=Logan", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var link chatLinkResponse
	decode(t, rr, &link)
	if !strings.HasPrefix(link.URL, "https://wa.me/"+e.app.Cfg.ChatPhone+"?text=") {
		t.Fatalf("unexpected link: %s", link.URL)
	}
	if !strings.Contains(link.Message, "Telefon client: -") {
		t.Fatalf("unexpected message: %s", link.Message)
	}
	rr = e.do(http.MethodGet, "/api/orders/chat-link", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	rr = e.do(http.MethodGet, "/api/orders/chat-link?product=eco-black&brand=Dacia&model=Logan&phone=12ab", "")
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "invalid_phone") {
		t.Fatalf("bad phone: expected 400 invalid_phone, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = e.do(http.MethodGet, "/api/orders/chat-link?product=eco-black&brand=Dacia&model=Logan&phone=%2B37369123456", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("valid phone: expected 200, got %d", rr.Code)
	}
	decode(t, rr, &link)
	if !strings.Contains(link.Message, "Telefon client: +37369123456") {
		t.Fatalf("unexpected message: %s", link.Message)
	}
}

func TestShutdownBehavior(t *testing.T) {
	e := setupApp(t)
	e.app.StartShutdown()
	rr := e.do(http.MethodPost, "/api/orders", `{"productId":"eco-black","phone":"069123456"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestStockProxyMounted(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<yml/>"))
	}))
	defer upstream.Close()
	e := setupApp(t, func(_ *config.Config, d *Deps) {
		d.Stock = proxy.NewStock(upstream.URL, "", "", time.Second)
	})
	for _, p := range []string{"/api/stock", "/.netlify/functions/stock-proxy"} {
		rr := e.do(http.MethodOptions, p, "")
		if rr.Code != http.StatusOK || rr.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Fatalf("%s preflight: %d", p, rr.Code)
		}
		rr = e.do(http.MethodGet, p, "")
		if rr.Code != http.StatusOK || rr.Body.String() != "<yml/>" {
			t.Fatalf("%s: %d %s", p, rr.Code, rr.Body.String())
		}
	}
}

func TestRecoverWritesJSON(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "internal_error") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}
