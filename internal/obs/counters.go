package obs

import "expvar"

// Service counters, published under /debug/vars.
var (
	OrdersSubmitted   = expvar.NewInt("orders_submitted")
	OrdersRejected    = expvar.NewInt("orders_rejected")
	OrderSinkFailures = expvar.NewInt("order_sink_failures")
	ProxyFallbacks    = expvar.NewInt("proxy_fallbacks")
	CatalogLoadErrors = expvar.NewInt("catalog_load_errors")
)
