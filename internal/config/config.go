// Package config provides runtime configuration values for the service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration knobs for the HTTP server, the catalog, the
// visitor store, the proxies, and the order notification workers.
type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	CORSOrigin      string        `yaml:"cors_origin"`

	// Order notification workers.
	InitialWorkerCount      int           `yaml:"worker_count"`
	WorkerMin               int           `yaml:"worker_min"`
	WorkerMax               int           `yaml:"worker_max"`
	ScaleInterval           time.Duration `yaml:"scale_interval"`
	ScaleUpBacklogPerWorker int           `yaml:"scale_up_backlog_per_worker"`
	ScaleDownIdleTicks      int           `yaml:"scale_down_idle_ticks"`
	QueueHighWatermark      int           `yaml:"queue_high_watermark"`

	// Catalog document. CatalogURL takes precedence over CatalogDir.
	CatalogDir   string   `yaml:"catalog_dir"`
	CatalogURL   string   `yaml:"catalog_url"`
	CatalogPaths []string `yaml:"catalog_paths"`

	// Visitor storage: "memory" or "sqlite".
	StoreDriver string `yaml:"store_driver"`
	StorePath   string `yaml:"store_path"`

	StockFeedURL      string        `yaml:"stock_feed_url"`
	StockFeedLogin    string        `yaml:"stock_feed_login"`
	StockFeedPassword string        `yaml:"stock_feed_password"`
	StockTimeout      time.Duration `yaml:"stock_timeout"`
	ImageOrigin       string        `yaml:"image_origin"`
	ImageTimeout      time.Duration `yaml:"image_timeout"`

	EmailRelayURL  string        `yaml:"email_relay_url"`
	EmailAccessKey string        `yaml:"email_access_key"`
	EmailTimeout   time.Duration `yaml:"email_timeout"`
	ChatPhone      string        `yaml:"chat_phone"`
	NATSURL        string        `yaml:"nats_url"`
	NATSSubject    string        `yaml:"nats_subject"`

	OrderRatePerSec float64 `yaml:"order_rate_per_sec"`
	OrderBurst      int     `yaml:"order_burst"`
}

// Defaults returns the configuration used when neither a file nor the
// environment sets a value.
func Defaults() Config {
	return Config{
		HTTPAddr:                ":8080",
		ShutdownTimeout:         15 * time.Second,
		LogLevel:                "info",
		CORSOrigin:              "*",
		InitialWorkerCount:      1,
		WorkerMin:               1,
		WorkerMax:               4,
		ScaleInterval:           500 * time.Millisecond,
		ScaleUpBacklogPerWorker: 20,
		ScaleDownIdleTicks:      6,
		QueueHighWatermark:      1000,
		CatalogDir:              ".",
		CatalogPaths:            []string{"assets/catalog.json", "./assets/catalog.json"},
		StoreDriver:             "memory",
		StorePath:               "storefront.db",
		StockFeedURL:            "https://avtopilot-base.ru/bitrix/catalog_export/yandex_cases_1.php",
		StockTimeout:            30 * time.Second,
		ImageOrigin:             "https://avtopilot-base.ru",
		ImageTimeout:            10 * time.Second,
		EmailRelayURL:           "https://api.web3forms.com/submit",
		EmailTimeout:            15 * time.Second,
		ChatPhone:               "37360607028",
		NATSSubject:             "orders.created",
		OrderRatePerSec:         1,
		OrderBurst:              5,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatenv(key string, def float64) float64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func durenvms(key string, def time.Duration) time.Duration {
	ms := atoienv(key, int(def/time.Millisecond))
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, def time.Duration) time.Duration {
	sec := atoienv(key, int(def/time.Second))
	return time.Duration(sec) * time.Second
}

func listenv(key string, def []string) []string {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadFile reads a YAML configuration file on top of Defaults.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Load collects configuration from the optional CONFIG_FILE and then the
// environment. Environment values override the file.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	minWorkers := atoienv("WORKER_MIN", cfg.WorkerMin)
	cfg.WorkerMin = minWorkers
	cfg.WorkerMax = atoienv("WORKER_MAX", cfg.WorkerMax)
	cfg.InitialWorkerCount = atoienv("WORKER_COUNT", max(cfg.InitialWorkerCount, minWorkers))
	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.ShutdownTimeout = durenvs("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.CORSOrigin = getenv("CORS_ORIGIN", cfg.CORSOrigin)
	cfg.ScaleInterval = durenvms("SCALE_INTERVAL_MS", cfg.ScaleInterval)
	cfg.ScaleUpBacklogPerWorker = atoienv("SCALE_UP_BACKLOG_PER_WORKER", cfg.ScaleUpBacklogPerWorker)
	cfg.ScaleDownIdleTicks = atoienv("SCALE_DOWN_IDLE_TICKS", cfg.ScaleDownIdleTicks)
	cfg.QueueHighWatermark = atoienv("QUEUE_HIGH_WATERMARK", cfg.QueueHighWatermark)
	cfg.CatalogDir = getenv("CATALOG_DIR", cfg.CatalogDir)
	cfg.CatalogURL = getenv("CATALOG_URL", cfg.CatalogURL)
	cfg.CatalogPaths = listenv("CATALOG_PATHS", cfg.CatalogPaths)
	cfg.StoreDriver = getenv("STORE_DRIVER", cfg.StoreDriver)
	cfg.StorePath = getenv("STORE_PATH", cfg.StorePath)
	cfg.StockFeedURL = getenv("STOCK_FEED_URL", cfg.StockFeedURL)
	cfg.StockFeedLogin = getenv("STOCK_FEED_LOGIN", cfg.StockFeedLogin)
	cfg.StockFeedPassword = getenv("STOCK_FEED_PASSWORD", cfg.StockFeedPassword)
	cfg.StockTimeout = durenvms("STOCK_TIMEOUT_MS", cfg.StockTimeout)
	cfg.ImageOrigin = getenv("IMAGE_ORIGIN", cfg.ImageOrigin)
	cfg.ImageTimeout = durenvms("IMAGE_TIMEOUT_MS", cfg.ImageTimeout)
	cfg.EmailRelayURL = getenv("EMAIL_RELAY_URL", cfg.EmailRelayURL)
	cfg.EmailAccessKey = getenv("EMAIL_ACCESS_KEY", cfg.EmailAccessKey)
	cfg.EmailTimeout = durenvms("EMAIL_TIMEOUT_MS", cfg.EmailTimeout)
	cfg.ChatPhone = getenv("CHAT_PHONE", cfg.ChatPhone)
	cfg.NATSURL = getenv("NATS_URL", cfg.NATSURL)
	cfg.NATSSubject = getenv("NATS_SUBJECT", cfg.NATSSubject)
	cfg.OrderRatePerSec = floatenv("ORDER_RATE_PER_SEC", cfg.OrderRatePerSec)
	cfg.OrderBurst = atoienv("ORDER_BURST", cfg.OrderBurst)
	return cfg, nil
}
