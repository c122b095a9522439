package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fairyhunter13/seatcover-storefront/internal/obs"
)

// Stock relays the supplier's XML stock feed.
type Stock struct {
	FeedURL  string
	Login    string
	Password string
	Client   *http.Client
	MaxBytes int64
	now      func() time.Time
}

// NewStock returns a stock proxy for feedURL. Credentials, when set, are
// appended as the login and password query parameters.
func NewStock(feedURL, login, password string, timeout time.Duration) *Stock {
	return &Stock{FeedURL: feedURL, Login: login, Password: password, Client: newClient(timeout), now: time.Now}
}

type stockError struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (s *Stock) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, "GET, OPTIONS") {
		return
	}
	body, err := s.Fetch(r.Context())
	if err != nil {
		obs.ProxyFallbacks.Add(1)
		obs.Logger.Warn("stock_fetch_failed", "error", err.Error())
		now := time.Now
		if s.now != nil {
			now = s.now
		}
		writeJSON(w, http.StatusInternalServerError, stockError{
			Error:     "Failed to fetch stock data",
			Message:   err.Error(),
			Timestamp: now().UTC().Format(time.RFC3339Nano),
		})
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Cache-Control", "max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Fetch downloads the feed once. Any non-2xx status is an error.
func (s *Stock) Fetch(ctx context.Context) ([]byte, error) {
	u, err := s.feedURL()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/xml, text/xml, */*")
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch stock feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("API responded with %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	limit := s.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxFeedBytes
	}
	body, err := readLimited(resp.Body, limit)
	if err != nil {
		return nil, fmt.Errorf("read stock feed: %w", err)
	}
	return body, nil
}

func (s *Stock) feedURL() (string, error) {
	u, err := url.Parse(s.FeedURL)
	if err != nil {
		return "", fmt.Errorf("stock feed url: %w", err)
	}
	if s.Login != "" || s.Password != "" {
		q := u.Query()
		q.Set("login", s.Login)
		q.Set("password", s.Password)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
