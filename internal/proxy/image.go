package proxy

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fairyhunter13/seatcover-storefront/internal/obs"
)

// transparentPixel is a 1x1 transparent PNG served when an image cannot be fetched.
var transparentPixel, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

// Image relays product images from a single allowed origin.
type Image struct {
	origin   *url.URL
	Client   *http.Client
	MaxBytes int64
}

// NewImage returns an image proxy that only fetches from origin's host and
// its subdomains.
func NewImage(origin string, timeout time.Duration) (*Image, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("image origin: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("image origin %q has no host", origin)
	}
	return &Image{origin: u, Client: newClient(timeout)}, nil
}

// Resolve expands a requested image reference into an absolute URL:
// "//host/x" becomes https, "/x" is taken relative to the allowed origin.
func (p *Image) Resolve(ref string) string {
	switch {
	case strings.HasPrefix(ref, "//"):
		return "https:" + ref
	case strings.HasPrefix(ref, "/"):
		return p.origin.Scheme + "://" + p.origin.Host + ref
	}
	return ref
}

// Allowed reports whether u points at the allowed origin host or a subdomain of it.
func (p *Image) Allowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	allowed := strings.ToLower(p.origin.Hostname())
	return host == allowed || strings.HasSuffix(host, "."+allowed)
}

func (p *Image) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, "GET, OPTIONS") {
		return
	}
	ref := r.URL.Query().Get("url")
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing url parameter"})
		return
	}
	// Clients sometimes encode the reference twice.
	// PathUnescape keeps a literal '+' in file names.
	if dec, err := url.PathUnescape(ref); err == nil {
		ref = dec
	}
	target := p.Resolve(ref)
	if !p.Allowed(target) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid image source"})
		return
	}
	body, contentType, err := p.fetch(r.Context(), target)
	if err != nil {
		obs.ProxyFallbacks.Add(1)
		obs.Logger.Warn("image_fetch_failed", "url", target, "error", err.Error())
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(transparentPixel)
		return
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (p *Image) fetch(ctx context.Context, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*")
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("image fetch failed: %d", resp.StatusCode)
	}
	limit := p.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxImageBytes
	}
	body, err := readLimited(resp.Body, limit)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}
