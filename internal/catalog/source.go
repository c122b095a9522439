package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultPaths are the candidate locations tried in order: the relative path
// and the dot-prefixed path used by different static hosts.
var DefaultPaths = []string{"assets/catalog.json", "./assets/catalog.json"}

// FileSource reads the catalog from a file system, trying each candidate path.
type FileSource struct {
	FS    fs.FS
	Paths []string
}

func (s FileSource) Fetch(_ context.Context) ([]byte, error) {
	paths := s.Paths
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	var errs []error
	for _, p := range paths {
		// fs.FS paths are unrooted and never start with "./".
		b, err := fs.ReadFile(s.FS, path.Clean(strings.TrimPrefix(p, "/")))
		if err == nil {
			return b, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

// HTTPSource fetches the catalog over HTTP relative to BaseURL.
type HTTPSource struct {
	BaseURL string
	Paths   []string
	Client  *http.Client
}

// NewHTTPSource returns an HTTPSource with a traced client.
func NewHTTPSource(baseURL string, paths []string, timeout time.Duration) HTTPSource {
	return HTTPSource{
		BaseURL: baseURL,
		Paths:   paths,
		Client:  &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

func (s HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("catalog base url: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	paths := s.Paths
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	var errs []error
	for _, p := range paths {
		ref, err := url.Parse(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		b, err := s.get(ctx, client, base.ResolveReference(ref).String())
		if err == nil {
			return b, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

func (s HTTPSource) get(ctx context.Context, client *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
