package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/seatcover-storefront/internal/model"
)

const (
	emailSubject  = "Comandă nouă de pe AutoHuse.md"
	emailFromName = "AutoHuse Order System"
)

// EmailRelay submits orders to a form-to-email relay.
type EmailRelay struct {
	URL       string
	AccessKey string
	Client    *http.Client
}

// NewEmailRelay returns a relay client with a traced HTTP client.
func NewEmailRelay(endpoint, accessKey string, timeout time.Duration) *EmailRelay {
	return &EmailRelay{
		URL:       endpoint,
		AccessKey: accessKey,
		Client:    &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

func (e *EmailRelay) Name() string { return "email" }

// Form builds the form fields posted to the relay.
func (e *EmailRelay) Form(o model.Order) url.Values {
	return url.Values{
		"access_key": {e.AccessKey},
		"subject":    {emailSubject},
		"from_name":  {emailFromName},
		"message":    {EmailBody(o)},
		"phone":      {o.Phone},
		"brand":      {o.Brand},
		"model":      {o.Model},
		"product":    {o.ProductTitle + " - " + o.ProductCode},
		"color":      {o.Color},
		"price":      {o.Price.String()},
	}
}

func (e *EmailRelay) Send(ctx context.Context, o model.Order) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, strings.NewReader(e.Form(o).Encode()))
	if err != nil {
		return fmt.Errorf("email relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("email relay: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("email relay: status %d", resp.StatusCode)
	}
	return nil
}
