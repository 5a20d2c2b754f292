package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/services"
)

const maxResponseBytes = 64 << 10

// HTTPNotifier posts changes to a WMS REST API: POST {base}/labels and POST {base}/status.
type HTTPNotifier struct {
	baseURL *url.URL
	client  *http.Client
	now     func() time.Time
}

var _ services.FulfillmentNotifier = (*HTTPNotifier)(nil)

type HTTPOption func(*HTTPNotifier)

func WithHTTPClient(client *http.Client) HTTPOption {
	return func(n *HTTPNotifier) {
		if client != nil {
			n.client = client
		}
	}
}

func NewHTTPNotifier(baseURL string, timeout time.Duration, opts ...HTTPOption) (*HTTPNotifier, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("warehouse: invalid base url %q", baseURL)
	}
	n := &HTTPNotifier{
		baseURL: parsed,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n, nil
}

type wmsResponse struct {
	Success bool   `json:"success"`
	LabelID string `json:"labelId"`
	ID      string `json:"id"`
}

func (n *HTTPNotifier) NotifyAddressChange(ctx context.Context, orderNumber string, address domain.Address) (services.FulfillmentResult, error) {
	return n.post(ctx, "labels", addressEvent(orderNumber, address, n.now()))
}

func (n *HTTPNotifier) NotifyStatusChange(ctx context.Context, orderNumber string, status domain.OrderStatus) (services.FulfillmentResult, error) {
	return n.post(ctx, "status", statusEvent(orderNumber, status, n.now()))
}

func (n *HTTPNotifier) post(ctx context.Context, path string, event Event) (services.FulfillmentResult, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return services.FulfillmentResult{}, fmt.Errorf("warehouse: encode %s: %w", event.Type, err)
	}
	endpoint := n.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return services.FulfillmentResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return services.FulfillmentResult{}, fmt.Errorf("warehouse: post %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return services.FulfillmentResult{}, fmt.Errorf("warehouse: read %s response: %w", path, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.FulfillmentResult{}, fmt.Errorf("warehouse: post %s: status %d", path, resp.StatusCode)
	}

	var decoded wmsResponse
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return services.FulfillmentResult{}, errors.Join(fmt.Errorf("warehouse: decode %s response", path), err)
		}
	} else {
		decoded.Success = true
	}
	return services.FulfillmentResult{
		Success:   decoded.Success,
		Reference: decoded.ID,
		LabelID:   decoded.LabelID,
	}, nil
}
