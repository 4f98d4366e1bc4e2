package eligibility

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Provider answers whether a worker is free to take a task over a date
// range. Backed by schedule-service.
type Provider interface {
	CanSupport(ctx context.Context, workerID string, start, end string) (bool, error)
}

// HTTPProvider queries schedule-service's REST eligibility endpoint. Used
// in builds without generated gRPC stubs and as the fallback transport.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 3 * time.Second},
	}
}

func (p *HTTPProvider) CanSupport(ctx context.Context, workerID string, start, end string) (bool, error) {
	q := url.Values{}
	q.Set("worker_id", workerID)
	q.Set("start", start)
	q.Set("end", end)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/v1/schedule/eligibility?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("eligibility check returned status %d", resp.StatusCode)
	}

	var body struct {
		CanSupportNow bool `json:"can_support_now"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.CanSupportNow, nil
}
