package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single-item dispatch call.
const DefaultTimeout = 30 * time.Second

// HTTPDispatcher posts delivery payloads to an HTTPS endpoint.
type HTTPDispatcher struct {
	logger     *slog.Logger
	httpClient *http.Client
	endpoint   string
}

// deliveryPayload is the contract with whatever downstream automation
// receives the message.
type deliveryPayload struct {
	ContactID  string `json:"contactId"`
	Phone      string `json:"phone"`
	Message    string `json:"message"`
	CampaignID string `json:"campaignId"`
	Timestamp  string `json:"timestamp"`
}

// NewHTTPDispatcher validates the endpoint and returns a dispatcher over
// it. allowInsecure skips the HTTPS/private-host guard for local
// development and tests only.
func NewHTTPDispatcher(logger *slog.Logger, endpoint string, timeout time.Duration, allowInsecure bool, httpClient *http.Client) (*HTTPDispatcher, error) {
	if !allowInsecure {
		if err := validateEndpoint(endpoint); err != nil {
			return nil, err
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &HTTPDispatcher{
		logger:     logger.With("component", "http_dispatcher"),
		httpClient: httpClient,
		endpoint:   endpoint,
	}, nil
}

func (d *HTTPDispatcher) Name() string { return "http" }

// lookupIP resolves hostnames for the endpoint guard. Swapped in tests.
var lookupIP = net.LookupIP

// validateEndpoint rejects non-HTTPS schemes and loopback/private/link-local
// destinations, both literal IPs and resolved hostnames (SSRF guard on the
// configured delivery target).
func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid delivery endpoint: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("delivery endpoint must use https, got %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("delivery endpoint has no host")
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("delivery endpoint must not target localhost")
	}
	if ip := net.ParseIP(host); ip != nil {
		if isDisallowedIP(ip) {
			return fmt.Errorf("delivery endpoint must not target private or loopback address %s", ip)
		}
		return nil
	}
	ips, err := lookupIP(host)
	if err != nil {
		return fmt.Errorf("resolve delivery endpoint host %q: %w", host, err)
	}
	for _, ip := range ips {
		if isDisallowedIP(ip) {
			return fmt.Errorf("delivery endpoint host %q resolves to private or loopback address %s", host, ip)
		}
	}
	return nil
}

func isDisallowedIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

// Send posts the payload and classifies the outcome: network failure,
// non-2xx status, or success. Classified failures come back in the result
// with a nil error; an error return means the request could not be built.
func (d *HTTPDispatcher) Send(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	body, err := json.Marshal(deliveryPayload{
		ContactID:  req.ItemID.String(),
		Phone:      req.Phone,
		Message:    req.Message,
		CampaignID: req.CampaignID.String(),
		Timestamp:  ts.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal delivery payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build delivery request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		d.logger.WarnContext(ctx, "delivery request failed", "item_id", req.ItemID, "error", err)
		return &DispatchResult{
			OK:           false,
			Failure:      FailureNetwork,
			ErrorMessage: err.Error(),
		}, nil
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused; the response body itself is
	// not part of the contract.
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &DispatchResult{OK: true, StatusCode: resp.StatusCode}, nil
	}

	d.logger.WarnContext(ctx, "delivery endpoint returned non-2xx",
		"item_id", req.ItemID, "status_code", resp.StatusCode)
	return &DispatchResult{
		OK:           false,
		StatusCode:   resp.StatusCode,
		Failure:      FailureStatus,
		ErrorMessage: fmt.Sprintf("delivery endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
	}, nil
}
