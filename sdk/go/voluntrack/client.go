package voluntrack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the VolunTrack REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Quote mirrors the swap quote payload. IsMock marks a fallback estimate
// served while the upstream quote provider was unreachable.
type Quote struct {
	OutAmount string `json:"outAmount"`
	IsMock    bool   `json:"isMock"`
}

// ActivityRecord is a single wallet transaction entry.
type ActivityRecord struct {
	Signature string `json:"signature"`
	Amount    int64  `json:"amount"`
	Mint      string `json:"mint,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Activity is the wallet activity listing for the monitored address.
type Activity struct {
	Address string           `json:"address"`
	Records []ActivityRecord `json:"records"`
}

// Balance reports the wallet balance. Available is false when the chain
// endpoint could not be reached and the zero balance is a placeholder.
type Balance struct {
	Address   string `json:"address"`
	Lamports  uint64 `json:"lamports"`
	Available bool   `json:"available"`
}

// Report is a generated treasury report. Fallback marks reports produced
// without the text generation provider.
type Report struct {
	ID       string   `json:"id"`
	Address  string   `json:"address"`
	Period   string   `json:"period"`
	Summary  string   `json:"summary"`
	Insights []string `json:"insights"`
	Fallback bool     `json:"fallback"`
	Estimate float64  `json:"estimateUsdc"`
}

// ArchivedReport is one entry of the report archive.
type ArchivedReport struct {
	ID        string   `json:"id"`
	Address   string   `json:"address"`
	Period    string   `json:"period"`
	Summary   string   `json:"summary"`
	Insights  []string `json:"insights"`
	Fallback  bool     `json:"fallback"`
	CreatedAt int64    `json:"created_at"`
}

// Health reports the daemon and chain endpoint status.
type Health struct {
	Status  string `json:"status"`
	Chain   string `json:"chain"`
	Cluster string `json:"cluster"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("voluntrack api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the VolunTrack API. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// GetQuote fetches a swap quote for the given asset pair and amount.
func (c *Client) GetQuote(ctx context.Context, inputAsset, outputAsset string, amount int64) (Quote, error) {
	endpoint := fmt.Sprintf("/api/v1/quote?inputAsset=%s&outputAsset=%s&amount=%d",
		url.QueryEscape(inputAsset), url.QueryEscape(outputAsset), amount)
	var quote Quote
	if err := c.get(ctx, endpoint, &quote); err != nil {
		return Quote{}, err
	}
	return quote, nil
}

// GetActivity lists the most recent wallet transactions.
func (c *Client) GetActivity(ctx context.Context, limit int) (Activity, error) {
	endpoint := "/api/v1/activity"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	var activity Activity
	if err := c.get(ctx, endpoint, &activity); err != nil {
		return Activity{}, err
	}
	return activity, nil
}

// GetBalance fetches the monitored wallet balance.
func (c *Client) GetBalance(ctx context.Context) (Balance, error) {
	var balance Balance
	if err := c.get(ctx, "/api/v1/balance", &balance); err != nil {
		return Balance{}, err
	}
	return balance, nil
}

// GenerateReport asks the daemon to produce and archive a treasury report.
// An empty period selects the server side default.
func (c *Client) GenerateReport(ctx context.Context, period string) (Report, error) {
	payload := struct {
		Period string `json:"period"`
	}{Period: period}
	var report Report
	if err := c.post(ctx, "/api/v1/report", payload, &report); err != nil {
		return Report{}, err
	}
	return report, nil
}

// ListReports fetches the most recently archived reports.
func (c *Client) ListReports(ctx context.Context, limit int) ([]ArchivedReport, error) {
	endpoint := "/api/v1/reports"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	var reports []ArchivedReport
	if err := c.get(ctx, endpoint, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// GetHealth reports daemon and chain endpoint health.
func (c *Client) GetHealth(ctx context.Context) (Health, error) {
	var health Health
	if err := c.get(ctx, "/api/v1/healthz", &health); err != nil {
		return Health{}, err
	}
	return health, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
