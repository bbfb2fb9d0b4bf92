package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobradar/internal/model"
)

// Doer executes a request through the given endpoint.
type Doer interface {
	Do(ctx context.Context, ep *Endpoint, req model.Request) (*model.Response, error)
}

// Ensure both clients implement Doer.
var (
	_ Doer = (*SolverClient)(nil)
	_ Doer = (*DirectClient)(nil)
)

// SolverClient talks to FlareSolverr-compatible bypass instances: the target
// request is posted to {endpoint}/v1 and the solved page comes back as JSON.
type SolverClient struct {
	client     *http.Client
	maxTimeout time.Duration
}

// NewSolverClient creates a client. maxTimeout is forwarded to the bypass
// service as its per-request budget.
func NewSolverClient(client *http.Client, maxTimeout time.Duration) *SolverClient {
	if maxTimeout <= 0 {
		maxTimeout = 60 * time.Second
	}
	return &SolverClient{client: client, maxTimeout: maxTimeout}
}

type solverRequest struct {
	Cmd        string            `json:"cmd"`
	URL        string            `json:"url"`
	MaxTimeout int64             `json:"maxTimeout"`
	Headers    map[string]string `json:"headers,omitempty"`
	PostData   string            `json:"postData,omitempty"`
}

type solverResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Solution struct {
		URL      string            `json:"url"`
		Status   int               `json:"status"`
		Headers  map[string]string `json:"headers"`
		Response string            `json:"response"`
	} `json:"solution"`
}

// Do sends req through the bypass instance at ep.
func (c *SolverClient) Do(ctx context.Context, ep *Endpoint, req model.Request) (*model.Response, error) {
	cmd := "request.get"
	if strings.EqualFold(req.Method, http.MethodPost) {
		cmd = "request.post"
	}
	payload, err := json.Marshal(solverRequest{
		Cmd:        cmd,
		URL:        req.URL,
		MaxTimeout: c.maxTimeout.Milliseconds(),
		Headers:    req.Headers,
		PostData:   string(req.Body),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal solver request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(ep.Address(), "/")+"/v1", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating solver request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("solver %s: %w", ep.Address(), err)
	}
	defer resp.Body.Close()

	// A failing bypass instance is a transport problem, not a target status.
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("solver %s returned status %d", ep.Address(), resp.StatusCode)
	}

	var sr solverResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding solver response: %w", err)
	}
	if sr.Status != "ok" {
		return nil, fmt.Errorf("solver %s: status %q: %s", ep.Address(), sr.Status, sr.Message)
	}

	out := &model.Response{
		StatusCode: sr.Solution.Status,
		Headers:    sr.Solution.Headers,
		Body:       []byte(sr.Solution.Response),
	}
	if out.StatusCode >= 400 {
		return out, &model.HTTPError{
			StatusCode: out.StatusCode,
			RetryAfter: parseRetryAfter(headerValue(out.Headers, "Retry-After")),
			Err:        fmt.Errorf("unexpected status from %s", req.URL),
		}
	}
	return out, nil
}

// DirectClient sends requests straight to the target. It is used when no
// bypass endpoints are configured; the balancer then holds a single synthetic
// endpoint so cooldown handling still applies.
type DirectClient struct {
	client *http.Client
}

// DirectAddress is the synthetic endpoint address used in direct mode.
const DirectAddress = "direct"

// NewDirectClient creates a client using the given http.Client.
func NewDirectClient(client *http.Client) *DirectClient {
	return &DirectClient{client: client}
}

// Do ignores ep and issues req itself.
func (c *DirectClient) Do(ctx context.Context, _ *Endpoint, req model.Request) (*model.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	out := &model.Response{
		StatusCode: resp.StatusCode,
		Headers:    make(map[string]string, len(resp.Header)),
		Body:       data,
	}
	for k := range resp.Header {
		out.Headers[k] = resp.Header.Get(k)
	}
	if resp.StatusCode >= 400 {
		return out, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("unexpected status from %s", req.URL),
		}
	}
	return out, nil
}

// Probe checks that a bypass instance answers. FlareSolverr replies 405 to a
// GET on /v1, which counts as healthy.
func Probe(ctx context.Context, client *http.Client, address string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(address, "/")+"/v1", nil)
	if err != nil {
		return fmt.Errorf("creating probe request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", address, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusMethodNotAllowed {
		return fmt.Errorf("probe %s: status %d", address, resp.StatusCode)
	}
	return nil
}

// headerValue finds a header case-insensitively in a plain map.
func headerValue(h map[string]string, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
