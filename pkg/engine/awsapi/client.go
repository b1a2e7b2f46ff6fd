// Package awsapi implements a low-level signed HTTP client for regional
// provider APIs. Requests are built by hand, signed with SigV4, and decoded
// into typed response shapes; no per-service SDK clients are involved.
package awsapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"golang.org/x/time/rate"
)

// Client issues signed requests against regional service endpoints.
// It is safe for concurrent use; the rate limiter is shared across regions
// so one account-wide cap applies to the whole scan.
type Client struct {
	creds       aws.CredentialsProvider
	signer      *v4.Signer
	httpClient  *http.Client
	limiter     *rate.Limiter
	callTimeout time.Duration
	baseURL     string // endpoint override; empty in production
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL routes every request to a fixed endpoint. Used by tests the
// same way AWS_ENDPOINT_URL reroutes the SDK.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRateLimit caps signed calls per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
		}
	}
}

// WithCallTimeout bounds a single call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// NewClient builds a signed client around resolved credentials.
// AWS_ENDPOINT_URL reroutes every request, matching the resolver's override.
func NewClient(creds aws.CredentialsProvider, opts ...Option) *Client {
	c := &Client{
		creds:       creds,
		signer:      v4.NewSigner(),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(20), 21),
		callTimeout: 10 * time.Second,
		baseURL:     os.Getenv("AWS_ENDPOINT_URL"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryXML performs a Query-protocol POST (Action/Version form body) and
// decodes the XML response into out.
func (c *Client) QueryXML(ctx context.Context, region string, svc Service, action string, params map[string]string, out any) error {
	version, ok := apiVersions[svc]
	if !ok {
		return &UpstreamError{Service: svc, Action: action, Err: fmt.Errorf("no query API version registered")}
	}

	form := url.Values{}
	form.Set("Action", action)
	form.Set("Version", version)

	// Deterministic ordering keeps signatures reproducible in tests.
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		form.Set(k, params[k])
	}

	body := []byte(form.Encode())
	resp, err := c.do(ctx, region, svc, action, body, func(req *http.Request) {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	})
	if err != nil {
		return err
	}

	if err := xml.Unmarshal(resp, out); err != nil {
		return &UpstreamError{Service: svc, Action: action, Err: fmt.Errorf("decode xml: %w", err)}
	}
	return nil
}

// PostJSON performs a JSON-1.1 POST (X-Amz-Target header) and decodes the
// response into out. A nil in sends an empty object.
func (c *Client) PostJSON(ctx context.Context, region string, svc Service, operation string, in, out any) error {
	prefix, ok := jsonTargets[svc]
	if !ok {
		return &UpstreamError{Service: svc, Action: operation, Err: fmt.Errorf("no json target registered")}
	}

	payload := []byte("{}")
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return &UpstreamError{Service: svc, Action: operation, Err: fmt.Errorf("encode request: %w", err)}
		}
	}

	resp, err := c.do(ctx, region, svc, operation, payload, func(req *http.Request) {
		req.Header.Set("Content-Type", "application/x-amz-json-1.1")
		req.Header.Set("X-Amz-Target", prefix+"."+operation)
	})
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return &UpstreamError{Service: svc, Action: operation, Err: fmt.Errorf("decode json: %w", err)}
	}
	return nil
}

// GetJSON performs a REST-JSON GET against a versioned resource path.
func (c *Client) GetJSON(ctx context.Context, region string, svc Service, path string, query url.Values, out any) error {
	endpoint := c.resolveEndpoint(svc, region)
	u := strings.TrimSuffix(endpoint, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	resp, err := c.doURL(ctx, region, svc, path, http.MethodGet, u, nil, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return &UpstreamError{Service: svc, Action: path, Err: fmt.Errorf("decode json: %w", err)}
	}
	return nil
}

func (c *Client) resolveEndpoint(svc Service, region string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return endpointURL(svc, region)
}

func (c *Client) do(ctx context.Context, region string, svc Service, action string, body []byte, decorate func(*http.Request)) ([]byte, error) {
	return c.doURL(ctx, region, svc, action, http.MethodPost, c.resolveEndpoint(svc, region), body, decorate)
}

// doURL signs and executes one request. Retries, if any, belong to the
// orchestrator; this layer reports exactly what the wire did.
func (c *Client) doURL(ctx context.Context, region string, svc Service, action, method, rawURL string, body []byte, decorate func(*http.Request)) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &UpstreamError{Service: svc, Action: action, Err: err}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, &UpstreamError{Service: svc, Action: action, Err: err}
	}
	if decorate != nil {
		decorate(req)
	}

	creds, err := c.creds.Retrieve(ctx)
	if err != nil {
		return nil, &UpstreamError{Service: svc, Action: action, Err: fmt.Errorf("resolve credentials: %w", err)}
	}

	sum := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(sum[:])
	if err := c.signer.SignHTTP(ctx, creds, req, payloadHash, string(svc), region, time.Now().UTC()); err != nil {
		return nil, &UpstreamError{Service: svc, Action: action, Err: fmt.Errorf("sign request: %w", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Service: svc, Action: action, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Service: svc, Action: action, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{
			Service:    svc,
			Action:     action,
			StatusCode: resp.StatusCode,
			Body:       truncateBody(respBody),
		}
	}
	return respBody, nil
}
