// Package httpdao is the HTTP implementation of the remote data access
// object. Records travel as JSON {id, owner, fields}.
package httpdao

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/aretw0/fieldbook/pkg/core"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10
)

// Config holds the client setup.
type Config struct {
	BaseURL string
	// Token is sent as a bearer credential when set.
	Token string
	// Timeout bounds every request, including reading the response.
	Timeout time.Duration
	// Rate is the sustained requests per second; zero disables limiting.
	Rate  float64
	Burst int

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// RemoteError is a non-2xx response other than 404.
type RemoteError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client talks to the central server.
type Client struct {
	base    *url.URL
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New validates config and returns a client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("remote url is empty")
	}
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported remote scheme: %q", base.Scheme)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.Rate > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.Rate), burst)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:    base,
		token:   config.Token,
		http:    httpClient,
		limiter: limiter,
		logger:  logger,
	}, nil
}

type wireRecord struct {
	ID     string      `json:"id"`
	Owner  string      `json:"owner"`
	Fields core.Fields `json:"fields"`
}

type wireAck struct {
	ID       string `json:"id"`
	Revision string `json:"rev"`
}

type wirePage struct {
	Records []wireRecord `json:"records"`
	Marker  string       `json:"marker"`
}

func (w wireRecord) record(kind core.Kind) core.Record {
	fields := w.Fields
	if fields == nil {
		fields = core.Fields{}
	}
	return core.Record{Kind: kind, ID: w.ID, Owner: w.Owner, Fields: fields, Synced: true}
}

// Push upserts rec on the server.
func (c *Client) Push(ctx context.Context, kind core.Kind, rec core.Record) (core.Ack, error) {
	body := wireRecord{ID: rec.ID, Owner: rec.Owner, Fields: rec.Fields}
	var ack wireAck
	if err := c.do(ctx, http.MethodPut, c.recordPath(kind, rec.ID), nil, body, &ack); err != nil {
		return core.Ack{}, err
	}
	if ack.ID == "" {
		ack.ID = rec.ID
	}
	return core.Ack{ID: ack.ID, Revision: ack.Revision}, nil
}

// PullAll returns the records changed on the server since the marker.
func (c *Client) PullAll(ctx context.Context, kind core.Kind, since string) (core.Page, error) {
	query := url.Values{}
	if since != "" {
		query.Set("since", since)
	}
	var page wirePage
	if err := c.do(ctx, http.MethodGet, "/api/"+kind.Collection(), query, nil, &page); err != nil {
		return core.Page{}, err
	}
	out := core.Page{Marker: page.Marker, Records: make([]core.Record, 0, len(page.Records))}
	for _, r := range page.Records {
		out.Records = append(out.Records, r.record(kind))
	}
	return out, nil
}

// PullOne fetches one record. A 404 maps to core.ErrNotFound.
func (c *Client) PullOne(ctx context.Context, kind core.Kind, id string) (core.Record, error) {
	var rec wireRecord
	if err := c.do(ctx, http.MethodGet, c.recordPath(kind, id), nil, nil, &rec); err != nil {
		if core.IsNotFound(err) {
			return core.Record{}, core.NotFound("pull one", kind, id)
		}
		return core.Record{}, err
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return rec.record(kind), nil
}

// Ping checks the server is reachable. A server without a health route
// answers 404, which still counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, nil)
	if core.IsNotFound(err) {
		return nil
	}
	return err
}

func (c *Client) recordPath(kind core.Kind, id string) string {
	return "/api/" + kind.Collection() + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	target := c.base.String() + path
	if q := query.Encode(); q != "" {
		target += "?" + q
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.logger.Debug("remote request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return core.NotFound(method+" "+path, "", "")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RemoteError{
			Method:     method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

var _ core.RemoteDAO = (*Client)(nil)
var _ core.Pinger = (*Client)(nil)
