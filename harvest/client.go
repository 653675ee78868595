// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package harvest pulls record collections out of paginated REST
// endpoints. A Client holds the authenticated session and the request
// pacing, Harvest iterates one endpoint page by page and hands out
// records after boundary validation.
package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	gopath "path"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"

	"go.mondoo.com/cnharvest/logger"
)

// Options configure a Client.
type Options struct {
	// BaseURL is the service root, e.g. https://api.securitycenter.microsoft.com
	BaseURL string
	// TokenSource supplies bearer tokens for every request
	TokenSource oauth2.TokenSource
	// HTTPClient overrides the constructed client. When set, TokenSource
	// is ignored and the caller owns authentication.
	HTTPClient *http.Client
	// RateLimit paces all requests of this client
	RateLimit RateLimit
	// DetailDelay spaces out consecutive Detail calls
	DetailDelay time.Duration
	// TraceHTTP dumps requests and responses at trace level
	TraceHTTP bool
}

// Client is an authenticated session against one service. It never
// retries, rate limit responses surface as errors for the caller to
// handle.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	pacer   *pacer
	spacer  *spacer
}

func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("harvest client requires a base url")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base url")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		if opts.TokenSource == nil {
			return nil, errors.New("harvest client requires a token source or a preconfigured http client")
		}
		// own transport, the logging round tripper must not touch
		// http.DefaultTransport
		octx := context.WithValue(context.Background(), oauth2.HTTPClient, cleanhttp.DefaultPooledClient())
		httpClient = oauth2.NewClient(octx, opts.TokenSource)
	}
	if opts.TraceHTTP {
		logger.AttachLoggingTransport(httpClient)
	}

	return &Client{
		baseURL: base,
		http:    httpClient,
		pacer:   newPacer(opts.RateLimit),
		spacer:  newSpacer(opts.DetailDelay),
	}, nil
}

// Harvest starts iterating the endpoint from the first page.
func (c *Client) Harvest(ctx context.Context, ep Endpoint) *Harvest {
	return &Harvest{
		client: c,
		ep:     ep,
		ctx:    ctx,
		total:  -1,
	}
}

// Detail fetches one unpaginated path, e.g. the vulnerabilities of a
// single machine. Responses may be a collection envelope or a single
// object, both normalize to a record slice. Consecutive calls are spaced
// by the configured detail delay.
func (c *Client) Detail(ctx context.Context, path string, schema *Schema) ([]RawRecord, error) {
	c.spacer.wait()

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.resolve(path, nil), nil, &raw); err != nil {
		return nil, err
	}

	records, err := decodeDetail(raw)
	if err != nil {
		return nil, &TransportError{Op: http.MethodGet, URL: c.resolve(path, nil), Err: err}
	}

	if schema != nil {
		for i := range records {
			if err := schema.Validate(records[i]); err != nil {
				return nil, errors.Wrapf(err, "invalid record from %s", path)
			}
		}
	}
	return records, nil
}

// Post sends a JSON body and decodes the JSON response into out when out
// is non-nil.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.send(ctx, http.MethodPost, path, body, out)
}

// Patch sends a JSON body via HTTP PATCH.
func (c *Client) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.send(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) send(ctx context.Context, method, path string, body, out interface{}) error {
	target := c.resolve(path, nil)

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "cannot encode request body")
		}
		reader = bytes.NewReader(buf)
	}
	return c.do(ctx, method, target, reader, out)
}

func (c *Client) fetchPage(ctx context.Context, ep Endpoint, offset int) (*pageEnvelope, error) {
	query := url.Values{}
	for key, vals := range ep.Query {
		query[key] = vals
	}
	query.Set("$skip", strconv.Itoa(offset))
	query.Set("$top", strconv.Itoa(ep.pageSize()))

	var env pageEnvelope
	if err := c.do(ctx, http.MethodGet, c.resolve(ep.Path, query), nil, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// do runs one paced request. 429 responses map to *RateLimitError and
// everything else that goes wrong to *TransportError.
func (c *Client) do(ctx context.Context, method, target string, body io.Reader, out interface{}) error {
	c.pacer.wait()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &TransportError{Op: method, URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: method, URL: target, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{URL: target, RetryAfter: retryAfter(res)}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &TransportError{Op: method, URL: target, Status: res.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		if err == io.EOF {
			// empty body on a 2xx, fine for mutations
			return nil
		}
		return &TransportError{Op: method, URL: target, Err: errors.Wrap(err, "malformed response body")}
	}
	return nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = gopath.Join(u.Path, path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func decodeDetail(raw json.RawMessage) ([]RawRecord, error) {
	var env pageEnvelope
	if err := json.Unmarshal(raw, &env); err == nil {
		if items := env.items(); items != nil {
			return items, nil
		}
	}

	var rec RawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.Wrap(err, "response is neither a collection nor an object")
	}
	return []RawRecord{rec}, nil
}
