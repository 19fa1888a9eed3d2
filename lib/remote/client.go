package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/flipcache/lib/mergesync"
	"github.com/ValentinKolb/flipcache/lib/partition"
	"github.com/ValentinKolb/flipcache/lib/records"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("remote")

// ErrStatus is wrapped by every error caused by a non 200 response
var ErrStatus = errors.New("unexpected http status")

// maxResponseBytes limits the size of a decoded response body
const maxResponseBytes = 64 << 20

// Config configures a Client
type Config struct {
	Endpoints     []string
	TimeoutSecond int
	RetryCount    int
}

// Client talks to the remote document store over HTTP. Requests are spread over all
// endpoints round-robin and retried with exponential backoff.
//
// Client implements partition.Lister and mergesync.Fetcher.
type Client struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    atomic.Uint32
	retryCount int
	tokens     partition.TokenProvider
}

// NewClient creates a Client. tokens authenticates the record fetches.
func NewClient(config Config, tokens partition.TokenProvider) (*Client, error) {
	if len(config.Endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints provided")
	}

	// Parse each server URL
	parsedURLs := make([]*url.URL, len(config.Endpoints))
	for i, server := range config.Endpoints {
		parsedURL, err := url.Parse(strings.TrimSuffix(server, "/"))
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint %q: %w", server, err)
		}
		if parsedURL.Scheme == "" || parsedURL.Host == "" {
			return nil, fmt.Errorf("invalid endpoint %q: scheme and host required", server)
		}
		parsedURLs[i] = parsedURL
	}

	retries := config.RetryCount
	if retries < 1 {
		retries = 1
	}

	return &Client{
		serverURLs: parsedURLs,
		client: &http.Client{
			Timeout: time.Duration(config.TimeoutSecond) * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retryCount: retries,
		tokens:     tokens,
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see partition.Lister and mergesync.Fetcher)
// --------------------------------------------------------------------------

func (c *Client) ListPartitions(ctx context.Context, token string, root records.RootKind) ([]string, error) {
	var names []string
	if err := c.get(ctx, token, "/partitions/"+url.PathEscape(string(root)), nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *Client) Fetch(ctx context.Context, req mergesync.FetchRequest) ([]records.Record, error) {
	if c.tokens == nil {
		return nil, partition.ErrNoToken
	}
	token, err := c.tokens.IDToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth token: %w", err)
	}
	if token == "" {
		return nil, partition.ErrNoToken
	}

	query := url.Values{}
	query.Set("uid", req.UID)
	query.Set("filterKey", string(req.FilterKey))
	if !req.From.IsZero() {
		query.Set("from", req.From.UTC().Format(time.RFC3339))
	}
	if req.To != nil {
		query.Set("to", req.To.UTC().Format(time.RFC3339))
	}
	if req.Cursor != "" {
		query.Set("cursor", req.Cursor)
	}
	if req.Paginate {
		query.Set("paginate", "true")
		query.Set("next", strconv.FormatBool(req.FetchNextPage))
	}
	if req.ForceRefresh {
		query.Set("refresh", "true")
	}
	if req.SearchText != "" && len(req.SearchFields) > 0 {
		query.Set("q", req.SearchText)
		query.Set("fields", strings.Join(req.SearchFields, ","))
	}

	path := "/records/" + url.PathEscape(string(req.Root)) + "/" + url.PathEscape(req.Partition)
	var raw []json.RawMessage
	if err := c.get(ctx, token, path, query, &raw); err != nil {
		return nil, err
	}
	return decodeRecords(path, raw), nil
}

// decodeRecords decodes every element on its own. Elements that are not a record
// are logged and dropped, the rest of the response stays usable.
func decodeRecords(path string, raw []json.RawMessage) []records.Record {
	recs := make([]records.Record, 0, len(raw))
	dropped := 0
	for i, elem := range raw {
		var r records.Record
		if err := json.Unmarshal(elem, &r); err != nil {
			dropped++
			Logger.Debugf("dropping element %d of %s: %v", i, path, err)
			continue
		}
		recs = append(recs, r)
	}
	if dropped > 0 {
		Logger.Warningf("dropped %d of %d records from %s", dropped, len(raw), path)
	}
	return recs
}

// Close releases idle connections
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// nextURL selects the next server via round-robin
func (c *Client) nextURL() *url.URL {
	idx := c.counter.Add(1) % uint32(len(c.serverURLs))
	return c.serverURLs[idx]
}

// get sends a GET request and decodes the JSON response into out.
// Network errors and 5xx responses are retried, other responses are final.
func (c *Client) get(ctx context.Context, token, path string, query url.Values, out any) error {
	var lastErr error

	// Initial backoff duration in milliseconds
	backoffMs := 50

	for i := 0; i < c.retryCount; i++ {
		if i > 0 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(jitter) * time.Millisecond):
			}
			backoffMs *= 2
		}

		retry, err := c.do(ctx, token, path, query, out)
		if err == nil {
			return nil
		}
		lastErr = err
		Logger.Debugf("request %s attempt %d/%d failed: %v", path, i+1, c.retryCount, err)
		if !retry {
			break
		}
	}

	return fmt.Errorf("request %s failed: %w", path, lastErr)
}

// do sends a single request. path must already be escaped.
// retry reports whether a failure is worth retrying.
func (c *Client) do(ctx context.Context, token, path string, query url.Values, out any) (retry bool, err error) {
	// copy, the shared URL must not be modified
	target := *c.nextURL()
	rawPath := strings.TrimSuffix(target.EscapedPath(), "/") + path
	if target.Path, err = url.PathUnescape(rawPath); err != nil {
		return false, fmt.Errorf("invalid path %s: %w", rawPath, err)
	}
	target.RawPath = rawPath
	target.RawQuery = query.Encode()

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return false, err
	}
	httpRequest.Header.Set("Accept", "application/json")
	if token != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+token)
	}

	httpResponse, err := c.client.Do(httpRequest)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	if httpResponse.StatusCode != http.StatusOK {
		// drain for connection reuse
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResponse.Body, 4096))
		return httpResponse.StatusCode >= 500, fmt.Errorf("%w: %s", ErrStatus, httpResponse.Status)
	}

	if err := json.NewDecoder(io.LimitReader(httpResponse.Body, maxResponseBytes)).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return false, nil
}
