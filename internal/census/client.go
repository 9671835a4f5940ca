// Package census fetches grouped tree counts from the NYC street tree census
// open data API.
package census

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"treecensus/internal/core"
	"treecensus/internal/log"
)

// DefaultDatasetURL is the 2015 street tree census resource.
const DefaultDatasetURL = "https://data.cityofnewyork.us/resource/uvpi-gqnh.json"

const (
	selectClause = "spc_common,count(tree_id),health,steward"
	groupClause  = "spc_common,health,steward"
	orderClause  = "spc_common,health,steward"

	defaultPageSize = 1000
	maxBodyBytes    = 32 << 20
)

// ErrFetch wraps every failure to retrieve or decode a borough.
var ErrFetch = errors.New("census fetch failed")

// Source produces the raw records for every borough.
type Source interface {
	FetchAll(ctx context.Context) ([]core.RawRecord, error)
}

// Config holds fetcher configuration.
type Config struct {
	BaseURL     string
	AppToken    string
	PageSize    int
	Timeout     time.Duration
	Concurrency int
	Boroughs    []core.Borough
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultDatasetURL,
		PageSize:    defaultPageSize,
		Timeout:     30 * time.Second,
		Concurrency: 1,
		Boroughs:    core.Boroughs(),
	}
}

// Client queries the census API one borough at a time.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *log.Logger
}

var _ Source = (*Client)(nil)

// NewClient creates a fetcher. A nil httpClient gets a pooled client with
// the configured timeout.
func NewClient(cfg Config, httpClient *http.Client, logger *log.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if len(cfg.Boroughs) == 0 {
		cfg.Boroughs = def.Boroughs
	}
	if httpClient == nil {
		httpClient = newHTTPClient(cfg.Timeout)
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.WithComponent(log.ComponentFetcher),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// QueryURL builds the grouped-count query for one borough and page.
func QueryURL(base string, b core.Borough, limit, offset int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse dataset url: %w", err)
	}
	q := u.Query()
	q.Set("$select", selectClause)
	q.Set("$where", fmt.Sprintf("boroname='%s'", b))
	q.Set("$group", groupClause)
	q.Set("$order", orderClause)
	if limit > 0 {
		q.Set("$limit", strconv.Itoa(limit))
		q.Set("$offset", strconv.Itoa(offset))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchAll fetches every configured borough and returns the records in
// borough order. Any borough failure aborts the whole fetch.
func (c *Client) FetchAll(ctx context.Context) ([]core.RawRecord, error) {
	results := make([][]core.RawRecord, len(c.cfg.Boroughs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, b := range c.cfg.Boroughs {
		g.Go(func() error {
			recs, err := c.FetchBorough(gctx, b)
			if err != nil {
				return err
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, r := range results {
		total += len(r)
	}
	out := make([]core.RawRecord, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	c.logger.InfoContext(ctx, "Census fetch complete",
		log.FieldRecords, len(out),
		"boroughs", len(c.cfg.Boroughs))
	return out, nil
}

// FetchBorough pages through the grouped counts of one borough and tags
// every record with it.
func (c *Client) FetchBorough(ctx context.Context, b core.Borough) ([]core.RawRecord, error) {
	var out []core.RawRecord
	for page, offset := 0, 0; ; page, offset = page+1, offset+c.cfg.PageSize {
		recs, err := c.fetchPage(ctx, b, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: borough %s page %d: %w", ErrFetch, b, page, err)
		}
		for i := range recs {
			recs[i].Borough = b
		}
		out = append(out, recs...)

		c.logger.DebugContext(ctx, "Census page fetched",
			log.FieldBorough, string(b),
			log.FieldPage, page,
			log.FieldRecords, len(recs))

		if len(recs) < c.cfg.PageSize {
			break
		}
	}
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, b core.Borough, offset int) ([]core.RawRecord, error) {
	u, err := QueryURL(c.cfg.BaseURL, b, c.cfg.PageSize, offset)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.AppToken != "" {
		req.Header.Set("X-App-Token", c.cfg.AppToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(snippet))
	}

	var recs []core.RawRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&recs); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return recs, nil
}
