package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lucaspere/picktracker/pkg/utils"
	"go.uber.org/zap"
)

const (
	multiPricePath = "/defi/multi_price"
	ohlcvPath      = "/defi/ohlcv"
	reportPath     = "/defi/token_report"
)

// Client talks to the market-data HTTP API. Failures are surfaced to callers
// untouched: the reconciler retries only on its next scheduled tick.
type Client struct {
	baseURL string
	apiKey  string
	chain   string
	client  *http.Client
	logger  *zap.Logger
}

// Opts is the set of options for a new Client.
type Opts struct {
	BaseURL    string
	APIKey     string
	Chain      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewWithOpts creates a new Client with the given options.
func NewWithOpts(o Opts, logger *zap.Logger) *Client {
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}
	return &Client{
		baseURL: strings.TrimRight(o.BaseURL, "/"),
		apiKey:  o.APIKey,
		chain:   o.Chain,
		client:  client,
		logger:  logger,
	}
}

// NewFromEnv builds a Client from PRICE_FEED_URL, PRICE_FEED_API_KEY,
// PRICE_FEED_CHAIN and PRICE_FEED_TIMEOUT.
func NewFromEnv(logger *zap.Logger) *Client {
	return NewWithOpts(Opts{
		BaseURL: utils.Env("PRICE_FEED_URL", "https://public-api.birdeye.so"),
		APIKey:  utils.Env("PRICE_FEED_API_KEY", ""),
		Chain:   utils.Env("PRICE_FEED_CHAIN", "solana"),
		Timeout: utils.EnvDuration("PRICE_FEED_TIMEOUT", 15*time.Second),
	}, logger)
}

type multiPriceResponse struct {
	Success bool             `json:"success"`
	Data    map[string]Quote `json:"data"`
}

// GetLatest fetches the latest price, market cap and metadata for every
// address in one request. Addresses unknown to the feed are simply absent
// from the result.
func (c *Client) GetLatest(ctx context.Context, addresses []string) (map[string]Quote, error) {
	if len(addresses) == 0 {
		return map[string]Quote{}, nil
	}

	q := url.Values{}
	q.Set("addresses", strings.Join(addresses, ","))

	var resp multiPriceResponse
	if err := c.doGet(ctx, multiPricePath, q, &resp); err != nil {
		return nil, fmt.Errorf("fetch latest quotes: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("feed rejected multi_price request for %d addresses", len(addresses))
	}

	// The feed keys the map itself, but some gateways echo the address only
	// inside the quote. Normalize so callers can rely on the key.
	for addr, quote := range resp.Data {
		if quote.Address == "" {
			quote.Address = addr
			resp.Data[addr] = quote
		}
	}
	return resp.Data, nil
}

type ohlcvResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items []Candle `json:"items"`
	} `json:"data"`
}

// GetHistoricalHigh fetches candles for [from, to] at the given resolution
// (e.g. "15m") and returns the bar with the highest high. Used to seed a
// pick's baseline when it was never reconciled before.
func (c *Client) GetHistoricalHigh(ctx context.Context, address, chain string, from, to time.Time, resolution string) (Candle, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("type", resolution)
	q.Set("time_from", strconv.FormatInt(from.Unix(), 10))
	q.Set("time_to", strconv.FormatInt(to.Unix(), 10))

	var resp ohlcvResponse
	if err := c.doGetChain(ctx, ohlcvPath, q, chain, &resp); err != nil {
		return Candle{}, fmt.Errorf("fetch ohlcv for %s: %w", address, err)
	}
	if !resp.Success {
		return Candle{}, fmt.Errorf("feed rejected ohlcv request for %s", address)
	}

	var max Candle
	for _, item := range resp.Data.Items {
		if item.High.GreaterThan(max.High) {
			max = item
		}
	}
	return max, nil
}

type reportResponse struct {
	Success bool                    `json:"success"`
	Data    map[string]*TokenReport `json:"data"`
}

// GetTokenReport fetches the risk/holder report for address. The report
// collaborator is optional infrastructure: callers tolerate errors and nil
// reports.
func (c *Client) GetTokenReport(ctx context.Context, address string) (*TokenReport, error) {
	q := url.Values{}
	q.Set("address", address)

	var resp reportResponse
	if err := c.doGet(ctx, reportPath, q, &resp); err != nil {
		return nil, fmt.Errorf("fetch token report for %s: %w", address, err)
	}
	return resp.Data[address], nil
}

func (c *Client) doGet(ctx context.Context, path string, query url.Values, out any) error {
	return c.doGetChain(ctx, path, query, c.chain, out)
}

func (c *Client) doGetChain(ctx context.Context, path string, query url.Values, chain string, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}
	if chain != "" {
		req.Header.Set("x-chain", chain)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = utils.DrainAndClose(resp.Body) }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("feed returned %d for %s: %s", resp.StatusCode, path, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
