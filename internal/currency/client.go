package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

type RatesClient interface {
	FetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, error)
}

type CountryClient interface {
	LookupCountry(ctx context.Context, name string) (*CountryInfo, error)
}

type ClientConfig struct {
	RatesAPIURL     string
	CountriesAPIURL string
	Timeout         time.Duration
}

// Client talks to the public exchange-rate and country APIs.
type Client struct {
	ratesURL     string
	countriesURL string
	http         *http.Client
	logger       *slog.Logger
}

func NewClient(config ClientConfig, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		ratesURL:     strings.TrimRight(config.RatesAPIURL, "/"),
		countriesURL: strings.TrimRight(config.CountriesAPIURL, "/"),
		http:         &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// FetchRates returns every rate quoted against base.
func (c *Client) FetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/%s", c.ratesURL, url.PathEscape(base))

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, internal.ErrUnsupportedCurrency
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("rates API returned status %d", status)
	}

	var apiResponse struct {
		Base  string                     `json:"base"`
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to decode rates response: %w", err)
	}
	if len(apiResponse.Rates) == 0 {
		return nil, internal.ErrUnsupportedCurrency
	}

	c.logger.Debug("exchange rates fetched", "base", base, "count", len(apiResponse.Rates))
	return apiResponse.Rates, nil
}

// LookupCountry resolves a country name to its primary currency. When a
// country has several currencies the lexically first code is used.
func (c *Client) LookupCountry(ctx context.Context, name string) (*CountryInfo, error) {
	endpoint := fmt.Sprintf("%s/name/%s?fields=name,currencies", c.countriesURL, url.PathEscape(name))

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, internal.ErrCountryNotFound
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("countries API returned status %d", status)
	}

	first := gjson.GetBytes(body, "0")
	if !first.Exists() {
		return nil, internal.ErrCountryNotFound
	}

	currencies := first.Get("currencies").Map()
	if len(currencies) == 0 {
		return nil, internal.ErrCountryNotFound
	}
	codes := make([]string, 0, len(currencies))
	for code := range currencies {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	code := codes[0]
	info := &CountryInfo{
		Name:           first.Get("name.common").String(),
		CurrencyCode:   normalize(code),
		CurrencySymbol: currencies[code].Get("symbol").String(),
	}
	if info.Name == "" {
		info.Name = name
	}
	return info, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
