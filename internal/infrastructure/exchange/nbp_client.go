// Package exchange adapts external exchange-rate sources to the domain
// RateProvider contract.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/subtrack/backend/internal/domain/shared/valueobject"
)

// maxNBPResponseSize limits the response body size. A table A answer for a
// single currency is well under 1KB.
const maxNBPResponseSize = 64 * 1024

// Errors returned by NBPClient
var (
	// ErrRateNotPublished means NBP has no table A entry for the currency
	ErrRateNotPublished = errors.New("nbp: rate not published")
	// ErrNBPUnavailable wraps transport failures and unexpected statuses
	ErrNBPUnavailable = errors.New("nbp: service unavailable")
)

// MidRateSource returns the PLN price of one unit of a currency
type MidRateSource interface {
	MidRate(ctx context.Context, code valueobject.Currency) (decimal.Decimal, error)
}

// NBPClient talks to the National Bank of Poland public rates API
type NBPClient struct {
	baseURL    string
	httpClient *http.Client
}

// nbpRatesResponse mirrors GET /exchangerates/rates/a/{code}/
type nbpRatesResponse struct {
	Table    string `json:"table"`
	Currency string `json:"currency"`
	Code     string `json:"code"`
	Rates    []struct {
		No            string          `json:"no"`
		EffectiveDate string          `json:"effectiveDate"`
		Mid           decimal.Decimal `json:"mid"`
	} `json:"rates"`
}

// NewNBPClient creates a client. Outbound requests are traced through the
// otelhttp transport.
func NewNBPClient(baseURL string, timeout time.Duration) *NBPClient {
	return &NBPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// MidRate fetches the current table A mid rate for code
func (c *NBPClient) MidRate(ctx context.Context, code valueobject.Currency) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/exchangerates/rates/a/%s/?format=json", c.baseURL, strings.ToLower(code.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("nbp: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrNBPUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxNBPResponseSize))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("nbp: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrRateNotPublished, code)
	case resp.StatusCode != http.StatusOK:
		return decimal.Decimal{}, fmt.Errorf("%w: HTTP %d", ErrNBPUnavailable, resp.StatusCode)
	}

	var parsed nbpRatesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Decimal{}, fmt.Errorf("nbp: failed to parse response: %w", err)
	}
	if len(parsed.Rates) == 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: empty rates for %s", ErrRateNotPublished, code)
	}

	mid := parsed.Rates[0].Mid
	if !mid.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("nbp: non-positive mid rate %s for %s", mid, code)
	}
	return mid, nil
}

var _ MidRateSource = (*NBPClient)(nil)
