package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wheelhouse-dev/wheelhouse/internal/models"
	"github.com/wheelhouse-dev/wheelhouse/internal/normalize"
)

// strikeMatchEpsilon defines the precision tolerance for matching strike
// prices when picking a contract out of a chain.
const strikeMatchEpsilon = 1e-3

const defaultHTTPTimeout = 15 * time.Second

// TradierClient fetches option chains and underlying quotes from the
// Tradier market-data API and normalizes them into canonical quotes.
type TradierClient struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

// Ensure TradierClient implements Provider at compile time.
var _ Provider = (*TradierClient)(nil)

// NewTradierClient creates a Tradier market-data client. baseURL may be
// empty for the production endpoint; sandbox selects the paper endpoint.
func NewTradierClient(apiKey, baseURL string, sandbox bool) *TradierClient {
	if baseURL == "" {
		if sandbox {
			baseURL = "https://sandbox.tradier.com/v1"
		} else {
			baseURL = "https://api.tradier.com/v1"
		}
	}
	return &TradierClient{
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// WithHTTPClient swaps the underlying HTTP client (tests inject
// httptest-backed clients here).
func (t *TradierClient) WithHTTPClient(c *http.Client) *TradierClient {
	if c != nil {
		t.client = c
	}
	return t
}

// singleOrArray tolerates the vendor's habit of returning a bare object
// where one element matched and an array otherwise.
type singleOrArray[T any] []T

func (s *singleOrArray[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`"null"`)) {
		return nil
	}
	if b[0] == '[' {
		return json.Unmarshal(b, (*[]T)(s))
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*s = append(*s, one)
	return nil
}

type chainGreeks struct {
	Delta  float64 `json:"delta"`
	Gamma  float64 `json:"gamma"`
	Theta  float64 `json:"theta"`
	Vega   float64 `json:"vega"`
	MidIV  float64 `json:"mid_iv"`
	SmvVol float64 `json:"smv_vol"`
}

type chainOption struct {
	Greeks         *chainGreeks `json:"greeks,omitempty"`
	Symbol         string       `json:"symbol"`
	OptionType     string       `json:"option_type"`
	ExpirationDate string       `json:"expiration_date"`
	Underlying     string       `json:"underlying"`
	Bid            float64      `json:"bid"`
	Ask            float64      `json:"ask"`
	Last           float64      `json:"last"`
	Close          float64      `json:"close"`
	Volume         int64        `json:"volume"`
	OpenInterest   int64        `json:"open_interest"`
	Strike         float64      `json:"strike"`
}

type chainResponse struct {
	Options struct {
		Option singleOrArray[chainOption] `json:"option"`
	} `json:"options"`
}

type quoteItem struct {
	Symbol string  `json:"symbol"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Last   float64 `json:"last"`
}

type quotesResponse struct {
	Quotes struct {
		Quote singleOrArray[quoteItem] `json:"quote"`
	} `json:"quotes"`
}

// FetchQuote retrieves the chain for the request's expiry and picks out the
// matching contract. 429s map to ErrRateLimited, missing contracts to
// ErrNotFound, and contracts with no derivable mid price to ErrUnavailable.
func (t *TradierClient) FetchQuote(ctx context.Context, req QuoteRequest) (*models.OptionQuote, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("expiration", req.Expiry)
	params.Set("greeks", "true")
	endpoint := t.baseURL + "/markets/options/chains?" + params.Encode()

	var response chainResponse
	if err := t.makeRequestCtx(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	for i := range response.Options.Option {
		opt := &response.Options.Option[i]
		if math.Abs(opt.Strike-req.Strike) > strikeMatchEpsilon {
			continue
		}
		if !strings.EqualFold(opt.OptionType, string(req.Type)) {
			continue
		}
		quote, ok := normalize.NormalizeQuote(rawFromChain(req, opt), normalize.QuoteOptions{})
		if !ok {
			return nil, fmt.Errorf("%s: %w", req.Key(), ErrUnavailable)
		}
		return &quote, nil
	}

	return nil, fmt.Errorf("%s: %w", req.Key(), ErrNotFound)
}

// FetchSpot retrieves the current spot price context for an underlying.
func (t *TradierClient) FetchSpot(ctx context.Context, symbol string) (*models.PriceContext, error) {
	params := url.Values{}
	params.Set("symbols", symbol)
	params.Set("greeks", "false")
	endpoint := t.baseURL + "/markets/quotes?" + params.Encode()

	var response quotesResponse
	if err := t.makeRequestCtx(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	quotes := response.Quotes.Quote
	if len(quotes) == 0 {
		return nil, fmt.Errorf("no quote found for symbol %s: %w", symbol, ErrNotFound)
	}

	first := quotes[0]
	current := first.Last
	if current <= 0 {
		current = first.Close
	}
	if current <= 0 {
		return nil, fmt.Errorf("no usable price for symbol %s: %w", symbol, ErrUnavailable)
	}

	return &models.PriceContext{
		Current:   current,
		Open:      first.Open,
		High:      first.High,
		Low:       first.Low,
		Close:     first.Close,
		Date:      time.Now().UTC().Format("2006-01-02"),
		Timeframe: "daily",
	}, nil
}

// rawFromChain converts one vendor chain entry into the normalizer's raw
// quote shape. Zeroed bid/ask means no quote on that side, so those become
// nil rather than zero pointers.
func rawFromChain(req QuoteRequest, opt *chainOption) normalize.RawQuote {
	raw := normalize.RawQuote{
		Ticker:       req.Symbol,
		Strike:       opt.Strike,
		Expiry:       opt.ExpirationDate,
		Type:         opt.OptionType,
		OpenInterest: opt.OpenInterest,
		Volume:       opt.Volume,
	}
	if opt.Bid > 0 {
		raw.Bid = &opt.Bid
	}
	if opt.Ask > 0 {
		raw.Ask = &opt.Ask
	}
	if opt.Last > 0 {
		raw.Last = &opt.Last
	}
	if opt.Close > 0 {
		raw.Close = &opt.Close
	}
	if g := opt.Greeks; g != nil {
		raw.Greeks = &normalize.RawGreeks{}
		if g.Delta != 0 {
			raw.Greeks.Delta = &g.Delta
		}
		if g.Gamma != 0 {
			raw.Greeks.Gamma = &g.Gamma
		}
		if g.Theta != 0 {
			raw.Greeks.Theta = &g.Theta
		}
		if g.Vega != 0 {
			raw.Greeks.Vega = &g.Vega
		}
		if g.MidIV > 0 {
			raw.Greeks.IV = &g.MidIV
		} else if g.SmvVol > 0 {
			raw.Greeks.IV = &g.SmvVol
		}
	}
	return raw
}

// makeRequestCtx makes a GET request with context support and decodes the
// JSON response. Non-2xx statuses become *APIError; 429 additionally wraps
// ErrRateLimited so callers can branch with errors.Is.
func (t *TradierClient) makeRequestCtx(ctx context.Context, endpoint string, response interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}

	req.Header.Add("Authorization", "Bearer "+t.apiKey)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("User-Agent", "wheelhouse/1.0 (+tradier)")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := resp.Header.Get("Retry-After")
		return fmt.Errorf("GET %s (retry-after: %s): %w", endpoint, retryAfter, ErrRateLimited)
	}

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) // 64KB cap to avoid huge payloads
		if readErr != nil {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("GET %s -> failed to read error body", endpoint)}
		}
		apiErr := &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("GET %s -> %s", endpoint, string(body))}
		if resp.StatusCode == http.StatusNotFound {
			return errors.Join(ErrNotFound, apiErr)
		}
		return apiErr
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(response); err != nil && err != io.EOF {
		return err
	}
	return nil
}
