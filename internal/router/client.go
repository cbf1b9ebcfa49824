package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"solana-dca-engine/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout  = 15 * time.Second
	DefaultQuoteTTL = 30 * time.Second
)

// HTTPClient implements RoutingClient over the service's REST API.
type HTTPClient struct {
	baseURL  string
	client   *http.Client
	quoteTTL time.Duration
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithQuoteTTL sets how long acquired quotes are considered fresh.
func WithQuoteTTL(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.quoteTTL = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new routing service client.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: DefaultTimeout},
		quoteTTL: DefaultQuoteTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ RoutingClient = (*HTTPClient)(nil)

// quoteResponse is the service's raw quote payload.
type quoteResponse struct {
	InputMint            string          `json:"inputMint"`
	OutputMint           string          `json:"outputMint"`
	InAmount             string          `json:"inAmount"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	PriceImpactPct       string          `json:"priceImpactPct"`
	SlippageBps          int             `json:"slippageBps"`
	RoutePlan            json.RawMessage `json:"routePlan"`
}

// errorResponse is the service's error payload.
type errorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// GetQuote prices a route.
func (c *HTTPClient) GetQuote(ctx context.Context, req QuoteRequest) (*domain.Quote, error) {
	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	q.Set("swapMode", "ExactIn")

	body, err := c.get(ctx, "/quote?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var raw quoteResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal quote response: %w", err)
	}

	inAmount, err := strconv.ParseUint(raw.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse inAmount %q: %w", raw.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(raw.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse outAmount %q: %w", raw.OutAmount, err)
	}
	minOut, err := strconv.ParseUint(raw.OtherAmountThreshold, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse otherAmountThreshold %q: %w", raw.OtherAmountThreshold, err)
	}
	impact, err := strconv.ParseFloat(raw.PriceImpactPct, 64)
	if err != nil {
		impact = 0
	}

	return &domain.Quote{
		QuoteID:        uuid.NewString(),
		InputMint:      raw.InputMint,
		OutputMint:     raw.OutputMint,
		InAmount:       inAmount,
		OutAmount:      outAmount,
		MinOutAmount:   minOut,
		PriceImpactPct: impact,
		SlippageBps:    raw.SlippageBps,
		ExpiresAt:      time.Now().UTC().Add(c.quoteTTL),
		RoutePlan:      raw.RoutePlan,
	}, nil
}

// swapRequest is the payload for the swap-assembly endpoint.
type swapRequest struct {
	UserPublicKey   string          `json:"userPublicKey"`
	QuoteResponse   json.RawMessage `json:"quoteResponse"`
	RecentBlockhash string          `json:"recentBlockhash,omitempty"`
	WrapUnwrapSOL   bool            `json:"wrapAndUnwrapSol"`
}

// swapResponse is the service's swap-assembly payload.
type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// BuildSwapTransaction asks the service to assemble the swap transaction.
func (c *HTTPClient) BuildSwapTransaction(ctx context.Context, quote *domain.Quote, userPubkey, blockhash string) (string, error) {
	// The service expects the quote payload it produced. Reconstruct it
	// from the fields we persisted so resumed batches need no cache.
	quoteRaw, err := json.Marshal(quoteResponse{
		InputMint:            quote.InputMint,
		OutputMint:           quote.OutputMint,
		InAmount:             strconv.FormatUint(quote.InAmount, 10),
		OutAmount:            strconv.FormatUint(quote.OutAmount, 10),
		OtherAmountThreshold: strconv.FormatUint(quote.MinOutAmount, 10),
		PriceImpactPct:       strconv.FormatFloat(quote.PriceImpactPct, 'f', -1, 64),
		SlippageBps:          quote.SlippageBps,
		RoutePlan:            quote.RoutePlan,
	})
	if err != nil {
		return "", fmt.Errorf("marshal quote payload: %w", err)
	}

	reqBody, err := json.Marshal(swapRequest{
		UserPublicKey:   userPubkey,
		QuoteResponse:   quoteRaw,
		RecentBlockhash: blockhash,
		WrapUnwrapSOL:   true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var raw swapResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("unmarshal swap response: %w", err)
	}
	if raw.SwapTransaction == "" {
		return "", fmt.Errorf("swap response missing transaction")
	}
	return raw.SwapTransaction, nil
}

func (c *HTTPClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && isNoRouteCode(errResp.ErrorCode, errResp.Error) {
			return nil, ErrNoRoute
		}
		return nil, fmt.Errorf("routing service status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// isNoRouteCode matches the service's no-route error signatures.
func isNoRouteCode(code, message string) bool {
	if code == "COULD_NOT_FIND_ANY_ROUTE" || code == "NO_ROUTES_FOUND" {
		return true
	}
	return strings.Contains(strings.ToLower(message), "no route")
}
