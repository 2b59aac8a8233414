package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrNotFound is returned when the engine answers 404 for a requested
// entity. Callers decide whether absence is an error.
var ErrNotFound = errors.New("engine: not found")

// APIError is a non-2xx engine response decoded best effort.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("engine: status %d: %s", e.Status, e.Message)
}

// Client is a read-only HTTP client for the external commerce engine.
// All calls run through a circuit breaker; NotFound does not count as a
// breaker failure.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "commerce-engine",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: cb,
	}
}

// GetCart loads a cart snapshot by id.
func (c *Client) GetCart(ctx context.Context, cartID string) (*Cart, error) {
	var envelope struct {
		Cart Cart `json:"cart"`
	}
	if err := c.get(ctx, "/store/carts/"+url.PathEscape(cartID), nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Cart, nil
}

// GetPromotionByCode loads a promotion with its rules-and-values
// relation eagerly included. The relation has been observed to come
// back empty in some cases; see the promotion resolver's fallback.
func (c *Client) GetPromotionByCode(ctx context.Context, code string) (*Promotion, error) {
	query := url.Values{}
	query.Set("code", code)
	query.Set("fields", "*rules,*rules.values")

	var envelope struct {
		Promotions []Promotion `json:"promotions"`
	}
	if err := c.get(ctx, "/admin/promotions", query, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Promotions) == 0 {
		return nil, ErrNotFound
	}
	return &envelope.Promotions[0], nil
}

// ListRules lists every promotion rule in the system with the owning
// promotion relation included. O(all rules); last-resort path only.
func (c *Client) ListRules(ctx context.Context) ([]Rule, error) {
	query := url.Values{}
	query.Set("fields", "*promotion,*values")

	var envelope struct {
		Rules []Rule `json:"rules"`
	}
	if err := c.get(ctx, "/admin/promotion-rules", query, &envelope); err != nil {
		return nil, err
	}
	return envelope.Rules, nil
}

// GetRegion loads one region by id.
func (c *Client) GetRegion(ctx context.Context, regionID string) (*Region, error) {
	var envelope struct {
		Region Region `json:"region"`
	}
	if err := c.get(ctx, "/store/regions/"+url.PathEscape(regionID), nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Region, nil
}

// ListRegions lists all regions.
func (c *Client) ListRegions(ctx context.Context) ([]Region, error) {
	var envelope struct {
		Regions []Region `json:"regions"`
	}
	if err := c.get(ctx, "/store/regions", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Regions, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("x-publishable-api-key", c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("engine request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read engine response: %w", err)
		}

		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, decodeAPIError(resp.StatusCode, data)
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode engine response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	var payload struct {
		Message string `json:"message"`
	}
	message := "request rejected"
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		message = payload.Message
	}
	return &APIError{Status: status, Message: message}
}
