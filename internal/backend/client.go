package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxBodySize = 4 << 20

var errServerStatus = errors.New("server status")

type Config struct {
	BaseURL            string
	Timeout            time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// Client talks to the catalog/order backend. Every call forwards the caller's bearer token
// and is cancelled together with ctx.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[struct{}]
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	return newClient(cfg, httpClient, logger)
}

func newClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "backend",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		breaker:    breaker,
		logger:     logger,
	}
}

func (c *Client) ListMenuItems(ctx context.Context, token string) ([]domain.MenuItem, error) {
	raw, err := call[json.RawMessage](ctx, c, http.MethodGet, "/menu-items", token, nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeList[rawMenuItem](raw)
	if err != nil {
		return nil, wrapf(ErrBadResponse, "menu items: %v", err)
	}
	out := make([]domain.MenuItem, 0, len(items))
	for _, item := range items {
		out = append(out, item.normalize())
	}
	return out, nil
}

func (c *Client) GetMenuItem(ctx context.Context, token string, id int64) (domain.MenuItem, error) {
	raw, err := call[rawMenuItem](ctx, c, http.MethodGet, fmt.Sprintf("/menu-items/%d", id), token, nil)
	if err != nil {
		return domain.MenuItem{}, err
	}
	return raw.normalize(), nil
}

// ListOptionGroups returns the item's option groups in the canonical shape.
func (c *Client) ListOptionGroups(ctx context.Context, token string, menuItemID int64) ([]domain.OptionGroup, error) {
	path := fmt.Sprintf("/menu-items/%d/options", menuItemID)
	raw, err := call[json.RawMessage](ctx, c, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	groups, err := decodeList[rawOptionGroup](raw)
	if err != nil {
		return nil, wrapf(ErrBadResponse, "option groups: %v", err)
	}
	out := make([]domain.OptionGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.normalize())
	}
	return out, nil
}

func (c *Client) PlaceOrder(ctx context.Context, token string, req domain.PlaceOrderRequest) (domain.PlaceOrderResult, error) {
	res, err := call[domain.PlaceOrderResult](ctx, c, http.MethodPost, "/orders", token, req)
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}
	if res.OrderCode == "" {
		return domain.PlaceOrderResult{}, wrapf(ErrBadResponse, "order response without orderCode")
	}
	return res, nil
}

type rawResponse struct {
	status int
	body   []byte
}

func call[T any](ctx context.Context, c *Client, method, path, token string, payload any) (T, error) {
	var zero T
	resp, err := c.do(ctx, method, path, token, payload)
	if err != nil && !errors.Is(err, errServerStatus) {
		return zero, err
	}
	out, err := decodeEnvelope[T](resp.status, resp.body)
	if err != nil {
		c.logger.Debug("backend call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.status),
			zap.Error(err))
	}
	return out, err
}

func (c *Client) do(ctx context.Context, method, path, token string, payload any) (rawResponse, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return rawResponse{}, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return rawResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	var resp rawResponse
	_, err = c.breaker.Execute(func() (struct{}, error) {
		r, err := c.roundTrip(req)
		resp = r
		if err != nil {
			return struct{}{}, err
		}
		if r.status >= http.StatusInternalServerError {
			return struct{}{}, errServerStatus
		}
		return struct{}{}, nil
	})

	switch {
	case err == nil, errors.Is(err, errServerStatus):
		return resp, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return rawResponse{}, wrapf(ErrUnavailable, "%v", err)
	case ctx.Err() != nil:
		return rawResponse{}, ctx.Err()
	default:
		return rawResponse{}, wrapf(ErrUnavailable, "%s %s: %v", method, path, err)
	}
}

func (c *Client) roundTrip(req *http.Request) (rawResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return rawResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return rawResponse{}, fmt.Errorf("read body: %w", err)
	}
	return rawResponse{status: resp.StatusCode, body: body}, nil
}

func wrapf(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
}
