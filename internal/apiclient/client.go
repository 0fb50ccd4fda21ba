// Package apiclient is a typed client of the public storefront API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/tuanvumaihuynh/storefront/internal/config"
	"github.com/tuanvumaihuynh/storefront/internal/model"
	"github.com/tuanvumaihuynh/storefront/pkg/correlationid"
)

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// Error is a non-2xx answer from the API.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is an API rejection of the credential.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(cfg config.Web) *Client {
	return NewWithHTTPClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.ClientTimeout})
}

func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type UploadProductInput struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Quantity    int      `json:"quantity"`
	Description string   `json:"description"`
	Rating      *float64 `json:"rating,omitempty"`
	Image       string   `json:"image"`
}

type productListResponse struct {
	Products []model.Product `json:"products"`
}

type productResponse struct {
	Message string        `json:"message"`
	Product model.Product `json:"product"`
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Type     string `json:"type"`
}

type authResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	var res productListResponse
	if err := c.do(ctx, http.MethodGet, "/api/products", "", nil, &res); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return res.Products, nil
}

func (c *Client) ListTopRatedProducts(ctx context.Context, limit int) ([]model.Product, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var res productListResponse
	if err := c.do(ctx, http.MethodGet, "/api/products/top?"+q.Encode(), "", nil, &res); err != nil {
		return nil, fmt.Errorf("list top rated products: %w", err)
	}
	return res.Products, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (model.Product, error) {
	var res productResponse
	if err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), "", nil, &res); err != nil {
		return model.Product{}, fmt.Errorf("get product: %w", err)
	}
	return res.Product, nil
}

func (c *Client) UploadProduct(ctx context.Context, token string, in UploadProductInput) (model.Product, error) {
	var res productResponse
	if err := c.do(ctx, http.MethodPost, "/api/products/upload", token, in, &res); err != nil {
		return model.Product{}, fmt.Errorf("upload product: %w", err)
	}
	return res.Product, nil
}

// RateProduct submits one score for the product.
func (c *Client) RateProduct(ctx context.Context, token, id string, score float64) (model.Product, error) {
	body := map[string]any{"_id": id, "rating": score}

	var res productResponse
	if err := c.do(ctx, http.MethodPut, "/api/products/update", token, body, &res); err != nil {
		return model.Product{}, fmt.Errorf("rate product: %w", err)
	}
	return res.Product, nil
}

// Authenticate logs in or signs up depending on authType and returns the
// session token.
func (c *Client) Authenticate(ctx context.Context, email, password, authType string) (string, error) {
	var res authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth", "", authRequest{
		Email:    email,
		Password: password,
		Type:     authType,
	}, &res); err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	return res.Token, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id, ok := correlationid.FromContext(ctx); ok {
		req.Header.Set(correlationid.Header, id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode}

	var res errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&res); err != nil {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}

	apiErr.Code = res.Code
	apiErr.Message = res.Message
	if apiErr.Message == "" {
		apiErr.Message = res.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	return apiErr
}
