// Package api is a typed client for the carshare REST API.
package api

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
	"time"

	"github.com/geocoder89/carshare/internal/domain/car"
	"github.com/geocoder89/carshare/internal/domain/profile"
	"github.com/geocoder89/carshare/internal/domain/user"
)

// ErrNetwork wraps every transport failure.
var ErrNetwork = errors.New("network error")

const networkMessage = "Network error. Please try again later."

var ErrProfileNotFound = errors.New("profile not found")

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client for the API at base, e.g. http://localhost:8080.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:8080"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  []FieldError
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

// FieldMessages maps JSON field names to their validation messages.
func (e *APIError) FieldMessages() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		out[f.Field] = f.Message
	}
	return out
}

// UserMessage is the text to show a person for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNetwork) {
		return networkMessage
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return err.Error()
}

type AuthResult struct {
	Message string     `json:"message"`
	Token   string     `json:"token"`
	User    user.Owner `json:"user"`
}

type ImageUpload struct {
	UploadURL string    `json:"uploadUrl"`
	ImageURL  string    `json:"imageUrl"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (c *Client) SignUp(ctx context.Context, req user.SignUpRequest) (AuthResult, error) {
	var out AuthResult
	_, err := c.do(ctx, http.MethodPost, "/api/auth/signup", req, "", &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, req user.LoginRequest) (AuthResult, error) {
	var out AuthResult
	_, err := c.do(ctx, http.MethodPost, "/api/auth/login", req, "", &out)
	return out, err
}

func (c *Client) Me(ctx context.Context, token string) (user.Owner, error) {
	var out struct {
		User user.Owner `json:"user"`
	}
	_, err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, token, &out)
	return out.User, err
}

func (c *Client) ListCars(ctx context.Context) ([]car.Car, error) {
	var out []car.Car
	_, err := c.do(ctx, http.MethodGet, "/api/cars", nil, "", &out)
	return out, err
}

// SearchCars filters available cars; empty location and nil maxPrice are
// left out of the query.
func (c *Client) SearchCars(ctx context.Context, location string, maxPrice *float64) ([]car.Car, error) {
	q := url.Values{}
	if loc := strings.TrimSpace(location); loc != "" {
		q.Set("location", loc)
	}
	if maxPrice != nil {
		q.Set("priceRange", strconv.FormatFloat(*maxPrice, 'f', -1, 64))
	}

	path := "/api/cars/search"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []car.Car
	_, err := c.do(ctx, http.MethodGet, path, nil, "", &out)
	return out, err
}

func (c *Client) CreateCar(ctx context.Context, token string, req car.CreateCarRequest) (car.Car, error) {
	var out struct {
		Car car.Car `json:"car"`
	}
	_, err := c.do(ctx, http.MethodPost, "/api/car", req, token, &out)
	return out.Car, err
}

func (c *Client) MyCars(ctx context.Context, token string) ([]car.Car, error) {
	var out []car.Car
	_, err := c.do(ctx, http.MethodGet, "/api/my-cars", nil, token, &out)
	return out, err
}

// GetProfile returns ErrProfileNotFound for users who never saved one.
func (c *Client) GetProfile(ctx context.Context, token string) (profile.Profile, error) {
	var out profile.Profile
	_, err := c.do(ctx, http.MethodGet, "/api/profile", nil, token, &out)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return profile.Profile{}, ErrProfileNotFound
	}
	return out, err
}

// SaveProfile reports created=true when the profile did not exist before.
func (c *Client) SaveProfile(ctx context.Context, token string, req profile.UpsertProfileRequest) (profile.Profile, bool, error) {
	var out struct {
		Profile profile.Profile `json:"profile"`
	}
	status, err := c.do(ctx, http.MethodPost, "/api/profile", req, token, &out)
	return out.Profile, status == http.StatusCreated, err
}

func (c *Client) PresignImage(ctx context.Context, token, contentType string) (ImageUpload, error) {
	var out ImageUpload
	_, err := c.do(ctx, http.MethodPost, "/api/car/image-upload", map[string]string{"contentType": contentType}, token, &out)
	return out, err
}

// UploadImage PUTs the image bytes to a presigned URL.
func (c *Client) UploadImage(ctx context.Context, uploadURL, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{Status: resp.StatusCode, Message: "image upload failed"}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t := strings.TrimSpace(token); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, extractError(resp)
	}

	if v == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func extractError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}

	data, err := io.ReadAll(resp.Body)
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details struct {
				Fields []FieldError `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}

	apiErr.Code = payload.Error.Code
	apiErr.Message = payload.Error.Message
	apiErr.Fields = payload.Error.Details.Fields
	return apiErr
}
