package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/carshare/internal/domain/car"
	"github.com/geocoder89/carshare/internal/domain/profile"
	"github.com/geocoder89/carshare/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)
	return c
}

func TestLoginSendsJSONAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req user.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ann@x.io", req.Email)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Login successful","token":"tok","user":{"id":"u1","name":"Ann","email":"ann@x.io"}}`))
	})

	res, err := c.Login(context.Background(), user.LoginRequest{Email: "ann@x.io", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
	assert.Equal(t, "u1", res.User.ID)
}

func TestErrorEnvelopeDecoded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"invalid_request","message":"Invalid request body","details":{"fields":[{"field":"year","rule":"caryear","message":"must be between 1900 and 2027"}]}}}`))
	})

	_, err := c.CreateCar(context.Background(), "tok", car.CreateCarRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "invalid_request", apiErr.Code)
	assert.Equal(t, "must be between 1900 and 2027", apiErr.FieldMessages()["year"])
	assert.Equal(t, "Invalid request body", UserMessage(err))
}

func TestBearerTokenSent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	})

	cars, err := c.MyCars(context.Background(), " tok ")
	require.NoError(t, err)
	assert.Empty(t, cars)
}

func TestSearchCarsQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/cars/search", r.URL.Path)
		assert.Equal(t, "new york", r.URL.Query().Get("location"))
		assert.Equal(t, "50.5", r.URL.Query().Get("priceRange"))
		_, _ = w.Write([]byte(`[{"id":"c1","location":"New York, NY"}]`))
	})

	price := 50.5
	cars, err := c.SearchCars(context.Background(), " new york ", &price)
	require.NoError(t, err)
	require.Len(t, cars, 1)
	assert.Equal(t, "c1", cars[0].ID)
}

func TestGetProfileNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"not_found","message":"Profile not found"}}`))
	})

	_, err := c.GetProfile(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestSaveProfileReportsCreated(t *testing.T) {
	status := http.StatusCreated
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"ok","profile":{"id":"p1","firstName":"Ann"}}`))
	})

	req := profile.UpsertProfileRequest{FirstName: "Ann", LastName: "Lee", PhoneNumber: "1", LicenseNumber: "D"}

	p, created, err := c.SaveProfile(context.Background(), "tok", req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "p1", p.ID)

	status = http.StatusOK
	_, created, err = c.SaveProfile(context.Background(), "tok", req)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(base)
	require.NoError(t, err)

	_, err = c.ListCars(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.Equal(t, "Network error. Please try again later.", UserMessage(err))
}

func TestNewNormalisesBaseURL(t *testing.T) {
	c, err := New("localhost:9000/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", c.baseURL)

	c, err = New("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.baseURL)
}
