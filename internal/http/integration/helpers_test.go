package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/carshare/internal/accounts"
	"github.com/geocoder89/carshare/internal/auth"
	"github.com/geocoder89/carshare/internal/cache"
	apphttp "github.com/geocoder89/carshare/internal/http"
	"github.com/geocoder89/carshare/internal/http/handlers"
	"github.com/geocoder89/carshare/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

const testSecret = "test-secret-key"

// newRouter builds the API with test defaults; opts adjust the deps.
func newRouter(users accounts.UserStore, cars handlers.CarsStore, profiles handlers.ProfilesStore, opts ...func(*apphttp.Deps)) *gin.Engine {
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	deps := apphttp.Deps{
		Env:          "test",
		MaxBodyBytes: 1 << 20,
		Accounts:     accounts.NewService(users, auth.NewManager(testSecret, time.Hour)),
		Cars:         cars,
		Profiles:     profiles,
		Listings:     cache.NewMemoryListings(time.Minute),
		AuthLimiter:  middlewares.NewMemoryLimiter(1000, time.Minute),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return apphttp.NewRouter(logger, deps)
}

// doRequest runs a request against the router; token may be empty.
func doRequest(router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d, body=%s", w.Code, want, w.Body.String())
	}
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type signupResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

type carJSON struct {
	ID           string  `json:"id"`
	UserID       string  `json:"userId"`
	Make         string  `json:"make"`
	Location     string  `json:"location"`
	PricePerDay  float64 `json:"pricePerDay"`
	Availability bool    `json:"availability"`
	User         *struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

// runMarketplaceFlow exercises the whole API against whatever storage the
// router was built with.
func runMarketplaceFlow(t *testing.T, router http.Handler) {
	t.Helper()

	// signup
	w := doRequest(router, http.MethodPost, "/api/auth/signup",
		`{"name":"Ann","email":"ann@x.io","password":"secret1","confirmPassword":"secret1"}`, "")
	expectStatus(t, w, http.StatusCreated)

	var signup signupResponse
	mustReadJSON(t, w, &signup)
	if signup.Token == "" || signup.User.Email != "ann@x.io" || signup.Message != "User registered successfully" {
		t.Fatalf("unexpected signup response: %+v", signup)
	}

	// duplicate signup
	w = doRequest(router, http.MethodPost, "/api/auth/signup",
		`{"name":"Ann2","email":"ANN@x.io","password":"secret1","confirmPassword":"secret1"}`, "")
	expectStatus(t, w, http.StatusBadRequest)
	var dup errorEnvelope
	mustReadJSON(t, w, &dup)
	if dup.Error.Code != "email_taken" {
		t.Fatalf("expected email_taken, got %q", dup.Error.Code)
	}

	// wrong password and unknown email look the same
	wrong := doRequest(router, http.MethodPost, "/api/auth/login", `{"email":"ann@x.io","password":"nope"}`, "")
	unknown := doRequest(router, http.MethodPost, "/api/auth/login", `{"email":"bob@x.io","password":"secret1"}`, "")
	expectStatus(t, wrong, http.StatusBadRequest)
	expectStatus(t, unknown, http.StatusBadRequest)
	var e1, e2 errorEnvelope
	mustReadJSON(t, wrong, &e1)
	mustReadJSON(t, unknown, &e2)
	if e1.Error != e2.Error || e1.Error.Code != "invalid_credentials" {
		t.Fatalf("login failures must be indistinguishable: %+v vs %+v", e1.Error, e2.Error)
	}

	// login
	w = doRequest(router, http.MethodPost, "/api/auth/login", `{"email":"Ann@x.io","password":"secret1"}`, "")
	expectStatus(t, w, http.StatusOK)
	var login signupResponse
	mustReadJSON(t, w, &login)
	token := login.Token
	if token == "" || login.User.ID != signup.User.ID {
		t.Fatalf("unexpected login response: %+v", login)
	}

	// me
	w = doRequest(router, http.MethodGet, "/api/auth/me", "", token)
	expectStatus(t, w, http.StatusOK)

	// protected without token
	expectStatus(t, doRequest(router, http.MethodGet, "/api/my-cars", "", ""), http.StatusUnauthorized)
	expectStatus(t, doRequest(router, http.MethodGet, "/api/my-cars", "", "not-a-jwt"), http.StatusForbidden)

	// my-cars starts empty
	w = doRequest(router, http.MethodGet, "/api/my-cars", "", token)
	expectStatus(t, w, http.StatusOK)
	if body := w.Body.String(); body != "[]" {
		t.Fatalf("expected empty array, got %s", body)
	}

	// warm the listings cache so the create below must invalidate it
	w = doRequest(router, http.MethodGet, "/api/cars", "", "")
	expectStatus(t, w, http.StatusOK)
	if body := w.Body.String(); body != "[]" {
		t.Fatalf("expected no listings yet, got %s", body)
	}

	// create cars
	w = doRequest(router, http.MethodPost, "/api/car",
		`{"make":"Toyota","model":"Corolla","year":2020,"location":"New York, NY","pricePerDay":45,"availability":true}`, token)
	expectStatus(t, w, http.StatusCreated)
	var created struct {
		Message string  `json:"message"`
		Car     carJSON `json:"car"`
	}
	mustReadJSON(t, w, &created)
	if created.Message != "Car listed successfully" || created.Car.UserID != signup.User.ID {
		t.Fatalf("unexpected create response: %+v", created)
	}

	w = doRequest(router, http.MethodPost, "/api/car",
		`{"make":"Honda","model":"Civic","year":2019,"location":"Boston, MA","pricePerDay":30,"availability":true}`, token)
	expectStatus(t, w, http.StatusCreated)

	w = doRequest(router, http.MethodPost, "/api/car",
		`{"make":"Ford","model":"F-150","year":2018,"location":"New York, NY","pricePerDay":70,"availability":false}`, token)
	expectStatus(t, w, http.StatusCreated)

	// validation failure
	w = doRequest(router, http.MethodPost, "/api/car",
		`{"make":"Old","model":"T","year":1899,"location":"X","pricePerDay":10,"availability":true}`, token)
	expectStatus(t, w, http.StatusBadRequest)

	// public listings include the new cars with owners, not the unavailable one
	w = doRequest(router, http.MethodGet, "/api/cars", "", "")
	expectStatus(t, w, http.StatusOK)
	var listed []carJSON
	mustReadJSON(t, w, &listed)
	if len(listed) != 2 {
		t.Fatalf("expected 2 available cars, got %d: %s", len(listed), w.Body.String())
	}
	for _, c := range listed {
		if !c.Availability {
			t.Fatalf("unavailable car listed: %+v", c)
		}
		if c.User == nil || c.User.Email != "ann@x.io" {
			t.Fatalf("expected owner summary on %+v", c)
		}
	}

	// conditional GET
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag on listings")
	}
	req := httptest.NewRequest(http.MethodGet, "/api/cars", nil)
	req.Header.Set("If-None-Match", etag)
	cw := httptest.NewRecorder()
	router.ServeHTTP(cw, req)
	expectStatus(t, cw, http.StatusNotModified)

	// search
	w = doRequest(router, http.MethodGet, "/api/cars/search?location=new%20york", "", "")
	expectStatus(t, w, http.StatusOK)
	var found []carJSON
	mustReadJSON(t, w, &found)
	if len(found) != 1 || found[0].Location != "New York, NY" {
		t.Fatalf("unexpected search result: %s", w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/api/cars/search?priceRange=30", "", "")
	expectStatus(t, w, http.StatusOK)
	found = nil
	mustReadJSON(t, w, &found)
	if len(found) != 1 || found[0].Make != "Honda" {
		t.Fatalf("unexpected price search result: %s", w.Body.String())
	}

	expectStatus(t, doRequest(router, http.MethodGet, "/api/cars/search?priceRange=cheap", "", ""), http.StatusBadRequest)

	// my-cars includes the unavailable car, newest first
	w = doRequest(router, http.MethodGet, "/api/my-cars", "", token)
	expectStatus(t, w, http.StatusOK)
	var mine []carJSON
	mustReadJSON(t, w, &mine)
	if len(mine) != 3 || mine[0].Make != "Ford" {
		t.Fatalf("unexpected my-cars: %s", w.Body.String())
	}

	// profile lifecycle
	expectStatus(t, doRequest(router, http.MethodGet, "/api/profile", "", token), http.StatusNotFound)

	profileBody := `{"firstName":"Ann","lastName":"Lee","phoneNumber":"555-0100","licenseNumber":"D123"}`
	expectStatus(t, doRequest(router, http.MethodPost, "/api/profile", profileBody, token), http.StatusCreated)
	expectStatus(t, doRequest(router, http.MethodPost, "/api/profile", profileBody, token), http.StatusOK)

	w = doRequest(router, http.MethodGet, "/api/profile", "", token)
	expectStatus(t, w, http.StatusOK)
	var prof struct {
		FirstName string `json:"firstName"`
		User      struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	mustReadJSON(t, w, &prof)
	if prof.FirstName != "Ann" || prof.User.Email != "ann@x.io" {
		t.Fatalf("unexpected profile: %s", w.Body.String())
	}

	expectStatus(t, doRequest(router, http.MethodPost, "/api/profile", `{"firstName":"Ann"}`, token), http.StatusBadRequest)
}
