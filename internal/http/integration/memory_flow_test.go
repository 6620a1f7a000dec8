package integration_test

import (
	"net/http"
	"testing"
	"time"

	apphttp "github.com/geocoder89/carshare/internal/http"
	"github.com/geocoder89/carshare/internal/http/middlewares"
	"github.com/geocoder89/carshare/internal/repo/memory"
)

func TestMarketplaceFlow_Memory(t *testing.T) {
	s := memory.NewStore()
	router := newRouter(s.Users(), s.Cars(), s.Profiles())

	runMarketplaceFlow(t, router)
}

func TestRootAndDocs(t *testing.T) {
	s := memory.NewStore()
	router := newRouter(s.Users(), s.Cars(), s.Profiles())

	w := doRequest(router, http.MethodGet, "/", "", "")
	expectStatus(t, w, http.StatusOK)

	var banner struct {
		Status string `json:"status"`
	}
	mustReadJSON(t, w, &banner)
	if banner.Status != "Car Sharing Platform API is running..." {
		t.Fatalf("unexpected banner %q", banner.Status)
	}

	expectStatus(t, doRequest(router, http.MethodGet, "/docs/openapi.yaml", "", ""), http.StatusOK)
	expectStatus(t, doRequest(router, http.MethodGet, "/healthz", "", ""), http.StatusOK)
	expectStatus(t, doRequest(router, http.MethodGet, "/readyz", "", ""), http.StatusOK)
}

func TestImageUploadRouteAbsentWithoutStorage(t *testing.T) {
	s := memory.NewStore()
	router := newRouter(s.Users(), s.Cars(), s.Profiles())

	w := doRequest(router, http.MethodPost, "/api/car/image-upload", `{"contentType":"image/png"}`, "")
	expectStatus(t, w, http.StatusNotFound)
}

func TestCreateCarRateLimitedPerUser(t *testing.T) {
	s := memory.NewStore()
	router := newRouter(s.Users(), s.Cars(), s.Profiles(), func(d *apphttp.Deps) {
		d.WriteLimiter = middlewares.NewMemoryLimiter(1, time.Minute)
	})

	signup := func(email string) string {
		w := doRequest(router, http.MethodPost, "/api/auth/signup",
			`{"name":"Ann","email":"`+email+`","password":"secret1","confirmPassword":"secret1"}`, "")
		expectStatus(t, w, http.StatusCreated)
		var resp signupResponse
		mustReadJSON(t, w, &resp)
		return resp.Token
	}
	ann := signup("ann@x.io")
	bob := signup("bob@x.io")

	body := `{"make":"Toyota","model":"Corolla","year":2020,"location":"Austin","pricePerDay":45,"availability":true}`

	expectStatus(t, doRequest(router, http.MethodPost, "/api/car", body, ann), http.StatusCreated)

	w := doRequest(router, http.MethodPost, "/api/car", body, ann)
	expectStatus(t, w, http.StatusTooManyRequests)
	var env errorEnvelope
	mustReadJSON(t, w, &env)
	if env.Error.Code != "rate_limited" {
		t.Fatalf("code = %q", env.Error.Code)
	}

	// same client address, different user
	expectStatus(t, doRequest(router, http.MethodPost, "/api/car", body, bob), http.StatusCreated)

	// reads are not limited
	expectStatus(t, doRequest(router, http.MethodGet, "/api/my-cars", "", ann), http.StatusOK)
}
