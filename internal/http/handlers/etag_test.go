package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestIfNoneMatchMatches(t *testing.T) {
	tests := []struct {
		header, etag string
		want         bool
	}{
		{`"abc"`, `"abc"`, true},
		{`W/"abc"`, `"abc"`, true},
		{`"x", "abc"`, `"abc"`, true},
		{`*`, `"abc"`, true},
		{`"x"`, `"abc"`, false},
		{``, `"abc"`, false},
	}

	for _, tt := range tests {
		if got := ifNoneMatchMatches(tt.header, tt.etag); got != tt.want {
			t.Fatalf("ifNoneMatchMatches(%q, %q) = %v, want %v", tt.header, tt.etag, got, tt.want)
		}
	}
}

func TestRespondJSONWithETag(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/cars", func(ctx *gin.Context) {
		RespondJSONWithETag(ctx, http.StatusOK, []gin.H{{"id": "c1"}})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cars", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" || w.Header().Get("Cache-Control") != "no-cache" {
		t.Fatalf("missing caching headers: %v", w.Header())
	}
	if !strings.Contains(w.Body.String(), `"id":"c1"`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/cars", nil)
	req.Header.Set("If-None-Match", "W/"+etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotModified || w.Body.Len() != 0 {
		t.Fatalf("expected empty 304, got %d %q", w.Code, w.Body.String())
	}
}
