package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveDBCountsErrorsByClass(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	dup := &pgconn.PgError{Code: "23505"}
	if err := p.ObserveDB("users.create", func() error { return dup }); !errors.Is(err, dup) {
		t.Fatalf("expected error to pass through, got %v", err)
	}

	got := testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.create", "unique_violation"))
	if got != 1 {
		t.Fatalf("expected 1 unique_violation, got %v", got)
	}
}

func TestObserveDBNoRowsIsNotAnError(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	_ = p.ObserveDB("users.get_by_id", func() error { return pgx.ErrNoRows })

	if n := testutil.CollectAndCount(p.DbErrorsTotal); n != 0 {
		t.Fatalf("expected no error series, got %d", n)
	}
}

func TestNilPromHelpersAreSafe(t *testing.T) {
	var p *Prom
	p.CacheResult("hit")
	p.AuthResult("login", "ok")
	p.RateLimited("/api/auth/login")
}

func TestLoggerLevelByEnv(t *testing.T) {
	var buf bytes.Buffer

	log := newLogger(&buf, "prod")
	log.Debug("hidden")
	log.Info("shown", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected a single json record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "shown" || rec["k"] != "v" {
		t.Fatalf("unexpected record: %v", rec)
	}
}
