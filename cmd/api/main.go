package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/carshare/internal/accounts"
	"github.com/geocoder89/carshare/internal/auth"
	"github.com/geocoder89/carshare/internal/cache"
	"github.com/geocoder89/carshare/internal/config"
	"github.com/geocoder89/carshare/internal/db"
	httpx "github.com/geocoder89/carshare/internal/http"
	"github.com/geocoder89/carshare/internal/http/handlers"
	"github.com/geocoder89/carshare/internal/http/middlewares"
	"github.com/geocoder89/carshare/internal/observability"
	"github.com/geocoder89/carshare/internal/redisclient"
	"github.com/geocoder89/carshare/internal/repo/memory"
	"github.com/geocoder89/carshare/internal/repo/postgres"
	"github.com/geocoder89/carshare/internal/storage/images"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type stores struct {
	users    accounts.UserStore
	cars     handlers.CarsStore
	profiles handlers.ProfilesStore
	ready    handlers.ReadinessCheck
	close    func()
}

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if cfg.OTelEnabled {
		ctx, cancel := config.WithTimeout(5 * time.Second)
		shutdown, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName: "carshare-api",
			Env:         cfg.Env,
			Endpoint:    cfg.OTelEndpoint,
			SampleRatio: cfg.OTelSampleRatio,
		})
		cancel()
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	st, err := openStores(cfg, log, prom)
	if err != nil {
		log.Error("storage init failed", "driver", cfg.StorageDriver, "err", err)
		os.Exit(1)
	}
	defer st.close()

	if cfg.SeedDemo {
		ctx, cancel := config.WithTimeout(10 * time.Second)
		err := db.SeedDemo(ctx, st.users, st.cars)
		cancel()
		if err != nil {
			log.Error("demo seed failed", "err", err)
			os.Exit(1)
		}
		log.Info("demo data ready", "owner", db.DemoOwnerEmail)
	}

	readiness := map[string]handlers.ReadinessCheck{}
	if st.ready != nil {
		readiness["db"] = st.ready
	}

	deps := httpx.Deps{
		Env:          cfg.Env,
		CORSOrigins:  cfg.CORSAllowedOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Tracing:      cfg.OTelEnabled,
		Accounts:     accounts.NewService(st.users, auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)),
		Cars:         st.cars,
		Profiles:     st.profiles,
		Prom:         prom,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Readiness:    readiness,
	}

	if cfg.RedisAddr != "" {
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rc.Close()

		ctx, cancel := config.WithTimeout(2 * time.Second)
		if err := rc.Ping(ctx); err != nil {
			// keep going: the limiter fails open and the cache reports misses
			log.Warn("redis not reachable at startup", "addr", cfg.RedisAddr, "err", err)
		}
		cancel()

		deps.Listings = cache.NewRedisListings(rc.Raw(), cfg.CacheTTL)
		deps.AuthLimiter = middlewares.NewRedisLimiter(rc.Raw(), log, cfg.AuthRateLimit, cfg.AuthRateWindow)
		deps.WriteLimiter = middlewares.NewRedisLimiter(rc.Raw(), log, cfg.WriteRateLimit, cfg.WriteRateWindow)
		readiness["redis"] = rc.Ping
	} else {
		deps.Listings = cache.NewMemoryListings(cfg.CacheTTL)
		deps.AuthLimiter = middlewares.NewMemoryLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow)
		deps.WriteLimiter = middlewares.NewMemoryLimiter(cfg.WriteRateLimit, cfg.WriteRateWindow)
	}

	if cfg.ImagesEnabled() {
		ctx, cancel := config.WithTimeout(5 * time.Second)
		presigner, err := images.NewPresigner(ctx, images.Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		cancel()
		if err != nil {
			log.Error("image storage init failed", "err", err)
			os.Exit(1)
		}
		deps.Images = presigner
	}

	router := httpx.NewRouter(log, deps)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "storage", cfg.StorageDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

func openStores(cfg config.Config, log *slog.Logger, prom *observability.Prom) (stores, error) {
	if cfg.StorageDriver == "memory" {
		log.Warn("using in-memory storage, data is lost on restart")
		s := memory.NewStore()
		return stores{
			users:    s.Users(),
			cars:     s.Cars(),
			profiles: s.Profiles(),
			close:    func() {},
		}, nil
	}

	ctx, cancel := config.WithTimeout(time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DBURL, db.WithMaxConns(int32(cfg.DBMaxConns)), db.WithAppName("carshare-api"))
	if err != nil {
		return stores{}, fmt.Errorf("connect postgres: %w", err)
	}

	if cfg.MigrateOnStart {
		if err := db.NewMigrator(pool, log).Up(ctx); err != nil {
			pool.Close()
			return stores{}, err
		}
	}

	return stores{
		users:    postgres.NewUsersRepo(pool, prom),
		cars:     postgres.NewCarsRepo(pool, prom),
		profiles: postgres.NewProfilesRepo(pool, prom),
		ready:    func(ctx context.Context) error { return pool.Ping(ctx) },
		close:    pool.Close,
	}, nil
}
