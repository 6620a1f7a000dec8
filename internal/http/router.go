package http

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/carshare/internal/accounts"
	"github.com/geocoder89/carshare/internal/cache"
	"github.com/geocoder89/carshare/internal/http/handlers"
	"github.com/geocoder89/carshare/internal/http/middlewares"
	"github.com/geocoder89/carshare/internal/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "carshare-api"

// Deps is everything the router needs. Optional parts are nil when the
// feature is switched off.
type Deps struct {
	Env          string
	CORSOrigins  []string
	MaxBodyBytes int64
	Tracing      bool

	Accounts *accounts.Service
	Cars     handlers.CarsStore
	Profiles handlers.ProfilesStore

	Listings     cache.Listings
	Images       handlers.ImageUploader
	AuthLimiter  middlewares.Limiter
	WriteLimiter middlewares.Limiter
	Prom         *observability.Prom
	Metrics      http.Handler
	Readiness    map[string]handlers.ReadinessCheck
}

func NewRouter(log *slog.Logger, d Deps) *gin.Engine {
	if d.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	if d.Tracing {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(middlewares.RequestLogger(log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.CORSOrigins))
	if d.MaxBodyBytes > 0 {
		r.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))
	}

	// health, metrics, docs
	h := handlers.NewHealthHandler(d.Readiness)
	r.GET("/", h.Root)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	authMW := middlewares.NewAuthMiddleware(d.Accounts)

	authHandler := handlers.NewAuthHandler(d.Accounts, d.Prom)
	carsHandler := handlers.NewCarsHandler(d.Cars, d.Listings, d.Prom)
	profileHandler := handlers.NewProfileHandler(d.Profiles)

	api := r.Group("/api")
	api.Use(middlewares.RequireJSON())

	authGroup := api.Group("/auth")
	if d.AuthLimiter != nil {
		authGroup.Use(middlewares.RateLimit(d.AuthLimiter, middlewares.KeyByIP, d.Prom))
	}
	authGroup.POST("/signup", authHandler.SignUp)
	authGroup.POST("/login", authHandler.Login)

	// public listings
	api.GET("/cars", carsHandler.ListCars)
	api.GET("/cars/search", carsHandler.SearchCars)

	protected := api.Group("")
	protected.Use(authMW.RequireAuth())

	// writes are limited per user, after auth has set the user id
	writes := protected.Group("")
	if d.WriteLimiter != nil {
		writes.Use(middlewares.RateLimit(d.WriteLimiter, middlewares.KeyByUserOrIP, d.Prom))
	}

	protected.GET("/auth/me", authHandler.Me)
	writes.POST("/car", carsHandler.CreateCar)
	protected.GET("/my-cars", carsHandler.MyCars)
	protected.GET("/profile", profileHandler.GetProfile)
	writes.POST("/profile", profileHandler.UpsertProfile)

	if d.Images != nil {
		imagesHandler := handlers.NewImagesHandler(d.Images)
		writes.POST("/car/image-upload", imagesHandler.PresignUpload)
	}

	return r
}
