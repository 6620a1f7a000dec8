package handlers

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/carshare/internal/cache"
	"github.com/geocoder89/carshare/internal/config"
	"github.com/geocoder89/carshare/internal/domain/car"
	"github.com/geocoder89/carshare/internal/http/middlewares"
	"github.com/geocoder89/carshare/internal/observability"
	"github.com/gin-gonic/gin"
)

type CarsStore interface {
	Create(ctx context.Context, ownerID string, req car.CreateCarRequest) (car.Car, error)
	ListAvailable(ctx context.Context) ([]car.Car, error)
	ListByOwner(ctx context.Context, ownerID string) ([]car.Car, error)
	Search(ctx context.Context, filter car.SearchFilter) ([]car.Car, error)
}

type CarsHandler struct {
	cars  CarsStore
	cache cache.Listings
	prom  *observability.Prom
}

// NewCarsHandler wires the listings endpoints. listings may be nil to
// disable caching.
func NewCarsHandler(cars CarsStore, listings cache.Listings, prom *observability.Prom) *CarsHandler {
	return &CarsHandler{cars: cars, cache: listings, prom: prom}
}

func (h *CarsHandler) CreateCar(ctx *gin.Context) {
	var req car.CreateCarRequest

	if !BindJSON(ctx, &req) {
		return
	}

	ownerID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "No token, authorization denied")
		return
	}

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	c, err := h.cars.Create(cctx, ownerID, req)
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "create car failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not list car")
		return
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(cctx); err != nil {
			slog.Default().WarnContext(ctx.Request.Context(), "listings cache invalidate failed", "err", err)
		}
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "Car listed successfully",
		"car":     c,
	})
}

func (h *CarsHandler) ListCars(ctx *gin.Context) {
	h.respondListings(ctx, car.SearchFilter{})
}

func (h *CarsHandler) SearchCars(ctx *gin.Context) {
	var filter car.SearchFilter

	if loc := strings.TrimSpace(ctx.Query("location")); loc != "" {
		filter.Location = &loc
	}

	if raw := strings.TrimSpace(ctx.Query("priceRange")); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
			RespondBadRequest(ctx, "Invalid query parameters", gin.H{
				"fields": []FieldError{{
					Field:   "priceRange",
					Rule:    "number",
					Message: "must be a non-negative number",
				}},
			})
			return
		}
		filter.MaxPrice = &price
	}

	h.respondListings(ctx, filter)
}

func (h *CarsHandler) MyCars(ctx *gin.Context) {
	ownerID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "No token, authorization denied")
		return
	}

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	cars, err := h.cars.ListByOwner(cctx, ownerID)
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "list own cars failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not fetch your cars")
		return
	}

	ctx.JSON(http.StatusOK, cars)
}

func (h *CarsHandler) respondListings(ctx *gin.Context, filter car.SearchFilter) {
	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	key := cache.ListingsKey(filter)

	// gen is taken before the store read so a concurrent create turns the
	// later Set into a no-op.
	var gen uint64
	cacheable := false
	if h.cache != nil {
		var err error
		if gen, err = h.cache.Generation(cctx); err != nil {
			slog.Default().WarnContext(ctx.Request.Context(), "listings cache generation failed", "err", err)
		} else {
			cacheable = true
		}

		cars, hit, err := h.cache.Get(cctx, key)
		switch {
		case err != nil:
			h.prom.CacheResult("error")
			slog.Default().WarnContext(ctx.Request.Context(), "listings cache read failed", "err", err)
		case hit:
			h.prom.CacheResult("hit")
			RespondJSONWithETag(ctx, http.StatusOK, cars)
			return
		default:
			h.prom.CacheResult("miss")
		}
	}

	cars, err := h.cars.Search(cctx, filter)
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "list cars failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not fetch cars")
		return
	}

	if cacheable {
		if err := h.cache.Set(cctx, gen, key, cars); err != nil {
			slog.Default().WarnContext(ctx.Request.Context(), "listings cache write failed", "err", err)
		}
	}

	RespondJSONWithETag(ctx, http.StatusOK, cars)
}
