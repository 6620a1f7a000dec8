package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/carshare/internal/config"
	"github.com/geocoder89/carshare/internal/domain/profile"
	"github.com/geocoder89/carshare/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type ProfilesStore interface {
	GetByUserID(ctx context.Context, userID string) (profile.Profile, error)
	Upsert(ctx context.Context, userID string, req profile.UpsertProfileRequest) (profile.Profile, bool, error)
}

type ProfileHandler struct {
	profiles ProfilesStore
}

func NewProfileHandler(profiles ProfilesStore) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

func (h *ProfileHandler) GetProfile(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "No token, authorization denied")
		return
	}

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	p, err := h.profiles.GetByUserID(cctx, userID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			RespondNotFound(ctx, "Profile not found")
			return
		}
		slog.Default().ErrorContext(ctx.Request.Context(), "get profile failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not fetch profile")
		return
	}

	ctx.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) UpsertProfile(ctx *gin.Context) {
	var req profile.UpsertProfileRequest

	if !BindJSON(ctx, &req) {
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "No token, authorization denied")
		return
	}

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	p, created, err := h.profiles.Upsert(cctx, userID, req)
	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "upsert profile failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not save profile")
		return
	}

	if created {
		ctx.JSON(http.StatusCreated, gin.H{"message": "Profile created successfully", "profile": p})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "profile": p})
}
