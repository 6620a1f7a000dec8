package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/carshare/internal/accounts"
	"github.com/geocoder89/carshare/internal/config"
	"github.com/geocoder89/carshare/internal/domain/user"
	"github.com/geocoder89/carshare/internal/http/middlewares"
	"github.com/geocoder89/carshare/internal/observability"
	"github.com/gin-gonic/gin"
)

type AccountService interface {
	SignUp(ctx context.Context, req user.SignUpRequest) (user.User, string, error)
	Authenticate(ctx context.Context, req user.LoginRequest) (user.User, string, error)
}

type AuthHandler struct {
	accounts AccountService
	prom     *observability.Prom
}

func NewAuthHandler(accounts AccountService, prom *observability.Prom) *AuthHandler {
	return &AuthHandler{accounts: accounts, prom: prom}
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req user.SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// bcrypt dominates this call
	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, token, err := h.accounts.SignUp(cctx, req)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			h.prom.AuthResult("signup", "email_taken")
			RespondRejected(ctx, "email_taken", "User already exists")
			return
		}

		h.prom.AuthResult("signup", "error")
		slog.Default().ErrorContext(ctx.Request.Context(), "signup failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not create user")
		return
	}

	h.prom.AuthResult("signup", "ok")
	ctx.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    u.Owner(),
		"token":   token,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, token, err := h.accounts.Authenticate(cctx, req)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			h.prom.AuthResult("login", "invalid_credentials")
			RespondRejected(ctx, "invalid_credentials", "Invalid credentials")
			return
		}

		h.prom.AuthResult("login", "error")
		slog.Default().ErrorContext(ctx.Request.Context(), "login failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not log in")
		return
	}

	h.prom.AuthResult("login", "ok")
	ctx.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    u.Owner(),
	})
}

// Me returns the identity behind the bearer token.
func (h *AuthHandler) Me(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "No token, authorization denied")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u.Owner()})
}
