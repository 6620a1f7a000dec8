package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/carshare/internal/config"
	"github.com/geocoder89/carshare/internal/http/middlewares"
	"github.com/geocoder89/carshare/internal/storage/images"
	"github.com/gin-gonic/gin"
)

type ImageUploader interface {
	PresignUpload(ctx context.Context, userID, contentType string) (images.UploadTicket, error)
}

type ImagesHandler struct {
	uploader ImageUploader
}

func NewImagesHandler(uploader ImageUploader) *ImagesHandler {
	return &ImagesHandler{uploader: uploader}
}

type imageUploadRequest struct {
	ContentType string `json:"contentType" binding:"required,oneof=image/jpeg image/png image/webp"`
}

func (h *ImagesHandler) PresignUpload(ctx *gin.Context) {
	var req imageUploadRequest

	if !BindJSON(ctx, &req) {
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "No token, authorization denied")
		return
	}

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	ticket, err := h.uploader.PresignUpload(cctx, userID, req.ContentType)
	if err != nil {
		if errors.Is(err, images.ErrUnsupportedType) {
			RespondBadRequest(ctx, "Unsupported image type", nil)
			return
		}
		slog.Default().ErrorContext(ctx.Request.Context(), "presign upload failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Could not prepare upload")
		return
	}

	ctx.JSON(http.StatusCreated, ticket)
}
