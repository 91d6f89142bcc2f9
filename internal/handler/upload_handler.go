package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "storeadmin/internal/errors"
	"storeadmin/internal/storage"
)

// UploadHandler serves stored product images.
type UploadHandler struct {
	store storage.Store
}

// NewUploadHandler creates an upload handler.
func NewUploadHandler(store storage.Store) *UploadHandler {
	return &UploadHandler{store: store}
}

// ServeImage godoc
// @Summary Fetch an uploaded image
// @Tags uploads
// @Produce image/*
// @Param filename path string true "File name"
// @Success 200 {file} binary
// @Failure 404 {object} errors.ErrorResponse
// @Router /uploads/{filename} [get]
func (h *UploadHandler) ServeImage(c echo.Context) error {
	key, ok := storage.ValidKey(c.Param("filename"))
	if !ok {
		return apperrors.ToEcho(apperrors.ErrNotFound)
	}

	rc, contentType, err := h.store.Open(c.Request().Context(), key)
	if err != nil {
		return apperrors.ToEcho(err)
	}
	defer rc.Close()

	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	return c.Stream(http.StatusOK, contentType, rc)
}
