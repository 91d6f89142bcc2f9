package handler

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	apperrors "storeadmin/internal/errors"
	"storeadmin/internal/model"
	"storeadmin/internal/service"
)

// ImageAcceptor stores uploaded product images.
type ImageAcceptor interface {
	AcceptFile(ctx context.Context, fh *multipart.FileHeader) (string, error)
	Discard(ctx context.Context, ref string)
}

// ProductHandler handles product endpoints.
type ProductHandler struct {
	catalog service.CatalogService
	images  ImageAcceptor
}

// NewProductHandler creates a product handler.
func NewProductHandler(catalog service.CatalogService, images ImageAcceptor) *ProductHandler {
	return &ProductHandler{catalog: catalog, images: images}
}

// CreateProductResponse carries the stored product.
type CreateProductResponse struct {
	Message string         `json:"message"`
	Product *model.Product `json:"product"`
}

// ListProducts godoc
// @Summary List products
// @Tags products
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Product
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /products [get]
func (h *ProductHandler) ListProducts(c echo.Context) error {
	products, err := h.catalog.ListProducts(c.Request().Context())
	if err != nil {
		return apperrors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, products)
}

// CreateProduct godoc
// @Summary Create product
// @Tags products
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param name formData string true "Name"
// @Param categoryId formData string true "Category ID"
// @Param description formData string false "Description"
// @Param price formData string true "Price"
// @Param image formData file false "Product image"
// @Success 200 {object} CreateProductResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 413 {object} errors.ErrorResponse
// @Failure 415 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /products [post]
func (h *ProductHandler) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()

	in, err := h.readProductForm(c)
	if err != nil {
		return apperrors.ToEcho(err)
	}

	product, err := h.catalog.CreateProduct(ctx, in)
	if err != nil {
		h.discard(ctx, in)
		return apperrors.ToEcho(err)
	}

	return c.JSON(http.StatusOK, CreateProductResponse{
		Message: "Product created successfully",
		Product: product,
	})
}

// UpdateProduct godoc
// @Summary Update product
// @Description Overwrites all fields. The image is replaced only when a new file is sent.
// @Tags products
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Param name formData string true "Name"
// @Param categoryId formData string true "Category ID"
// @Param description formData string false "Description"
// @Param price formData string true "Price"
// @Param image formData file false "Product image"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 413 {object} errors.ErrorResponse
// @Failure 415 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /products/{id} [put]
func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()

	in, err := h.readProductForm(c)
	if err != nil {
		return apperrors.ToEcho(err)
	}

	if err := h.catalog.UpdateProduct(ctx, c.Param("id"), in); err != nil {
		h.discard(ctx, in)
		return apperrors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Product updated successfully"})
}

// DeleteProduct godoc
// @Summary Delete product
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /products/{id} [delete]
func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	if err := h.catalog.DeleteProduct(c.Request().Context(), c.Param("id")); err != nil {
		return apperrors.ToEcho(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Product deleted successfully"})
}

// readProductForm parses the multipart fields and stores the optional image.
// The image is accepted last so that a malformed field leaves nothing behind.
func (h *ProductHandler) readProductForm(c echo.Context) (service.ProductInput, error) {
	in := service.ProductInput{
		Name:        c.FormValue("name"),
		CategoryID:  strings.TrimSpace(c.FormValue("categoryId")),
		Description: c.FormValue("description"),
	}

	raw := strings.TrimSpace(c.FormValue("price"))
	if raw == "" {
		return in, fmt.Errorf("%w: price is required", apperrors.ErrValidation)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return in, fmt.Errorf("%w: price %q is not a number", apperrors.ErrValidation, raw)
	}
	in.Price = price

	fh, err := c.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return in, nil
	case err != nil:
		return in, fmt.Errorf("%w: read image: %v", apperrors.ErrValidation, err)
	}

	ref, err := h.images.AcceptFile(c.Request().Context(), fh)
	if err != nil {
		return in, err
	}
	in.ImageRef = &ref
	return in, nil
}

func (h *ProductHandler) discard(ctx context.Context, in service.ProductInput) {
	if in.ImageRef != nil {
		h.images.Discard(ctx, *in.ImageRef)
	}
}
