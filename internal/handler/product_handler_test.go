package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "storeadmin/internal/errors"
	"storeadmin/internal/logger"
	"storeadmin/internal/model"
	"storeadmin/internal/service"
)

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) ListProducts(ctx context.Context) ([]model.Product, error) {
	args := m.Called(ctx)
	products, _ := args.Get(0).([]model.Product)
	return products, args.Error(1)
}

func (m *MockCatalogService) CreateProduct(ctx context.Context, in service.ProductInput) (*model.Product, error) {
	args := m.Called(ctx, in)
	product, _ := args.Get(0).(*model.Product)
	return product, args.Error(1)
}

func (m *MockCatalogService) UpdateProduct(ctx context.Context, id string, in service.ProductInput) error {
	return m.Called(ctx, id, in).Error(0)
}

func (m *MockCatalogService) DeleteProduct(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCatalogService) ListCategories(ctx context.Context) ([]model.Category, error) {
	args := m.Called(ctx)
	categories, _ := args.Get(0).([]model.Category)
	return categories, args.Error(1)
}

func (m *MockCatalogService) CreateCategory(ctx context.Context, name, description string) (string, error) {
	args := m.Called(ctx, name, description)
	return args.String(0), args.Error(1)
}

func (m *MockCatalogService) UpdateCategory(ctx context.Context, id, name, description string) error {
	return m.Called(ctx, id, name, description).Error(0)
}

func (m *MockCatalogService) DeleteCategory(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockImageAcceptor struct {
	mock.Mock
}

func (m *MockImageAcceptor) AcceptFile(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	args := m.Called(ctx, fh)
	return args.String(0), args.Error(1)
}

func (m *MockImageAcceptor) Discard(ctx context.Context, ref string) {
	m.Called(ctx, ref)
}

func productRequest(t *testing.T, method string, fields map[string]string, withImage bool) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if withImage {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="a.png"`)
		h.Set("Content-Type", "image/png")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG\r\n\x1a\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, "/api/products", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestProductHandler_CreateProduct(t *testing.T) {
	fields := map[string]string{"name": "Lamp", "categoryId": "cat-1", "description": "Desk", "price": "12.50"}

	tests := []struct {
		name       string
		withImage  bool
		serviceErr error
		wantStatus int
		wantDrop   bool
	}{
		{"without image", false, nil, http.StatusOK, false},
		{"with image", true, nil, http.StatusOK, false},
		{"service rejects, image discarded", true, apperrors.ErrValidation, http.StatusBadRequest, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := new(MockCatalogService)
			images := new(MockImageAcceptor)
			h := NewProductHandler(catalog, images)

			var ref *string
			if tt.withImage {
				r := "/uploads/product-1-2.png"
				ref = &r
				images.On("AcceptFile", mock.Anything, mock.AnythingOfType("*multipart.FileHeader")).Return(r, nil)
			}
			want := service.ProductInput{
				Name:        "Lamp",
				CategoryID:  "cat-1",
				Description: "Desk",
				Price:       decimal.RequireFromString("12.50"),
				ImageRef:    ref,
			}
			catalog.On("CreateProduct", mock.Anything, mock.MatchedBy(func(in service.ProductInput) bool {
				return in.Name == want.Name && in.CategoryID == want.CategoryID &&
					in.Description == want.Description && in.Price.Equal(want.Price) &&
					(in.ImageRef == nil) == (want.ImageRef == nil)
			})).Return(&model.Product{ID: "p-1", Name: "Lamp"}, tt.serviceErr)
			if tt.wantDrop {
				images.On("Discard", mock.Anything, *ref).Return()
			}

			e := echo.New()
			e.HTTPErrorHandler = apperrors.HTTPErrorHandler(logger.Discard())
			rec := httptest.NewRecorder()
			c := e.NewContext(productRequest(t, http.MethodPost, fields, tt.withImage), rec)

			if err := h.CreateProduct(c); err != nil {
				e.HTTPErrorHandler(err, c)
			}

			assert.Equal(t, tt.wantStatus, rec.Code)
			catalog.AssertExpectations(t)
			images.AssertExpectations(t)
			if !tt.wantDrop {
				images.AssertNotCalled(t, "Discard", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestProductHandler_InvalidPriceSkipsService(t *testing.T) {
	catalog := new(MockCatalogService)
	images := new(MockImageAcceptor)
	h := NewProductHandler(catalog, images)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(productRequest(t, http.MethodPost, map[string]string{"name": "Lamp", "categoryId": "c", "price": "abc"}, true), rec)

	err := h.CreateProduct(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
	catalog.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
	images.AssertNotCalled(t, "AcceptFile", mock.Anything, mock.Anything)
}
