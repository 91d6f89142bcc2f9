package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeadmin/internal/auth"
	"storeadmin/internal/bootstrap"
	"storeadmin/internal/config"
	"storeadmin/internal/db"
	apperrors "storeadmin/internal/errors"
	"storeadmin/internal/logger"
	"storeadmin/internal/model"
	"storeadmin/internal/storage"
)

const (
	testSecret   = "test-secret"
	testBaseURL  = "http://shop.test"
	adminEmail   = "admin@example.com"
	adminPass    = "admin123"
	userPassword = "hunter22"
)

type testServer struct {
	e *echo.Echo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	gormDB, err := db.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := logger.Discard()
	require.NoError(t, bootstrap.Initialize(context.Background(), gormDB, bootstrap.AdminSeed{
		Email:    adminEmail,
		Password: adminPass,
		Name:     "Admin",
	}, log))

	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:      testSecret,
		PublicBaseURL:  testBaseURL,
		UploadMaxBytes: 5 << 20,
		CORSOrigins:    []string{"*"},
	}
	e, err := New(cfg, Deps{DB: gormDB, Store: store, Logger: log})
	require.NoError(t, err)
	return &testServer{e: e}
}

func (s *testServer) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) json(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return s.do(req, token)
}

type imagePart struct {
	filename    string
	contentType string
	data        []byte
}

func (s *testServer) multipart(t *testing.T, method, path, token string, fields map[string]string, image *imagePart) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, image.filename))
		h.Set("Content-Type", image.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(image.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return s.do(req, token)
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := s.json(t, http.MethodPost, "/api/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func (s *testServer) registerUser(t *testing.T, email string) string {
	t.Helper()
	rec := s.json(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": "Jane", "email": email, "password": userPassword, "mobile": "555", "gender": "F",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return s.login(t, email, userPassword)
}

func (s *testServer) createCategory(t *testing.T, token, name string) string {
	t.Helper()
	rec := s.json(t, http.MethodPost, "/api/categories", token, map[string]string{"name": name})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		CategoryID string `json:"categoryId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.CategoryID)
	return body.CategoryID
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var body apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func jpeg(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00})
	return data
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	payload := map[string]string{"name": "Jane", "email": "jane@example.com", "password": "pw", "mobile": "1", "gender": "F"}

	rec := s.json(t, http.MethodPost, "/api/register", "", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "message")

	rec = s.json(t, http.MethodPost, "/api/register", "", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "DUPLICATE_EMAIL", decodeError(t, rec).Code)
}

func TestRegister_MissingFields(t *testing.T) {
	s := newTestServer(t)
	rec := s.json(t, http.MethodPost, "/api/register", "", map[string]string{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	jwtService := auth.NewJWTService(testSecret)

	rec := s.json(t, http.MethodPost, "/api/login", "", map[string]string{"email": adminEmail, "password": adminPass})
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Token string `json:"token"`
		User  struct {
			ID      string `json:"id"`
			Email   string `json:"email"`
			IsAdmin bool   `json:"isAdmin"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.User.IsAdmin)
	assert.Equal(t, adminEmail, body.User.Email)

	claims, err := jwtService.ValidateToken(body.Token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, body.User.ID, claims.UserID)

	userToken := s.registerUser(t, "jane@example.com")
	claims, err = jwtService.ValidateToken(userToken)
	require.NoError(t, err)
	assert.False(t, claims.IsAdmin)

	wrongPassword := s.json(t, http.MethodPost, "/api/login", "", map[string]string{"email": adminEmail, "password": "nope"})
	unknownEmail := s.json(t, http.MethodPost, "/api/login", "", map[string]string{"email": "ghost@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestBearerAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.json(t, http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "MISSING_TOKEN", decodeError(t, rec).Code)

	rec = s.json(t, http.MethodGet, "/api/products", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", decodeError(t, rec).Code)

	forged, err := auth.NewJWTService("other-secret").GenerateAccessToken("someone", true)
	require.NoError(t, err)
	rec = s.json(t, http.MethodGet, "/api/users", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutes_ForbiddenForNonAdmin(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, adminEmail, adminPass)
	categoryID := s.createCategory(t, adminToken, "Electronics")
	userToken := s.registerUser(t, "jane@example.com")

	tests := []struct {
		name string
		do   func() *httptest.ResponseRecorder
	}{
		{"create product", func() *httptest.ResponseRecorder {
			return s.multipart(t, http.MethodPost, "/api/products", userToken,
				map[string]string{"name": "Phone", "categoryId": categoryID, "price": "1"}, nil)
		}},
		{"create product invalid payload", func() *httptest.ResponseRecorder {
			return s.multipart(t, http.MethodPost, "/api/products", userToken, nil, nil)
		}},
		{"update product", func() *httptest.ResponseRecorder {
			return s.multipart(t, http.MethodPut, "/api/products/any", userToken, nil, nil)
		}},
		{"delete product", func() *httptest.ResponseRecorder {
			return s.json(t, http.MethodDelete, "/api/products/any", userToken, nil)
		}},
		{"create category", func() *httptest.ResponseRecorder {
			return s.json(t, http.MethodPost, "/api/categories", userToken, map[string]string{"name": ""})
		}},
		{"update category", func() *httptest.ResponseRecorder {
			return s.json(t, http.MethodPut, "/api/categories/"+categoryID, userToken, map[string]string{"name": "X"})
		}},
		{"delete category", func() *httptest.ResponseRecorder {
			return s.json(t, http.MethodDelete, "/api/categories/"+categoryID, userToken, nil)
		}},
		{"list users", func() *httptest.ResponseRecorder {
			return s.json(t, http.MethodGet, "/api/users", userToken, nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.do()
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)
		})
	}

	rec := s.json(t, http.MethodGet, "/api/categories", userToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.json(t, http.MethodGet, "/api/products", userToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListUsers_HidesPasswords(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, adminEmail, adminPass)
	s.registerUser(t, "jane@example.com")

	rec := s.json(t, http.MethodGet, "/api/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	var users []model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Len(t, users, 2)
}

func TestCategories_Validation(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, adminEmail, adminPass)

	s.createCategory(t, adminToken, "Electronics")

	tests := []struct {
		name string
		body map[string]string
		code string
	}{
		{"duplicate", map[string]string{"name": "Electronics"}, "DUPLICATE_NAME"},
		{"empty", map[string]string{"name": ""}, "VALIDATION_ERROR"},
		{"whitespace", map[string]string{"name": "   "}, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.json(t, http.MethodPost, "/api/categories", adminToken, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestCategories_DeleteInUse(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, adminEmail, adminPass)
	categoryID := s.createCategory(t, adminToken, "Electronics")

	rec := s.multipart(t, http.MethodPost, "/api/products", adminToken,
		map[string]string{"name": "Phone", "categoryId": categoryID, "price": "10"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		Product model.Product `json:"product"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = s.json(t, http.MethodDelete, "/api/categories/"+categoryID, adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CATEGORY_IN_USE", decodeError(t, rec).Code)

	rec = s.json(t, http.MethodDelete, "/api/products/"+created.Product.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.json(t, http.MethodDelete, "/api/categories/"+categoryID, adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCategories_UpdateAndList(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, adminEmail, adminPass)
	id := s.createCategory(t, adminToken, "Toys")
	s.createCategory(t, adminToken, "Books")

	rec := s.json(t, http.MethodPut, "/api/categories/"+id, adminToken, map[string]string{"name": "Games", "description": "Board games"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.json(t, http.MethodGet, "/api/categories", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var categories []model.Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &categories))
	require.Len(t, categories, 2)
	assert.Equal(t, "Books", categories[0].Name)
	assert.Equal(t, "Games", categories[1].Name)
	assert.Equal(t, "Board games", categories[1].Description)
}

func TestProducts_ImageUpload(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, adminEmail, adminPass)
	categoryID := s.createCategory(t, adminToken, "Electronics")
	fields := map[string]string{"name": "Phone", "categoryId": categoryID, "description": "Smart", "price": "499.99"}

	t.Run("non-image rejected", func(t *testing.T) {
		rec := s.multipart(t, http.MethodPost, "/api/products", adminToken, fields,
			&imagePart{filename: "notes.txt", contentType: "text/plain", data: []byte("hello")})
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("oversized image rejected", func(t *testing.T) {
		rec := s.multipart(t, http.MethodPost, "/api/products", adminToken, fields,
			&imagePart{filename: "big.jpg", contentType: "image/jpeg", data: jpeg(6 << 20)})
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("1 MiB jpeg accepted and reachable", func(t *testing.T) {
		data := jpeg(1 << 20)
		rec := s.multipart(t, http.MethodPost, "/api/products", adminToken, fields,
			&imagePart{filename: "phone.jpg", contentType: "image/jpeg", data: data})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var created struct {
			Message string        `json:"message"`
			Product model.Product `json:"product"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		require.NotNil(t, created.Product.ImageURL)
		imageURL := *created.Product.ImageURL
		assert.True(t, strings.HasPrefix(imageURL, testBaseURL+"/uploads/product-"), imageURL)
		assert.True(t, strings.HasSuffix(imageURL, ".jpg"), imageURL)

		req := httptest.NewRequest(http.MethodGet, strings.TrimPrefix(imageURL, testBaseURL), nil)
		img := s.do(req, "")
		require.Equal(t, http.StatusOK, img.Code)
		assert.Equal(t, "image/jpeg", img.Header().Get(echo.HeaderContentType))
		assert.Equal(t, len(data), img.Body.Len())
	})

	rec := s.json(t, http.MethodGet, "/api/products", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var products []model.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	assert.Len(t, products, 1)
}

func TestProducts_RoundTrip(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, adminEmail, adminPass)
	categoryID := s.createCategory(t, adminToken, "Electronics")

	rec := s.multipart(t, http.MethodPost, "/api/products", adminToken,
		map[string]string{"name": "Radio", "categoryId": categoryID, "description": "FM", "price": "19.99"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.json(t, http.MethodGet, "/api/products", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var products []model.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 1)

	p := products[0]
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Radio", p.Name)
	assert.Equal(t, "FM", p.Description)
	assert.Equal(t, categoryID, p.CategoryID)
	assert.Equal(t, "Electronics", p.CategoryName)
	assert.True(t, decimal.RequireFromString("19.99").Equal(p.Price))
	assert.Nil(t, p.ImageURL)

	rec = s.multipart(t, http.MethodPut, "/api/products/"+p.ID, adminToken,
		map[string]string{"name": "Radio 2", "categoryId": categoryID, "price": "25"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.json(t, http.MethodGet, "/api/products", adminToken, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 1)
	assert.Equal(t, "Radio 2", products[0].Name)
	assert.Empty(t, products[0].Description)
	assert.True(t, decimal.NewFromInt(25).Equal(products[0].Price))
}

func TestProducts_Validation(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, adminEmail, adminPass)
	categoryID := s.createCategory(t, adminToken, "Electronics")

	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"missing name", map[string]string{"categoryId": categoryID, "price": "1"}},
		{"missing price", map[string]string{"name": "Phone", "categoryId": categoryID}},
		{"bad price", map[string]string{"name": "Phone", "categoryId": categoryID, "price": "cheap"}},
		{"unknown category", map[string]string{"name": "Phone", "categoryId": "missing", "price": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.multipart(t, http.MethodPost, "/api/products", adminToken, tt.fields, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
		})
	}
}

func TestProducts_DeleteMissingIsNoop(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, adminEmail, adminPass)

	rec := s.json(t, http.MethodDelete, "/api/products/does-not-exist", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "message")
}

func TestUploads_NotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/uploads/missing.jpg", nil), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
