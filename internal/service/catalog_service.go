package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "storeadmin/internal/errors"
	"storeadmin/internal/model"
	"storeadmin/internal/repository"
)

// ProductInput carries the writable fields of a product.
// ImageRef is nil when the request carried no image.
type ProductInput struct {
	Name        string
	CategoryID  string
	Description string
	Price       decimal.Decimal
	ImageRef    *string
}

// BlobDiscarder removes stored images that are no longer referenced.
type BlobDiscarder interface {
	Discard(ctx context.Context, ref string)
}

// CatalogService manages categories and products.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, id string, in ProductInput) error
	DeleteProduct(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, name, description string) (string, error)
	UpdateCategory(ctx context.Context, id, name, description string) error
	DeleteCategory(ctx context.Context, id string) error
}

type catalogService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	blobs        BlobDiscarder
	baseURL      string
}

// NewCatalogService creates a catalog service. baseURL prefixes image references.
func NewCatalogService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	blobs BlobDiscarder,
	baseURL string,
) CatalogService {
	return &catalogService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		blobs:        blobs,
		baseURL:      strings.TrimRight(baseURL, "/"),
	}
}

// ListProducts returns all products, newest first, with absolute image URLs.
func (s *catalogService) ListProducts(ctx context.Context) ([]model.Product, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if products == nil {
		products = []model.Product{}
	}
	for i := range products {
		s.resolveImage(&products[i])
	}
	return products, nil
}

// CreateProduct stores a new product and returns it as clients see it.
func (s *catalogService) CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error) {
	if err := s.validateProduct(ctx, in); err != nil {
		return nil, err
	}

	product := &model.Product{
		Name:        strings.TrimSpace(in.Name),
		CategoryID:  in.CategoryID,
		Description: in.Description,
		Price:       in.Price,
		ImageURL:    in.ImageRef,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	created, err := s.productRepo.FindByID(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("reload product: %w", err)
	}
	s.resolveImage(created)
	return created, nil
}

// UpdateProduct overwrites every scalar field; the image only when a new one was supplied.
// Updating a missing product is a no-op.
func (s *catalogService) UpdateProduct(ctx context.Context, id string, in ProductInput) error {
	if err := s.validateProduct(ctx, in); err != nil {
		return err
	}

	existing, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if in.ImageRef != nil {
				s.blobs.Discard(ctx, *in.ImageRef)
			}
			return nil
		}
		return fmt.Errorf("find product: %w", err)
	}

	withImage := in.ImageRef != nil
	err = s.productRepo.Update(ctx, &model.Product{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		CategoryID:  in.CategoryID,
		Description: in.Description,
		Price:       in.Price,
		ImageURL:    in.ImageRef,
	}, withImage)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	if withImage && existing.ImageURL != nil && *existing.ImageURL != *in.ImageRef {
		s.blobs.Discard(ctx, *existing.ImageURL)
	}
	return nil
}

// DeleteProduct removes a product and its image. Missing ids succeed.
func (s *catalogService) DeleteProduct(ctx context.Context, id string) error {
	existing, err := s.productRepo.FindByID(ctx, id)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("find product: %w", err)
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	if existing != nil && existing.ImageURL != nil {
		s.blobs.Discard(ctx, *existing.ImageURL)
	}
	return nil
}

// ListCategories returns all categories ordered by name.
func (s *catalogService) ListCategories(ctx context.Context) ([]model.Category, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if categories == nil {
		categories = []model.Category{}
	}
	return categories, nil
}

// CreateCategory creates a category and returns its id.
func (s *catalogService) CreateCategory(ctx context.Context, name, description string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: category name is required", apperrors.ErrValidation)
	}

	existing, err := s.categoryRepo.FindByName(ctx, name)
	if err == nil && existing != nil {
		return "", apperrors.ErrDuplicateCategory
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("check category existence: %w", err)
	}

	category := &model.Category{Name: name, Description: description}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", apperrors.ErrDuplicateCategory
		}
		return "", fmt.Errorf("create category: %w", err)
	}
	return category.ID, nil
}

// UpdateCategory overwrites name and description.
func (s *catalogService) UpdateCategory(ctx context.Context, id, name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: category name is required", apperrors.ErrValidation)
	}

	if err := s.categoryRepo.Update(ctx, id, name, description); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicateCategory
		}
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// DeleteCategory removes a category unless a product still references it.
func (s *catalogService) DeleteCategory(ctx context.Context, id string) error {
	count, err := s.productRepo.CountByCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		return apperrors.ErrCategoryInUse
	}

	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

func (s *catalogService) validateProduct(ctx context.Context, in ProductInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: product name is required", apperrors.ErrValidation)
	}
	if in.CategoryID == "" {
		return fmt.Errorf("%w: categoryId is required", apperrors.ErrValidation)
	}
	if in.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", apperrors.ErrValidation)
	}

	if _, err := s.categoryRepo.FindByID(ctx, in.CategoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: category %s does not exist", apperrors.ErrValidation, in.CategoryID)
		}
		return fmt.Errorf("find category: %w", err)
	}
	return nil
}

// resolveImage rewrites a relative image reference into an absolute URL.
func (s *catalogService) resolveImage(p *model.Product) {
	if p.ImageURL == nil || *p.ImageURL == "" {
		p.ImageURL = nil
		return
	}
	ref := *p.ImageURL
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return
	}
	url := s.baseURL + ref
	p.ImageURL = &url
}
