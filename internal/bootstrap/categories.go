package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gorm.io/gorm"

	"storeadmin/internal/model"
	"storeadmin/internal/repository"
)

// DefaultCategories is the catalog skeleton created by the seed command.
var DefaultCategories = []model.Category{
	{Name: "Electronics", Description: "Phones, computers and accessories"},
	{Name: "Books", Description: "Printed and digital books"},
	{Name: "Clothing", Description: "Apparel and footwear"},
	{Name: "Home & Kitchen", Description: "Furniture, appliances and cookware"},
	{Name: "Toys", Description: "Toys and games"},
}

// ParseCategories decodes a JSON array of {"name", "description"} objects.
func ParseCategories(r io.Reader) ([]model.Category, error) {
	var items []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}

	categories := make([]model.Category, 0, len(items))
	for _, item := range items {
		categories = append(categories, model.Category{Name: item.Name, Description: item.Description})
	}
	return categories, nil
}

// SeedCategories creates the categories whose names are not taken yet.
// Blank names are skipped.
func SeedCategories(ctx context.Context, repo repository.CategoryRepository, categories []model.Category) (created, skipped int, err error) {
	for _, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			skipped++
			continue
		}

		_, err := repo.FindByName(ctx, name)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, skipped, fmt.Errorf("look up category %q: %w", name, err)
		}

		category := &model.Category{Name: name, Description: c.Description}
		if err := repo.Create(ctx, category); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				skipped++
				continue
			}
			return created, skipped, fmt.Errorf("create category %q: %w", name, err)
		}
		created++
	}
	return created, skipped, nil
}
