package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"storeadmin/internal/auth"
	"storeadmin/internal/model"
	"storeadmin/internal/repository"
)

// AdminSeed identifies the bootstrap administrator.
type AdminSeed struct {
	Email    string
	Password string
	Name     string
}

// Initialize creates missing tables and ensures the administrator account exists.
// It is safe to run on every start.
func Initialize(ctx context.Context, db *gorm.DB, seed AdminSeed, logger *slog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&model.User{},
		&model.Category{},
		&model.Product{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	created, err := EnsureAdmin(ctx, repository.NewUserRepository(db), seed)
	if err != nil {
		return err
	}
	if created {
		logger.Info("admin user created", "email", seed.Email)
	}
	logger.Info("database initialized")
	return nil
}

// EnsureAdmin creates the administrator when no user holds seed.Email.
// A duplicate key on insert means another process got there first and counts as success.
func EnsureAdmin(ctx context.Context, users repository.UserRepository, seed AdminSeed) (bool, error) {
	email := strings.TrimSpace(seed.Email)
	if email == "" || seed.Password == "" {
		return false, errors.New("admin email and password must be set")
	}

	_, err := users.FindByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("look up admin: %w", err)
	}

	hashed, err := auth.HashPassword(seed.Password)
	if err != nil {
		return false, err
	}

	name := seed.Name
	if name == "" {
		name = "Admin User"
	}
	admin := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
		Mobile:       "0000000000",
		Gender:       "Unknown",
		IsAdmin:      true,
	}
	if err := users.Create(ctx, admin); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}
