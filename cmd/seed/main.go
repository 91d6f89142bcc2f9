package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"storeadmin/internal/bootstrap"
	"storeadmin/internal/config"
	"storeadmin/internal/db"
	"storeadmin/internal/logger"
	"storeadmin/internal/model"
	"storeadmin/internal/repository"
)

func main() {
	categoriesFile := flag.String("categories", "", "JSON file with [{\"name\", \"description\"}] to seed instead of the defaults")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(context.Background(), cfg, *categoriesFile, log); err != nil {
		log.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, categoriesFile string, log *slog.Logger) error {
	log.Info("starting seed")

	gormDB, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return err
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}

	err = bootstrap.Initialize(ctx, gormDB, bootstrap.AdminSeed{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Name:     cfg.AdminName,
	}, log)
	if err != nil {
		return err
	}

	categories := bootstrap.DefaultCategories
	if categoriesFile != "" {
		categories, err = loadCategories(categoriesFile)
		if err != nil {
			return err
		}
	}

	created, skipped, err := bootstrap.SeedCategories(ctx, repository.NewCategoryRepository(gormDB), categories)
	if err != nil {
		return err
	}

	log.Info("seed completed", "categories_created", created, "categories_skipped", skipped)
	return nil
}

func loadCategories(path string) ([]model.Category, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open categories file: %w", err)
	}
	defer f.Close()
	return bootstrap.ParseCategories(f)
}
