package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVER_URL", "https://shop.example.com/")
	t.Setenv("MYSQL_DSN", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, int64(5*1024*1024), cfg.UploadMaxBytes)
	assert.Equal(t, "local", cfg.StorageDriver)
	assert.Equal(t, "https://shop.example.com", cfg.PublicBaseURL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{DBUser: "app", DBPassword: "secret", DBHost: "db", DBPort: 3307, DBName: "shop"}
	assert.Equal(t, "app:secret@tcp(db:3307)/shop?charset=utf8mb4&parseTime=True&loc=Local", cfg.DSN())

	cfg.MySQLDSN = "override"
	assert.Equal(t, "override", cfg.DSN())
}

func TestConfig_DSN_SQLite(t *testing.T) {
	cfg := &Config{DBDriver: "sqlite", SQLitePath: "dev.db", MySQLDSN: "ignored"}
	assert.Equal(t, "dev.db", cfg.DSN())
}
