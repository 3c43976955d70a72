package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-tenant-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "school",
		Password: "secret",
		Name:     "tenants",
		SSLMode:  "require",
	})

	assert.Equal(t, "host=db port=5433 user=school password=secret dbname=tenants sslmode=require", dsn)
}
