// Package dbtest opens throwaway sqlite stores with the procurement schema
// and seeds reference data for package tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/suteetoe/procurement-service/internal/model"
	"github.com/suteetoe/procurement-service/pkg/config"
	"github.com/suteetoe/procurement-service/pkg/database"
)

// Open returns a migrated store backed by a file in t.TempDir.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := &config.DBConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "supply.db"),
		MaxOpenConns: 4,
		LogLevel:     logger.Silent,
	}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// Category inserts a category.
func Category(t testing.TB, db *gorm.DB, description string) *model.Category {
	t.Helper()
	c := &model.Category{Description: description}
	require.NoError(t, db.Create(c).Error)
	return c
}

// Material inserts a material.
func Material(t testing.TB, db *gorm.DB, description string) *model.Material {
	t.Helper()
	m := &model.Material{Description: description}
	require.NoError(t, db.Create(m).Error)
	return m
}

// Supplier inserts a supplier.
func Supplier(t testing.TB, db *gorm.DB, name, email string) *model.Supplier {
	t.Helper()
	s := &model.Supplier{Name: name, Email: email}
	require.NoError(t, db.Create(s).Error)
	return s
}

// Capability registers supplier s for (c, m).
func Capability(t testing.TB, db *gorm.DB, s *model.Supplier, c *model.Category, m *model.Material) {
	t.Helper()
	sm := &model.SupplierMaterial{SupplierID: s.ID, CategoryID: c.ID, MaterialID: m.ID}
	require.NoError(t, db.Omit("Supplier", "Category", "Material").Create(sm).Error)
}

// Count returns the number of rows in the table backing value.
func Count(t testing.TB, db *gorm.DB, value interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(value).Count(&n).Error)
	return n
}
