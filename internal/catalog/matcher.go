package catalog

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/suteetoe/procurement-service/internal/model"
	"github.com/suteetoe/procurement-service/pkg/logger"
)

const (
	joinCapabilities = "JOIN supplier_materials ON supplier_materials.supplier_id = suppliers.id"
	joinCategories   = "JOIN categories ON categories.id = supplier_materials.category_id"
	joinMaterials    = "JOIN materials ON materials.id = supplier_materials.material_id"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s anywhere, treating LIKE
// metacharacters in s literally. An empty s matches every row.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// ilike is a portable case-insensitive substring predicate for column.
func ilike(column string) string {
	return "LOWER(" + column + ") LIKE ? ESCAPE '\\'"
}

// FindByCategoryAndMaterial returns the distinct suppliers registered for at
// least one capability whose category description contains category and
// whose material description contains material, ignoring case. Results are
// ordered by supplier name.
func (s *Store) FindByCategoryAndMaterial(ctx context.Context, category, material string) ([]SupplierRef, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	refs := []SupplierRef{}
	err := s.read(ctx).Model(&model.Supplier{}).
		Select("DISTINCT suppliers.id, suppliers.name, suppliers.email").
		Joins(joinCapabilities).
		Joins(joinCategories).
		Joins(joinMaterials).
		Where(ilike("categories.description"), containsPattern(category)).
		Where(ilike("materials.description"), containsPattern(material)).
		Order("suppliers.name ASC").Order("suppliers.id ASC").
		Scan(&refs).Error
	if err != nil {
		return nil, lookupErr(ctx, "find_by_category_and_material", err)
	}

	logger.FromContext(ctx).Debug("Matched suppliers",
		zap.String("category", category),
		zap.String("material", material),
		zap.Int("count", len(refs)))
	return refs, nil
}

// FindByName returns suppliers whose name contains name, ignoring case.
// Suppliers without any capability are not returned.
func (s *Store) FindByName(ctx context.Context, name string) ([]SupplierRef, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	refs := []SupplierRef{}
	err := s.read(ctx).Model(&model.Supplier{}).
		Select("DISTINCT suppliers.id, suppliers.name, suppliers.email").
		Joins(joinCapabilities).
		Where(ilike("suppliers.name"), containsPattern(name)).
		Order("suppliers.name ASC").Order("suppliers.id ASC").
		Scan(&refs).Error
	if err != nil {
		return nil, lookupErr(ctx, "find_by_name", err)
	}
	return refs, nil
}

// FindSupplier returns the first supplier whose name matches, or nil.
func (s *Store) FindSupplier(ctx context.Context, name string) (*SupplierRef, error) {
	refs, err := s.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}
	return &refs[0], nil
}

// ListOfferings returns the distinct (category, material) pairs offered by
// suppliers whose name contains supplierName, ordered by category then material.
func (s *Store) ListOfferings(ctx context.Context, supplierName string) ([]Offering, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	offerings := []Offering{}
	err := s.read(ctx).Model(&model.Supplier{}).
		Select("DISTINCT categories.description AS category, materials.description AS material").
		Joins(joinCapabilities).
		Joins(joinCategories).
		Joins(joinMaterials).
		Where(ilike("suppliers.name"), containsPattern(supplierName)).
		Order("category ASC").Order("material ASC").
		Scan(&offerings).Error
	if err != nil {
		return nil, lookupErr(ctx, "list_offerings", err)
	}
	return offerings, nil
}
