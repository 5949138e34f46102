// Package catalog reads and administers the procurement reference data:
// categories, materials, suppliers and the capabilities linking them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/suteetoe/procurement-service/internal/model"
	"github.com/suteetoe/procurement-service/pkg/database"
	"github.com/suteetoe/procurement-service/pkg/logger"
	"github.com/suteetoe/procurement-service/prometheus"
)

var (
	// ErrLookupConnectivity wraps any store failure during a read.
	ErrLookupConnectivity = errors.New("catalog store unavailable")
	// ErrNotFound is returned when a lookup by id finds nothing.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("already exists")
	// ErrInvalid is returned for inserts with missing required fields.
	ErrInvalid = errors.New("invalid reference data")
)

// SupplierRef is the supplier projection returned by lookups.
type SupplierRef struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Offering is one (category, material) pair a supplier is registered for.
type Offering struct {
	Category string `json:"category"`
	Material string `json:"material"`
}

// Store answers reference-data queries against an injected store handle.
type Store struct {
	db      *gorm.DB
	metrics *prometheus.Metrics
}

// NewStore creates a Store. metrics may be nil.
func NewStore(db *gorm.DB, metrics *prometheus.Metrics) *Store {
	return &Store{db: db, metrics: metrics}
}

func (s *Store) read(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func lookupErr(ctx context.Context, op string, err error) error {
	logger.FromContext(ctx).Error("Catalog lookup failed", zap.String("operation", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", ErrLookupConnectivity, op, err)
}

// ListCategories returns every category description in ascending order.
func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	descriptions := []string{}
	err := s.read(ctx).Model(&model.Category{}).
		Order("description ASC").
		Pluck("description", &descriptions).Error
	if err != nil {
		return nil, lookupErr(ctx, "list_categories", err)
	}
	return descriptions, nil
}

// ListMaterials returns every material description in ascending order.
func (s *Store) ListMaterials(ctx context.Context) ([]string, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	descriptions := []string{}
	err := s.read(ctx).Model(&model.Material{}).
		Order("description ASC").
		Pluck("description", &descriptions).Error
	if err != nil {
		return nil, lookupErr(ctx, "list_materials", err)
	}
	return descriptions, nil
}

// ListSuppliers returns the names of all registered suppliers, including
// those without capabilities.
func (s *Store) ListSuppliers(ctx context.Context) ([]string, error) {
	details, err := s.ListSupplierDetails(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(details))
	for _, d := range details {
		names = append(names, d.Name)
	}
	return names, nil
}

// ListSupplierDetails returns all suppliers ordered by name.
func (s *Store) ListSupplierDetails(ctx context.Context) ([]SupplierRef, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	refs := []SupplierRef{}
	err := s.read(ctx).Model(&model.Supplier{}).
		Select("id, name, email").
		Order("name ASC").Order("id ASC").
		Scan(&refs).Error
	if err != nil {
		return nil, lookupErr(ctx, "list_suppliers", err)
	}
	return refs, nil
}

// GetCategory loads a category by id.
func (s *Store) GetCategory(ctx context.Context, id uint) (*model.Category, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var c model.Category
	if err := s.read(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("category %d: %w", id, ErrNotFound)
		}
		return nil, lookupErr(ctx, "get_category", err)
	}
	return &c, nil
}

// GetMaterial loads a material by id.
func (s *Store) GetMaterial(ctx context.Context, id uint) (*model.Material, error) {
	defer s.metrics.TrackDBOperation("query")(time.Now())

	var m model.Material
	if err := s.read(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("material %d: %w", id, ErrNotFound)
		}
		return nil, lookupErr(ctx, "get_material", err)
	}
	return &m, nil
}

// AddCategory inserts a new category.
func (s *Store) AddCategory(ctx context.Context, description string) (*model.Category, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: category description is required", ErrInvalid)
	}
	c := &model.Category{Description: description}
	if err := s.insert(ctx, "category", c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddMaterial inserts a new material.
func (s *Store) AddMaterial(ctx context.Context, description string) (*model.Material, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: material description is required", ErrInvalid)
	}
	m := &model.Material{Description: description}
	if err := s.insert(ctx, "material", m); err != nil {
		return nil, err
	}
	return m, nil
}

// AddSupplier inserts a new supplier.
func (s *Store) AddSupplier(ctx context.Context, name, email string) (*model.Supplier, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: supplier name and email are required", ErrInvalid)
	}
	sup := &model.Supplier{Name: name, Email: email}
	if err := s.insert(ctx, "supplier", sup); err != nil {
		return nil, err
	}
	return sup, nil
}

// AddCapability registers a supplier for a (category, material) pair.
func (s *Store) AddCapability(ctx context.Context, supplierID, categoryID, materialID uint) (*model.SupplierMaterial, error) {
	sm := &model.SupplierMaterial{SupplierID: supplierID, CategoryID: categoryID, MaterialID: materialID}
	if err := s.insert(ctx, "capability", sm); err != nil {
		return nil, err
	}
	return sm, nil
}

func (s *Store) insert(ctx context.Context, kind string, value interface{}) error {
	defer s.metrics.TrackDBOperation("insert")(time.Now())

	log := logger.FromContext(ctx)
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(value).Error
	switch {
	case err == nil:
		log.Info("Reference data created", zap.String("kind", kind))
		return nil
	case database.IsUniqueViolation(err):
		log.Warn("Duplicate reference data", zap.String("kind", kind), zap.Error(err))
		return fmt.Errorf("%s: %w", kind, ErrDuplicate)
	case database.IsForeignKeyViolation(err):
		log.Warn("Reference data points at missing rows", zap.String("kind", kind), zap.Error(err))
		return fmt.Errorf("%w: %s references unknown supplier, category or material", ErrInvalid, kind)
	default:
		log.Error("Failed to create reference data", zap.String("kind", kind), zap.Error(err))
		return fmt.Errorf("create %s: %w", kind, err)
	}
}
