package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/suteetoe/procurement-service/internal/tools"
)

// DescriptionRequest is the body for creating a category or a material
type DescriptionRequest struct {
	Description string `json:"description" validate:"required"`
}

// SupplierRequest defines the structure for supplier creation requests
type SupplierRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// CapabilityRequest links a supplier to a category/material pair it can supply
type CapabilityRequest struct {
	SupplierID uint `json:"supplier_id" validate:"required"`
	CategoryID uint `json:"category_id" validate:"required"`
	MaterialID uint `json:"material_id" validate:"required"`
}

// ListCategories returns every category description
func (h *Handler) ListCategories(c echo.Context) error {
	log := requestLogger(c)
	log.Debug("Listing categories")

	out, err := h.svc.ListCategories(c.Request().Context(), tools.NoArgs{})
	if err != nil {
		return respondError(c, err)
	}
	log.Debug("Categories retrieved", zap.Int("count", len(out.Categories)))
	return c.JSON(http.StatusOK, out)
}

// ListMaterials returns every material description
func (h *Handler) ListMaterials(c echo.Context) error {
	log := requestLogger(c)
	log.Debug("Listing materials")

	out, err := h.svc.ListMaterials(c.Request().Context(), tools.NoArgs{})
	if err != nil {
		return respondError(c, err)
	}
	log.Debug("Materials retrieved", zap.Int("count", len(out.Materials)))
	return c.JSON(http.StatusOK, out)
}

// ListSuppliers returns supplier names, or full records with ?detail=true.
func (h *Handler) ListSuppliers(c echo.Context) error {
	log := requestLogger(c)
	ctx := c.Request().Context()

	if c.QueryParam("detail") == "true" {
		log.Debug("Listing supplier details")
		refs, err := h.catalog.ListSupplierDetails(ctx)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, tools.SuppliersOutput{Suppliers: refs})
	}

	log.Debug("Listing supplier names")
	out, err := h.svc.ListSuppliers(ctx, tools.NoArgs{})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// SearchSuppliers matches suppliers by category and material substrings
func (h *Handler) SearchSuppliers(c echo.Context) error {
	in := tools.FindSuppliersInput{
		Category: c.QueryParam("category"),
		Material: c.QueryParam("material"),
	}
	log := requestLogger(c)
	log.Info("Searching suppliers", zap.String("category", in.Category), zap.String("material", in.Material))

	out, err := h.svc.FindSuppliers(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	log.Info("Supplier search completed", zap.Int("matched", len(out.Suppliers)))
	return c.JSON(http.StatusOK, out)
}

// FindSupplier returns the first supplier whose name contains ?name=
func (h *Handler) FindSupplier(c echo.Context) error {
	name := c.QueryParam("name")
	requestLogger(c).Info("Finding supplier by name", zap.String("name", name))

	out, err := h.svc.FindSupplier(c.Request().Context(), tools.FindSupplierInput{Name: name})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListOfferings returns the category/material pairs of the supplier named ?name=
func (h *Handler) ListOfferings(c echo.Context) error {
	name := c.QueryParam("name")
	requestLogger(c).Info("Listing supplier offerings", zap.String("name", name))

	out, err := h.svc.ListOfferings(c.Request().Context(), tools.OfferingsInput{SupplierName: name})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// CreateCategory adds a category
func (h *Handler) CreateCategory(c echo.Context) error {
	log := requestLogger(c)
	log.Info("Creating new category")

	var req DescriptionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	cat, err := h.catalog.AddCategory(c.Request().Context(), req.Description)
	if err != nil {
		return respondError(c, err)
	}
	log.Info("Category created successfully", zap.Uint("category_id", cat.ID))
	return c.JSON(http.StatusCreated, cat)
}

// CreateMaterial adds a material
func (h *Handler) CreateMaterial(c echo.Context) error {
	log := requestLogger(c)
	log.Info("Creating new material")

	var req DescriptionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	m, err := h.catalog.AddMaterial(c.Request().Context(), req.Description)
	if err != nil {
		return respondError(c, err)
	}
	log.Info("Material created successfully", zap.Uint("material_id", m.ID))
	return c.JSON(http.StatusCreated, m)
}

// CreateSupplier adds a supplier
func (h *Handler) CreateSupplier(c echo.Context) error {
	log := requestLogger(c)
	log.Info("Creating new supplier")

	var req SupplierRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	log.Info("Supplier creation request", zap.String("name", req.Name), zap.String("email", req.Email))

	s, err := h.catalog.AddSupplier(c.Request().Context(), req.Name, req.Email)
	if err != nil {
		return respondError(c, err)
	}
	log.Info("Supplier created successfully", zap.Uint("supplier_id", s.ID))
	return c.JSON(http.StatusCreated, s)
}

// CreateCapability records that a supplier provides a material in a category
func (h *Handler) CreateCapability(c echo.Context) error {
	log := requestLogger(c)
	log.Info("Creating new supplier capability")

	var req CapabilityRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	sm, err := h.catalog.AddCapability(c.Request().Context(), req.SupplierID, req.CategoryID, req.MaterialID)
	if err != nil {
		return respondError(c, err)
	}
	log.Info("Supplier capability created successfully",
		zap.Uint("supplier_id", req.SupplierID),
		zap.Uint("category_id", req.CategoryID),
		zap.Uint("material_id", req.MaterialID))
	return c.JSON(http.StatusCreated, sm)
}
