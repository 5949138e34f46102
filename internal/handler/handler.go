package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/suteetoe/procurement-service/internal/catalog"
	"github.com/suteetoe/procurement-service/internal/ledger"
	"github.com/suteetoe/procurement-service/internal/middleware"
	"github.com/suteetoe/procurement-service/internal/rfq"
	"github.com/suteetoe/procurement-service/internal/tools"
	"github.com/suteetoe/procurement-service/pkg/database"
	"github.com/suteetoe/procurement-service/pkg/logger"
)

// Handler serves the REST API over the tool service.
type Handler struct {
	svc      *tools.Service
	registry *tools.Registry
	catalog  *catalog.Store
}

// New creates a Handler. store backs the admin and detail routes.
func New(svc *tools.Service, registry *tools.Registry, store *catalog.Store) *Handler {
	return &Handler{svc: svc, registry: registry, catalog: store}
}

// Register mounts every route on g.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/categories", h.ListCategories)
	g.POST("/categories", h.CreateCategory)
	g.GET("/materials", h.ListMaterials)
	g.POST("/materials", h.CreateMaterial)
	g.GET("/suppliers", h.ListSuppliers)
	g.POST("/suppliers", h.CreateSupplier)
	g.GET("/suppliers/search", h.SearchSuppliers)
	g.GET("/suppliers/find", h.FindSupplier)
	g.GET("/suppliers/offerings", h.ListOfferings)
	g.POST("/capabilities", h.CreateCapability)

	g.POST("/rfqs", h.CreateRFQ)
	g.GET("/rfqs/:id", h.GetRFQ)
	g.POST("/rfqs/:id/resend", h.ResendRFQ)
	g.POST("/rfqs/:id/proposals", h.RecordProposal)
	g.GET("/rfqs/:id/best", h.BestProposal)

	g.GET("/tools", h.ListTools)
	g.POST("/tools/:name", h.CallTool)
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, rfq.ErrInvalidRequest),
		errors.Is(err, ledger.ErrInvalid),
		errors.Is(err, catalog.ErrInvalid),
		errors.Is(err, tools.ErrBadArguments):
		return http.StatusBadRequest
	case errors.Is(err, rfq.ErrNoSupplierMatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, ledger.ErrNoProposals),
		errors.Is(err, tools.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrDuplicate), errors.Is(err, ledger.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, rfq.ErrPersistence) && database.IsConstraintViolation(err):
		// The catalog changed underneath the request, e.g. a matched supplier was removed.
		return http.StatusConflict
	case errors.Is(err, catalog.ErrLookupConnectivity):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes it as {"error": ...} with the mapped status.
func respondError(c echo.Context, err error) error {
	status := errorStatus(err)
	log := logger.FromEcho(c)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Info("Request rejected", zap.Int("status", status), zap.Error(err))
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

// bindAndValidate binds the body into req and runs the validator on it.
func bindAndValidate(c echo.Context, req interface{}) error {
	log := logger.FromEcho(c)
	if err := c.Bind(req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return err
	}
	if err := c.Validate(req); err != nil {
		log.Warn("Request validation failed", zap.Error(err))
		return err
	}
	return nil
}

// pathID parses the :id path parameter as a positive integer.
func pathID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		logger.FromEcho(c).Warn("Invalid id parameter", zap.String("id", c.Param("id")))
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

// requestLogger returns the request logger tagged with the caller's email
// when the route sits behind JWTAuthMiddleware.
func requestLogger(c echo.Context) *zap.Logger {
	log := logger.FromEcho(c)
	if user, ok := middleware.UserFromContext(c); ok {
		log = log.With(zap.String("requested_by", user.Email))
	}
	return log
}
