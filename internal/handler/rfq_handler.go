package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/suteetoe/procurement-service/internal/tools"
)

// CreateRFQRequest is the body of POST /api/rfqs. Dates are YYYY-MM-DD.
type CreateRFQRequest struct {
	CategoryID       uint   `json:"category_id" validate:"required"`
	MaterialID       uint   `json:"material_id" validate:"required"`
	Specification    string `json:"specification" validate:"required"`
	Quantity         int    `json:"quantity" validate:"gt=0"`
	ProposalDeadline string `json:"proposal_deadline" validate:"required,datetime=2006-01-02"`
	DeliveryDueDate  string `json:"delivery_due_date" validate:"required,datetime=2006-01-02"`
}

// ResendRequest selects the linked suppliers to email again; empty means all
type ResendRequest struct {
	SupplierIDs []uint `json:"supplier_ids"`
}

// ProposalRequest records a supplier's quoted value
type ProposalRequest struct {
	SupplierID uint   `json:"supplier_id" validate:"required"`
	Value      string `json:"value" validate:"required,numeric"`
}

// CreateRFQ answers 201 whenever the purchase request was created, including
// when some notifications failed; those are listed under "failed".
func (h *Handler) CreateRFQ(c echo.Context) error {
	log := requestLogger(c)
	log.Info("Creating new RFQ")

	var req CreateRFQRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	log.Info("RFQ creation request",
		zap.Uint("category_id", req.CategoryID),
		zap.Uint("material_id", req.MaterialID),
		zap.Int("quantity", req.Quantity))

	out, err := h.svc.CreateRFQ(c.Request().Context(), tools.CreateRFQInput(req))
	if err != nil {
		return respondError(c, err)
	}
	log.Info("RFQ created successfully",
		zap.Uint("request_id", out.RequestID),
		zap.Int("notified", len(out.Notified)),
		zap.Int("failed", len(out.Failed)))
	return c.JSON(http.StatusCreated, out)
}

// GetRFQ returns a purchase request with its supplier links
func (h *Handler) GetRFQ(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	requestLogger(c).Debug("Fetching RFQ", zap.Uint("request_id", id))

	out, err := h.svc.GetRequest(c.Request().Context(), tools.RequestInput{RequestID: id})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ResendRFQ emails the RFQ again to linked suppliers
func (h *Handler) ResendRFQ(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	log := requestLogger(c).With(zap.Uint("request_id", id))

	var req ResendRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return err
	}
	log.Info("Resending RFQ", zap.Int("selected", len(req.SupplierIDs)))

	out, err := h.svc.ResendRFQ(c.Request().Context(), tools.ResendRFQInput{RequestID: id, SupplierIDs: req.SupplierIDs})
	if err != nil {
		return respondError(c, err)
	}
	log.Info("RFQ resent", zap.Int("notified", len(out.Notified)), zap.Int("failed", len(out.Failed)))
	return c.JSON(http.StatusOK, out)
}

// RecordProposal stores a supplier's quoted value and returns the new request status
func (h *Handler) RecordProposal(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	log := requestLogger(c).With(zap.Uint("request_id", id))
	log.Info("Recording proposal")

	var req ProposalRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	out, err := h.svc.RecordProposal(c.Request().Context(), tools.RecordProposalInput{
		RequestID:  id,
		SupplierID: req.SupplierID,
		Value:      req.Value,
	})
	if err != nil {
		return respondError(c, err)
	}
	log.Info("Proposal recorded", zap.Uint("supplier_id", req.SupplierID), zap.String("status", out.Status))
	return c.JSON(http.StatusOK, out)
}

// BestProposal returns the lowest proposal recorded for a request
func (h *Handler) BestProposal(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	requestLogger(c).Debug("Fetching best proposal", zap.Uint("request_id", id))

	out, err := h.svc.BestProposal(c.Request().Context(), tools.RequestInput{RequestID: id})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListTools returns the name and description of every tool
func (h *Handler) ListTools(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"tools": h.registry.List()})
}

// CallTool dispatches the raw JSON body to the named tool.
func (h *Handler) CallTool(c echo.Context) error {
	log := requestLogger(c).With(zap.String("tool", c.Param("name")))

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		log.Error("Failed to read tool arguments", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	log.Debug("Calling tool", zap.Int("bytes", len(body)))

	out, err := h.registry.Execute(c.Request().Context(), c.Param("name"), json.RawMessage(body))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"result": out})
}
