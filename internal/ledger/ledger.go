// Package ledger persists purchase requests and the per-supplier request
// records created when an RFQ is dispatched.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/suteetoe/procurement-service/internal/model"
	"github.com/suteetoe/procurement-service/pkg/database"
	"github.com/suteetoe/procurement-service/pkg/logger"
	"github.com/suteetoe/procurement-service/prometheus"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicate   = errors.New("supplier already linked to request")
	ErrNoProposals = errors.New("no proposals recorded")
	ErrInvalid     = errors.New("invalid proposal")
)

// NewPurchaseRequest holds the fields supplied when a request is raised.
type NewPurchaseRequest struct {
	CategoryID       uint
	MaterialID       uint
	Specification    string
	Quantity         int
	ProposalDeadline time.Time
	DeliveryDueDate  time.Time
}

// Proposal is a supplier's quoted value on a request.
type Proposal struct {
	SupplierID   uint            `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	Value        decimal.Decimal `json:"value"`
}

// Ledger writes through db, which may be a transaction handle. Callers that
// need several writes to commit together construct the Ledger inside
// db.Transaction.
type Ledger struct {
	db      *gorm.DB
	metrics *prometheus.Metrics
}

// New creates a Ledger over db. metrics may be nil.
func New(db *gorm.DB, metrics *prometheus.Metrics) *Ledger {
	return &Ledger{db: db, metrics: metrics}
}

// CreatePurchaseRequest inserts a new request in OPEN status. The returned
// record has its ID populated before the enclosing transaction commits.
func (l *Ledger) CreatePurchaseRequest(ctx context.Context, in NewPurchaseRequest) (*model.PurchaseRequest, error) {
	defer l.metrics.TrackDBOperation("insert")(time.Now())

	pr := &model.PurchaseRequest{
		CategoryID:       in.CategoryID,
		MaterialID:       in.MaterialID,
		Specification:    in.Specification,
		Quantity:         in.Quantity,
		ProposalDeadline: in.ProposalDeadline,
		DeliveryDueDate:  in.DeliveryDueDate,
		Status:           model.StatusOpen,
	}
	if err := l.db.WithContext(ctx).Omit(clause.Associations).Create(pr).Error; err != nil {
		return nil, fmt.Errorf("create purchase request: %w", err)
	}

	logger.FromContext(ctx).Info("Purchase request created",
		zap.Uint("request_id", pr.ID),
		zap.Uint("category_id", pr.CategoryID),
		zap.Uint("material_id", pr.MaterialID))
	return pr, nil
}

// LinkSuppliers inserts one SupplierRequest per distinct supplier id in a
// single bulk statement and returns how many were created. Repeated ids in
// supplierIDs are skipped; a link that already exists in the store fails
// with ErrDuplicate. Supplier ids are not re-validated.
func (l *Ledger) LinkSuppliers(ctx context.Context, requestID uint, supplierIDs []uint) (int, error) {
	defer l.metrics.TrackDBOperation("insert")(time.Now())

	seen := make(map[uint]struct{}, len(supplierIDs))
	links := make([]model.SupplierRequest, 0, len(supplierIDs))
	for _, id := range supplierIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		links = append(links, model.SupplierRequest{SupplierID: id, RequestID: requestID})
	}
	if len(links) == 0 {
		return 0, nil
	}

	if err := l.db.WithContext(ctx).Omit(clause.Associations).Create(&links).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return 0, fmt.Errorf("request %d: %w", requestID, ErrDuplicate)
		}
		return 0, fmt.Errorf("link suppliers to request %d: %w", requestID, err)
	}

	logger.FromContext(ctx).Info("Suppliers linked to purchase request",
		zap.Uint("request_id", requestID),
		zap.Int("count", len(links)))
	return len(links), nil
}

// GetPurchaseRequest loads a request with its category, material and links.
func (l *Ledger) GetPurchaseRequest(ctx context.Context, id uint) (*model.PurchaseRequest, error) {
	defer l.metrics.TrackDBOperation("query")(time.Now())

	var pr model.PurchaseRequest
	err := l.db.WithContext(ctx).
		Preload("Category").
		Preload("Material").
		Preload("SupplierRequests", func(db *gorm.DB) *gorm.DB { return db.Order("supplier_requests.id ASC") }).
		Preload("SupplierRequests.Supplier").
		First(&pr, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("purchase request %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get purchase request %d: %w", id, err)
	}
	return &pr, nil
}

// ListSupplierRequests returns the links of a request with their suppliers,
// ordered by supplier name.
func (l *Ledger) ListSupplierRequests(ctx context.Context, requestID uint) ([]model.SupplierRequest, error) {
	defer l.metrics.TrackDBOperation("query")(time.Now())

	links := []model.SupplierRequest{}
	err := l.db.WithContext(ctx).
		Joins("Supplier").
		Where("supplier_requests.request_id = ?", requestID).
		Order(clause.OrderByColumn{Column: clause.Column{Table: "Supplier", Name: "name"}}).
		Order("supplier_requests.id ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("list supplier requests for %d: %w", requestID, err)
	}
	return links, nil
}

// RecordProposal stores a supplier's quoted value and advances the request
// status: PARTIALLY_QUOTED once any link is quoted, CLOSED once all are.
func (l *Ledger) RecordProposal(ctx context.Context, requestID, supplierID uint, value decimal.Decimal) (model.RequestStatus, error) {
	if !value.IsPositive() {
		return "", fmt.Errorf("%w: value must be positive", ErrInvalid)
	}
	defer l.metrics.TrackDBOperation("update")(time.Now())

	var status model.RequestStatus
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.SupplierRequest{}).
			Where("request_id = ? AND supplier_id = ?", requestID, supplierID).
			Update("proposal_value", decimal.NewNullDecimal(value.Round(2)))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("supplier %d on request %d: %w", supplierID, requestID, ErrNotFound)
		}

		var total, quoted int64
		if err := tx.Model(&model.SupplierRequest{}).Where("request_id = ?", requestID).Count(&total).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.SupplierRequest{}).
			Where("request_id = ? AND proposal_value IS NOT NULL", requestID).
			Count(&quoted).Error; err != nil {
			return err
		}

		status = model.StatusPartiallyQuoted
		if quoted == total {
			status = model.StatusClosed
		}
		return tx.Model(&model.PurchaseRequest{}).Where("id = ?", requestID).Update("status", status).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("record proposal: %w", err)
	}

	logger.FromContext(ctx).Info("Proposal recorded",
		zap.Uint("request_id", requestID),
		zap.Uint("supplier_id", supplierID),
		zap.String("value", value.StringFixed(2)),
		zap.String("status", string(status)))
	return status, nil
}

// BestProposal returns the lowest quoted value on a request. Ties go to the
// earliest link.
func (l *Ledger) BestProposal(ctx context.Context, requestID uint) (*Proposal, error) {
	links, err := l.ListSupplierRequests(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var best *Proposal
	var bestLinkID uint
	for _, link := range links {
		if !link.ProposalValue.Valid {
			continue
		}
		v := link.ProposalValue.Decimal
		if best == nil || v.LessThan(best.Value) || (v.Equal(best.Value) && link.ID < bestLinkID) {
			name := ""
			if link.Supplier != nil {
				name = link.Supplier.Name
			}
			best = &Proposal{SupplierID: link.SupplierID, SupplierName: name, Value: v}
			bestLinkID = link.ID
		}
	}
	if best == nil {
		return nil, fmt.Errorf("request %d: %w", requestID, ErrNoProposals)
	}
	return best, nil
}
