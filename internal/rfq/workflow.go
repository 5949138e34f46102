// Package rfq drives a request for quotation from supplier matching through
// persistence to per-supplier notification.
package rfq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/suteetoe/procurement-service/internal/catalog"
	"github.com/suteetoe/procurement-service/internal/ledger"
	"github.com/suteetoe/procurement-service/internal/model"
	"github.com/suteetoe/procurement-service/internal/notifier"
	"github.com/suteetoe/procurement-service/pkg/logger"
	"github.com/suteetoe/procurement-service/prometheus"
)

// DateLayout is the wire and template format for request dates.
const DateLayout = "2006-01-02"

var (
	ErrNoSupplierMatch = errors.New("no supplier matches category and material")
	ErrPersistence     = errors.New("purchase request could not be persisted")
	ErrInvalidRequest  = errors.New("invalid rfq request")
)

// State is a step of one workflow run.
type State string

const (
	StateMatching   State = "MATCHING"
	StatePersisting State = "PERSISTING"
	StateNotifying  State = "NOTIFYING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Request is the input of one RFQ run.
type Request struct {
	CategoryID       uint
	MaterialID       uint
	Specification    string
	Quantity         int
	ProposalDeadline time.Time
	DeliveryDueDate  time.Time
}

// Validate rejects requests that cannot produce a usable purchase request.
func (r Request) Validate() error {
	var problems []string
	if r.CategoryID == 0 {
		problems = append(problems, "category_id is required")
	}
	if r.MaterialID == 0 {
		problems = append(problems, "material_id is required")
	}
	if strings.TrimSpace(r.Specification) == "" {
		problems = append(problems, "specification is required")
	}
	if r.Quantity <= 0 {
		problems = append(problems, "quantity must be positive")
	}
	if r.ProposalDeadline.IsZero() {
		problems = append(problems, "proposal_deadline is required")
	}
	if r.DeliveryDueDate.IsZero() {
		problems = append(problems, "delivery_due_date is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// Failure is a supplier whose notification did not go through.
type Failure struct {
	Supplier catalog.SupplierRef `json:"supplier"`
	Reason   string              `json:"reason"`
}

// Summary is returned once a purchase request exists, even if some or all
// notifications failed.
type Summary struct {
	RequestID    uint                  `json:"request_id"`
	TotalMatched int                   `json:"total_matched"`
	Notified     []catalog.SupplierRef `json:"notified"`
	Failed       []Failure             `json:"failed"`
}

// Matcher is the catalog read side used by the workflow.
type Matcher interface {
	GetCategory(ctx context.Context, id uint) (*model.Category, error)
	GetMaterial(ctx context.Context, id uint) (*model.Material, error)
	FindByCategoryAndMaterial(ctx context.Context, category, material string) ([]catalog.SupplierRef, error)
}

// Notifier delivers one RFQ message.
type Notifier interface {
	Notify(ctx context.Context, msg notifier.Message) notifier.Outcome
}

// Workflow runs RFQs. The store handle is scoped per run: the persisting
// step opens its own transaction on db.
type Workflow struct {
	db       *gorm.DB
	matcher  Matcher
	notifier Notifier
	metrics  *prometheus.Metrics
}

// New creates a Workflow. metrics may be nil.
func New(db *gorm.DB, matcher Matcher, n Notifier, metrics *prometheus.Metrics) *Workflow {
	return &Workflow{db: db, matcher: matcher, notifier: n, metrics: metrics}
}

// Run matches suppliers, persists the purchase request with one link per
// supplier in a single transaction, then notifies each supplier. Errors are
// returned only when no purchase request was created.
func (w *Workflow) Run(ctx context.Context, req Request) (*Summary, error) {
	log := logger.FromContext(ctx).With(
		zap.Uint("category_id", req.CategoryID),
		zap.Uint("material_id", req.MaterialID))

	if err := req.Validate(); err != nil {
		w.fail(log, StateMatching, "invalid", err)
		return nil, err
	}

	// MATCHING
	log.Debug("RFQ state", zap.String("state", string(StateMatching)))
	category, material, err := w.resolve(ctx, req)
	if err != nil {
		outcome := "lookup_error"
		if errors.Is(err, ErrInvalidRequest) {
			outcome = "invalid"
		}
		w.fail(log, StateMatching, outcome, err)
		return nil, err
	}
	suppliers, err := w.matcher.FindByCategoryAndMaterial(ctx, category.Description, material.Description)
	if err != nil {
		w.fail(log, StateMatching, "lookup_error", err)
		return nil, err
	}
	w.metrics.ObserveSuppliersMatched(len(suppliers))
	if len(suppliers) == 0 {
		err := fmt.Errorf("%w: %s / %s", ErrNoSupplierMatch, category.Description, material.Description)
		w.fail(log, StateMatching, "no_match", err)
		return nil, err
	}

	// PERSISTING
	log.Debug("RFQ state", zap.String("state", string(StatePersisting)), zap.Int("matched", len(suppliers)))
	requestID, err := w.persist(ctx, req, suppliers)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPersistence, err)
		w.fail(log, StatePersisting, "persistence_error", err)
		return nil, err
	}

	// NOTIFYING
	log = log.With(zap.Uint("request_id", requestID))
	log.Debug("RFQ state", zap.String("state", string(StateNotifying)))
	base := notifier.RFQContext{
		Categoria:     category.Description,
		Material:      material.Description,
		Quantidade:    req.Quantity,
		Especificacao: req.Specification,
		Prazo:         req.ProposalDeadline.Format(DateLayout),
		RequestID:     requestID,
		DeliveryDue:   req.DeliveryDueDate.Format(DateLayout),
	}
	summary := w.notifyAll(ctx, requestID, base, suppliers)

	outcome := "done"
	if len(summary.Failed) > 0 {
		outcome = "partial"
	}
	w.metrics.RecordRFQOutcome(outcome)
	log.Info("RFQ dispatched",
		zap.String("state", string(StateDone)),
		zap.Int("notified", len(summary.Notified)),
		zap.Int("failed", len(summary.Failed)))
	return summary, nil
}

// Resend notifies the suppliers linked to an existing request again. With no
// supplierIDs every linked supplier is notified. The store is not written.
func (w *Workflow) Resend(ctx context.Context, requestID uint, supplierIDs []uint) (*Summary, error) {
	led := ledger.New(w.db, w.metrics)
	pr, err := led.GetPurchaseRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	links, err := led.ListSupplierRequests(ctx, requestID)
	if err != nil {
		return nil, err
	}

	filter := len(supplierIDs) > 0
	wanted := make(map[uint]bool, len(supplierIDs))
	for _, id := range supplierIDs {
		wanted[id] = true
	}
	linked := make(map[uint]bool, len(links))
	targets := make([]catalog.SupplierRef, 0, len(links))
	for _, link := range links {
		linked[link.SupplierID] = true
		if filter && !wanted[link.SupplierID] {
			continue
		}
		if link.Supplier == nil {
			continue
		}
		targets = append(targets, catalog.SupplierRef{ID: link.Supplier.ID, Name: link.Supplier.Name, Email: link.Supplier.Email})
	}
	var missing []uint
	for _, id := range supplierIDs {
		if !linked[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: suppliers %v are not linked to request %d", ErrInvalidRequest, missing, requestID)
	}

	base := notifier.RFQContext{
		Quantidade:    pr.Quantity,
		Especificacao: pr.Specification,
		Prazo:         pr.ProposalDeadline.Format(DateLayout),
		RequestID:     pr.ID,
		DeliveryDue:   pr.DeliveryDueDate.Format(DateLayout),
	}
	if pr.Category != nil {
		base.Categoria = pr.Category.Description
	}
	if pr.Material != nil {
		base.Material = pr.Material.Description
	}

	summary := w.notifyAll(ctx, pr.ID, base, targets)
	logger.FromContext(ctx).Info("RFQ resent",
		zap.Uint("request_id", pr.ID),
		zap.Int("notified", len(summary.Notified)),
		zap.Int("failed", len(summary.Failed)))
	return summary, nil
}

func (w *Workflow) resolve(ctx context.Context, req Request) (*model.Category, *model.Material, error) {
	category, err := w.matcher.GetCategory(ctx, req.CategoryID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return nil, nil, err
	}
	material, err := w.matcher.GetMaterial(ctx, req.MaterialID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return nil, nil, err
	}
	return category, material, nil
}

func (w *Workflow) persist(ctx context.Context, req Request, suppliers []catalog.SupplierRef) (uint, error) {
	ids := make([]uint, 0, len(suppliers))
	for _, s := range suppliers {
		ids = append(ids, s.ID)
	}

	var requestID uint
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		led := ledger.New(tx, w.metrics)
		pr, err := led.CreatePurchaseRequest(ctx, ledger.NewPurchaseRequest{
			CategoryID:       req.CategoryID,
			MaterialID:       req.MaterialID,
			Specification:    strings.TrimSpace(req.Specification),
			Quantity:         req.Quantity,
			ProposalDeadline: req.ProposalDeadline,
			DeliveryDueDate:  req.DeliveryDueDate,
		})
		if err != nil {
			return err
		}
		if _, err := led.LinkSuppliers(ctx, pr.ID, ids); err != nil {
			return err
		}
		requestID = pr.ID
		return nil
	})
	return requestID, err
}

func (w *Workflow) notifyAll(ctx context.Context, requestID uint, base notifier.RFQContext, suppliers []catalog.SupplierRef) *Summary {
	// The request is already committed; a caller going away must not turn
	// the remaining recipients into failures. Only the per-recipient timeout applies.
	ctx = context.WithoutCancel(ctx)
	summary := &Summary{
		RequestID:    requestID,
		TotalMatched: len(suppliers),
		Notified:     []catalog.SupplierRef{},
		Failed:       []Failure{},
	}
	for _, s := range suppliers {
		data := base
		data.Fornecedor = s.Name
		out := w.notifier.Notify(ctx, notifier.Message{To: s.Email, Context: data})
		if out.Status == notifier.StatusSent {
			summary.Notified = append(summary.Notified, s)
			continue
		}
		summary.Failed = append(summary.Failed, Failure{Supplier: s, Reason: out.Reason})
	}
	return summary
}

func (w *Workflow) fail(log *zap.Logger, at State, outcome string, err error) {
	w.metrics.RecordRFQOutcome(outcome)
	log.Warn("RFQ failed",
		zap.String("state", string(StateFailed)),
		zap.String("failed_at", string(at)),
		zap.Error(err))
}
