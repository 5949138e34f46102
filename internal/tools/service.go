// Package tools exposes the procurement operations as named, typed tools
// for an external planner: a name-keyed dispatch table and an MCP server.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/suteetoe/procurement-service/internal/catalog"
	"github.com/suteetoe/procurement-service/internal/ledger"
	"github.com/suteetoe/procurement-service/internal/model"
	"github.com/suteetoe/procurement-service/internal/rfq"
)

type NoArgs struct{}

type CategoriesOutput struct {
	Categories []string `json:"categories" jsonschema:"category descriptions in ascending order"`
}

type MaterialsOutput struct {
	Materials []string `json:"materials" jsonschema:"material descriptions in ascending order"`
}

type SupplierNamesOutput struct {
	Suppliers []string `json:"suppliers" jsonschema:"supplier names in ascending order"`
}

type FindSupplierInput struct {
	Name string `json:"name" jsonschema:"case-insensitive substring of the supplier name"`
}

type FindSupplierOutput struct {
	Supplier *catalog.SupplierRef `json:"supplier" jsonschema:"first matching supplier, null when none"`
}

type FindSuppliersInput struct {
	Category string `json:"category" jsonschema:"case-insensitive substring of the category description"`
	Material string `json:"material" jsonschema:"case-insensitive substring of the material description"`
}

type SuppliersOutput struct {
	Suppliers []catalog.SupplierRef `json:"suppliers" jsonschema:"matching suppliers ordered by name"`
}

type OfferingsInput struct {
	SupplierName string `json:"supplier_name" jsonschema:"case-insensitive substring of the supplier name"`
}

type OfferingsOutput struct {
	Offerings []catalog.Offering `json:"offerings" jsonschema:"category and material pairs ordered by category then material"`
}

type CreateRFQInput struct {
	CategoryID       uint   `json:"category_id" jsonschema:"category id"`
	MaterialID       uint   `json:"material_id" jsonschema:"material id"`
	Specification    string `json:"specification" jsonschema:"technical specification of the item"`
	Quantity         int    `json:"quantity" jsonschema:"requested quantity, greater than zero"`
	ProposalDeadline string `json:"proposal_deadline" jsonschema:"proposal deadline as YYYY-MM-DD"`
	DeliveryDueDate  string `json:"delivery_due_date" jsonschema:"delivery due date as YYYY-MM-DD"`
}

type ResendRFQInput struct {
	RequestID   uint   `json:"request_id" jsonschema:"purchase request id"`
	SupplierIDs []uint `json:"supplier_ids,omitempty" jsonschema:"linked suppliers to notify again, all when empty"`
}

type RFQOutput struct {
	RequestID    uint                  `json:"request_id"`
	TotalMatched int                   `json:"total_matched"`
	Notified     []catalog.SupplierRef `json:"notified"`
	Failed       []rfq.Failure         `json:"failed"`
}

type RequestInput struct {
	RequestID uint `json:"request_id" jsonschema:"purchase request id"`
}

type SupplierLink struct {
	SupplierID    uint    `json:"supplier_id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	ProposalValue *string `json:"proposal_value"`
}

type RequestOutput struct {
	ID               uint           `json:"id"`
	Category         string         `json:"category"`
	Material         string         `json:"material"`
	Specification    string         `json:"specification"`
	Quantity         int            `json:"quantity"`
	ProposalDeadline string         `json:"proposal_deadline"`
	DeliveryDueDate  string         `json:"delivery_due_date"`
	Status           string         `json:"status"`
	Suppliers        []SupplierLink `json:"suppliers"`
}

type RecordProposalInput struct {
	RequestID  uint   `json:"request_id" jsonschema:"purchase request id"`
	SupplierID uint   `json:"supplier_id" jsonschema:"supplier that quoted"`
	Value      string `json:"value" jsonschema:"quoted value as a decimal string, e.g. 1500.00"`
}

type RecordProposalOutput struct {
	Status string `json:"status" jsonschema:"request status after recording"`
}

type BestProposalOutput struct {
	SupplierID   uint   `json:"supplier_id"`
	SupplierName string `json:"supplier_name"`
	Value        string `json:"value"`
}

// Service implements every tool over the domain components.
type Service struct {
	catalog  *catalog.Store
	ledger   *ledger.Ledger
	workflow *rfq.Workflow
}

func NewService(store *catalog.Store, led *ledger.Ledger, wf *rfq.Workflow) *Service {
	return &Service{catalog: store, ledger: led, workflow: wf}
}

func (s *Service) ListCategories(ctx context.Context, _ NoArgs) (CategoriesOutput, error) {
	c, err := s.catalog.ListCategories(ctx)
	return CategoriesOutput{Categories: c}, err
}

func (s *Service) ListMaterials(ctx context.Context, _ NoArgs) (MaterialsOutput, error) {
	m, err := s.catalog.ListMaterials(ctx)
	return MaterialsOutput{Materials: m}, err
}

func (s *Service) ListSuppliers(ctx context.Context, _ NoArgs) (SupplierNamesOutput, error) {
	n, err := s.catalog.ListSuppliers(ctx)
	return SupplierNamesOutput{Suppliers: n}, err
}

func (s *Service) FindSupplier(ctx context.Context, in FindSupplierInput) (FindSupplierOutput, error) {
	ref, err := s.catalog.FindSupplier(ctx, in.Name)
	return FindSupplierOutput{Supplier: ref}, err
}

func (s *Service) FindSuppliers(ctx context.Context, in FindSuppliersInput) (SuppliersOutput, error) {
	refs, err := s.catalog.FindByCategoryAndMaterial(ctx, in.Category, in.Material)
	return SuppliersOutput{Suppliers: refs}, err
}

func (s *Service) ListOfferings(ctx context.Context, in OfferingsInput) (OfferingsOutput, error) {
	o, err := s.catalog.ListOfferings(ctx, in.SupplierName)
	return OfferingsOutput{Offerings: o}, err
}

// CreateRFQ runs the RFQ workflow. Dates are parsed as YYYY-MM-DD.
func (s *Service) CreateRFQ(ctx context.Context, in CreateRFQInput) (RFQOutput, error) {
	deadline, err := parseDate("proposal_deadline", in.ProposalDeadline)
	if err != nil {
		return RFQOutput{}, err
	}
	due, err := parseDate("delivery_due_date", in.DeliveryDueDate)
	if err != nil {
		return RFQOutput{}, err
	}

	summary, err := s.workflow.Run(ctx, rfq.Request{
		CategoryID:       in.CategoryID,
		MaterialID:       in.MaterialID,
		Specification:    in.Specification,
		Quantity:         in.Quantity,
		ProposalDeadline: deadline,
		DeliveryDueDate:  due,
	})
	if err != nil {
		return RFQOutput{}, err
	}
	return rfqOutput(summary), nil
}

func (s *Service) ResendRFQ(ctx context.Context, in ResendRFQInput) (RFQOutput, error) {
	summary, err := s.workflow.Resend(ctx, in.RequestID, in.SupplierIDs)
	if err != nil {
		return RFQOutput{}, err
	}
	return rfqOutput(summary), nil
}

func (s *Service) GetRequest(ctx context.Context, in RequestInput) (RequestOutput, error) {
	pr, err := s.ledger.GetPurchaseRequest(ctx, in.RequestID)
	if err != nil {
		return RequestOutput{}, err
	}
	return requestOutput(pr), nil
}

func (s *Service) RecordProposal(ctx context.Context, in RecordProposalInput) (RecordProposalOutput, error) {
	value, err := decimal.NewFromString(in.Value)
	if err != nil {
		return RecordProposalOutput{}, fmt.Errorf("%w: value %q is not a decimal", ledger.ErrInvalid, in.Value)
	}
	status, err := s.ledger.RecordProposal(ctx, in.RequestID, in.SupplierID, value)
	if err != nil {
		return RecordProposalOutput{}, err
	}
	return RecordProposalOutput{Status: string(status)}, nil
}

func (s *Service) BestProposal(ctx context.Context, in RequestInput) (BestProposalOutput, error) {
	p, err := s.ledger.BestProposal(ctx, in.RequestID)
	if err != nil {
		return BestProposalOutput{}, err
	}
	return BestProposalOutput{SupplierID: p.SupplierID, SupplierName: p.SupplierName, Value: p.Value.StringFixed(2)}, nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(rfq.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", rfq.ErrInvalidRequest, field, value)
	}
	return t, nil
}

func rfqOutput(s *rfq.Summary) RFQOutput {
	return RFQOutput{
		RequestID:    s.RequestID,
		TotalMatched: s.TotalMatched,
		Notified:     s.Notified,
		Failed:       s.Failed,
	}
}

func requestOutput(pr *model.PurchaseRequest) RequestOutput {
	out := RequestOutput{
		ID:               pr.ID,
		Specification:    pr.Specification,
		Quantity:         pr.Quantity,
		ProposalDeadline: pr.ProposalDeadline.Format(rfq.DateLayout),
		DeliveryDueDate:  pr.DeliveryDueDate.Format(rfq.DateLayout),
		Status:           string(pr.Status),
		Suppliers:        make([]SupplierLink, 0, len(pr.SupplierRequests)),
	}
	if pr.Category != nil {
		out.Category = pr.Category.Description
	}
	if pr.Material != nil {
		out.Material = pr.Material.Description
	}
	for _, link := range pr.SupplierRequests {
		l := SupplierLink{SupplierID: link.SupplierID}
		if link.Supplier != nil {
			l.Name, l.Email = link.Supplier.Name, link.Supplier.Email
		}
		if link.ProposalValue.Valid {
			v := link.ProposalValue.Decimal.StringFixed(2)
			l.ProposalValue = &v
		}
		out.Suppliers = append(out.Suppliers, l)
	}
	return out
}
