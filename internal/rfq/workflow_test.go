package rfq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/suteetoe/procurement-service/internal/catalog"
	"github.com/suteetoe/procurement-service/internal/dbtest"
	"github.com/suteetoe/procurement-service/internal/ledger"
	"github.com/suteetoe/procurement-service/internal/model"
	"github.com/suteetoe/procurement-service/internal/notifier"
	"github.com/suteetoe/procurement-service/pkg/config"
	"github.com/suteetoe/procurement-service/pkg/database"
)

// recordingSender captures every delivery and fails for addresses in fail.
type recordingSender struct {
	mu       sync.Mutex
	attempts []string
	subjects []string
	fail     map[string]bool
	after    func(to string)
}

func (s *recordingSender) Send(_ context.Context, to, subject, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, to)
	s.subjects = append(s.subjects, subject)
	if s.after != nil {
		s.after(to)
	}
	if s.fail[to] {
		return errors.New("421 service not available")
	}
	return nil
}

type fixture struct {
	db        *gorm.DB
	sender    *recordingSender
	workflow  *Workflow
	raw       *model.Category
	pack      *model.Category
	steel     *model.Material
	suppliers map[string]*model.Supplier
}

// newFixture matches Zeta Corp, Alfa Ltda and Beta SA on Matéria-Prima /
// Aço Inox. Embalagens has no capabilities.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)

	f := &fixture{
		db:        db,
		sender:    &recordingSender{fail: map[string]bool{}},
		raw:       dbtest.Category(t, db, "Matéria-Prima"),
		pack:      dbtest.Category(t, db, "Embalagens"),
		steel:     dbtest.Material(t, db, "Aço Inox"),
		suppliers: map[string]*model.Supplier{},
	}
	for _, s := range []struct{ name, email string }{
		{"Zeta Corp", "zeta@example.com"},
		{"Alfa Ltda", "alfa@example.com"},
		{"Beta SA", "beta@example.com"},
	} {
		sup := dbtest.Supplier(t, db, s.name, s.email)
		dbtest.Capability(t, db, sup, f.raw, f.steel)
		f.suppliers[s.name] = sup
	}

	renderer, err := notifier.DefaultRenderer()
	require.NoError(t, err)
	n, err := notifier.New(renderer, f.sender, config.NotifyConfig{
		FromAddress: "compras@example.com",
		TemplateID:  "email_proposta",
		SendTimeout: time.Second,
	}, nil)
	require.NoError(t, err)

	f.workflow = New(db, catalog.NewStore(db, nil), n, nil)
	return f
}

func (f *fixture) request() Request {
	return Request{
		CategoryID:       f.raw.ID,
		MaterialID:       f.steel.ID,
		Specification:    "chapa 2mm, AISI 304",
		Quantity:         250,
		ProposalDeadline: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
		DeliveryDueDate:  time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC),
	}
}

func refNames(refs []catalog.SupplierRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Name)
	}
	return out
}

func TestRun_NotifiesAllMatchedSuppliers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	summary, err := f.workflow.Run(ctx, f.request())
	require.NoError(t, err)

	assert.NotZero(t, summary.RequestID)
	assert.Equal(t, 3, summary.TotalMatched)
	assert.Equal(t, []string{"Alfa Ltda", "Beta SA", "Zeta Corp"}, refNames(summary.Notified))
	assert.Empty(t, summary.Failed)
	assert.Equal(t, []string{"alfa@example.com", "beta@example.com", "zeta@example.com"}, f.sender.attempts)
	assert.Contains(t, f.sender.subjects[0], "Matéria-Prima - Aço Inox")

	pr, err := ledger.New(f.db, nil).GetPurchaseRequest(ctx, summary.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, pr.Status)
	assert.Equal(t, 250, pr.Quantity)
	assert.Len(t, pr.SupplierRequests, 3)
}

func TestRun_PartialNotificationFailureKeepsRows(t *testing.T) {
	f := newFixture(t)
	f.sender.fail["beta@example.com"] = true

	summary, err := f.workflow.Run(context.Background(), f.request())
	require.NoError(t, err)

	assert.NotZero(t, summary.RequestID)
	assert.Equal(t, []string{"Alfa Ltda", "Zeta Corp"}, refNames(summary.Notified))
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "Beta SA", summary.Failed[0].Supplier.Name)
	assert.Contains(t, summary.Failed[0].Reason, "421")

	assert.Equal(t, int64(1), dbtest.Count(t, f.db, &model.PurchaseRequest{}))
	assert.Equal(t, int64(3), dbtest.Count(t, f.db, &model.SupplierRequest{}))
}

func TestRun_NoSupplierMatch(t *testing.T) {
	f := newFixture(t)
	req := f.request()
	req.CategoryID = f.pack.ID

	summary, err := f.workflow.Run(context.Background(), req)
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, ErrNoSupplierMatch)

	assert.Zero(t, dbtest.Count(t, f.db, &model.PurchaseRequest{}))
	assert.Empty(t, f.sender.attempts)
}

func TestRun_LinkFailureRollsBackRequest(t *testing.T) {
	f := newFixture(t)
	err := f.db.Callback().Create().Before("gorm:create").Register("test:fail_supplier_requests", func(tx *gorm.DB) {
		if tx.Statement.Table == "supplier_requests" {
			_ = tx.AddError(errors.New("forced link failure"))
		}
	})
	require.NoError(t, err)

	summary, err := f.workflow.Run(context.Background(), f.request())
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Contains(t, err.Error(), "forced link failure")

	assert.Zero(t, dbtest.Count(t, f.db, &model.PurchaseRequest{}))
	assert.Zero(t, dbtest.Count(t, f.db, &model.SupplierRequest{}))
	assert.Empty(t, f.sender.attempts, "no email goes out for an uncommitted request")
}

func TestRun_InvalidRequest(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"zero quantity", func(r *Request) { r.Quantity = 0 }},
		{"blank specification", func(r *Request) { r.Specification = "   " }},
		{"missing deadline", func(r *Request) { r.ProposalDeadline = time.Time{} }},
		{"unknown category", func(r *Request) { r.CategoryID = 999 }},
		{"unknown material", func(r *Request) { r.MaterialID = 999 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request()
			tt.mutate(&req)
			_, err := f.workflow.Run(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	assert.Zero(t, dbtest.Count(t, f.db, &model.PurchaseRequest{}))
}

func TestRun_StoreUnavailable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, database.Close(f.db))

	_, err := f.workflow.Run(context.Background(), f.request())
	assert.ErrorIs(t, err, catalog.ErrLookupConnectivity)
}

func TestResend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sender.fail["beta@example.com"] = true

	first, err := f.workflow.Run(ctx, f.request())
	require.NoError(t, err)
	require.Len(t, first.Failed, 1)

	f.sender.fail = map[string]bool{}
	f.sender.attempts = nil

	again, err := f.workflow.Resend(ctx, first.RequestID, []uint{f.suppliers["Beta SA"].ID})
	require.NoError(t, err)
	assert.Equal(t, first.RequestID, again.RequestID)
	assert.Equal(t, []string{"Beta SA"}, refNames(again.Notified))
	assert.Empty(t, again.Failed)
	assert.Equal(t, []string{"beta@example.com"}, f.sender.attempts)

	all, err := f.workflow.Resend(ctx, first.RequestID, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, all.TotalMatched)
	assert.Equal(t, []string{"Alfa Ltda", "Beta SA", "Zeta Corp"}, refNames(all.Notified))

	assert.Equal(t, int64(1), dbtest.Count(t, f.db, &model.PurchaseRequest{}))
	assert.Equal(t, int64(3), dbtest.Count(t, f.db, &model.SupplierRequest{}))
}

func TestResend_OnlySelectedSuppliers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.workflow.Run(ctx, f.request())
	require.NoError(t, err)
	f.sender.attempts = nil

	// Alfa Ltda sorts first; later links must not be picked up once it is found.
	again, err := f.workflow.Resend(ctx, first.RequestID, []uint{f.suppliers["Alfa Ltda"].ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alfa Ltda"}, refNames(again.Notified))
	assert.Equal(t, []string{"alfa@example.com"}, f.sender.attempts)

	f.sender.attempts = nil
	again, err = f.workflow.Resend(ctx, first.RequestID, []uint{f.suppliers["Zeta Corp"].ID, f.suppliers["Alfa Ltda"].ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alfa Ltda", "Zeta Corp"}, refNames(again.Notified))
	assert.Equal(t, []string{"alfa@example.com", "zeta@example.com"}, f.sender.attempts)
}

func TestRun_CallerCancelDuringNotifying(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The caller disconnects while the first email is being delivered.
	f.sender.after = func(string) { cancel() }

	summary, err := f.workflow.Run(ctx, f.request())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alfa Ltda", "Beta SA", "Zeta Corp"}, refNames(summary.Notified))
	assert.Empty(t, summary.Failed)
	assert.Equal(t, []string{"alfa@example.com", "beta@example.com", "zeta@example.com"}, f.sender.attempts)
}

func TestResend_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.workflow.Resend(ctx, 404, nil)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	summary, err := f.workflow.Run(ctx, f.request())
	require.NoError(t, err)

	idle := dbtest.Supplier(t, f.db, "Idle Co", "idle@example.com")
	_, err = f.workflow.Resend(ctx, summary.RequestID, []uint{idle.ID})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
