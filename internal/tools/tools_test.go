package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/suteetoe/procurement-service/internal/catalog"
	"github.com/suteetoe/procurement-service/internal/dbtest"
	"github.com/suteetoe/procurement-service/internal/ledger"
	"github.com/suteetoe/procurement-service/internal/notifier"
	"github.com/suteetoe/procurement-service/internal/rfq"
	"github.com/suteetoe/procurement-service/pkg/config"
)

type fixture struct {
	db       *gorm.DB
	registry *Registry
	ids      map[string]uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)

	raw := dbtest.Category(t, db, "Matéria-Prima")
	pack := dbtest.Category(t, db, "Embalagens")
	steel := dbtest.Material(t, db, "Aço Inox")
	alfa := dbtest.Supplier(t, db, "Alfa Ltda", "alfa@example.com")
	beta := dbtest.Supplier(t, db, "Beta SA", "beta@example.com")
	dbtest.Capability(t, db, alfa, raw, steel)
	dbtest.Capability(t, db, beta, raw, steel)

	renderer, err := notifier.DefaultRenderer()
	require.NoError(t, err)
	n, err := notifier.New(renderer, notifier.LogSender{}, config.NotifyConfig{
		FromAddress: "compras@example.com",
		TemplateID:  "email_proposta",
		SendTimeout: time.Second,
	}, nil)
	require.NoError(t, err)

	store := catalog.NewStore(db, nil)
	svc := NewService(store, ledger.New(db, nil), rfq.New(db, store, n, nil))

	return &fixture{
		db:       db,
		registry: NewRegistry(svc, nil),
		ids: map[string]uint{
			"raw": raw.ID, "pack": pack.ID, "steel": steel.ID,
			"alfa": alfa.ID, "beta": beta.ID,
		},
	}
}

func (f *fixture) exec(t *testing.T, name string, args any) (any, error) {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return f.registry.Execute(context.Background(), name, raw)
}

func (f *fixture) createRFQ(t *testing.T) RFQOutput {
	t.Helper()
	out, err := f.exec(t, "create_rfq", map[string]any{
		"category_id":       f.ids["raw"],
		"material_id":       f.ids["steel"],
		"specification":     "chapa 2mm",
		"quantity":          10,
		"proposal_deadline": "2026-11-01",
		"delivery_due_date": "2026-12-01",
	})
	require.NoError(t, err)
	return out.(RFQOutput)
}

func TestRegistry_List(t *testing.T) {
	f := newFixture(t)

	var names []string
	for _, tool := range f.registry.List() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{
		"list_categories", "list_materials", "list_suppliers", "find_supplier",
		"find_suppliers_by_category_and_material", "list_offerings", "create_rfq",
		"resend_rfq", "get_request", "record_proposal", "best_proposal",
	}, names)
}

func TestExecute_Lookups(t *testing.T) {
	f := newFixture(t)

	out, err := f.exec(t, "list_categories", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Embalagens", "Matéria-Prima"}, out.(CategoriesOutput).Categories)

	out, err = f.exec(t, "find_suppliers_by_category_and_material", map[string]string{"category": "matéria", "material": "aço"})
	require.NoError(t, err)
	refs := out.(SuppliersOutput).Suppliers
	require.Len(t, refs, 2)
	assert.Equal(t, "Alfa Ltda", refs[0].Name)

	out, err = f.exec(t, "find_supplier", map[string]string{"name": "nobody"})
	require.NoError(t, err)
	assert.Nil(t, out.(FindSupplierOutput).Supplier)

	out, err = f.exec(t, "list_offerings", map[string]string{"supplier_name": "beta"})
	require.NoError(t, err)
	assert.Equal(t, []catalog.Offering{{Category: "Matéria-Prima", Material: "Aço Inox"}}, out.(OfferingsOutput).Offerings)
}

func TestExecute_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.registry.Execute(context.Background(), "send_fax", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.registry.Execute(context.Background(), "find_supplier", json.RawMessage(`{"name": 12}`))
	assert.ErrorIs(t, err, ErrBadArguments)

	_, err = f.exec(t, "create_rfq", map[string]any{
		"category_id": f.ids["raw"], "material_id": f.ids["steel"], "specification": "x", "quantity": 1,
		"proposal_deadline": "01/11/2026", "delivery_due_date": "2026-12-01",
	})
	assert.ErrorIs(t, err, rfq.ErrInvalidRequest)

	_, err = f.exec(t, "create_rfq", map[string]any{
		"category_id": f.ids["pack"], "material_id": f.ids["steel"], "specification": "x", "quantity": 1,
		"proposal_deadline": "2026-11-01", "delivery_due_date": "2026-12-01",
	})
	assert.ErrorIs(t, err, rfq.ErrNoSupplierMatch)
}

func TestExecute_RFQLifecycle(t *testing.T) {
	f := newFixture(t)

	created := f.createRFQ(t)
	assert.NotZero(t, created.RequestID)
	assert.Equal(t, 2, created.TotalMatched)
	assert.Len(t, created.Notified, 2)
	assert.Empty(t, created.Failed)

	out, err := f.exec(t, "record_proposal", map[string]any{"request_id": created.RequestID, "supplier_id": f.ids["beta"], "value": "1200.5"})
	require.NoError(t, err)
	assert.Equal(t, "PARTIALLY_QUOTED", out.(RecordProposalOutput).Status)

	_, err = f.exec(t, "record_proposal", map[string]any{"request_id": created.RequestID, "supplier_id": f.ids["alfa"], "value": "abc"})
	assert.ErrorIs(t, err, ledger.ErrInvalid)

	out, err = f.exec(t, "best_proposal", map[string]any{"request_id": created.RequestID})
	require.NoError(t, err)
	best := out.(BestProposalOutput)
	assert.Equal(t, "Beta SA", best.SupplierName)
	assert.Equal(t, "1200.50", best.Value)

	out, err = f.exec(t, "get_request", map[string]any{"request_id": created.RequestID})
	require.NoError(t, err)
	req := out.(RequestOutput)
	assert.Equal(t, "Matéria-Prima", req.Category)
	assert.Equal(t, "2026-11-01", req.ProposalDeadline)
	assert.Equal(t, "PARTIALLY_QUOTED", req.Status)
	require.Len(t, req.Suppliers, 2)

	out, err = f.exec(t, "resend_rfq", map[string]any{"request_id": created.RequestID})
	require.NoError(t, err)
	assert.Len(t, out.(RFQOutput).Notified, 2)
}

func connect(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func text(res *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func TestMCPServer(t *testing.T) {
	f := newFixture(t)
	cs := connect(t, f.registry.MCPServer(config.MCPConfig{Name: "Supply Chain Assistant", Version: "test"}))
	ctx := context.Background()

	listed, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	assert.Len(t, listed.Tools, 11)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "find_suppliers_by_category_and_material",
		Arguments: map[string]any{"category": "MATÉRIA", "material": "inox"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(res), "Alfa Ltda")
	assert.Contains(t, text(res), "beta@example.com")

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name: "create_rfq",
		Arguments: map[string]any{
			"category_id": f.ids["pack"], "material_id": f.ids["steel"], "specification": "caixa", "quantity": 5,
			"proposal_deadline": "2026-11-01", "delivery_due_date": "2026-12-01",
		},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(res), "no supplier matches")
}
