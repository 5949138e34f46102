package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/suteetoe/procurement-service/pkg/config"
	"github.com/suteetoe/procurement-service/pkg/logger"
	"github.com/suteetoe/procurement-service/prometheus"
)

var (
	ErrNotFound     = errors.New("tool not found")
	ErrBadArguments = errors.New("invalid tool arguments")
)

// Handler runs a tool from JSON-encoded arguments.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool describes one registered operation.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type entry struct {
	tool    Tool
	handler Handler
	mount   func(*mcp.Server)
}

// Registry is the name-keyed dispatch table over a Service. It is built once
// and read-only afterwards.
type Registry struct {
	entries map[string]entry
	order   []string
	metrics *prometheus.Metrics
}

// NewRegistry registers every operation of svc. metrics may be nil.
func NewRegistry(svc *Service, metrics *prometheus.Metrics) *Registry {
	r := &Registry{entries: map[string]entry{}, metrics: metrics}

	add(r, "list_categories", "List all material categories registered in the catalog.", svc.ListCategories)
	add(r, "list_materials", "List all materials registered in the catalog.", svc.ListMaterials)
	add(r, "list_suppliers", "List the names of all registered suppliers.", svc.ListSuppliers)
	add(r, "find_supplier", "Find the first supplier whose name contains the given text.", svc.FindSupplier)
	add(r, "find_suppliers_by_category_and_material",
		"Find suppliers registered for a category and material. Both filters are case-insensitive substrings.",
		svc.FindSuppliers)
	add(r, "list_offerings", "List the category and material pairs offered by suppliers matching a name.", svc.ListOfferings)
	add(r, "create_rfq",
		"Create a purchase request for a category and material and email an RFQ to every matching supplier. Ask the user to confirm first.",
		svc.CreateRFQ)
	add(r, "resend_rfq", "Email the RFQ of an existing purchase request again to its linked suppliers.", svc.ResendRFQ)
	add(r, "get_request", "Show a purchase request with its suppliers and any quoted values.", svc.GetRequest)
	add(r, "record_proposal", "Record the value a supplier quoted on a purchase request.", svc.RecordProposal)
	add(r, "best_proposal", "Return the lowest proposal received on a purchase request.", svc.BestProposal)

	return r
}

// add registers fn under name for both the dispatch table and MCP.
func add[In, Out any](r *Registry, name, description string, fn func(context.Context, In) (Out, error)) {
	call := func(ctx context.Context, in In) (Out, error) {
		start := time.Now()
		out, err := fn(ctx, in)

		log := logger.FromContext(ctx).With(zap.String("tool", name), zap.Duration("duration", time.Since(start)))
		result := "ok"
		if err != nil {
			result = "error"
			log.Warn("Tool call failed", zap.Error(err))
		} else {
			log.Debug("Tool call")
		}
		r.metrics.RecordToolCall(name, result)
		return out, err
	}

	r.order = append(r.order, name)
	r.entries[name] = entry{
		tool: Tool{Name: name, Description: description},
		handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in In
			if len(args) > 0 && string(args) != "null" {
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, fmt.Errorf("%w: %s: %v", ErrBadArguments, name, err)
				}
			}
			return call(ctx, in)
		},
		mount: func(s *mcp.Server) {
			mcp.AddTool(s, &mcp.Tool{Name: name, Description: description},
				func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
					out, err := call(ctx, in)
					return nil, out, err
				})
		},
	}
}

// List returns the registered tools in registration order.
func (r *Registry) List() []Tool {
	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.entries[name].tool)
	}
	return tools
}

// Execute dispatches a call by tool name.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (any, error) {
	e, ok := r.entries[name]
	if !ok {
		r.metrics.RecordToolCall("unknown", "not_found")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e.handler(ctx, args)
}

// MCPServer returns an MCP server exposing every registered tool.
func (r *Registry) MCPServer(cfg config.MCPConfig) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil)
	for _, name := range r.order {
		r.entries[name].mount(server)
	}
	return server
}
