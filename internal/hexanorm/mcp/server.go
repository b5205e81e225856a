package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/pmaojo/hexanorm/internal/hexanorm/checker"
	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
	"github.com/pmaojo/hexanorm/internal/hexanorm/report"
	"github.com/pmaojo/hexanorm/internal/hexanorm/store"
	"github.com/pmaojo/hexanorm/internal/hexanorm/workspace"
)

// Version is reported to MCP clients.
var Version = "0.1.0"

// HexanormServer implements the MCP server interface for Hexanorm.
// It exposes the latest conformance result of a workspace, kept fresh by the file watcher,
// through MCP tools and resources.
type HexanormServer struct {
	Workspace *workspace.Workspace
	Store     *store.Store // Run history; nil disables recording and the history resource.
	log       *zap.SugaredLogger
}

// NewServer builds the MCP server for ws. The caller owns the watcher and the store.
func NewServer(ws *workspace.Workspace, st *store.Store, log *zap.SugaredLogger) (*mcp.Server, *HexanormServer) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	hs := &HexanormServer{Workspace: ws, Store: st, log: log}

	s := mcp.NewServer(&mcp.Implementation{
		Name:    "hexanorm",
		Version: Version,
	}, &mcp.ServerOptions{})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "check",
		Description: "Re-run the architecture conformance check and return the report",
	}, hs.check)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "classify",
		Description: "Return the layer a package belongs to",
	}, hs.classify)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "dependencies",
		Description: "List the outgoing and incoming dependency edges of a unit with their layers",
	}, hs.dependencies)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "explain_unit",
		Description: "Show layer, violations and dependencies of a unit",
	}, hs.explainUnit)

	s.AddResource(&mcp.Resource{
		Name:     "status",
		URI:      "mcp://hexanorm/status",
		MIMEType: "application/json",
	}, hs.handleStatus)

	s.AddResource(&mcp.Resource{
		Name:     "violations",
		URI:      "mcp://hexanorm/violations",
		MIMEType: "application/json",
	}, hs.handleViolations)

	s.AddResource(&mcp.Resource{
		Name:     "layers",
		URI:      "mcp://hexanorm/layers",
		MIMEType: "application/json",
	}, hs.handleLayers)

	s.AddResource(&mcp.Resource{
		Name:     "history",
		URI:      "mcp://hexanorm/history",
		MIMEType: "application/json",
	}, hs.handleHistory)

	return s, hs
}

// Tool Inputs

// CheckInput defines the input parameters for the check tool.
type CheckInput struct {
	Record bool `json:"record,omitempty" jsonschema:"store the run in the history database"`
}

// ClassifyInput defines the input parameters for the classify tool.
type ClassifyInput struct {
	Package string `json:"package" jsonschema:"fully-qualified package name, empty for the default package"`
}

// UnitInput defines the input parameters for the dependencies and explain_unit tools.
type UnitInput struct {
	Unit string `json:"unit" jsonschema:"fully-qualified unit name"`
}

// Tool Handlers

func (hs *HexanormServer) check(ctx context.Context, req *mcp.CallToolRequest, input CheckInput) (*mcp.CallToolResult, any, error) {
	started := time.Now()
	res, err := hs.Workspace.Check(ctx)
	if err != nil {
		return errorResult(err), nil, nil
	}
	if input.Record && hs.Store != nil {
		if _, err := hs.Store.SaveRun(ctx, hs.Workspace.Root, started, res.Report); err != nil {
			hs.log.Warnw("Failed to record run", "error", err)
		}
	}
	return jsonResult(res.Report)
}

func (hs *HexanormServer) classify(ctx context.Context, req *mcp.CallToolRequest, input ClassifyInput) (*mcp.CallToolResult, any, error) {
	layer := hs.Workspace.Checker().Registry().ClassifyPackage(input.Package)
	return jsonResult(map[string]string{"package": input.Package, "layer": layer})
}

// UnitDetails is the answer of explain_unit.
type UnitDetails struct {
	Unit       *domain.Unit       `json:"unit"`
	Layer      string             `json:"layer"`
	Violations []domain.Violation `json:"violations"`
	Outgoing   []EdgeDetails      `json:"outgoing"`
	Incoming   []EdgeDetails      `json:"incoming"`
}

type EdgeDetails struct {
	domain.Edge
	FromLayer string `json:"from_layer"`
	ToLayer   string `json:"to_layer"`
}

func (hs *HexanormServer) explainUnit(ctx context.Context, req *mcp.CallToolRequest, input UnitInput) (*mcp.CallToolResult, any, error) {
	last, err := hs.latest(ctx)
	if err != nil {
		return errorResult(err), nil, nil
	}
	d, ok := Explain(last.Result, input.Unit)
	if !ok {
		return errorResult(fmt.Errorf("unit %q is not in the catalog", input.Unit)), nil, nil
	}
	return jsonResult(d)
}

func (hs *HexanormServer) dependencies(ctx context.Context, req *mcp.CallToolRequest, input UnitInput) (*mcp.CallToolResult, any, error) {
	last, err := hs.latest(ctx)
	if err != nil {
		return errorResult(err), nil, nil
	}
	d, ok := Explain(last.Result, input.Unit)
	if !ok {
		return errorResult(fmt.Errorf("unit %q is not in the catalog", input.Unit)), nil, nil
	}
	return jsonResult(map[string]any{"unit": d.Unit.Name, "outgoing": d.Outgoing, "incoming": d.Incoming})
}

// Explain collects everything the last run knows about one unit.
func Explain(res *checker.Result, name string) (*UnitDetails, bool) {
	u, ok := res.Catalog.Get(name)
	if !ok {
		return nil, false
	}
	layerOf := func(n string) string {
		if l := res.Layers.LayerOf(n); l != "" {
			return l
		}
		return domain.External
	}
	details := func(es []domain.Edge) []EdgeDetails {
		out := make([]EdgeDetails, 0, len(es))
		for _, e := range es {
			out = append(out, EdgeDetails{Edge: e, FromLayer: layerOf(e.From), ToLayer: layerOf(e.To)})
		}
		return out
	}
	return &UnitDetails{
		Unit:       u,
		Layer:      res.Layers.LayerOf(name),
		Violations: res.Report.For(name),
		Outgoing:   details(res.Edges.From(name)),
		Incoming:   details(res.Edges.To(name)),
	}, true
}

// latest returns the most recent run, checking first if no result exists yet. The result is
// non-nil when err is nil but may predate last.Err.
func (hs *HexanormServer) latest(ctx context.Context) (workspace.LastRun, error) {
	if last := hs.Workspace.Last(); last.Result != nil {
		return last, nil
	}
	if _, err := hs.Workspace.Check(ctx); err != nil {
		return workspace.LastRun{}, err
	}
	return hs.Workspace.Last(), nil
}

// Freshness tells readers of a resource which run produced it. When the latest check failed,
// Stale is set and the data comes from the last successful run.
type Freshness struct {
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
	Stale     bool      `json:"stale"`
}

func freshness(last workspace.LastRun) Freshness {
	f := Freshness{CheckedAt: last.At}
	if last.Err != nil {
		f.Error = last.Err.Error()
		f.Stale = true
	}
	return f
}

// Resource Handlers

func (hs *HexanormServer) handleStatus(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	last := hs.Workspace.Last()
	status := map[string]any{
		"root":          hs.Workspace.Root,
		"default_rules": hs.Workspace.UsedDefaults(),
		"checked_at":    last.At,
	}
	if last.Err != nil {
		status["error"] = last.Err.Error()
	}
	if r := last.Result; r != nil {
		status["status"] = r.Report.Status
		status["summary"] = report.Summary(r.Report)
		status["violations"] = len(r.Report.Violations)
		status["rule_errors"] = len(r.Report.RuleErrors)
		status["stats"] = r.Report.Stats
	}
	return jsonResource(req.Params.URI, status)
}

// ViolationsResource is the content of the violations resource.
type ViolationsResource struct {
	Freshness
	Violations []domain.Violation `json:"violations"`
}

func (hs *HexanormServer) handleViolations(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	last, err := hs.latest(ctx)
	if err != nil {
		return nil, err
	}
	vs := last.Result.Report.Violations
	if vs == nil {
		vs = []domain.Violation{}
	}
	return jsonResource(req.Params.URI, ViolationsResource{Freshness: freshness(last), Violations: vs})
}

// LayerSummary is one entry of the layers resource.
type LayerSummary struct {
	Name     string   `json:"name"`
	Patterns []string `json:"patterns,omitempty"`
	Units    []string `json:"units"`
}

// LayersResource is the content of the layers resource.
type LayersResource struct {
	Freshness
	Layers []LayerSummary `json:"layers"`
}

func (hs *HexanormServer) handleLayers(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	last, err := hs.latest(ctx)
	if err != nil {
		return nil, err
	}
	res := last.Result
	var out []LayerSummary
	for _, l := range res.Layers.Registry().Layers() {
		s := LayerSummary{Name: l.Name, Units: res.Layers.Members(l.Name)}
		for _, p := range l.Patterns {
			s.Patterns = append(s.Patterns, p.String())
		}
		out = append(out, s)
	}
	out = append(out, LayerSummary{Name: domain.Unassigned, Units: res.Layers.Members(domain.Unassigned)})
	return jsonResource(req.Params.URI, LayersResource{Freshness: freshness(last), Layers: out})
}

func (hs *HexanormServer) handleHistory(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if hs.Store == nil {
		return jsonResource(req.Params.URI, []store.Run{})
	}
	runs, err := hs.Store.ListRuns(ctx, 50)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, runs)
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(bytes)},
		},
	}, nil, nil
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}}
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: "application/json", Text: string(bytes)},
		},
	}, nil
}
