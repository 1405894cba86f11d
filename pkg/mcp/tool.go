package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lonniev/thebrain-mcp/pkg/bql"
)

// QueryArgs is the argument shape for the brain_query tool.
type QueryArgs struct {
	Query         string `json:"query" jsonschema:"The BrainQuery statement to run"`
	Confirm       bool   `json:"confirm,omitempty" jsonschema:"Must be true to actually perform a DELETE; without it a DELETE only returns a preview."`
	ActiveGraphID string `json:"active_graph_id,omitempty" jsonschema:"Overrides the server's configured active graph for this call only."`
}

// QueryResult is the JSON-friendly projection of bql.Result returned to the
// MCP client.
type QueryResult struct {
	Kind     string          `json:"kind"`
	Columns  []string        `json:"columns,omitempty"`
	Rows     [][]QueryCell   `json:"rows,omitempty"`
	Mutation *QueryMutation  `json:"mutation,omitempty"`
	Preview  *QueryPreview   `json:"preview,omitempty"`
	Error    *QueryError     `json:"error,omitempty"`
}

// QueryCell is one projected value: either a whole-node object or a single
// field, mirroring bql.Cell.
type QueryCell struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name,omitempty"`
	Label           string `json:"label,omitempty"`
	ForegroundColor string `json:"foregroundColor,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Kind            string `json:"nodeKind,omitempty"`
	Field           string `json:"field,omitempty"`
	Value           string `json:"value,omitempty"`
}

type QueryMutation struct {
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	Deleted  int      `json:"deleted"`
	Warnings []string `json:"warnings,omitempty"`
}

type QueryPreview struct {
	WouldDeleteNodeIDs   []string `json:"wouldDeleteNodeIds"`
	WouldDeleteNodeNames []string `json:"wouldDeleteNodeNames"`
	WouldDeleteEdgeIDs   []string `json:"wouldDeleteEdgeIds"`
}

type QueryError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Service wraps a bql.Engine as an MCP tool handler.
type Service struct {
	engine        *bql.Engine
	activeGraphID string
}

// NewService returns a Service that executes queries against engine,
// defaulting to defaultGraphID when a call doesn't override it.
func NewService(engine *bql.Engine, defaultGraphID string) *Service {
	return &Service{engine: engine, activeGraphID: defaultGraphID}
}

// BrainQuery is the brain_query tool handler: parse, validate, plan,
// execute, and translate the result into wire-friendly JSON. Errors
// surfaced by the engine (parse/semantic/resolution/limit errors) are
// returned as a populated QueryResult.Error, not as a Go error, so the
// calling model sees the structured diagnostic instead of a bare failure.
func (s *Service) BrainQuery(ctx context.Context, req *mcp.CallToolRequest, args QueryArgs) (*mcp.CallToolResult, QueryResult, error) {
	graphID := args.ActiveGraphID
	if graphID == "" {
		graphID = s.activeGraphID
	}

	res := s.engine.Execute(ctx, args.Query, bql.ExecuteOptions{
		Confirm:       args.Confirm,
		ActiveGraphID: graphID,
	})

	return nil, toQueryResult(res), nil
}

func toQueryResult(res bql.Result) QueryResult {
	switch res.Kind {
	case bql.ResultRows:
		return QueryResult{Kind: "rows", Columns: res.Columns, Rows: toRows(res.Rows)}
	case bql.ResultMutation:
		return QueryResult{Kind: "mutation", Mutation: toMutation(res.Mutation)}
	case bql.ResultDeletePreview:
		return QueryResult{Kind: "preview", Preview: toPreview(res.Preview)}
	case bql.ResultErrorKind:
		return QueryResult{Kind: "error", Error: &QueryError{Kind: res.Err.Kind.String(), Message: res.Err.Error()}}
	default:
		return QueryResult{Kind: "error", Error: &QueryError{Kind: "ServiceError", Message: fmt.Sprintf("unrecognized result kind %d", res.Kind)}}
	}
}

func toRows(rows []bql.Row) [][]QueryCell {
	out := make([][]QueryCell, len(rows))
	for i, row := range rows {
		cells := make([]QueryCell, len(row))
		for j, c := range row {
			cells[j] = toCell(c)
		}
		out[i] = cells
	}
	return out
}

func toCell(c bql.Cell) QueryCell {
	if c.Node == nil {
		return QueryCell{Field: c.Field}
	}
	if c.Field == "" {
		return QueryCell{
			ID:              c.Node.ID,
			Name:            c.Node.Name,
			Label:           c.Node.Label,
			ForegroundColor: c.Node.ForegroundColor,
			BackgroundColor: c.Node.BackgroundColor,
			Kind:            c.Node.Kind,
		}
	}
	switch c.Field {
	case "id":
		return QueryCell{Field: "id", Value: c.Node.ID}
	case "name":
		return QueryCell{Field: "name", Value: c.Node.Name}
	default:
		return QueryCell{Field: c.Field}
	}
}

func toMutation(m *bql.MutationReport) *QueryMutation {
	if m == nil {
		return nil
	}
	return &QueryMutation{Created: m.Created, Updated: m.Updated, Deleted: m.Deleted, Warnings: m.Warnings}
}

func toPreview(p *bql.DeletePreview) *QueryPreview {
	if p == nil {
		return nil
	}
	out := &QueryPreview{WouldDeleteEdgeIDs: p.WouldDeleteEdges}
	for _, n := range p.WouldDeleteNodes {
		out.WouldDeleteNodeIDs = append(out.WouldDeleteNodeIDs, n.ID)
		out.WouldDeleteNodeNames = append(out.WouldDeleteNodeNames, n.Name)
	}
	return out
}
