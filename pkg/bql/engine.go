// Package bql implements the BrainQuery lexer, parser, semantic validator,
// planner, node resolver, traversal executor, predicate evaluator, mutation
// executor, and result projector described by this repository's BrainQuery
// specification: a Cypher-subset query language over an associative
// knowledge graph reached through the narrow graphservice.Service
// interface.
package bql

import (
	"context"

	"github.com/lonniev/thebrain-mcp/pkg/graphservice"
)

// ExecuteOptions carries the caller-supplied inputs to Execute beyond the
// query text itself.
type ExecuteOptions struct {
	Confirm       bool
	ActiveGraphID string
}

// ResultKind discriminates which field of Result is populated.
type ResultKind int

const (
	ResultRows ResultKind = iota
	ResultMutation
	ResultDeletePreview
	ResultErrorKind
)

// Result is the single return type of Execute; Kind selects which fields are
// meaningful. A CREATE or MERGE with a RETURN list is reported as ResultRows
// and carries both Rows and Mutation.
type Result struct {
	Kind      ResultKind
	Columns   []string
	Rows      []Row
	Mutation  *MutationReport
	Preview   *DeletePreview
	Err       *Error
}

// Engine ties the pipeline together against one graphservice.Service.
type Engine struct {
	svc graphservice.Service
}

// NewEngine returns an Engine backed by svc.
func NewEngine(svc graphservice.Service) *Engine {
	return &Engine{svc: svc}
}

// Execute parses, validates, plans, resolves/traverses, and either
// evaluates a read query or dispatches a mutation, per spec §6.
func (e *Engine) Execute(ctx context.Context, queryText string, opts ExecuteOptions) Result {
	q, err := Parse(queryText)
	if err != nil {
		return errorResult(err)
	}
	if err := Validate(q); err != nil {
		return errorResult(err)
	}

	plan, err := PlanQuery(q)
	if err != nil {
		return errorResult(err)
	}

	resolver := NewResolver(e.svc, opts.ActiveGraphID)
	traverser := NewTraverser(e.svc)
	bindings, err := traverser.Run(ctx, opts.ActiveGraphID, plan, resolver)
	if err != nil {
		return errorResult(err)
	}

	switch q.Kind {
	case KindReadDelete:
		return e.executeDelete(ctx, q, bindings, opts)
	case KindWriteStandalone, KindReadWrite:
		return e.executeCreate(ctx, q, bindings, opts)
	case KindUpsertQuery, KindReadUpsert:
		return e.executeMerge(ctx, q, bindings, opts)
	default:
		if len(q.Set) > 0 {
			return e.executeSet(ctx, q, bindings, opts)
		}
		return e.projectRows(q, bindings)
	}
}

func (e *Engine) projectRows(q *Query, bindings *Bindings) Result {
	rows := Project(bindings, q.Return)
	cols := make([]string, len(q.Return))
	for i, r := range q.Return {
		if r.Field == "" {
			cols[i] = r.Variable
		} else {
			cols[i] = r.Variable + "." + r.Field
		}
	}
	return Result{Kind: ResultRows, Columns: cols, Rows: rows}
}

func (e *Engine) executeCreate(ctx context.Context, q *Query, bindings *Bindings, opts ExecuteOptions) Result {
	mutator := NewMutator(e.svc, opts.ActiveGraphID)
	report, err := mutator.ExecuteCreate(ctx, q.CreatePatterns, bindings.Candidates, q.MatchBoundVars)
	if err != nil {
		return errorResult(err)
	}
	if len(q.Return) > 0 {
		rows := Project(bindings, q.Return)
		cols := make([]string, len(q.Return))
		for i, r := range q.Return {
			cols[i] = r.Variable
		}
		return Result{Kind: ResultRows, Columns: cols, Rows: rows, Mutation: report}
	}
	return Result{Kind: ResultMutation, Mutation: report}
}

func (e *Engine) executeSet(ctx context.Context, q *Query, bindings *Bindings, opts ExecuteOptions) Result {
	targets := setTargetCount(q.Set, bindings.Candidates)
	if targets > 10 {
		return errorResult(newLimitExceeded("SET batch exceeds 10 nodes"))
	}
	mutator := NewMutator(e.svc, opts.ActiveGraphID)
	report, err := mutator.ExecuteSet(ctx, q.Set, bindings.Candidates)
	if err != nil {
		return errorResult(err)
	}
	return Result{Kind: ResultMutation, Mutation: report}
}

// setTargetCount returns the number of distinct matched nodes the SET items
// would touch.
func setTargetCount(items []SetItem, resolved map[string][]graphservice.NodeRecord) int {
	vars := map[string]bool{}
	for _, it := range items {
		switch v := it.(type) {
		case *PropertyAssign:
			vars[v.Variable] = true
		case *TypeAssign:
			vars[v.Variable] = true
		}
	}
	nodes := map[string]bool{}
	for v := range vars {
		for _, n := range resolved[v] {
			nodes[n.ID] = true
		}
	}
	return len(nodes)
}

func (e *Engine) executeMerge(ctx context.Context, q *Query, bindings *Bindings, opts ExecuteOptions) Result {
	mutator := NewMutator(e.svc, opts.ActiveGraphID)
	outcomes, report, err := mutator.ExecuteMerge(ctx, e.svc, opts.ActiveGraphID, q.MergePatterns)
	if err != nil {
		return errorResult(err)
	}
	if len(q.OnCreateSet) > 0 {
		if err := mutator.ApplyOnClause(ctx, q.OnCreateSet, outcomes, true); err != nil {
			return errorResult(err)
		}
	}
	if len(q.OnMatchSet) > 0 {
		if err := mutator.ApplyOnClause(ctx, q.OnMatchSet, outcomes, false); err != nil {
			return errorResult(err)
		}
	}
	if len(q.Return) > 0 {
		for v, o := range outcomes {
			bindings.Candidates[v] = []graphservice.NodeRecord{o.Node}
		}
		rows := Project(bindings, q.Return)
		cols := make([]string, len(q.Return))
		for i, r := range q.Return {
			cols[i] = r.Variable
		}
		return Result{Kind: ResultRows, Columns: cols, Rows: rows, Mutation: report}
	}
	return Result{Kind: ResultMutation, Mutation: report}
}

func (e *Engine) executeDelete(ctx context.Context, q *Query, bindings *Bindings, opts ExecuteOptions) Result {
	mutator := NewMutator(e.svc, opts.ActiveGraphID)
	preview, report, err := mutator.ExecuteDelete(ctx, q.DeleteVars, bindings.Candidates, bindings.Edges, opts.Confirm)
	if err != nil {
		return errorResult(err)
	}
	if !opts.Confirm {
		return Result{Kind: ResultDeletePreview, Preview: preview}
	}
	return Result{Kind: ResultMutation, Mutation: report}
}

func errorResult(err error) Result {
	if e, ok := err.(*Error); ok {
		return Result{Kind: ResultErrorKind, Err: e}
	}
	return Result{Kind: ResultErrorKind, Err: &Error{Kind: ServiceError, Message: err.Error()}}
}
