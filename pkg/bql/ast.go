package bql

// Relation is one of the four primitive edge types, each carrying the
// stable integer code the graph service expects.
type Relation int

const (
	RelChild   Relation = 1
	RelParent  Relation = 2
	RelJump    Relation = 3
	RelSibling Relation = 4
)

func (r Relation) String() string {
	switch r {
	case RelChild:
		return "CHILD"
	case RelParent:
		return "PARENT"
	case RelJump:
		return "JUMP"
	case RelSibling:
		return "SIBLING"
	default:
		return "UNKNOWN"
	}
}

var relationNames = map[string]Relation{
	"CHILD":   RelChild,
	"PARENT":  RelParent,
	"JUMP":    RelJump,
	"SIBLING": RelSibling,
}

// NodePattern is a single node slot in a MATCH/CREATE/MERGE pattern.
type NodePattern struct {
	Variable       string
	TypeLabel      string // "" if absent
	NameConstraint *string // nil if absent; from inline {name: "..."}
}

// RelSetKind distinguishes how a relationship pattern's type set was
// spelled.
type RelSetKind int

const (
	RelSetSingle RelSetKind = iota
	RelSetUnion
	RelSetWildcard
)

// RelationshipPattern is a single edge slot in a pattern.
type RelationshipPattern struct {
	Variable string // "" if unbound
	SetKind  RelSetKind
	Types    []Relation // for RelSetSingle (len 1) and RelSetUnion (len >=2); empty for wildcard
	HopMin   int
	HopMax   int
}

// Expand returns the concrete set of relation types this pattern matches.
func (r *RelationshipPattern) Expand() []Relation {
	if r.SetKind == RelSetWildcard {
		return []Relation{RelChild, RelJump, RelSibling}
	}
	return r.Types
}

// Pattern is an alternating chain of node and relationship patterns,
// beginning and ending with a node pattern: Nodes has len(Rels)+1 entries.
type Pattern struct {
	Nodes []*NodePattern
	Rels  []*RelationshipPattern
}

// CompareOp is a name-comparison operator usable in a NameCompare atom.
type CompareOp int

const (
	OpEquals CompareOp = iota
	OpContains
	OpStartsWith
	OpEndsWith
	OpSimilar // =~
)

// WhereExpr is the discriminated union of WHERE-tree nodes. Each concrete
// type is a distinct Go type carrying only the fields relevant to it; the
// unexported marker method closes the set to this package's callers.
type WhereExpr interface {
	whereExprNode()
}

type OrExpr struct{ Left, Right WhereExpr }
type XorExpr struct{ Left, Right WhereExpr }
type AndExpr struct{ Left, Right WhereExpr }
type NotExpr struct{ Operand WhereExpr }

// NameCompare is a leaf atom comparing a variable's name field to a literal.
type NameCompare struct {
	Variable string
	Op       CompareOp
	Literal  string
}

// IsNull and IsNotNull are post-filter leaf atoms over a named property.
type IsNull struct {
	Variable string
	Property string
}

type IsNotNull struct {
	Variable string
	Property string
}

func (*OrExpr) whereExprNode()      {}
func (*XorExpr) whereExprNode()     {}
func (*AndExpr) whereExprNode()     {}
func (*NotExpr) whereExprNode()     {}
func (*NameCompare) whereExprNode() {}
func (*IsNull) whereExprNode()      {}
func (*IsNotNull) whereExprNode()   {}

// SetItem is the discriminated union of a single SET/ON CREATE SET/ON MATCH
// SET assignment.
type SetItem interface {
	setItemNode()
}

// PropertyAssign assigns a settable property; Value == nil means the
// property is cleared (SET p.label = NULL).
type PropertyAssign struct {
	Variable string
	Property string
	Value    *string
}

// TypeAssign is a SET p:TypeName type change.
type TypeAssign struct {
	Variable  string
	TypeLabel string
}

func (*PropertyAssign) setItemNode() {}
func (*TypeAssign) setItemNode()     {}

// Settable properties, per spec §3.
const (
	PropName            = "name"
	PropLabel           = "label"
	PropForegroundColor = "foregroundColor"
	PropBackgroundColor = "backgroundColor"
)

// QueryKind classifies the top-level shape of a parsed query.
type QueryKind int

const (
	KindReadQuery QueryKind = iota
	KindWriteStandalone
	KindReadWrite
	KindUpsertQuery
	KindReadUpsert
	KindReadDelete
)

// Query is the parsed, not-yet-validated AST for one BQL statement. Its
// Kind determines which of the optional sections are meaningful; the parser
// only ever populates a combination the grammar allows.
type Query struct {
	Kind QueryKind

	MatchPatterns []*Pattern
	// MatchBoundVars holds every variable introduced by the MATCH part.
	// Node patterns in CREATE/MERGE that reference one of these are
	// references to an already-resolved (or already under-constrained)
	// binding, never a new node to create, even when they carry no name
	// constraint of their own.
	MatchBoundVars map[string]bool
	Where          WhereExpr // nil if absent

	CreatePatterns []*Pattern

	MergePatterns []*Pattern
	OnCreateSet   []SetItem
	OnMatchSet    []SetItem

	Set []SetItem

	DeleteVars []string
	Detach     bool

	Return []ReturnItem
}

// ReturnItem is one entry of a RETURN list: either the whole node record
// (Field == "") or a single field projection.
type ReturnItem struct {
	Variable string
	Field    string // "", "id", or "name"
}
