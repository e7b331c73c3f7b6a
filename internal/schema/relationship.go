package schema

// RelationshipKind distinguishes the two relationship shapes a schema can
// declare.
type RelationshipKind int

const (
	OneToMany RelationshipKind = iota
	ManyToMany
)

// CascadeAction is the action taken on the child side when a parent row is
// deleted.
type CascadeAction int

const (
	CascadeDelete CascadeAction = iota
	CascadeRestrict
	CascadeSetNull
)

// Relationship declares a parent/child link between two tables, used by
// the dependency tracker to derive related-table dependencies without
// the caller having to spell them out by hand.
type Relationship struct {
	Name            string
	Kind            RelationshipKind
	ParentTable     string
	ParentColumn    string
	ChildTable      string
	ChildColumn     string
	JunctionTable   string // many-to-many only
	JunctionParent  string // many-to-many only
	JunctionChild   string // many-to-many only
	OnDelete        CascadeAction
}

// Endpoints returns the two table names this relationship links (junction
// table is an implementation detail, not an endpoint).
func (r Relationship) Endpoints() (parent, child string) {
	return r.ParentTable, r.ChildTable
}
