package relcache

import "sort"

// Clause is one constraint/ordering/limit clause of a query. relcache does
// not interpret clauses; it only needs them to serialize deterministically so
// that equal queries key identically and different queries never share a key.
//
// Kind is a caller-chosen discriminator ("where", "order", "limit", ...),
// Expr the clause text or column, Args the bound values. Args must be values
// the canonical encoder can handle (primitives, strings, byte slices, times,
// and nestings thereof).
type Clause struct {
	Kind string
	Expr string
	Args []any
}

// Relation is one eager-loaded association: the relation's name as the query
// addresses it, the entity type it fetches, and any relations eager-loaded
// beneath it.
type Relation struct {
	Name   string
	Entity string
	Nested []Relation
}

// Query describes the shape of a relational query for caching purposes: the
// root entity type, the ordered eager-load relation graph, and the
// constraint/ordering clauses. Treat a Query as immutable once handed to
// relcache.
type Query struct {
	Entity    string
	Relations []Relation
	Clauses   []Clause
}

// RelationPaths returns the dotted relation paths in eager-load order,
// nested relations included ("orders", "orders.items", ...).
func (q Query) RelationPaths() []string {
	var paths []string
	var walk func(prefix string, rels []Relation)
	walk = func(prefix string, rels []Relation) {
		for _, r := range rels {
			p := r.Name
			if prefix != "" {
				p = prefix + "." + r.Name
			}
			paths = append(paths, p)
			walk(p, r.Nested)
		}
	}
	walk("", q.Relations)
	return paths
}

// EntityTypes returns every distinct entity type the query touches: the root
// type plus the type of each eager-loaded relation at any depth. Sorted with
// the root first so output is stable for logging and tests.
func (q Query) EntityTypes() []string {
	seen := map[string]struct{}{q.Entity: {}}
	var walk func(rels []Relation)
	walk = func(rels []Relation) {
		for _, r := range rels {
			if r.Entity != "" {
				seen[r.Entity] = struct{}{}
			}
			walk(r.Nested)
		}
	}
	walk(q.Relations)

	rest := make([]string, 0, len(seen)-1)
	for e := range seen {
		if e != q.Entity {
			rest = append(rest, e)
		}
	}
	sort.Strings(rest)
	return append([]string{q.Entity}, rest...)
}
