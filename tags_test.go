package relcache

import (
	"reflect"
	"testing"
)

// TestTagsIgnoreClauses: queries over the same entities tag identically no
// matter how they filter or order.
func TestTagsIgnoreClauses(t *testing.T) {
	d := NewTagDeriver("relcache", "")

	q1 := baseQuery()
	q2 := baseQuery()
	q2.Clauses = []Clause{{Kind: "limit", Expr: "10"}}

	t1, t2 := d.Tags(q1), d.Tags(q2)
	if !reflect.DeepEqual(t1, t2) {
		t.Fatalf("tags differ across clause shapes:\n%v\n%v", t1, t2)
	}
}

// TestTagsCoverNestedRelationsDeduplicated: one tag per distinct entity type,
// root included, nested relations walked, duplicates collapsed.
func TestTagsCoverNestedRelationsDeduplicated(t *testing.T) {
	d := NewTagDeriver("relcache", "")

	q := Query{
		Entity: "Order",
		Relations: []Relation{
			{Name: "items", Entity: "Item", Nested: []Relation{
				{Name: "product", Entity: "Product"},
			}},
			// self-referential relation: same entity type as the root
			{Name: "parent", Entity: "Order"},
			// two relations to the same type collapse to one tag
			{Name: "billingAddress", Entity: "Address"},
			{Name: "shippingAddress", Entity: "Address"},
		},
	}

	want := []string{
		"relcache:Order",
		"relcache:Address",
		"relcache:Item",
		"relcache:Product",
	}
	if got := d.Tags(q); !reflect.DeepEqual(got, want) {
		t.Fatalf("Tags = %v, want %v", got, want)
	}
}

// TestTagsRootOnly: a query with no eager loads still tags its root type.
func TestTagsRootOnly(t *testing.T) {
	d := NewTagDeriver("relcache", "app")

	got := d.Tags(Query{Entity: "Order"})
	want := []string{"relcache:app:Order"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tags = %v, want %v", got, want)
	}
}

func TestRelationPathsNested(t *testing.T) {
	q := baseQuery()
	want := []string{"items", "items.product", "customer"}
	if got := q.RelationPaths(); !reflect.DeepEqual(got, want) {
		t.Fatalf("RelationPaths = %v, want %v", got, want)
	}
}
