// Package resourcequery parses the query-string DSL used by the generic
// resource endpoints. A raw JSON query selects columns, filters rows,
// paginates and traverses relations on any registered entity; every field
// is validated against that entity's schema metadata before it reaches
// the storage layer.
package resourcequery

// Where carries the validated filter clauses. The object-vs-array shape of
// the incoming filter is preserved, not normalized, because an array means
// OR-of-ANDs to the storage layer.
type Where struct {
	Clauses []map[string]interface{}
	IsArray bool
}

// IsEmpty reports whether no filter was supplied.
func (w Where) IsEmpty() bool {
	return len(w.Clauses) == 0
}

// Query is a parsed, validated resource query. It is immutable once
// parsed and discarded when the request completes.
type Query struct {
	Take      *int
	Skip      *int
	Select    []string
	Where     Where
	Relations []string
}
