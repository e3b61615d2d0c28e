package rbac

import (
	"strings"

	"github.com/tollgate-io/tollgate/pkg/schema"
)

// TablesFromRelations expands dotted relation paths into the table names
// of every traversed entity, deduplicated in first-seen order. A path
// with an unresolvable step contributes nothing; paths are validated by
// the query parser before they reach authorization.
func TablesFromRelations(relations []string, meta *schema.Metadata) []string {
	var tables []string
	seen := make(map[string]struct{})

	for _, relation := range relations {
		for _, table := range tablesFromRelation(relation, meta) {
			if _, dup := seen[table]; dup {
				continue
			}
			seen[table] = struct{}{}
			tables = append(tables, table)
		}
	}
	return tables
}

// tablesFromRelation walks one dotted path, collecting each traversed
// target's table. Termination is guaranteed by the path length, not by
// graph acyclicity.
func tablesFromRelation(relation string, meta *schema.Metadata) []string {
	var tables []string

	current := meta
	for _, step := range strings.Split(relation, ".") {
		rel, ok := current.Relation(step)
		if !ok {
			return nil
		}
		current = rel.Target
		tables = append(tables, current.TableName)
	}
	return tables
}

// AuthorizedResources is the full resource set a request must be granted
// on: the primary entity's table plus every table reachable through the
// requested relation traversal.
func AuthorizedResources(meta *schema.Metadata, relations []string) []string {
	resources := []string{meta.TableName}
	for _, table := range TablesFromRelations(relations, meta) {
		if table != meta.TableName {
			resources = append(resources, table)
		}
	}
	return resources
}
