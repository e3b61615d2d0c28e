package resourcequery

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tollgate-io/tollgate/pkg/apperror"
	"github.com/tollgate-io/tollgate/pkg/schema"
)

// rawQuery is the deserialized wire shape. Unrecognized top-level keys are
// ignored rather than rejected, keeping the DSL forward-compatible.
type rawQuery struct {
	Take      interface{} `json:"take"`
	Skip      interface{} `json:"skip"`
	Select    interface{} `json:"select"`
	Where     interface{} `json:"where"`
	Relations interface{} `json:"relations"`
}

// Parse deserializes and validates a raw resource query against the
// entity's metadata. Any single violation fails the whole parse.
func Parse(raw string, meta *schema.Metadata) (*Query, error) {
	var rq rawQuery
	if err := json.Unmarshal([]byte(raw), &rq); err != nil {
		return nil, apperror.BadRequest("cannot deserialize resource query", "")
	}

	take, err := ParseTake(rq.Take, meta)
	if err != nil {
		return nil, err
	}
	skip, err := ParseSkip(rq.Skip, meta)
	if err != nil {
		return nil, err
	}
	where, err := ParseWhere(rq.Where, meta)
	if err != nil {
		return nil, err
	}
	sel, err := ParseSelect(rq.Select, meta)
	if err != nil {
		return nil, err
	}
	relations, err := ParseRelations(rq.Relations, meta)
	if err != nil {
		return nil, err
	}

	return &Query{
		Take:      take,
		Skip:      skip,
		Select:    sel,
		Where:     where,
		Relations: relations,
	}, nil
}

// coerceInt accepts a JSON number or a numeric string. Parsing is strict:
// partial prefixes ("1asd") and fractional values are rejected.
func coerceInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case string:
		num, err := strconv.ParseFloat(v, 64)
		if err != nil || num != math.Trunc(num) {
			return 0, false
		}
		return int(num), true
	default:
		return 0, false
	}
}

// ParseTake validates the take (limit) parameter. Absent take yields nil.
func ParseTake(take interface{}, meta *schema.Metadata) (*int, error) {
	if take == nil {
		return nil, nil
	}

	num, ok := coerceInt(take)
	if !ok {
		return nil, apperror.BadRequest("'take' query parameter must be a number!", meta.TableName)
	}
	if num <= 0 {
		return nil, apperror.BadRequest("'take' query parameter must be a positive number!", meta.TableName)
	}
	return &num, nil
}

// ParseSkip validates the skip (offset) parameter. Unlike take, zero is a
// valid skip.
func ParseSkip(skip interface{}, meta *schema.Metadata) (*int, error) {
	if skip == nil {
		return nil, nil
	}

	num, ok := coerceInt(skip)
	if !ok {
		return nil, apperror.BadRequest("'skip' query parameter must be a number!", meta.TableName)
	}
	if num < 0 {
		return nil, apperror.BadRequest("'skip' query parameter cannot be negative!", meta.TableName)
	}
	return &num, nil
}

func whereCheck(clause interface{}, meta *schema.Metadata) (map[string]interface{}, error) {
	obj, ok := clause.(map[string]interface{})
	if !ok {
		return nil, apperror.BadRequest("'where' property must be a query!", meta.TableName)
	}

	for key := range obj {
		if !meta.HasColumn(key) {
			msg := fmt.Sprintf("Property '%s' from 'where' query does not exist in resource!", key)
			return nil, apperror.BadRequest(msg, meta.TableName)
		}
	}
	return obj, nil
}

// ParseWhere validates a filter object or an array of filter objects.
// Each array element is validated independently; one violation fails all.
func ParseWhere(where interface{}, meta *schema.Metadata) (Where, error) {
	if where == nil {
		return Where{}, nil
	}

	items, isArray := where.([]interface{})
	if !isArray {
		clause, err := whereCheck(where, meta)
		if err != nil {
			return Where{}, err
		}
		return Where{Clauses: []map[string]interface{}{clause}}, nil
	}

	clauses := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		clause, err := whereCheck(item, meta)
		if err != nil {
			return Where{}, err
		}
		clauses = append(clauses, clause)
	}
	return Where{Clauses: clauses, IsArray: true}, nil
}

// asStringList normalizes a scalar string or a list of strings into a
// slice. Any non-string element fails.
func asStringList(value interface{}) ([]string, bool) {
	if s, ok := value.(string); ok {
		return []string{s}, true
	}
	items, ok := value.([]interface{})
	if !ok {
		return nil, false
	}
	list := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		list = append(list, s)
	}
	return list, true
}

// ParseSelect validates the column projection list.
func ParseSelect(sel interface{}, meta *schema.Metadata) ([]string, error) {
	if sel == nil {
		return nil, nil
	}

	list, ok := asStringList(sel)
	if !ok {
		return nil, apperror.BadRequest("'select' query must be a string or a string list!", meta.TableName)
	}

	for _, column := range list {
		if !meta.HasColumn(column) {
			msg := fmt.Sprintf("Property '%s' from 'select' query does not exist in resource!", column)
			return nil, apperror.BadRequest(msg, meta.TableName)
		}
	}
	return list, nil
}

// relationPathValid walks the dotted path one segment at a time, moving a
// metadata cursor through each traversed entity. The walk terminates on
// path length, so cyclic relation graphs are safe at any depth.
func relationPathValid(path string, meta *schema.Metadata) bool {
	current := meta
	for _, step := range strings.Split(path, ".") {
		rel, ok := current.Relation(step)
		if !ok {
			return false
		}
		current = rel.Target
	}
	return true
}

// ParseRelations validates the dotted relation traversal paths. A failed
// step cites the full original path and the root entity.
func ParseRelations(relations interface{}, meta *schema.Metadata) ([]string, error) {
	if relations == nil {
		return nil, nil
	}

	list, ok := asStringList(relations)
	if !ok {
		return nil, apperror.BadRequest("'relations' query must be a string or a string list!", meta.TableName)
	}

	for _, path := range list {
		if !relationPathValid(path, meta) {
			msg := fmt.Sprintf("Property '%s' from 'relations' query does not exist in resource!", path)
			return nil, apperror.BadRequest(msg, meta.TableName)
		}
	}
	return list, nil
}
