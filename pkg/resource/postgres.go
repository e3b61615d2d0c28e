package resource

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/tollgate-io/tollgate/pkg/apperror"
	"github.com/tollgate-io/tollgate/pkg/resourcequery"
	"github.com/tollgate-io/tollgate/pkg/schema"
)

// PostgresStore implements Store over database/sql with the lib/pq driver.
// Statements are built from entity metadata with quoted identifiers; all
// values travel as parameters.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a metadata-driven Postgres store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// selectColumns returns the projection for a query: the validated select
// list when present, otherwise every declared column.
func selectColumns(meta *schema.Metadata, q *resourcequery.Query) []string {
	if q != nil && len(q.Select) > 0 {
		// The projection always carries the id so relation loading and
		// response identity stay intact.
		if containsColumn(q.Select, "id") {
			return q.Select
		}
		return append([]string{"id"}, q.Select...)
	}
	return meta.Columns
}

func containsColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

func quoteColumns(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

// buildWhere renders the filter as OR-of-ANDs. Clause keys are sorted so
// generated statements are deterministic.
func buildWhere(where resourcequery.Where, args *[]interface{}) string {
	if where.IsEmpty() {
		return ""
	}

	clauses := make([]string, 0, len(where.Clauses))
	for _, clause := range where.Clauses {
		keys := make([]string, 0, len(clause))
		for k := range clause {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		conds := make([]string, 0, len(keys))
		for _, k := range keys {
			*args = append(*args, clause[k])
			conds = append(conds, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(k), len(*args)))
		}
		clauses = append(clauses, "("+strings.Join(conds, " AND ")+")")
	}
	return " WHERE " + strings.Join(clauses, " OR ")
}

// scanRows reads every result row into generic Rows, normalizing []byte
// values to strings.
func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, column := range columns {
			value := values[i]
			if b, ok := value.([]byte); ok {
				value = string(b)
			}
			row[column] = value
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// FindOne implements Store.
func (s *PostgresStore) FindOne(ctx context.Context, meta *schema.Metadata, id int64, q *resourcequery.Query) (Row, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		quoteColumns(selectColumns(meta, q)),
		pq.QuoteIdentifier(meta.TableName),
		pq.QuoteIdentifier("id"),
	)

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}

	if q != nil && len(q.Relations) > 0 {
		if err := s.loadRelations(ctx, meta, found, q.Relations); err != nil {
			return nil, err
		}
	}
	return found[0], nil
}

// FindMany implements Store.
func (s *PostgresStore) FindMany(ctx context.Context, meta *schema.Metadata, q *resourcequery.Query) ([]Row, error) {
	var args []interface{}

	query := fmt.Sprintf(
		"SELECT %s FROM %s",
		quoteColumns(selectColumns(meta, q)),
		pq.QuoteIdentifier(meta.TableName),
	)
	if q != nil {
		query += buildWhere(q.Where, &args)
		if q.Take != nil {
			args = append(args, *q.Take)
			query += fmt.Sprintf(" LIMIT $%d", len(args))
		}
		if q.Skip != nil {
			args = append(args, *q.Skip)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found, err := scanRows(rows)
	if err != nil {
		return nil, err
	}

	if q != nil && len(q.Relations) > 0 && len(found) > 0 {
		if err := s.loadRelations(ctx, meta, found, q.Relations); err != nil {
			return nil, err
		}
	}
	return found, nil
}

// Insert implements Store with a single multi-row statement.
func (s *PostgresStore) Insert(ctx context.Context, meta *schema.Metadata, rows []Row) ([]Row, error) {
	if len(rows) == 0 {
		return []Row{}, nil
	}

	query, args, err := buildInsert(meta, rows, false)
	if err != nil {
		return nil, err
	}

	result, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	return scanRows(result)
}

// Save implements Store as an insert-or-update keyed on id.
func (s *PostgresStore) Save(ctx context.Context, meta *schema.Metadata, rows []Row) ([]Row, error) {
	if len(rows) == 0 {
		return []Row{}, nil
	}

	query, args, err := buildInsert(meta, rows, true)
	if err != nil {
		return nil, err
	}

	result, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	return scanRows(result)
}

// insertColumns returns the union of declared columns present in any of
// the rows, sorted for deterministic statements.
func insertColumns(meta *schema.Metadata, rows []Row) []string {
	seen := make(map[string]struct{})
	var columns []string
	for _, row := range rows {
		for key := range row {
			if !meta.HasColumn(key) {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			columns = append(columns, key)
		}
	}
	sort.Strings(columns)
	return columns
}

// buildInsert renders a multi-row insert. The column list is the union of
// declared keys across all rows, so no row's columns are dropped; a row
// missing a key contributes NULL for it. With upsert set, conflicts on id
// update in place.
func buildInsert(meta *schema.Metadata, rows []Row, upsert bool) (string, []interface{}, error) {
	columns := insertColumns(meta, rows)
	if len(columns) == 0 {
		if len(rows) > 1 {
			return "", nil, apperror.BadRequest("cannot create resource from an empty payload", meta.TableName)
		}
		query := fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", pq.QuoteIdentifier(meta.TableName))
		return query, nil, nil
	}

	var args []interface{}
	tuples := make([]string, 0, len(rows))
	for _, row := range rows {
		params := make([]string, 0, len(columns))
		for _, column := range columns {
			args = append(args, row[column])
			params = append(params, fmt.Sprintf("$%d", len(args)))
		}
		tuples = append(tuples, "("+strings.Join(params, ", ")+")")
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s",
		pq.QuoteIdentifier(meta.TableName),
		quoteColumns(columns),
		strings.Join(tuples, ", "),
	)

	if upsert && containsColumn(columns, "id") {
		sets := make([]string, 0, len(columns))
		for _, column := range columns {
			if column == "id" {
				continue
			}
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", pq.QuoteIdentifier(column), pq.QuoteIdentifier(column)))
		}
		if len(sets) > 0 {
			query += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", pq.QuoteIdentifier("id"), strings.Join(sets, ", "))
		}
	}

	return query + " RETURNING *", args, nil
}

// UpdateByID implements Store.
func (s *PostgresStore) UpdateByID(ctx context.Context, meta *schema.Metadata, id int64, row Row) (Row, error) {
	columns := make([]string, 0, len(row))
	for key := range row {
		if key != "id" && meta.HasColumn(key) {
			columns = append(columns, key)
		}
	}
	sort.Strings(columns)

	var args []interface{}
	sets := make([]string, 0, len(columns))
	for _, column := range columns {
		args = append(args, row[column])
		sets = append(sets, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(column), len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = $%d RETURNING *",
		pq.QuoteIdentifier(meta.TableName),
		strings.Join(sets, ", "),
		pq.QuoteIdentifier("id"),
		len(args),
	)

	result, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	updated, err := scanRows(result)
	if err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		return nil, nil
	}
	return updated[0], nil
}

// DeleteByID implements Store. Zero rows affected is not an error; a race
// with a concurrent delete is accepted.
func (s *PostgresStore) DeleteByID(ctx context.Context, meta *schema.Metadata, id int64) error {
	query := fmt.Sprintf(
		"DELETE FROM %s WHERE %s = $1",
		pq.QuoteIdentifier(meta.TableName),
		pq.QuoteIdentifier("id"),
	)
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// ExistsByID implements Store as a single boolean round trip.
func (s *PostgresStore) ExistsByID(ctx context.Context, meta *schema.Metadata, id int64) (bool, error) {
	query := fmt.Sprintf(
		"SELECT EXISTS(SELECT 1 FROM %s WHERE %s = $1)",
		pq.QuoteIdentifier(meta.TableName),
		pq.QuoteIdentifier("id"),
	)

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// loadRelations attaches requested relation paths to the fetched rows.
// Each path loads one follow-up query per step. The foreign key is found
// by convention in either direction: a "<relation>_id" column on the
// owning side (many-to-one), or a "<parent table>_id" column on the
// target side (one-to-many).
func (s *PostgresStore) loadRelations(ctx context.Context, meta *schema.Metadata, rows []Row, paths []string) error {
	for _, path := range paths {
		if err := s.loadRelationPath(ctx, meta, rows, strings.Split(path, ".")); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) loadRelationPath(ctx context.Context, meta *schema.Metadata, rows []Row, steps []string) error {
	step := steps[0]
	rel, ok := meta.Relation(step)
	if !ok {
		// Paths are validated by the query parser before they get here.
		return fmt.Errorf("unknown relation %q on %s", step, meta.TableName)
	}

	children, err := s.attachRelation(ctx, meta, rel.Target, rows, step)
	if err != nil {
		return err
	}

	if len(steps) > 1 && len(children) > 0 {
		return s.loadRelationPath(ctx, rel.Target, children, steps[1:])
	}
	return nil
}

// attachRelation loads one relation level for the given parent rows and
// returns the distinct child rows for deeper traversal.
func (s *PostgresStore) attachRelation(ctx context.Context, parent, target *schema.Metadata, parents []Row, relation string) ([]Row, error) {
	if fkColumn := relation + "_id"; parent.HasColumn(fkColumn) {
		return s.attachManyToOne(ctx, target, parents, relation, fkColumn)
	}
	if fkColumn := parent.TableName + "_id"; target.HasColumn(fkColumn) {
		return s.attachOneToMany(ctx, target, parents, relation, fkColumn)
	}
	return nil, fmt.Errorf("relation %q between %s and %s has no foreign key column", relation, parent.TableName, target.TableName)
}

// attachManyToOne resolves a "<relation>_id" column on the owning rows
// and attaches the single referenced row to each parent.
func (s *PostgresStore) attachManyToOne(ctx context.Context, target *schema.Metadata, parents []Row, relation, fkColumn string) ([]Row, error) {
	ids := make([]int64, 0, len(parents))
	seen := make(map[int64]struct{}, len(parents))
	for _, parent := range parents {
		id, ok := asInt64(parent[fkColumn])
		if !ok {
			continue
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ANY($1)",
		quoteColumns(target.Columns),
		pq.QuoteIdentifier(target.TableName),
		pq.QuoteIdentifier("id"),
	)

	result, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer result.Close()

	children, err := scanRows(result)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]Row, len(children))
	for _, child := range children {
		if id, ok := asInt64(child["id"]); ok {
			byID[id] = child
		}
	}
	for _, parent := range parents {
		if id, ok := asInt64(parent[fkColumn]); ok {
			if child, found := byID[id]; found {
				parent[relation] = child
			}
		}
	}
	return children, nil
}

// attachOneToMany resolves a "<parent table>_id" column on the target
// rows and attaches the referencing rows to each parent as a list.
func (s *PostgresStore) attachOneToMany(ctx context.Context, target *schema.Metadata, parents []Row, relation, fkColumn string) ([]Row, error) {
	ids := make([]int64, 0, len(parents))
	seen := make(map[int64]struct{}, len(parents))
	for _, parent := range parents {
		id, ok := asInt64(parent["id"])
		if !ok {
			continue
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ANY($1)",
		quoteColumns(target.Columns),
		pq.QuoteIdentifier(target.TableName),
		pq.QuoteIdentifier(fkColumn),
	)

	result, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer result.Close()

	children, err := scanRows(result)
	if err != nil {
		return nil, err
	}

	byParent := make(map[int64][]Row, len(parents))
	for _, child := range children {
		if parentID, ok := asInt64(child[fkColumn]); ok {
			byParent[parentID] = append(byParent[parentID], child)
		}
	}
	for _, parent := range parents {
		if id, ok := asInt64(parent["id"]); ok {
			if kids, found := byParent[id]; found {
				parent[relation] = kids
			}
		}
	}
	return children, nil
}

func asInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
