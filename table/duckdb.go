package table

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // database/sql driver
)

// DB is a DuckDB handle for out-of-core tables. Projections, key filters
// and grouped aggregation compose into a single SQL query that is only
// evaluated at Materialize, so tables larger than memory stay in the engine
// until the aggregated result (small by construction) is pulled local.
type DB struct {
	db *sql.DB
}

// OpenDB opens a DuckDB database. An empty dsn gives an in-memory engine;
// a file path gives a persistent one.
func OpenDB(dsn string) (*DB, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// Exec runs one statement, for relation setup in loaders and tests.
func (d *DB) Exec(ctx context.Context, query string, args ...any) error {
	_, err := d.db.ExecContext(ctx, query, args...)
	return err
}

// LoadCSV creates relation rel from a delimited text file using DuckDB's
// CSV reader (header row required, types inferred).
func (d *DB) LoadCSV(ctx context.Context, rel, path string, delim rune) error {
	q := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(?, delim=?, header=true)`,
		quoteIdent(rel))
	if err := d.Exec(ctx, q, path, string(delim)); err != nil {
		return fmt.Errorf("load csv into %s: %w", rel, err)
	}
	return nil
}

// Table wraps an existing relation as a Table keyed by key.
// The relation's column names are read once here.
func (d *DB) Table(ctx context.Context, rel string, key Key) (*DBTable, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", quoteIdent(rel)))
	if err != nil {
		return nil, fmt.Errorf("describe relation %s: %w", rel, err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("describe relation %s: %w", rel, err)
	}
	if missing := missingFrom(key, cols); len(missing) > 0 {
		return nil, &SchemaError{Table: rel, Missing: missing}
	}
	return &DBTable{db: d.db, rel: rel, key: append(Key(nil), key...), cols: cols}, nil
}

// DBTable is a lazily evaluated view over one DuckDB relation.
// Each capability call returns a new view; nothing runs until Materialize.
type DBTable struct {
	db   *sql.DB
	rel  string
	key  Key
	cols []string // all relation columns

	selected []string // projection incl. key columns; nil = all
	filterOn Key
	filter   *KeySet

	grouped bool
	groupOn Key
	aggCols []string
	agg     Agg
}

func (t *DBTable) clone() *DBTable {
	c := *t
	return &c
}

// visible returns the currently selectable column names, key first.
func (t *DBTable) visible() []string {
	if t.grouped {
		return append(append([]string(nil), t.groupOn...), t.aggCols...)
	}
	if t.selected != nil {
		return t.selected
	}
	return t.cols
}

// Key implements Table.
func (t *DBTable) Key() Key {
	if t.grouped {
		return t.groupOn
	}
	return t.key
}

// Columns implements Table.
func (t *DBTable) Columns() []string {
	key := t.Key()
	var cols []string
	for _, c := range t.visible() {
		if !key.Contains(c) {
			cols = append(cols, c)
		}
	}
	return cols
}

// Project implements Table.
func (t *DBTable) Project(cols []string) (Table, error) {
	if t.grouped {
		return nil, fmt.Errorf("relation %s: cannot project after aggregation", t.rel)
	}
	if missing := missingFrom(cols, t.visible()); len(missing) > 0 {
		return nil, &SchemaError{Table: t.rel, Missing: missing}
	}
	c := t.clone()
	keep := append(append([]string(nil), t.key...), cols...)
	seen := make(map[string]struct{}, len(keep))
	c.selected = nil
	for _, name := range keep {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		c.selected = append(c.selected, name)
	}
	return c, nil
}

// FilterKeys implements Table. Only one key filter per view; the Store
// contract applies it exactly once, before aggregation.
func (t *DBTable) FilterKeys(on Key, keys *KeySet) (Table, error) {
	if keys == nil {
		return t, nil
	}
	if t.grouped {
		return nil, fmt.Errorf("relation %s: cannot filter after aggregation", t.rel)
	}
	if t.filter != nil {
		return nil, fmt.Errorf("relation %s: key filter already applied", t.rel)
	}
	if missing := missingFrom(on, t.visible()); len(missing) > 0 {
		return nil, &SchemaError{Table: t.rel, Missing: missing}
	}
	c := t.clone()
	c.filterOn = append(Key(nil), on...)
	c.filter = keys
	return c, nil
}

// GroupAggregate implements Table.
func (t *DBTable) GroupAggregate(ctx context.Context, on Key, cols []string, agg Agg) (Table, error) {
	if t.grouped {
		return nil, fmt.Errorf("relation %s: already aggregated", t.rel)
	}
	if missing := missingFrom(on, t.visible()); len(missing) > 0 {
		return nil, &SchemaError{Table: t.rel, Missing: missing}
	}
	if missing := missingFrom(cols, t.visible()); len(missing) > 0 {
		return nil, &SchemaError{Table: t.rel, Missing: missing}
	}
	c := t.clone()
	c.grouped = true
	c.groupOn = append(Key(nil), on...)
	c.aggCols = nil
	for _, col := range cols {
		if !on.Contains(col) {
			c.aggCols = append(c.aggCols, col)
		}
	}
	c.agg = agg
	return c, nil
}

// NumRows implements Table.
func (t *DBTable) NumRows(ctx context.Context) (int64, error) {
	q, args, err := t.buildQuery()
	if err != nil {
		return 0, err
	}
	var n int64
	row := t.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM (%s)", q), args...)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count relation %s: %w", t.rel, err)
	}
	return n, nil
}

// Materialize implements Table: runs the composed query and pulls the
// result into a Local table. This is the distributed-to-local boundary;
// every row-key manipulation happens on the Local side of it.
func (t *DBTable) Materialize(ctx context.Context) (*Local, error) {
	q, args, err := t.buildQuery()
	if err != nil {
		return nil, err
	}
	rows, err := t.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("materialize relation %s: %w", t.rel, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("materialize relation %s: %w", t.rel, err)
	}
	cells := make([][]any, len(names))
	scan := make([]any, len(names))
	for i := range scan {
		scan[i] = new(any)
	}
	n := 0
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scan relation %s: %w", t.rel, err)
		}
		for i := range names {
			v := *(scan[i].(*any))
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			cells[i] = append(cells[i], v)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("materialize relation %s: %w", t.rel, err)
	}

	out := &Local{
		key:  append(Key(nil), t.Key()...),
		data: make(map[string][]any, len(names)),
		n:    n,
	}
	for i, name := range names {
		out.order = append(out.order, name)
		out.data[name] = cells[i]
	}
	return out, nil
}

// buildQuery composes the SELECT for the current view.
func (t *DBTable) buildQuery() (string, []any, error) {
	var where string
	var args []any
	if t.filter != nil {
		clause, wargs := filterClause(t.filterOn, t.filter)
		where = " WHERE " + clause
		args = wargs
	}

	if !t.grouped {
		return fmt.Sprintf("SELECT %s FROM %s%s", quoteList(t.visible()), quoteIdent(t.rel), where), args, nil
	}

	exprs := make([]string, 0, len(t.groupOn)+len(t.aggCols))
	for _, c := range t.groupOn {
		exprs = append(exprs, quoteIdent(c))
	}
	for _, c := range t.aggCols {
		expr, err := aggExpr(c, t.agg)
		if err != nil {
			return "", nil, fmt.Errorf("relation %s: %w", t.rel, err)
		}
		exprs = append(exprs, expr)
	}
	q := fmt.Sprintf("SELECT %s FROM %s%s GROUP BY %s",
		strings.Join(exprs, ", "), quoteIdent(t.rel), where, quoteList(t.groupOn))
	return q, args, nil
}

// aggExpr renders one aggregation directive as a DuckDB expression.
func aggExpr(col string, agg Agg) (string, error) {
	id := quoteIdent(col)
	sep := strings.ReplaceAll(agg.sep(), "'", "''")
	switch agg.Kind {
	case AggConcatUniques:
		return fmt.Sprintf(
			"string_agg(DISTINCT CAST(%s AS VARCHAR), '%s') FILTER (WHERE %s IS NOT NULL AND CAST(%s AS VARCHAR) <> '%s') AS %s",
			id, sep, id, id, NullSentinel, id), nil
	case AggConcat:
		return fmt.Sprintf("string_agg(CAST(%s AS VARCHAR), '%s') AS %s", id, sep, id), nil
	case AggFirst:
		return fmt.Sprintf("first(%s) AS %s", id, id), nil
	case AggLast:
		return fmt.Sprintf("last(%s) AS %s", id, id), nil
	case AggMin:
		return fmt.Sprintf("min(%s) AS %s", id, id), nil
	case AggMax:
		return fmt.Sprintf("max(%s) AS %s", id, id), nil
	case AggSum:
		return fmt.Sprintf("sum(%s) AS %s", id, id), nil
	case AggMean:
		return fmt.Sprintf("avg(%s) AS %s", id, id), nil
	case AggMedian:
		return fmt.Sprintf("median(%s) AS %s", id, id), nil
	case AggSize:
		return fmt.Sprintf("count(*) AS %s", id), nil
	default:
		return "", fmt.Errorf("unknown aggregation directive %v", agg.Kind)
	}
}

// filterClause renders the key restriction as an IN predicate.
func filterClause(on Key, keys *KeySet) (string, []any) {
	vals := keys.Values()
	if len(vals) == 0 {
		return "1 = 0", nil
	}
	if len(on) == 1 {
		ph := strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")
		args := make([]any, len(vals))
		for i, v := range vals {
			args[i] = v
		}
		return fmt.Sprintf("%s IN (%s)", quoteIdent(on[0]), ph), args
	}
	// Composite key: tuple IN over the split parts.
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(on)), ", ") + ")"
	tuples := strings.TrimSuffix(strings.Repeat(tuple+", ", len(vals)), ", ")
	var args []any
	for _, v := range vals {
		parts := strings.Split(v, keySep)
		for i := 0; i < len(on); i++ {
			if i < len(parts) {
				args = append(args, parts[i])
			} else {
				args = append(args, "")
			}
		}
	}
	return fmt.Sprintf("(%s) IN (%s)", quoteList(on), tuples), args
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
