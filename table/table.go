// Package table provides the tabular storage layer for annotation joins.
//
// The package follows an interface-based design so the annotation engine can
// run against different table backends:
//   - Local tables: in-memory columnar data, random row access
//   - DB tables: DuckDB-backed relations evaluated lazily in SQL
//
// A Table exposes the four capabilities the annotation engine needs
// (projection, key filtering, grouped aggregation, materialization). Stores
// wrap one Table and implement the keyed, projected, filtered,
// grouped-and-aggregated view used for annotation joins.
package table

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Key identifies the row-key of a table: an ordered list of column names.
// Most keys are a single column; composite keys carry several.
type Key []string

// KeyOf builds a Key from column names.
func KeyOf(cols ...string) Key {
	return Key(cols)
}

// Equal reports whether two keys name the same columns in the same order.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// Contains reports whether the key includes the named column.
func (k Key) Contains(col string) bool {
	for _, c := range k {
		if c == col {
			return true
		}
	}
	return false
}

// String returns the key columns joined for error messages.
func (k Key) String() string {
	return strings.Join(k, ",")
}

// keySep separates the parts of a composite key value internally.
// It never appears in caller-visible output.
const keySep = "\x1f"

// combineKey joins the parts of one composite key value.
func combineKey(parts []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts, keySep)
}

// KeySet is a set of row-key values used to restrict a table before
// aggregation. Membership is order-independent.
type KeySet struct {
	vals map[string]struct{}
}

// NewKeySet builds a KeySet from simple (single-column) key values.
func NewKeySet(vals ...string) *KeySet {
	s := &KeySet{vals: make(map[string]struct{}, len(vals))}
	for _, v := range vals {
		s.vals[v] = struct{}{}
	}
	return s
}

// Add inserts one key value. For composite keys pass one part per key column.
func (s *KeySet) Add(parts ...string) {
	s.vals[combineKey(parts)] = struct{}{}
}

// Contains reports set membership for one combined key value.
func (s *KeySet) Contains(combined string) bool {
	if s == nil {
		return true // nil set means "no restriction"
	}
	_, ok := s.vals[combined]
	return ok
}

// Len returns the number of values in the set.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.vals)
}

// Values returns the combined key values in sorted order.
// Sorted so SQL generation and logs are deterministic.
func (s *KeySet) Values() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.vals))
	for v := range s.vals {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Table is the capability interface every backend implements.
// The annotation engine depends only on this interface.
//
// Project and FilterKeys are lazy compositions and never touch backing
// storage; GroupAggregate and Materialize may run queries and so take a
// context. All methods leave the receiver unchanged.
type Table interface {
	// Columns returns the value column names, excluding the row-key columns.
	Columns() []string

	// Key returns the row-key column name(s).
	Key() Key

	// NumRows returns the current row count.
	NumRows(ctx context.Context) (int64, error)

	// Project restricts the table to cols plus the row-key columns.
	// Unknown columns fail with *SchemaError.
	Project(cols []string) (Table, error)

	// FilterKeys restricts rows to those whose `on` values are in keys.
	// When on equals the row-key this filters by key, otherwise by the
	// named columns' values. A nil KeySet means no restriction.
	FilterKeys(on Key, keys *KeySet) (Table, error)

	// GroupAggregate groups rows by the `on` columns (promoting the
	// row-key to plain columns when needed) and reduces every column in
	// cols with agg. The result is keyed by the distinct `on` values.
	GroupAggregate(ctx context.Context, on Key, cols []string, agg Agg) (Table, error)

	// Materialize evaluates any pending computation into an in-memory
	// Local table. For a DB-backed table this is the boundary between
	// the SQL engine and local random access; it must be crossed before
	// any row-key manipulation.
	Materialize(ctx context.Context) (*Local, error)
}

// SchemaError reports requested columns that do not exist in a table, or a
// row-key name that does not match. It is never retried.
type SchemaError struct {
	// Table is the name of the offending table, when known.
	Table string

	// Missing lists exactly the column names that were not found.
	Missing []string
}

func (e *SchemaError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("table %s: unknown columns: %s", e.Table, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("unknown columns: %s", strings.Join(e.Missing, ", "))
}

// missingFrom returns the names in want that are absent from have.
func missingFrom(want, have []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, c := range have {
		set[c] = struct{}{}
	}
	var missing []string
	for _, c := range want {
		if _, ok := set[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}
