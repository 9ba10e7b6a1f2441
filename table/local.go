package table

import (
	"context"
	"fmt"
)

// Local is the in-memory Table implementation: named columns of []any cells
// with nil as null. Row-key columns are stored like any other column and
// named by the key. Local is the only implementation with random row access,
// so it is also the engine's annotation-table representation and the result
// type of Materialize on every backend.
type Local struct {
	key   Key
	order []string // all column names, key columns first
	data  map[string][]any
	n     int
}

// NewLocal creates an empty table keyed by key, with one column per key
// part and zero rows.
func NewLocal(key Key) *Local {
	t := &Local{
		key:  append(Key(nil), key...),
		data: make(map[string][]any, len(key)),
	}
	for _, c := range key {
		t.order = append(t.order, c)
		t.data[c] = nil
	}
	return t
}

// NewKeyed creates a table keyed by key and populated with the given key
// values, one slice per key column. No value columns yet.
func NewKeyed(key Key, keyVals ...[]string) (*Local, error) {
	if len(keyVals) != len(key) {
		return nil, fmt.Errorf("key %s needs %d value slices, got %d", key, len(key), len(keyVals))
	}
	t := NewLocal(key)
	for i, vals := range keyVals {
		if i > 0 && len(vals) != len(keyVals[0]) {
			return nil, fmt.Errorf("key column %s: length %d, want %d", key[i], len(vals), len(keyVals[0]))
		}
		cells := make([]any, len(vals))
		for j, v := range vals {
			cells[j] = v
		}
		t.data[key[i]] = cells
	}
	if len(keyVals) > 0 {
		t.n = len(keyVals[0])
	}
	return t, nil
}

// Key implements Table.
func (t *Local) Key() Key {
	return t.key
}

// Columns implements Table: value column names, key columns excluded.
func (t *Local) Columns() []string {
	cols := make([]string, 0, len(t.order))
	for _, c := range t.order {
		if !t.key.Contains(c) {
			cols = append(cols, c)
		}
	}
	return cols
}

// AllColumns returns every column name, key columns first.
func (t *Local) AllColumns() []string {
	return append([]string(nil), t.order...)
}

// Len returns the row count.
func (t *Local) Len() int {
	return t.n
}

// NumRows implements Table.
func (t *Local) NumRows(ctx context.Context) (int64, error) {
	return int64(t.n), nil
}

// HasColumn reports whether the named column (key or value) exists.
func (t *Local) HasColumn(name string) bool {
	_, ok := t.data[name]
	return ok
}

// Column returns the cells of one column. The slice is shared with the
// table; callers must treat it as read-only.
func (t *Local) Column(name string) ([]any, error) {
	cells, ok := t.data[name]
	if !ok {
		return nil, &SchemaError{Missing: []string{name}}
	}
	return cells, nil
}

// AppendColumn adds a new column. The column name must be unique and the
// values must match the row count.
func (t *Local) AppendColumn(name string, cells []any) error {
	if _, ok := t.data[name]; ok {
		return fmt.Errorf("column %s already exists", name)
	}
	if len(cells) != t.n {
		return fmt.Errorf("column %s: %d cells, table has %d rows", name, len(cells), t.n)
	}
	t.order = append(t.order, name)
	t.data[name] = cells
	return nil
}

// ReplaceColumn swaps the cells of an existing column.
func (t *Local) ReplaceColumn(name string, cells []any) error {
	if _, ok := t.data[name]; !ok {
		return &SchemaError{Missing: []string{name}}
	}
	if len(cells) != t.n {
		return fmt.Errorf("column %s: %d cells, table has %d rows", name, len(cells), t.n)
	}
	t.data[name] = cells
	return nil
}

// DropColumn removes a value column. Key columns cannot be dropped.
func (t *Local) DropColumn(name string) error {
	if t.key.Contains(name) {
		return fmt.Errorf("cannot drop key column %s", name)
	}
	if _, ok := t.data[name]; !ok {
		return &SchemaError{Missing: []string{name}}
	}
	delete(t.data, name)
	for i, c := range t.order {
		if c == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// RenameColumn renames a column (key columns included; the key follows the
// rename).
func (t *Local) RenameColumn(old, new string) error {
	if old == new {
		return nil
	}
	cells, ok := t.data[old]
	if !ok {
		return &SchemaError{Missing: []string{old}}
	}
	if _, ok := t.data[new]; ok {
		return fmt.Errorf("column %s already exists", new)
	}
	delete(t.data, old)
	t.data[new] = cells
	for i, c := range t.order {
		if c == old {
			t.order[i] = new
		}
	}
	for i, c := range t.key {
		if c == old {
			t.key[i] = new
		}
	}
	return nil
}

// KeyValues returns the combined row-key value of every row, in row order.
// Composite key parts are joined with an internal separator; rows with a
// null key part yield "".
func (t *Local) KeyValues() []string {
	vals, _ := t.valuesFor(t.key)
	return vals
}

// Values returns the combined per-row values of the named columns, which
// may be key columns, value columns, or a mix. Rows with a null part yield
// "". The combined form is comparable across tables in this package.
func (t *Local) Values(on Key) ([]string, error) {
	return t.valuesFor(on)
}

// valuesFor returns the combined per-row values of the named columns.
// A nil cell in any part makes the row's combined value "".
func (t *Local) valuesFor(on Key) ([]string, error) {
	cols := make([][]any, len(on))
	for i, name := range on {
		cells, ok := t.data[name]
		if !ok {
			return nil, &SchemaError{Missing: []string{name}}
		}
		cols[i] = cells
	}
	out := make([]string, t.n)
	parts := make([]string, len(on))
	for row := 0; row < t.n; row++ {
		null := false
		for i := range on {
			v := cols[i][row]
			if v == nil {
				null = true
				break
			}
			parts[i] = cellString(v)
		}
		if null {
			out[row] = ""
			continue
		}
		out[row] = combineKey(parts)
	}
	return out, nil
}

// Clone deep-copies the table (cell slices copied, cell values shared).
func (t *Local) Clone() *Local {
	c := &Local{
		key:   append(Key(nil), t.key...),
		order: append([]string(nil), t.order...),
		data:  make(map[string][]any, len(t.data)),
		n:     t.n,
	}
	for name, cells := range t.data {
		c.data[name] = append([]any(nil), cells...)
	}
	return c
}

// WithKey returns a copy of the table re-keyed by the named columns.
// The columns must already exist.
func (t *Local) WithKey(newKey Key) (*Local, error) {
	if missing := missingFrom(newKey, t.order); len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	c := t.Clone()
	c.key = append(Key(nil), newKey...)
	return c, nil
}

// Project implements Table: restricts to cols plus the key columns.
func (t *Local) Project(cols []string) (Table, error) {
	if missing := missingFrom(cols, t.order); len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	keep := append(append([]string(nil), t.key...), cols...)
	p := &Local{
		key:  append(Key(nil), t.key...),
		data: make(map[string][]any, len(keep)),
		n:    t.n,
	}
	for _, name := range keep {
		if _, ok := p.data[name]; ok {
			continue
		}
		p.order = append(p.order, name)
		p.data[name] = t.data[name]
	}
	return p, nil
}

// FilterKeys implements Table.
func (t *Local) FilterKeys(on Key, keys *KeySet) (Table, error) {
	if keys == nil {
		return t, nil
	}
	vals, err := t.valuesFor(on)
	if err != nil {
		return nil, err
	}
	var rows []int
	for i, v := range vals {
		if v != "" && keys.Contains(v) {
			rows = append(rows, i)
		}
	}
	f := &Local{
		key:   append(Key(nil), t.key...),
		order: append([]string(nil), t.order...),
		data:  make(map[string][]any, len(t.data)),
		n:     len(rows),
	}
	for name, cells := range t.data {
		sub := make([]any, len(rows))
		for j, i := range rows {
			sub[j] = cells[i]
		}
		f.data[name] = sub
	}
	return f, nil
}

// GroupAggregate implements Table. Groups appear in first-seen row order.
func (t *Local) GroupAggregate(ctx context.Context, on Key, cols []string, agg Agg) (Table, error) {
	if missing := missingFrom(on, t.order); len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	if missing := missingFrom(cols, t.order); len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	groupVals, err := t.valuesFor(on)
	if err != nil {
		return nil, err
	}

	groupIdx := make(map[string]int)
	var groupRows [][]int
	var groupOrder []int // first row of each group, to recover on-values
	for row, gv := range groupVals {
		if gv == "" {
			continue // null group keys are dropped, as in a relational group-by
		}
		gi, ok := groupIdx[gv]
		if !ok {
			gi = len(groupRows)
			groupIdx[gv] = gi
			groupRows = append(groupRows, nil)
			groupOrder = append(groupOrder, row)
		}
		groupRows[gi] = append(groupRows[gi], row)
	}

	out := &Local{
		key:  append(Key(nil), on...),
		data: make(map[string][]any, len(on)+len(cols)),
		n:    len(groupRows),
	}
	for _, name := range on {
		src := t.data[name]
		cells := make([]any, len(groupOrder))
		for gi, row := range groupOrder {
			cells[gi] = src[row]
		}
		out.order = append(out.order, name)
		out.data[name] = cells
	}
	for _, name := range cols {
		if on.Contains(name) {
			continue
		}
		src := t.data[name]
		cells := make([]any, len(groupRows))
		buf := make([]any, 0, 8)
		for gi, rows := range groupRows {
			buf = buf[:0]
			for _, row := range rows {
				buf = append(buf, src[row])
			}
			v, err := agg.Reduce(buf)
			if err != nil {
				return nil, fmt.Errorf("aggregate column %s: %w", name, err)
			}
			cells[gi] = v
		}
		out.order = append(out.order, name)
		out.data[name] = cells
	}
	return out, nil
}

// Materialize implements Table. A Local is already materialized.
func (t *Local) Materialize(ctx context.Context) (*Local, error) {
	return t, nil
}

// MergeLeft left-outer-merges right into the table: every row of the
// receiver is kept, rows of right matching on the receiver's `on` values
// contribute their value columns, unmatched rows get nil. Right-side rows
// are matched by their row-key; right must already be aggregated to one row
// per key. Colliding column names get suffix appended. The receiver is not
// modified; the merged copy is returned.
func (t *Local) MergeLeft(ctx context.Context, right Table, on Key, suffix string) (*Local, error) {
	rt, err := right.Materialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("materialize merge source: %w", err)
	}

	leftVals, err := t.valuesFor(on)
	if err != nil {
		return nil, err
	}
	rightKeys := rt.KeyValues()
	rowFor := make(map[string]int, len(rightKeys))
	for i, kv := range rightKeys {
		if kv == "" {
			continue
		}
		if _, ok := rowFor[kv]; !ok {
			rowFor[kv] = i
		}
	}

	merged := t.Clone()
	for _, name := range rt.Columns() {
		src := rt.data[name]
		outName := name
		if merged.HasColumn(outName) {
			outName = name + suffix
		}
		cells := make([]any, merged.n)
		for row, kv := range leftVals {
			if kv == "" {
				continue
			}
			if ri, ok := rowFor[kv]; ok {
				cells[row] = src[ri]
			}
		}
		if err := merged.AppendColumn(outName, cells); err != nil {
			return nil, err
		}
	}
	return merged, nil
}
