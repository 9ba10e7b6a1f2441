package table

import (
	"context"
	"fmt"
	"log/slog"
)

// Store wraps one loaded external dataset as a read-only, queryable view.
// It owns a Table (local or DB-backed) and exposes the grouped-aggregated
// projections the annotation engine joins against. A Store never mutates
// its Table.
type Store struct {
	name   string
	tbl    Table
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger. Defaults to slog.Default().
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore wraps a Table as a named Store.
func NewStore(name string, tbl Table, opts ...StoreOption) *Store {
	s := &Store{name: name, tbl: tbl, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the dataset name.
func (s *Store) Name() string {
	return s.name
}

// Table returns the underlying table.
func (s *Store) Table() Table {
	return s.tbl
}

// Columns returns the value column names of the underlying table.
func (s *Store) Columns() []string {
	return s.tbl.Columns()
}

// Key returns the row-key of the underlying table.
func (s *Store) Key() Key {
	return s.tbl.Key()
}

// Annotations returns the table projected to columns, optionally restricted
// to rows whose `on` values are in keys, grouped by `on` and aggregated
// with agg. The result is a local table keyed by the distinct `on` values,
// one aggregated value per requested column.
//
// Columns must name existing value or key columns; unknown names fail with
// a *SchemaError listing exactly the missing ones. If `on` appears in
// columns it is dropped from the projection (it is structural, not a value
// column). A nil KeySet means no restriction. An empty result is not an
// error: callers must treat zero rows as a signal.
func (s *Store) Annotations(ctx context.Context, on Key, columns []string, agg Agg, keys *KeySet) (*Local, error) {
	known := append(append([]string(nil), s.tbl.Key()...), s.tbl.Columns()...)
	if missing := missingFrom(columns, known); len(missing) > 0 {
		return nil, &SchemaError{Table: s.name, Missing: missing}
	}
	if missing := missingFrom(on, known); len(missing) > 0 {
		return nil, &SchemaError{Table: s.name, Missing: missing}
	}

	// The grouping columns are structural, not values to aggregate.
	cols := make([]string, 0, len(columns))
	for _, c := range columns {
		if !on.Contains(c) {
			cols = append(cols, c)
		}
	}

	projected, err := s.tbl.Project(append(append([]string(nil), cols...), on...))
	if err != nil {
		return nil, fmt.Errorf("store %s: project: %w", s.name, err)
	}
	filtered, err := projected.FilterKeys(on, keys)
	if err != nil {
		return nil, fmt.Errorf("store %s: filter keys: %w", s.name, err)
	}
	grouped, err := filtered.GroupAggregate(ctx, on, cols, agg)
	if err != nil {
		return nil, fmt.Errorf("store %s: group aggregate: %w", s.name, err)
	}
	out, err := grouped.Materialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("store %s: materialize: %w", s.name, err)
	}
	s.logger.Debug("store annotations",
		"store", s.name,
		"on", on.String(),
		"columns", len(cols),
		"agg", agg.Kind.String(),
		"rows", out.Len(),
	)
	return out, nil
}

// Expressions returns the table grouped by index with the median taken
// across duplicate keys of every value column. The value columns must be
// numeric. Used for expression matrices where transcript-level rows
// collapse to one row per gene.
func (s *Store) Expressions(ctx context.Context, index Key) (*Local, error) {
	known := append(append([]string(nil), s.tbl.Key()...), s.tbl.Columns()...)
	if missing := missingFrom(index, known); len(missing) > 0 {
		return nil, &SchemaError{Table: s.name, Missing: missing}
	}
	grouped, err := s.tbl.GroupAggregate(ctx, index, s.tbl.Columns(), Agg{Kind: AggMedian})
	if err != nil {
		return nil, fmt.Errorf("store %s: median aggregate: %w", s.name, err)
	}
	return grouped.Materialize(ctx)
}
