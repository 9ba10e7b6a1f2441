// Package dataset constructs concrete annotation databases: it resolves a
// database's file resources, runs a database-specific loader over them and
// wraps the result as a queryable store. Construction is all-or-nothing: a
// resolution or load failure aborts with an error and no partial Database
// is returned.
package dataset

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/omics-lab/annotate-go/resource"
	"github.com/omics-lab/annotate-go/table"
)

// Loader parses resolved file resources into one tabular store.
// Implementations hold the database-specific format knowledge.
type Loader func(ctx context.Context, res *resource.Resolved) (*table.Store, error)

// Option configures database construction.
type Option func(*config)

type config struct {
	logger      *slog.Logger
	resolveOpts []resource.Option
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithResolveOptions passes options through to resource.Resolve.
func WithResolveOptions(opts ...resource.Option) Option {
	return func(c *config) { c.resolveOpts = append(c.resolveOpts, opts...) }
}

// Database is one loaded external reference database: its resolved file
// resources plus the store built from them. The store is immutable from
// the annotation engine's perspective.
type Database struct {
	name     string
	store    *table.Store
	resolved *resource.Resolved
}

// Open resolves the manifest against base and loads the database.
func Open(ctx context.Context, name, base string, manifest resource.Manifest, load Loader, opts ...Option) (*Database, error) {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	res, err := resource.Resolve(ctx, base, manifest, cfg.resolveOpts...)
	if err != nil {
		return nil, fmt.Errorf("database %s: %w", name, err)
	}
	store, err := load(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("database %s: load: %w", name, err)
	}
	cfg.logger.Info("database loaded",
		"database", name,
		"key", store.Key().String(),
		"columns", len(store.Columns()),
	)
	return &Database{name: name, store: store, resolved: res}, nil
}

// Name returns the database name.
func (d *Database) Name() string {
	return d.name
}

// Store returns the database's tabular store.
func (d *Database) Store() *table.Store {
	return d.store
}

// Resolved returns the resolved file resources the store was loaded from.
func (d *Database) Resolved() *resource.Resolved {
	return d.resolved
}

// Annotations delegates to the store, so a *Database can be joined
// directly as an annotation source.
func (d *Database) Annotations(ctx context.Context, on table.Key, columns []string, agg table.Agg, keys *table.KeySet) (*table.Local, error) {
	return d.store.Annotations(ctx, on, columns, agg, keys)
}

// Expressions delegates to the store, so a *Database can serve as an
// expression source.
func (d *Database) Expressions(ctx context.Context, index table.Key) (*table.Local, error) {
	return d.store.Expressions(ctx, index)
}
