package annotate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/omics-lab/annotate-go/internal/fuzzy"
	"github.com/omics-lab/annotate-go/table"
)

// mergeSuffix marks incoming columns that collide with existing ones during
// a merge; reconciliation strips it again before the merge result is kept.
const mergeSuffix = "_new"

// Annotator owns one annotation table: a row-keyed table over an entity
// list (typically genes) that accumulates columns from successive joins
// against external stores.
//
// The zero value is not usable; create with New and call Init before any
// annotation operation. Callers must serialize mutating calls on one
// Annotator; nothing here suspends or runs concurrently.
type Annotator struct {
	logger *slog.Logger
	cutoff float64
	strict bool

	tbl   *table.Local // nil until Init
	exprs *table.Local // nil until AnnotateExpressions
}

// New creates an Annotator.
func New(opts ...Option) *Annotator {
	a := &Annotator{
		logger: slog.Default(),
		cutoff: fuzzy.DefaultCutoff,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init creates the empty annotation table: row-key column `key` holding the
// entity identifiers, no value columns yet. Calling Init again discards all
// accumulated annotations.
func (a *Annotator) Init(key string, entities []string) error {
	tbl, err := table.NewKeyed(table.KeyOf(key), entities)
	if err != nil {
		return fmt.Errorf("initialize annotations: %w", err)
	}
	a.tbl = tbl
	a.exprs = nil
	return nil
}

// InitComposite is Init for a composite row-key: one value slice per key
// column.
func (a *Annotator) InitComposite(key table.Key, values ...[]string) error {
	tbl, err := table.NewKeyed(key, values...)
	if err != nil {
		return fmt.Errorf("initialize annotations: %w", err)
	}
	a.tbl = tbl
	a.exprs = nil
	return nil
}

// Annotations returns the annotation table.
func (a *Annotator) Annotations() (*table.Local, error) {
	if a.tbl == nil {
		return nil, ErrNotInitialized
	}
	return a.tbl, nil
}

// Expressions returns the expression table built by AnnotateExpressions.
func (a *Annotator) Expressions() (*table.Local, error) {
	if a.exprs == nil {
		return nil, fmt.Errorf("annotation expressions: %w", ErrNotInitialized)
	}
	return a.exprs, nil
}

// JoinStats reports what one Join did.
type JoinStats struct {
	// SourceRows is the row count of the aggregated source table.
	SourceRows int

	// Matched is the number of annotation rows that found a source row.
	Matched int

	// FuzzyDropped counts source rows dropped because no entity key was
	// within the similarity cutoff. Zero for exact joins.
	FuzzyDropped int

	// Empty is set when the source aggregated to zero rows and the join
	// was skipped.
	Empty bool
}

// Join left-outer-merges aggregated columns from src into the annotation
// table.
//
// The join key `on` resolves against the annotation table first: the
// row-key itself, or one or more existing columns, whose values then
// restrict the source aggregation; otherwise the source is aggregated
// unrestricted. A source aggregating to zero rows logs a warning and leaves
// the table unchanged (Empty set in the stats).
//
// Columns already present are never overwritten: incoming values only fill
// rows where the existing column is null. Row count, row-key name and
// row-key values are all preserved.
func (a *Annotator) Join(ctx context.Context, src AnnotationSource, on table.Key, columns []string, opts ...JoinOption) (JoinStats, error) {
	var stats JoinStats
	if a.tbl == nil {
		return stats, ErrNotInitialized
	}
	cfg := joinConfig{agg: table.ConcatUniques}
	for _, opt := range opts {
		opt(&cfg)
	}

	keys, keyed := a.resolveKeys(on)
	if cfg.noFilter {
		keys = nil
	}

	agg, err := src.Annotations(ctx, on, columns, cfg.agg, keys)
	if err != nil {
		return stats, err
	}
	stats.SourceRows = agg.Len()
	if agg.Len() == 0 {
		a.logger.Warn("annotation source is empty, nothing to annotate",
			"on", on.String(), "columns", columns)
		stats.Empty = true
		return stats, nil
	}

	if cfg.fuzzy {
		agg, stats.FuzzyDropped, err = a.fuzzyRemap(ctx, agg)
		if err != nil {
			return stats, err
		}
		if agg.Len() == 0 {
			a.logger.Warn("no source keys fuzzy-matched the annotation keys",
				"on", on.String(), "dropped", stats.FuzzyDropped)
			stats.Empty = true
			return stats, nil
		}
	}

	// Columns that will collide, recorded before the merge so suffixed
	// names can be reconciled after it.
	var collided []string
	for _, c := range agg.Columns() {
		if a.tbl.HasColumn(c) {
			collided = append(collided, c)
		}
	}

	merged, err := a.tbl.MergeLeft(ctx, agg, on, mergeSuffix)
	if err != nil {
		return stats, fmt.Errorf("join on %s: %w", on, err)
	}

	// Existing values win; incoming values only fill gaps.
	for _, c := range collided {
		if err := fillFromSuffixed(merged, c, c+mergeSuffix); err != nil {
			return stats, fmt.Errorf("reconcile column %s: %w", c, err)
		}
	}

	if keyed {
		stats.Matched = countMatched(merged, on, agg)
	}
	a.tbl = merged
	a.logger.Debug("annotated",
		"on", on.String(),
		"source_rows", stats.SourceRows,
		"matched", stats.Matched,
		"fuzzy_dropped", stats.FuzzyDropped,
	)
	return stats, nil
}

// resolveKeys determines the current join-key values per the annotation
// table: the row-key itself, or existing columns. Returns nil (unfiltered)
// when `on` names nothing in the table.
func (a *Annotator) resolveKeys(on table.Key) (*table.KeySet, bool) {
	if on.Equal(a.tbl.Key()) {
		return table.NewKeySet(a.tbl.KeyValues()...), true
	}
	for _, c := range on {
		if !a.tbl.HasColumn(c) {
			return nil, false
		}
	}
	vals, err := a.tbl.Values(on)
	if err != nil {
		return nil, false
	}
	return table.NewKeySet(vals...), true
}

// fuzzyRemap rewrites the source row-key to the closest annotation key.
// Source rows without an acceptable match are dropped (or, under
// FuzzyStrict, fail the join).
func (a *Annotator) fuzzyRemap(ctx context.Context, src *table.Local) (*table.Local, int, error) {
	srcKey := src.Key()
	if len(srcKey) != 1 {
		return nil, 0, fmt.Errorf("fuzzy join requires a single-column key, got %s", srcKey)
	}
	domain := a.tbl.KeyValues()

	srcKeys := src.KeyValues()
	remap := make(map[string]string, len(srcKeys))
	var kept []string
	dropped := 0
	for _, k := range srcKeys {
		best, ok := fuzzy.BestMatch(k, domain, a.cutoff)
		if !ok {
			if a.strict {
				return nil, 0, fmt.Errorf("%w: %q", ErrNoFuzzyMatch, k)
			}
			dropped++
			continue
		}
		remap[k] = best
		kept = append(kept, k)
	}
	if dropped > 0 {
		a.logger.Warn("fuzzy join dropped unmatched source keys", "dropped", dropped)
	}
	if len(kept) == 0 {
		empty := table.NewLocal(srcKey)
		return empty, dropped, nil
	}

	filtered, err := src.FilterKeys(srcKey, table.NewKeySet(kept...))
	if err != nil {
		return nil, 0, err
	}
	out, err := filtered.Materialize(ctx)
	if err != nil {
		return nil, 0, err
	}
	cells := make([]any, out.Len())
	for i, k := range out.KeyValues() {
		cells[i] = remap[k]
	}
	if err := out.ReplaceColumn(srcKey[0], cells); err != nil {
		return nil, 0, err
	}
	return out, dropped, nil
}

// countMatched counts annotation rows whose `on` value hit a source row.
func countMatched(tbl *table.Local, on table.Key, src *table.Local) int {
	vals, err := tbl.Values(on)
	if err != nil {
		return 0
	}
	srcKeys := table.NewKeySet(src.KeyValues()...)
	n := 0
	for _, v := range vals {
		if v != "" && srcKeys.Contains(v) {
			n++
		}
	}
	return n
}

// fillFromSuffixed fills nulls of col from suffixed, then drops suffixed.
func fillFromSuffixed(tbl *table.Local, col, suffixed string) error {
	if !tbl.HasColumn(suffixed) {
		return nil
	}
	orig, err := tbl.Column(col)
	if err != nil {
		return err
	}
	incoming, err := tbl.Column(suffixed)
	if err != nil {
		return err
	}
	filled := make([]any, len(orig))
	copy(filled, orig)
	for i, v := range filled {
		if v == nil {
			filled[i] = incoming[i]
		}
	}
	if err := tbl.ReplaceColumn(col, filled); err != nil {
		return err
	}
	return tbl.DropColumn(suffixed)
}

// AnnotateExpressions builds the expression table: the annotation row-key
// joined against the source's median-aggregated numeric table. The index
// must match the annotation table's row-key, otherwise a *table.SchemaError
// is returned.
func (a *Annotator) AnnotateExpressions(ctx context.Context, src ExpressionSource, index table.Key) error {
	if a.tbl == nil {
		return ErrNotInitialized
	}
	if !index.Equal(a.tbl.Key()) {
		return &table.SchemaError{Missing: index}
	}

	exprs, err := src.Expressions(ctx, index)
	if err != nil {
		return fmt.Errorf("annotate expressions: %w", err)
	}

	keyOnly, err := a.tbl.Project(nil)
	if err != nil {
		return err
	}
	base, err := keyOnly.Materialize(ctx)
	if err != nil {
		return err
	}
	merged, err := base.MergeLeft(ctx, exprs, index, mergeSuffix)
	if err != nil {
		return fmt.Errorf("annotate expressions: %w", err)
	}
	a.exprs = merged
	return nil
}

// AnnotateDiseases binds the disease_associations column: one delimited
// association set per entity, resolved through the same key rule as Join.
func (a *Annotator) AnnotateDiseases(ctx context.Context, src DiseaseSource, on string) error {
	if a.tbl == nil {
		return ErrNotInitialized
	}
	vals, err := a.columnOrKeyValues(on)
	if err != nil {
		return err
	}
	assocs, err := src.DiseaseAssociations(ctx, on)
	if err != nil {
		return fmt.Errorf("annotate diseases: %w", err)
	}
	cells := make([]any, len(vals))
	for i, v := range vals {
		if s, ok := assocs[v]; ok {
			cells[i] = s
		}
	}
	return a.setColumn(DiseaseAssociationsCol, cells)
}

// AnnotateSequences binds the sequence column from a sequence source,
// aggregated per key with agg.
func (a *Annotator) AnnotateSequences(ctx context.Context, src SequenceSource, on string, agg SequenceAgg) error {
	if a.tbl == nil {
		return ErrNotInitialized
	}
	vals, err := a.columnOrKeyValues(on)
	if err != nil {
		return err
	}
	seqs, err := src.Sequences(ctx, on, agg)
	if err != nil {
		return fmt.Errorf("annotate sequences: %w", err)
	}
	cells := make([]any, len(vals))
	for i, v := range vals {
		if s, ok := seqs[v]; ok {
			cells[i] = s
		}
	}
	return a.setColumn(SequenceCol, cells)
}

// columnOrKeyValues resolves `on` to the row-key values or a column's
// values, mirroring the Join key rule for single columns.
func (a *Annotator) columnOrKeyValues(on string) ([]string, error) {
	key := a.tbl.Key()
	if len(key) == 1 && key[0] == on {
		return a.tbl.KeyValues(), nil
	}
	if !a.tbl.HasColumn(on) {
		return nil, &table.SchemaError{Missing: []string{on}}
	}
	return a.tbl.Values(table.KeyOf(on))
}

func (a *Annotator) setColumn(name string, cells []any) error {
	if a.tbl.HasColumn(name) {
		return a.tbl.ReplaceColumn(name, cells)
	}
	return a.tbl.AppendColumn(name, cells)
}

// SetIndex re-keys the annotation table on newKey. Rows where newKey is
// null first get the current row-key value backfilled, so no row loses its
// identity.
func (a *Annotator) SetIndex(newKey string) error {
	if a.tbl == nil {
		return ErrNotInitialized
	}
	if !a.tbl.HasColumn(newKey) {
		return &table.SchemaError{Missing: []string{newKey}}
	}
	col, err := a.tbl.Column(newKey)
	if err != nil {
		return err
	}
	keyVals := a.tbl.KeyValues()
	filled := make([]any, len(col))
	copy(filled, col)
	for i, v := range filled {
		if v == nil {
			filled[i] = keyVals[i]
		}
	}
	if err := a.tbl.ReplaceColumn(newKey, filled); err != nil {
		return err
	}
	rekeyed, err := a.tbl.WithKey(table.KeyOf(newKey))
	if err != nil {
		return err
	}
	a.tbl = rekeyed
	return nil
}

// Lookup builds a dictionary between two columns of the annotation table:
// every non-null value of `to` maps to its row's `from` value. Rows where
// `to` is null are excluded. Either column may be the row-key; the stored
// table is not modified.
func (a *Annotator) Lookup(from, to string) (map[string]string, error) {
	if a.tbl == nil {
		return nil, ErrNotInitialized
	}
	fromVals, err := a.columnOrKeyValues(from)
	if err != nil {
		return nil, err
	}
	toCells, err := a.columnCells(to)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(toCells))
	for i, v := range toCells {
		if v == nil {
			continue
		}
		out[cellText(v)] = fromVals[i]
	}
	return out, nil
}

// columnCells returns raw cells for a column or, for the row-key, the key
// values materialized as cells.
func (a *Annotator) columnCells(name string) ([]any, error) {
	key := a.tbl.Key()
	if len(key) == 1 && key[0] == name {
		vals := a.tbl.KeyValues()
		cells := make([]any, len(vals))
		for i, v := range vals {
			cells[i] = v
		}
		return cells, nil
	}
	if !a.tbl.HasColumn(name) {
		return nil, &table.SchemaError{Missing: []string{name}}
	}
	return a.tbl.Column(name)
}

func cellText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
