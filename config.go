package annotate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/omics-lab/annotate-go/table"
)

// Standard errors returned by the annotate package.
var (
	// ErrNotInitialized indicates an operation that requires Init (or a
	// prior annotation step) was invoked out of order.
	ErrNotInitialized = errors.New("annotation table not initialized")

	// ErrNoFuzzyMatch indicates a fuzzy join found no acceptable match
	// for a source key. Only returned under the FuzzyStrict policy; the
	// default policy drops unmatched rows and reports the count.
	ErrNoFuzzyMatch = errors.New("no fuzzy match for source key")
)

// Fixed column names bound by the dedicated annotation operations.
const (
	// DiseaseAssociationsCol is the column written by AnnotateDiseases.
	DiseaseAssociationsCol = "disease_associations"

	// SequenceCol is the column written by AnnotateSequences.
	SequenceCol = "sequence"
)

// AnnotationSource supplies an aggregated table keyed by the join column.
// *table.Store implements it; plain tables can be adapted with
// table.NewStore.
type AnnotationSource interface {
	Annotations(ctx context.Context, on table.Key, columns []string, agg table.Agg, keys *table.KeySet) (*table.Local, error)
}

// ExpressionSource supplies a numeric table pre-aggregated (median across
// duplicate keys) by the given index. *table.Store implements it.
type ExpressionSource interface {
	Expressions(ctx context.Context, index table.Key) (*table.Local, error)
}

// DiseaseSource maps join-key values to a delimited disease-association
// set.
type DiseaseSource interface {
	DiseaseAssociations(ctx context.Context, on string) (map[string]string, error)
}

// SequenceAgg selects which sequence survives when a key has several.
type SequenceAgg int

const (
	// SequenceLongest keeps the longest sequence per key.
	SequenceLongest SequenceAgg = iota

	// SequenceShortest keeps the shortest sequence per key.
	SequenceShortest

	// SequenceAll joins all sequences per key with a delimiter.
	SequenceAll
)

// SequenceSource maps join-key values to biological sequences.
type SequenceSource interface {
	Sequences(ctx context.Context, on string, agg SequenceAgg) (map[string]string, error)
}

// Option configures an Annotator.
type Option func(*Annotator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Annotator) { a.logger = l }
}

// WithFuzzyCutoff sets the similarity floor for fuzzy joins, in (0, 1].
// Defaults to 0.6.
func WithFuzzyCutoff(cutoff float64) Option {
	return func(a *Annotator) { a.cutoff = cutoff }
}

// FuzzyStrict makes fuzzy joins fail with ErrNoFuzzyMatch instead of
// dropping source rows without an acceptable match.
func FuzzyStrict() Option {
	return func(a *Annotator) { a.strict = true }
}

// JoinOption configures one Join call.
type JoinOption func(*joinConfig)

type joinConfig struct {
	agg      table.Agg
	fuzzy    bool
	noFilter bool
}

// WithAgg overrides the aggregation directive. Defaults to concat_uniques.
func WithAgg(agg table.Agg) JoinOption {
	return func(c *joinConfig) { c.agg = agg }
}

// WithFuzzy joins on the closest string match instead of exact equality.
// This costs one similarity computation per source-key/entity-key pair and
// should only be requested for small key domains.
func WithFuzzy() JoinOption {
	return func(c *joinConfig) { c.fuzzy = true }
}

// WithoutKeyFilter skips restricting the source aggregation to the current
// entity keys. The restriction is a performance optimization only; results
// are identical either way.
func WithoutKeyFilter() JoinOption {
	return func(c *joinConfig) { c.noFilter = true }
}
