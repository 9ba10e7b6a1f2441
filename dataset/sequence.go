package dataset

import (
	"context"
	"fmt"
	"strings"

	annotate "github.com/omics-lab/annotate-go"
	"github.com/omics-lab/annotate-go/table"
)

// Sequences serves per-key biological sequences from a store with one
// sequence per row, collapsing duplicates by the requested aggregation.
type Sequences struct {
	store  *table.Store
	seqCol string
}

// NewSequences wraps a store whose seqCol holds one sequence per row.
func NewSequences(store *table.Store, seqCol string) *Sequences {
	return &Sequences{store: store, seqCol: seqCol}
}

// Sequences returns one sequence per distinct `on` value. With several
// sequences per key, agg picks the longest or shortest, or joins all with
// "|".
func (s *Sequences) Sequences(ctx context.Context, on string, agg annotate.SequenceAgg) (map[string]string, error) {
	projected, err := s.store.Table().Project([]string{s.seqCol, on})
	if err != nil {
		return nil, fmt.Errorf("sequences: %w", err)
	}
	local, err := projected.Materialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("sequences: %w", err)
	}
	keys, err := local.Values(table.KeyOf(on))
	if err != nil {
		return nil, err
	}
	cells, err := local.Column(s.seqCol)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string)
	for i, k := range keys {
		if k == "" || cells[i] == nil {
			continue
		}
		seq, ok := cells[i].(string)
		if !ok {
			continue
		}
		prev, seen := out[k]
		if !seen {
			out[k] = seq
			continue
		}
		switch agg {
		case annotate.SequenceLongest:
			if len(seq) > len(prev) {
				out[k] = seq
			}
		case annotate.SequenceShortest:
			if len(seq) < len(prev) {
				out[k] = seq
			}
		case annotate.SequenceAll:
			if !containsPart(prev, seq) {
				out[k] = prev + "|" + seq
			}
		}
	}
	return out, nil
}

func containsPart(joined, part string) bool {
	for _, p := range strings.Split(joined, "|") {
		if p == part {
			return true
		}
	}
	return false
}
