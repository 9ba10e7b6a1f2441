package dataset

import (
	"context"
	"fmt"

	"github.com/omics-lab/annotate-go/table"
)

// DiseaseAssociations serves gene-to-disease association sets from a store
// with one association per row (DisGeNET-style tables).
type DiseaseAssociations struct {
	store      *table.Store
	diseaseCol string
}

// NewDiseaseAssociations wraps a store whose diseaseCol holds one disease
// name per row.
func NewDiseaseAssociations(store *table.Store, diseaseCol string) *DiseaseAssociations {
	return &DiseaseAssociations{store: store, diseaseCol: diseaseCol}
}

// DiseaseAssociations groups the table by `on` and returns each key's
// deduplicated, pipe-delimited disease set.
func (d *DiseaseAssociations) DiseaseAssociations(ctx context.Context, on string) (map[string]string, error) {
	agg, err := d.store.Annotations(ctx, table.KeyOf(on), []string{d.diseaseCol}, table.ConcatUniques, nil)
	if err != nil {
		return nil, fmt.Errorf("disease associations: %w", err)
	}
	cells, err := agg.Column(d.diseaseCol)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, agg.Len())
	for i, k := range agg.KeyValues() {
		if k == "" || cells[i] == nil {
			continue
		}
		if s, ok := cells[i].(string); ok {
			out[k] = s
		}
	}
	return out, nil
}
