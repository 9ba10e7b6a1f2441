package table

import (
	"context"
	"errors"
	"testing"
)

// associationStore builds a store shaped like a gene→disease association
// table: several rows per gene, one association each.
func associationStore(t *testing.T) *Store {
	t.Helper()
	tbl, err := NewKeyed(KeyOf("gene_name"),
		[]string{"BRCA1", "BRCA1", "BRCA1", "TP53", "TP53"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendColumn("disease_name", []any{
		"Breast carcinoma", "Ovarian neoplasm", "Breast carcinoma",
		"Li-Fraumeni syndrome", nil,
	}); err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendColumn("score", []any{0.9, 0.7, 0.9, 0.95, 0.5}); err != nil {
		t.Fatal(err)
	}
	return NewStore("assoc", tbl)
}

func TestStoreAnnotations(t *testing.T) {
	ctx := context.Background()
	s := associationStore(t)

	got, err := s.Annotations(ctx, KeyOf("gene_name"), []string{"disease_name"}, ConcatUniques, nil)
	if err != nil {
		t.Fatalf("Annotations: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("rows = %d, want 2", got.Len())
	}

	cells, _ := got.Column("disease_name")
	byKey := map[string]any{}
	for i, k := range got.KeyValues() {
		byKey[k] = cells[i]
	}
	if parts := delimitedParts(t, byKey["BRCA1"]); !sameParts(parts, []string{"Breast carcinoma", "Ovarian neoplasm"}) {
		t.Errorf("BRCA1 = %v", parts)
	}
	if byKey["TP53"] != "Li-Fraumeni syndrome" {
		t.Errorf("TP53 = %v", byKey["TP53"])
	}
}

func TestStoreAnnotationsUnknownColumns(t *testing.T) {
	s := associationStore(t)
	_, err := s.Annotations(context.Background(), KeyOf("gene_name"), []string{"disease_name", "ghost"}, ConcatUniques, nil)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected *SchemaError, got %v", err)
	}
	if len(schemaErr.Missing) != 1 || schemaErr.Missing[0] != "ghost" {
		t.Errorf("Missing = %v, want [ghost]", schemaErr.Missing)
	}
	if schemaErr.Table != "assoc" {
		t.Errorf("Table = %q, want assoc", schemaErr.Table)
	}
}

func TestStoreAnnotationsOnInColumns(t *testing.T) {
	// Requesting the grouping column as a value column is a
	// normalization, not an error.
	s := associationStore(t)
	got, err := s.Annotations(context.Background(), KeyOf("gene_name"),
		[]string{"gene_name", "disease_name"}, ConcatUniques, nil)
	if err != nil {
		t.Fatalf("Annotations: %v", err)
	}
	cols := got.Columns()
	if len(cols) != 1 || cols[0] != "disease_name" {
		t.Errorf("columns = %v, want [disease_name]", cols)
	}
}

func TestStoreAnnotationsKeyFilter(t *testing.T) {
	s := associationStore(t)
	got, err := s.Annotations(context.Background(), KeyOf("gene_name"),
		[]string{"disease_name"}, ConcatUniques, NewKeySet("TP53"))
	if err != nil {
		t.Fatalf("Annotations: %v", err)
	}
	if got.Len() != 1 || got.KeyValues()[0] != "TP53" {
		t.Errorf("keys = %v, want [TP53]", got.KeyValues())
	}
}

func TestStoreAnnotationsEmptyResult(t *testing.T) {
	s := associationStore(t)
	got, err := s.Annotations(context.Background(), KeyOf("gene_name"),
		[]string{"disease_name"}, ConcatUniques, NewKeySet("NO_SUCH_GENE"))
	if err != nil {
		t.Fatalf("empty result must not be an error, got %v", err)
	}
	if got.Len() != 0 {
		t.Errorf("rows = %d, want 0", got.Len())
	}
}

func TestStoreAnnotationsByValueColumn(t *testing.T) {
	// Grouping by a non-key column promotes it to the result key.
	tbl, err := NewKeyed(KeyOf("transcript_id"), []string{"t1", "t2", "t3"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendColumn("gene_id", []any{"g1", "g1", "g2"}); err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendColumn("biotype", []any{"coding", "lncRNA", "coding"}); err != nil {
		t.Fatal(err)
	}
	s := NewStore("gencode", tbl)

	got, err := s.Annotations(context.Background(), KeyOf("gene_id"), []string{"biotype"}, ConcatUniques, NewKeySet("g1"))
	if err != nil {
		t.Fatalf("Annotations: %v", err)
	}
	if !got.Key().Equal(KeyOf("gene_id")) {
		t.Errorf("key = %v, want gene_id", got.Key())
	}
	if got.Len() != 1 {
		t.Fatalf("rows = %d, want 1", got.Len())
	}
	cells, _ := got.Column("biotype")
	if parts := delimitedParts(t, cells[0]); !sameParts(parts, []string{"coding", "lncRNA"}) {
		t.Errorf("biotype = %v", parts)
	}
}

func TestStoreExpressions(t *testing.T) {
	tbl, err := NewKeyed(KeyOf("gene_id"), []string{"g1", "g1", "g2"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendColumn("sample_a", []any{1.0, 3.0, 5.0}); err != nil {
		t.Fatal(err)
	}
	s := NewStore("gtex", tbl)

	got, err := s.Expressions(context.Background(), KeyOf("gene_id"))
	if err != nil {
		t.Fatalf("Expressions: %v", err)
	}
	cells, _ := got.Column("sample_a")
	byKey := map[string]any{}
	for i, k := range got.KeyValues() {
		byKey[k] = cells[i]
	}
	if byKey["g1"] != 2.0 {
		t.Errorf("g1 median = %v, want 2", byKey["g1"])
	}
	if byKey["g2"] != 5.0 {
		t.Errorf("g2 median = %v, want 5", byKey["g2"])
	}
}
