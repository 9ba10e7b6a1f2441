package table

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

func genesRecordBatch(t *testing.T, alloc memory.Allocator) arrow.RecordBatch {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "gene_name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "gene_id", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(alloc, schema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues([]string{"BRCA1", "TP53"}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"ENSG0001", ""}, []bool{true, false})
	b.Field(2).(*array.Float64Builder).AppendValues([]float64{0.9, 0.95}, nil)
	return b.NewRecordBatch()
}

func TestFromRecordBatch(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	rec := genesRecordBatch(t, alloc)
	defer rec.Release()

	tbl, err := FromRecordBatch(rec, KeyOf("gene_name"))
	if err != nil {
		t.Fatalf("FromRecordBatch: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("rows = %d, want 2", tbl.Len())
	}
	if keys := tbl.KeyValues(); keys[0] != "BRCA1" || keys[1] != "TP53" {
		t.Errorf("keys = %v", keys)
	}

	ids, err := tbl.Column("gene_id")
	if err != nil {
		t.Fatal(err)
	}
	if ids[0] != "ENSG0001" {
		t.Errorf("gene_id[0] = %v, want ENSG0001", ids[0])
	}
	if ids[1] != nil {
		t.Errorf("gene_id[1] = %v, want nil for Arrow null", ids[1])
	}

	scores, err := tbl.Column("score")
	if err != nil {
		t.Fatal(err)
	}
	if scores[0] != 0.9 {
		t.Errorf("score[0] = %v, want 0.9", scores[0])
	}
}

func TestFromRecordBatchMissingKey(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	rec := genesRecordBatch(t, alloc)
	defer rec.Release()

	if _, err := FromRecordBatch(rec, KeyOf("nonexistent")); err == nil {
		t.Fatal("expected error for key column not in batch")
	}
}

func TestAppendRecordBatch(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	first := genesRecordBatch(t, alloc)
	defer first.Release()
	second := genesRecordBatch(t, alloc)
	defer second.Release()

	tbl, err := FromRecordBatch(first, KeyOf("gene_name"))
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendRecordBatch(second); err != nil {
		t.Fatalf("AppendRecordBatch: %v", err)
	}
	if tbl.Len() != 4 {
		t.Errorf("rows = %d, want 4", tbl.Len())
	}
	keys := tbl.KeyValues()
	if keys[2] != "BRCA1" || keys[3] != "TP53" {
		t.Errorf("keys = %v", keys)
	}
}

func TestLocalRecordBatchRoundTrip(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	tbl, err := NewKeyed(KeyOf("gene_name"), []string{"BRCA1", "TP53"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendColumn("count", []any{int64(3), nil}); err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendColumn("score", []any{0.9, 0.95}); err != nil {
		t.Fatal(err)
	}

	rec, err := tbl.RecordBatch(alloc)
	if err != nil {
		t.Fatalf("RecordBatch: %v", err)
	}
	defer rec.Release()

	schema := rec.Schema()
	wantTypes := map[string]arrow.DataType{
		"gene_name": arrow.BinaryTypes.String,
		"count":     arrow.PrimitiveTypes.Int64,
		"score":     arrow.PrimitiveTypes.Float64,
	}
	for name, want := range wantTypes {
		idx := schema.FieldIndices(name)
		if len(idx) != 1 {
			t.Fatalf("field %s missing from schema", name)
		}
		if got := schema.Field(idx[0]).Type; !arrow.TypeEqual(got, want) {
			t.Errorf("field %s type = %s, want %s", name, got, want)
		}
	}

	back, err := FromRecordBatch(rec, KeyOf("gene_name"))
	if err != nil {
		t.Fatalf("FromRecordBatch: %v", err)
	}
	counts, _ := back.Column("count")
	if counts[0] != int64(3) || counts[1] != nil {
		t.Errorf("count = %v", counts)
	}
}
