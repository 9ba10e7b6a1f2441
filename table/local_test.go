package table

import (
	"context"
	"errors"
	"testing"
)

func genesTable(t *testing.T) *Local {
	t.Helper()
	tbl, err := NewKeyed(KeyOf("gene_name"), []string{"BRCA1", "TP53", "EGFR"})
	if err != nil {
		t.Fatalf("NewKeyed: %v", err)
	}
	if err := tbl.AppendColumn("gene_id", []any{"ENSG0001", nil, "ENSG0003"}); err != nil {
		t.Fatalf("AppendColumn: %v", err)
	}
	return tbl
}

func TestNewKeyedLengthMismatch(t *testing.T) {
	_, err := NewKeyed(KeyOf("a", "b"), []string{"x"}, []string{"y", "z"})
	if err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestAppendColumnValidation(t *testing.T) {
	tbl := genesTable(t)
	if err := tbl.AppendColumn("gene_id", make([]any, 3)); err == nil {
		t.Error("expected duplicate column error")
	}
	if err := tbl.AppendColumn("short", make([]any, 1)); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestProjectUnknownColumn(t *testing.T) {
	tbl := genesTable(t)
	_, err := tbl.Project([]string{"gene_id", "nope", "also_nope"})
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected *SchemaError, got %v", err)
	}
	if len(schemaErr.Missing) != 2 || schemaErr.Missing[0] != "nope" || schemaErr.Missing[1] != "also_nope" {
		t.Errorf("Missing = %v, want [nope also_nope]", schemaErr.Missing)
	}
}

func TestFilterKeys(t *testing.T) {
	tbl := genesTable(t)

	t.Run("by row key", func(t *testing.T) {
		got, err := tbl.FilterKeys(tbl.Key(), NewKeySet("TP53", "EGFR"))
		if err != nil {
			t.Fatalf("FilterKeys: %v", err)
		}
		local, _ := got.Materialize(context.Background())
		keys := local.KeyValues()
		if len(keys) != 2 || keys[0] != "TP53" || keys[1] != "EGFR" {
			t.Errorf("keys = %v, want [TP53 EGFR]", keys)
		}
	})

	t.Run("by column", func(t *testing.T) {
		got, err := tbl.FilterKeys(KeyOf("gene_id"), NewKeySet("ENSG0003"))
		if err != nil {
			t.Fatalf("FilterKeys: %v", err)
		}
		local, _ := got.Materialize(context.Background())
		if local.Len() != 1 || local.KeyValues()[0] != "EGFR" {
			t.Errorf("rows = %v, want [EGFR]", local.KeyValues())
		}
	})

	t.Run("nil set is no restriction", func(t *testing.T) {
		got, err := tbl.FilterKeys(tbl.Key(), nil)
		if err != nil {
			t.Fatalf("FilterKeys: %v", err)
		}
		local, _ := got.Materialize(context.Background())
		if local.Len() != 3 {
			t.Errorf("rows = %d, want 3", local.Len())
		}
	})
}

func TestGroupAggregate(t *testing.T) {
	tbl, err := NewKeyed(KeyOf("id"), []string{"r1", "r2", "r3", "r4"})
	if err != nil {
		t.Fatalf("NewKeyed: %v", err)
	}
	if err := tbl.AppendColumn("gene", []any{"A", "A", "B", "A"}); err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendColumn("v", []any{"x", "y", "z", "x"}); err != nil {
		t.Fatal(err)
	}

	grouped, err := tbl.GroupAggregate(context.Background(), KeyOf("gene"), []string{"v"}, ConcatUniques)
	if err != nil {
		t.Fatalf("GroupAggregate: %v", err)
	}
	local, _ := grouped.Materialize(context.Background())
	if !local.Key().Equal(KeyOf("gene")) {
		t.Errorf("result key = %v, want gene", local.Key())
	}
	if local.Len() != 2 {
		t.Fatalf("groups = %d, want 2", local.Len())
	}

	cells, err := local.Column("v")
	if err != nil {
		t.Fatal(err)
	}
	byKey := map[string]any{}
	for i, k := range local.KeyValues() {
		byKey[k] = cells[i]
	}
	if parts := delimitedParts(t, byKey["A"]); !sameParts(parts, []string{"x", "y"}) {
		t.Errorf("group A = %v, want {x, y}", parts)
	}
	if byKey["B"] != "z" {
		t.Errorf("group B = %v, want z", byKey["B"])
	}
}

func TestGroupAggregateCompositeKey(t *testing.T) {
	tbl, err := NewKeyed(KeyOf("id"), []string{"r1", "r2", "r3"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendColumn("chrom", []any{"1", "1", "2"}); err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendColumn("strand", []any{"+", "+", "-"}); err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendColumn("v", []any{"a", "b", "c"}); err != nil {
		t.Fatal(err)
	}

	grouped, err := tbl.GroupAggregate(context.Background(), KeyOf("chrom", "strand"), []string{"v"}, ConcatUniques)
	if err != nil {
		t.Fatalf("GroupAggregate: %v", err)
	}
	local, _ := grouped.Materialize(context.Background())
	if local.Len() != 2 {
		t.Errorf("groups = %d, want 2", local.Len())
	}
}

func TestMergeLeft(t *testing.T) {
	left := genesTable(t)

	right, err := NewKeyed(KeyOf("gene_name"), []string{"TP53", "KRAS"})
	if err != nil {
		t.Fatal(err)
	}
	if err := right.AppendColumn("pathway", []any{"p53 signaling", "MAPK"}); err != nil {
		t.Fatal(err)
	}

	merged, err := left.MergeLeft(context.Background(), right, left.Key(), "_new")
	if err != nil {
		t.Fatalf("MergeLeft: %v", err)
	}

	// Every left row kept, key values unchanged.
	if merged.Len() != left.Len() {
		t.Errorf("rows = %d, want %d", merged.Len(), left.Len())
	}
	keys := merged.KeyValues()
	want := []string{"BRCA1", "TP53", "EGFR"}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key[%d] = %s, want %s", i, keys[i], want[i])
		}
	}

	cells, err := merged.Column("pathway")
	if err != nil {
		t.Fatal(err)
	}
	if cells[0] != nil || cells[1] != "p53 signaling" || cells[2] != nil {
		t.Errorf("pathway = %v", cells)
	}

	// The receiver is untouched.
	if left.HasColumn("pathway") {
		t.Error("MergeLeft mutated the receiver")
	}
}

func TestMergeLeftSuffixesCollisions(t *testing.T) {
	left := genesTable(t)

	right, err := NewKeyed(KeyOf("gene_name"), []string{"TP53"})
	if err != nil {
		t.Fatal(err)
	}
	if err := right.AppendColumn("gene_id", []any{"ENSG0002"}); err != nil {
		t.Fatal(err)
	}

	merged, err := left.MergeLeft(context.Background(), right, left.Key(), "_new")
	if err != nil {
		t.Fatalf("MergeLeft: %v", err)
	}
	if !merged.HasColumn("gene_id_new") {
		t.Fatal("expected suffixed column gene_id_new")
	}
	orig, _ := merged.Column("gene_id")
	if orig[1] != nil {
		t.Errorf("original column changed: %v", orig)
	}
}

func TestRenameColumnFollowsKey(t *testing.T) {
	tbl := genesTable(t)
	if err := tbl.RenameColumn("gene_name", "symbol"); err != nil {
		t.Fatalf("RenameColumn: %v", err)
	}
	if !tbl.Key().Equal(KeyOf("symbol")) {
		t.Errorf("key = %v, want symbol", tbl.Key())
	}
	if tbl.HasColumn("gene_name") {
		t.Error("old column name still present")
	}
}

func TestWithKey(t *testing.T) {
	tbl := genesTable(t)
	rekeyed, err := tbl.WithKey(KeyOf("gene_id"))
	if err != nil {
		t.Fatalf("WithKey: %v", err)
	}
	if !rekeyed.Key().Equal(KeyOf("gene_id")) {
		t.Errorf("key = %v, want gene_id", rekeyed.Key())
	}
	// Original unchanged.
	if !tbl.Key().Equal(KeyOf("gene_name")) {
		t.Errorf("original key changed to %v", tbl.Key())
	}

	if _, err := tbl.WithKey(KeyOf("missing")); err == nil {
		t.Error("expected error for unknown key column")
	}
}
