package dataset

import (
	"context"
	"testing"

	annotate "github.com/omics-lab/annotate-go"
	"github.com/omics-lab/annotate-go/table"
)

func sequenceStore(t *testing.T) *table.Store {
	t.Helper()
	tbl, err := table.NewKeyed(table.KeyOf("transcript_id"),
		[]string{"t1", "t2", "t3", "t4"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendColumn("gene_name", []any{"BRCA1", "BRCA1", "TP53", "EGFR"}); err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendColumn("sequence", []any{"AUGGC", "AUG", "CCAU", nil}); err != nil {
		t.Fatal(err)
	}
	return table.NewStore("rnacentral", tbl)
}

func TestSequences(t *testing.T) {
	src := NewSequences(sequenceStore(t), "sequence")
	ctx := context.Background()

	t.Run("longest", func(t *testing.T) {
		got, err := src.Sequences(ctx, "gene_name", annotate.SequenceLongest)
		if err != nil {
			t.Fatalf("Sequences: %v", err)
		}
		if got["BRCA1"] != "AUGGC" {
			t.Errorf("BRCA1 = %q, want AUGGC", got["BRCA1"])
		}
		if got["TP53"] != "CCAU" {
			t.Errorf("TP53 = %q, want CCAU", got["TP53"])
		}
		if _, ok := got["EGFR"]; ok {
			t.Errorf("EGFR present with %q, want absent for null sequence", got["EGFR"])
		}
	})

	t.Run("shortest", func(t *testing.T) {
		got, err := src.Sequences(ctx, "gene_name", annotate.SequenceShortest)
		if err != nil {
			t.Fatalf("Sequences: %v", err)
		}
		if got["BRCA1"] != "AUG" {
			t.Errorf("BRCA1 = %q, want AUG", got["BRCA1"])
		}
	})

	t.Run("all", func(t *testing.T) {
		got, err := src.Sequences(ctx, "gene_name", annotate.SequenceAll)
		if err != nil {
			t.Fatalf("Sequences: %v", err)
		}
		if got["BRCA1"] != "AUGGC|AUG" {
			t.Errorf("BRCA1 = %q, want AUGGC|AUG", got["BRCA1"])
		}
	})
}

func TestSequencesDeduplicatesAll(t *testing.T) {
	tbl, err := table.NewKeyed(table.KeyOf("transcript_id"), []string{"t1", "t2"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendColumn("gene_name", []any{"BRCA1", "BRCA1"}); err != nil {
		t.Fatal(err)
	}
	if err := tbl.AppendColumn("sequence", []any{"AUG", "AUG"}); err != nil {
		t.Fatal(err)
	}
	src := NewSequences(table.NewStore("seqs", tbl), "sequence")

	got, err := src.Sequences(context.Background(), "gene_name", annotate.SequenceAll)
	if err != nil {
		t.Fatal(err)
	}
	if got["BRCA1"] != "AUG" {
		t.Errorf("BRCA1 = %q, want AUG", got["BRCA1"])
	}
}
