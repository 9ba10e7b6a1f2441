// Package annotate provides a data-integration layer for bioinformatics:
// external reference databases (gene, protein, disease and interaction
// tables) are loaded from local files or remote URLs and joined onto a
// primary entity list by key, with grouped aggregation of multi-valued
// matches and optional fuzzy key matching.
//
// The package is organized around three pieces:
//   - resource/dataset: resolve a database's file resources (download,
//     cache, decompress) and load them into a tabular store
//   - table: the store layer, with an in-memory backend and a DuckDB
//     backend for tables that do not fit in memory
//   - annotate (this package): the engine that owns the annotation table
//     and accumulates columns from successive joins
//
// # Quick start
//
//	a := annotate.New()
//	if err := a.Init("gene_name", genes); err != nil {
//	    log.Fatal(err)
//	}
//
//	db, err := dataset.Open(ctx, "disgenet", baseURL,
//	    resource.Manifest{"curated.tsv.gz": "curated_gene_disease_associations.tsv.gz"},
//	    dataset.Delimited("disgenet", dataset.DelimitedConfig{
//	        File: "curated.tsv.gz",
//	        Key:  table.KeyOf("gene_name"),
//	    }))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stats, err := a.Join(ctx, db, table.KeyOf("gene_name"),
//	    []string{"disease_name", "score"})
//
// Every join is a left outer merge: all entity rows are kept, multi-valued
// matches are collapsed by an aggregation directive (deduplicated
// pipe-delimited concatenation by default), and columns that already exist
// are only gap-filled, never overwritten.
//
// # Backends
//
// Stores wrap the table.Table capability interface. The in-memory backend
// answers everything locally; the DuckDB backend keeps projection,
// filtering and aggregation inside the database engine and only
// materializes the (small) aggregated result. The engine is synchronous
// either way: every operation returns a finished result.
//
// All operations on one Annotator must be serialized by the caller.
package annotate
