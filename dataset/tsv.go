package dataset

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/csv"

	"github.com/omics-lab/annotate-go/resource"
	"github.com/omics-lab/annotate-go/table"
)

// DelimitedConfig describes a generic delimited-text database table.
// Most reference databases ship as one TSV with a header row.
type DelimitedConfig struct {
	// File is the logical filename inside the manifest.
	File string

	// Comma is the field delimiter. Defaults to '\t'.
	Comma rune

	// Key is the row-key column name(s), named after renaming.
	Key table.Key

	// Rename maps source column names to the names used downstream.
	Rename map[string]string

	// NullValues are additional strings read as null. "" is always null.
	NullValues []string
}

func (cfg DelimitedConfig) comma() rune {
	if cfg.Comma == 0 {
		return '\t'
	}
	return cfg.Comma
}

// Delimited returns a Loader that reads cfg.File into an in-memory store
// using the Arrow CSV reader with inferred column types.
func Delimited(name string, cfg DelimitedConfig) Loader {
	return func(ctx context.Context, res *resource.Resolved) (*table.Store, error) {
		f, err := res.Open(cfg.File)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		nulls := append([]string{""}, cfg.NullValues...)
		rdr := csv.NewInferringReader(f,
			csv.WithComma(cfg.comma()),
			csv.WithHeader(true),
			csv.WithNullReader(true, nulls...),
			csv.WithChunk(8192),
		)
		defer rdr.Release()

		var tbl *table.Local
		for rdr.Next() {
			rec := rdr.RecordBatch()
			if tbl == nil {
				tbl, err = table.FromRecordBatch(rec, nil)
				if err != nil {
					return nil, fmt.Errorf("read %s: %w", cfg.File, err)
				}
				continue
			}
			if err := tbl.AppendRecordBatch(rec); err != nil {
				return nil, fmt.Errorf("read %s: %w", cfg.File, err)
			}
		}
		if err := rdr.Err(); err != nil {
			return nil, fmt.Errorf("read %s: %w", cfg.File, err)
		}
		if tbl == nil {
			return nil, fmt.Errorf("read %s: no rows", cfg.File)
		}

		for from, to := range cfg.Rename {
			if err := tbl.RenameColumn(from, to); err != nil {
				return nil, fmt.Errorf("rename %s: %w", cfg.File, err)
			}
		}
		keyed, err := tbl.WithKey(cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", cfg.File, err)
		}
		return table.NewStore(name, keyed), nil
	}
}

// DelimitedDB returns a Loader that reads cfg.File into a DuckDB relation
// and wraps it as an out-of-core store. Use for tables too large to hold
// in memory; aggregation then runs inside the database engine.
func DelimitedDB(db *table.DB, rel string, cfg DelimitedConfig) Loader {
	return func(ctx context.Context, res *resource.Resolved) (*table.Store, error) {
		path, err := res.Path(cfg.File)
		if err != nil {
			return nil, err
		}
		if err := db.LoadCSV(ctx, rel, path, cfg.comma()); err != nil {
			return nil, err
		}
		for from, to := range cfg.Rename {
			q := fmt.Sprintf(`ALTER TABLE %s RENAME COLUMN %s TO %s`,
				quote(rel), quote(from), quote(to))
			if err := db.Exec(ctx, q); err != nil {
				return nil, fmt.Errorf("rename %s.%s: %w", rel, from, err)
			}
		}
		tbl, err := db.Table(ctx, rel, cfg.Key)
		if err != nil {
			return nil, err
		}
		return table.NewStore(rel, tbl), nil
	}
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
