package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// FromRecordBatch converts one Arrow record batch into a Local table keyed
// by key. Supported column types: string, large string, int32/int64,
// float32/float64. Arrow nulls become nil cells.
func FromRecordBatch(rec arrow.RecordBatch, key Key) (*Local, error) {
	schema := rec.Schema()
	names := make([]string, schema.NumFields())
	for i := 0; i < schema.NumFields(); i++ {
		names[i] = schema.Field(i).Name
	}
	if missing := missingFrom(key, names); len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	n := int(rec.NumRows())
	out := &Local{
		key:  append(Key(nil), key...),
		data: make(map[string][]any, len(names)),
		n:    n,
	}
	// Key columns first, to keep the conventional column order.
	for _, name := range key {
		out.order = append(out.order, name)
	}
	for _, name := range names {
		if !key.Contains(name) {
			out.order = append(out.order, name)
		}
	}
	for i, name := range names {
		cells, err := columnCells(rec.Column(i), n)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		out.data[name] = cells
	}
	return out, nil
}

func columnCells(col arrow.Array, n int) ([]any, error) {
	cells := make([]any, n)
	switch arr := col.(type) {
	case *array.String:
		for i := 0; i < n; i++ {
			if arr.IsValid(i) {
				cells[i] = arr.Value(i)
			}
		}
	case *array.LargeString:
		for i := 0; i < n; i++ {
			if arr.IsValid(i) {
				cells[i] = arr.Value(i)
			}
		}
	case *array.Int64:
		for i := 0; i < n; i++ {
			if arr.IsValid(i) {
				cells[i] = arr.Value(i)
			}
		}
	case *array.Int32:
		for i := 0; i < n; i++ {
			if arr.IsValid(i) {
				cells[i] = int64(arr.Value(i))
			}
		}
	case *array.Float64:
		for i := 0; i < n; i++ {
			if arr.IsValid(i) {
				cells[i] = arr.Value(i)
			}
		}
	case *array.Float32:
		for i := 0; i < n; i++ {
			if arr.IsValid(i) {
				cells[i] = float64(arr.Value(i))
			}
		}
	default:
		return nil, fmt.Errorf("unsupported Arrow type %s", col.DataType())
	}
	return cells, nil
}

// AppendRecordBatch appends the rows of a record batch whose schema matches
// the table's columns. Used when reading multi-batch streams.
func (t *Local) AppendRecordBatch(rec arrow.RecordBatch) error {
	batch, err := FromRecordBatch(rec, t.key)
	if err != nil {
		return err
	}
	if missing := missingFrom(batch.order, t.order); len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	for _, name := range t.order {
		cells, err := batch.Column(name)
		if err != nil {
			return err
		}
		t.data[name] = append(t.data[name], cells...)
	}
	t.n += batch.n
	return nil
}

// RecordBatch renders the table as one Arrow record batch. Column types are
// inferred from the cells: all-integer columns become int64, numeric mixes
// become float64, everything else becomes string. The caller releases the
// returned batch.
func (t *Local) RecordBatch(alloc memory.Allocator) (arrow.RecordBatch, error) {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	fields := make([]arrow.Field, len(t.order))
	for i, name := range t.order {
		fields[i] = arrow.Field{Name: name, Type: inferredType(t.data[name]), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(alloc, schema)
	defer b.Release()
	for i, name := range t.order {
		cells := t.data[name]
		switch fb := b.Field(i).(type) {
		case *array.Int64Builder:
			for _, v := range cells {
				if v == nil {
					fb.AppendNull()
					continue
				}
				f, _ := cellFloat(v)
				fb.Append(int64(f))
			}
		case *array.Float64Builder:
			for _, v := range cells {
				if v == nil {
					fb.AppendNull()
					continue
				}
				f, _ := cellFloat(v)
				fb.Append(f)
			}
		case *array.StringBuilder:
			for _, v := range cells {
				if v == nil {
					fb.AppendNull()
					continue
				}
				fb.Append(cellString(v))
			}
		default:
			return nil, fmt.Errorf("column %s: unexpected builder %T", name, fb)
		}
	}
	return b.NewRecordBatch(), nil
}

func inferredType(cells []any) arrow.DataType {
	allInt := true
	sawValue := false
	for _, v := range cells {
		if v == nil {
			continue
		}
		sawValue = true
		switch v.(type) {
		case int, int32, int64:
		case float32, float64:
			allInt = false
		default:
			return arrow.BinaryTypes.String
		}
	}
	if !sawValue {
		return arrow.BinaryTypes.String
	}
	if allInt {
		return arrow.PrimitiveTypes.Int64
	}
	return arrow.PrimitiveTypes.Float64
}
