package query

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Result is a tabular query result. The column set is fixed per
// operation and never reordered; breakdown-dependent columns are only
// present when a breakdown was requested. Cell values are string,
// int64, float64 or nil.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Record converts the result to an Arrow record batch. Column types
// are inferred from the first non-nil cell per column; a column with
// no values becomes Float64. The caller owns the returned batch and
// must release it.
func (r *Result) Record(alloc memory.Allocator) (arrow.RecordBatch, error) {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	fields := make([]arrow.Field, len(r.Columns))
	for i, name := range r.Columns {
		fields[i] = arrow.Field{Name: name, Type: r.columnType(i), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(alloc, schema)
	defer builder.Release()
	for _, row := range r.Rows {
		if len(row) != len(r.Columns) {
			return nil, fmt.Errorf("row has %d cells, want %d", len(row), len(r.Columns))
		}
		for i, v := range row {
			if v == nil {
				builder.Field(i).AppendNull()
				continue
			}
			switch fb := builder.Field(i).(type) {
			case *array.StringBuilder:
				s, ok := v.(string)
				if !ok {
					return nil, fmt.Errorf("column %s: %T in a string column", r.Columns[i], v)
				}
				fb.Append(s)
			case *array.Int64Builder:
				n, ok := v.(int64)
				if !ok {
					return nil, fmt.Errorf("column %s: %T in an int64 column", r.Columns[i], v)
				}
				fb.Append(n)
			case *array.Float64Builder:
				f, ok := v.(float64)
				if !ok {
					return nil, fmt.Errorf("column %s: %T in a float64 column", r.Columns[i], v)
				}
				fb.Append(f)
			default:
				return nil, fmt.Errorf("column %s: unsupported builder %T", r.Columns[i], fb)
			}
		}
	}
	return builder.NewRecordBatch(), nil
}

func (r *Result) columnType(i int) arrow.DataType {
	for _, row := range r.Rows {
		switch row[i].(type) {
		case string:
			return arrow.BinaryTypes.String
		case int64:
			return arrow.PrimitiveTypes.Int64
		case float64:
			return arrow.PrimitiveTypes.Float64
		}
	}
	return arrow.PrimitiveTypes.Float64
}
