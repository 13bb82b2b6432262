package query

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
)

func TestResultRecord(t *testing.T) {
	res := &Result{
		Columns: []string{"scenario", "model_year", "value"},
		Rows: [][]any{
			{"baseline", int64(2025), 5500.0},
			{"high_growth", int64(2025), 11000.0},
		},
	}
	rec, err := res.Record(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Release()

	if rec.NumRows() != 2 || rec.NumCols() != 3 {
		t.Fatalf("record shape = %dx%d, want 2x3", rec.NumRows(), rec.NumCols())
	}
	for i, want := range res.Columns {
		if got := rec.Schema().Field(i).Name; got != want {
			t.Errorf("field %d = %q, want %q", i, got, want)
		}
	}
	if got := rec.Column(0).(*array.String).Value(1); got != "high_growth" {
		t.Errorf("scenario[1] = %q", got)
	}
	if got := rec.Column(1).(*array.Int64).Value(0); got != 2025 {
		t.Errorf("model_year[0] = %d", got)
	}
	if got := rec.Column(2).(*array.Float64).Value(0); got != 5500.0 {
		t.Errorf("value[0] = %v", got)
	}
}

func TestResultRecordNulls(t *testing.T) {
	res := &Result{
		Columns: []string{"baseline", "high_growth"},
		Rows: [][]any{
			{2800.0, 5600.0},
			{2700.0, nil},
		},
	}
	rec, err := res.Record(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Release()

	col := rec.Column(1).(*array.Float64)
	if col.IsNull(0) || !col.IsNull(1) {
		t.Errorf("null pattern = [%v, %v], want [false, true]", col.IsNull(0), col.IsNull(1))
	}
}

func TestResultRecordTypeMismatch(t *testing.T) {
	res := &Result{
		Columns: []string{"value"},
		Rows: [][]any{
			{5500.0},
			{"not a number"},
		},
	}
	if _, err := res.Record(nil); err == nil {
		t.Fatal("Record should reject mixed cell types in one column")
	}
}
