// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"database/sql"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// NullMarker is how a NULL cell is rendered as text.
const NullMarker = "<NULL>"

// Cell is one value of a result row.
type Cell struct {
	Value any
	Null  bool
}

// String implements fmt.Stringer.
func (c Cell) String() string {
	if c.Null {
		return NullMarker
	}
	if b, ok := c.Value.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(c.Value)
}

// ResultBatch holds every row produced by one statement.
type ResultBatch struct {
	Columns []string
	Rows    [][]Cell
}

// NumRows returns the number of rows.
func (b *ResultBatch) NumRows() int {
	return len(b.Rows)
}

// Strings renders every cell as text, NULL cells as NullMarker.
func (b *ResultBatch) Strings() [][]string {
	out := make([][]string, 0, len(b.Rows))
	for _, row := range b.Rows {
		texts := make([]string, 0, len(row))
		for _, cell := range row {
			texts = append(texts, cell.String())
		}
		out = append(out, texts)
	}
	return out
}

func collect(rows *sql.Rows) (*ResultBatch, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	batch := &ResultBatch{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([]Cell, len(columns))
		for i, v := range values {
			row[i] = Cell{Value: v, Null: v == nil}
		}
		batch.Rows = append(batch.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batch, nil
}

// ToArrow converts the batch to a columnar record. Column types are inferred
// from the non-NULL values; a column mixing kinds is rendered as strings.
// The caller must Release the record.
func (b *ResultBatch) ToArrow(mem memory.Allocator) arrow.Record {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	fields := make([]arrow.Field, len(b.Columns))
	for i, name := range b.Columns {
		fields[i] = arrow.Field{Name: name, Type: b.columnType(i), Nullable: true}
	}
	builder := array.NewRecordBuilder(mem, arrow.NewSchema(fields, nil))
	defer builder.Release()

	for _, row := range b.Rows {
		for i, cell := range row {
			appendCell(builder.Field(i), cell)
		}
	}
	return builder.NewRecord()
}

func (b *ResultBatch) columnType(col int) arrow.DataType {
	var kind arrow.DataType
	for _, row := range b.Rows {
		cell := row[col]
		if cell.Null {
			continue
		}
		t := arrowType(cell.Value)
		if kind == nil {
			kind = t
		} else if !arrow.TypeEqual(kind, t) {
			return arrow.BinaryTypes.String
		}
	}
	if kind == nil {
		return arrow.BinaryTypes.String
	}
	return kind
}

func arrowType(v any) arrow.DataType {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return arrow.PrimitiveTypes.Int64
	case float32, float64:
		return arrow.PrimitiveTypes.Float64
	case bool:
		return arrow.FixedWidthTypes.Boolean
	case []byte:
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.String
	}
}

func appendCell(builder array.Builder, cell Cell) {
	if cell.Null {
		builder.AppendNull()
		return
	}
	switch bld := builder.(type) {
	case *array.Int64Builder:
		bld.Append(toInt64(cell.Value))
	case *array.Float64Builder:
		switch v := cell.Value.(type) {
		case float32:
			bld.Append(float64(v))
		case float64:
			bld.Append(v)
		}
	case *array.BooleanBuilder:
		bld.Append(cell.Value.(bool))
	case *array.BinaryBuilder:
		bld.Append(cell.Value.([]byte))
	case *array.StringBuilder:
		bld.Append(cell.String())
	}
}

// ArrowText renders row i of arr the way Cell.String renders the value it was
// built from.
func ArrowText(arr arrow.Array, i int) string {
	if arr.IsNull(i) {
		return NullMarker
	}
	if bin, ok := arr.(*array.Binary); ok {
		return string(bin.Value(i))
	}
	return arr.ValueStr(i)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	}
	return 0
}
