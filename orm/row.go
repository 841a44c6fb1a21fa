package orm

import (
	"github.com/hatlonely/liteorm/serializer"
)

// Row 查询结果中的一行，按列名取值
//
// 连表查询可能出现重名的列，按名字取值时使用第一次出现的列
type Row struct {
	columns []string
	values  []any
}

func NewRow(columns []string, values []any) *Row {
	return &Row{columns: columns, values: values}
}

func (r *Row) Columns() []string {
	return r.columns
}

// Index 列的下标，不存在时返回 -1
func (r *Row) Index(name string) int {
	for i, c := range r.columns {
		if c == name {
			return i
		}
	}
	return -1
}

func (r *Row) Value(name string) any {
	if i := r.Index(name); i >= 0 {
		return r.values[i]
	}
	return nil
}

func (r *Row) IsNull(name string) bool {
	return r.Value(name) == nil
}

func (r *Row) Int64(name string) int64 {
	return serializer.AsInt64(r.Value(name))
}

func (r *Row) Float64(name string) float64 {
	return serializer.AsFloat64(r.Value(name))
}

func (r *Row) String(name string) string {
	return serializer.AsString(r.Value(name))
}

func (r *Row) Bytes(name string) []byte {
	return serializer.AsBytes(r.Value(name))
}

func (r *Row) Bool(name string) bool {
	return serializer.AsInt64(r.Value(name)) != 0
}
