package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/hatlonely/liteorm/serializer"
)

// Querier *sql.DB, *sql.Conn 和 *sql.Tx 都满足
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ColumnSchema PRAGMA table_info 返回的一列
type ColumnSchema struct {
	Name       string
	Type       string
	NotNull    bool
	Default    sql.NullString
	PrimaryKey bool
}

// IndexSchema CREATE INDEX 创建的索引
type IndexSchema struct {
	Name    string
	Columns []string
}

// TableSchema 数据库中实际存在的表结构，列名和 SQLite 一样不区分大小写
type TableSchema struct {
	Name       string
	Columns    []ColumnSchema
	UniqueSets [][]string
	Indexes    []IndexSchema
}

func (t *TableSchema) Column(name string) (ColumnSchema, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnSchema{}, false
}

func (t *TableSchema) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// InspectTable 读取表结构，表不存在时返回 nil, nil
//
// UniqueSets 只包含建表时声明的 UNIQUE 约束（index_list 中 origin 为 u），不含主键和 CREATE UNIQUE INDEX；
// Indexes 为 CREATE INDEX 创建的索引（origin 为 c）
func InspectTable(ctx context.Context, q Querier, table string) (*TableSchema, error) {
	rows, err := queryMaps(ctx, q, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, errors.WithMessagef(err, "table_info %s", table)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ts := &TableSchema{Name: table}
	for _, row := range rows {
		c := ColumnSchema{
			Name:       serializer.AsString(row["name"]),
			Type:       serializer.AsString(row["type"]),
			NotNull:    serializer.AsInt64(row["notnull"]) != 0,
			PrimaryKey: serializer.AsInt64(row["pk"]) != 0,
		}
		if v := row["dflt_value"]; v != nil {
			c.Default = sql.NullString{String: serializer.AsString(v), Valid: true}
		}
		ts.Columns = append(ts.Columns, c)
	}

	indexes, err := queryMaps(ctx, q, fmt.Sprintf("PRAGMA index_list(%s)", quoteIdent(table)))
	if err != nil {
		return nil, errors.WithMessagef(err, "index_list %s", table)
	}
	var uniques, created []string
	for _, idx := range indexes {
		name := serializer.AsString(idx["name"])
		switch origin := serializer.AsString(idx["origin"]); {
		case origin == "u" && serializer.AsInt64(idx["unique"]) != 0:
			uniques = append(uniques, name)
		case origin == "c":
			created = append(created, name)
		}
	}
	sort.Strings(uniques)
	sort.Strings(created)

	for _, name := range uniques {
		columns, err := indexColumns(ctx, q, name)
		if err != nil {
			return nil, err
		}
		ts.UniqueSets = append(ts.UniqueSets, columns)
	}
	for _, name := range created {
		columns, err := indexColumns(ctx, q, name)
		if err != nil {
			return nil, err
		}
		ts.Indexes = append(ts.Indexes, IndexSchema{Name: name, Columns: columns})
	}

	return ts, nil
}

// indexColumns 按 seqno 排序的索引列
func indexColumns(ctx context.Context, q Querier, name string) ([]string, error) {
	info, err := queryMaps(ctx, q, fmt.Sprintf("PRAGMA index_info(%s)", quoteIdent(name)))
	if err != nil {
		return nil, errors.WithMessagef(err, "index_info %s", name)
	}
	sort.Slice(info, func(i, j int) bool {
		return serializer.AsInt64(info[i]["seqno"]) < serializer.AsInt64(info[j]["seqno"])
	})
	columns := make([]string, 0, len(info))
	for _, row := range info {
		columns = append(columns, serializer.AsString(row["name"]))
	}
	return columns, nil
}

// UserVersion 数据库文件头中的版本号
func UserVersion(ctx context.Context, q Querier) (int, error) {
	rows, err := queryMaps(ctx, q, "PRAGMA user_version")
	if err != nil {
		return 0, errors.WithMessage(err, "read user_version")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return int(serializer.AsInt64(rows[0]["user_version"])), nil
}

func SetUserVersion(ctx context.Context, e Execer, version int) error {
	_, err := e.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version))
	return errors.WithMessage(err, "write user_version")
}

// ForeignKeyViolations PRAGMA foreign_key_check 返回的违反外键约束的行数
func ForeignKeyViolations(ctx context.Context, q Querier) (int, error) {
	rows, err := queryMaps(ctx, q, "PRAGMA foreign_key_check")
	if err != nil {
		return 0, errors.WithMessage(err, "foreign_key_check")
	}
	return len(rows), nil
}

// queryMaps PRAGMA 的返回列随 SQLite 版本变化，按列名读取
func queryMaps(ctx context.Context, q Querier, query string) ([]map[string]any, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, c := range columns {
			row[c] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
