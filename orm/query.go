package orm

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/hatlonely/liteorm/schema"
	"github.com/hatlonely/liteorm/serializer"
)

// Save id 为 0 时插入并回写 id，否则按 id 更新，更新不到行时按原 id 插入
func (e *Engine) Save(ctx context.Context, entity schema.Entity) error {
	info, err := e.tableOf(entity)
	if err != nil {
		return err
	}
	if info.Type() == nil {
		return errors.Errorf("table %s has no model type", info.Name())
	}
	db, err := e.OpenDatabase(ctx, info.Database())
	if err != nil {
		return err
	}

	rv := reflect.ValueOf(entity).Elem()
	var columns []string
	var values []any
	for _, column := range info.Columns() {
		if column.IsPrimaryKey() || column.FieldIndex() == nil {
			continue
		}
		v, err := e.columnValue(info, column, rv.FieldByIndex(column.FieldIndex()))
		if err != nil {
			return errors.WithMessagef(err, "table %s", info.Name())
		}
		columns = append(columns, column.Name)
		values = append(values, v)
	}

	if id := entity.GetID(); id != 0 {
		n, err := e.update(ctx, db, info, columns, values, id)
		if err != nil {
			return err
		}
		if n > 0 {
			e.addEntity(info, entity)
			return nil
		}
		columns = append([]string{info.IDName()}, columns...)
		values = append([]any{id}, values...)
	}

	id, err := e.insert(ctx, db, info, columns, values)
	if err != nil {
		return err
	}
	entity.SetID(id)
	e.addEntity(info, entity)
	return nil
}

func (e *Engine) insert(ctx context.Context, db *sql.DB, info *schema.TableInfo, columns []string, values []any) (int64, error) {
	var query string
	if len(columns) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", info.Name())
	} else {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", info.Name(),
			strings.Join(columns, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
	}
	res, err := db.ExecContext(ctx, query, values...)
	if err != nil {
		return 0, errors.Wrapf(err, "insert into %s", info.Name())
	}
	id, err := res.LastInsertId()
	return id, errors.Wrap(err, "LastInsertId failed")
}

func (e *Engine) update(ctx context.Context, db *sql.DB, info *schema.TableInfo, columns []string, values []any, id int64) (int64, error) {
	if len(columns) == 0 {
		var n int64
		err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", info.Name(), info.IDName()), id).Scan(&n)
		return n, errors.Wrapf(err, "count %s", info.Name())
	}
	sets := make([]string, 0, len(columns))
	for _, c := range columns {
		sets = append(sets, c+" = ?")
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", info.Name(), strings.Join(sets, ", "), info.IDName())
	res, err := db.ExecContext(ctx, query, append(values, id)...)
	if err != nil {
		return 0, errors.Wrapf(err, "update %s", info.Name())
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "RowsAffected failed")
}

// Delete 删除行并移出身份缓存，实体的 id 保持不变
func (e *Engine) Delete(ctx context.Context, entity schema.Entity) error {
	info, err := e.tableOf(entity)
	if err != nil {
		return err
	}
	db, err := e.OpenDatabase(ctx, info.Database())
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", info.Name(), info.IDName()), entity.GetID()); err != nil {
		return errors.Wrapf(err, "delete from %s", info.Name())
	}
	e.removeEntity(info, entity.GetID())
	return nil
}

// QueryEntities 执行查询并通过身份缓存生成实体，结果中必须包含 id 列
func (e *Engine) QueryEntities(ctx context.Context, t reflect.Type, query string, args ...any) ([]schema.Entity, error) {
	info, err := e.TableInfo(t)
	if err != nil {
		return nil, err
	}
	db, err := e.OpenDatabase(ctx, info.Database())
	if err != nil {
		return nil, err
	}

	rows, err := e.readRows(ctx, db, query, args...)
	if err != nil {
		return nil, err
	}
	return e.processRows(ctx, info, rows)
}

// readRows 先读出全部行再处理，处理过程中解析引用还会发起查询
func (e *Engine) readRows(ctx context.Context, db *sql.DB, query string, args ...any) ([]*Row, error) {
	rs, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query [%s]", query)
	}
	defer rs.Close()

	columns, err := rs.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "Columns failed")
	}

	var rows []*Row
	for rs.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "Scan failed")
		}
		rows = append(rows, NewRow(columns, values))
	}
	return rows, errors.Wrap(rs.Err(), "rows.Err")
}

// processRows 同一个 id 先从缓存取实例，新建的实例在填充前放入缓存；单行填充失败时记录日志并跳过
func (e *Engine) processRows(ctx context.Context, info *schema.TableInfo, rows []*Row) ([]schema.Entity, error) {
	var entities []schema.Entity
	for _, row := range rows {
		if row.Index(info.IDName()) < 0 {
			return nil, errors.Errorf("result of table %s has no column %s", info.Name(), info.IDName())
		}
		id := row.Int64(info.IDName())

		entity, cached, err := e.getOrCreate(info, id)
		if err != nil {
			return nil, err
		}

		if err := e.fill(ctx, info, entity, row); err != nil {
			e.logger.WarnContext(ctx, "skip row", "table", info.Name(), "id", id, "error", err.Error())
			if !cached {
				e.removeEntity(info, id)
			}
			continue
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// IntQuery 返回第一行第一列，没有结果时返回 0
func (e *Engine) IntQuery(ctx context.Context, database string, query string, args ...any) (int64, error) {
	db, err := e.OpenDatabase(ctx, e.databaseName(database))
	if err != nil {
		return 0, err
	}
	rows, err := e.readRows(ctx, db, query, args...)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0].values) == 0 {
		return 0, nil
	}
	return serializer.AsInt64(rows[0].values[0]), nil
}

func (e *Engine) Exec(ctx context.Context, database string, query string, args ...any) (sql.Result, error) {
	db, err := e.OpenDatabase(ctx, e.databaseName(database))
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	return res, errors.Wrapf(err, "exec [%s]", query)
}

func (e *Engine) databaseName(name string) string {
	if name == "" {
		return e.options.DatabaseName
	}
	return name
}

// Query 执行查询并返回 *T，T 必须已注册
func Query[T any](ctx context.Context, e *Engine, query string, args ...any) ([]*T, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	entities, err := e.QueryEntities(ctx, t, query, args...)
	if err != nil {
		return nil, err
	}
	result := make([]*T, 0, len(entities))
	for _, entity := range entities {
		v, ok := any(entity).(*T)
		if !ok {
			return nil, errors.Errorf("constructor of %v returns %T", t, entity)
		}
		result = append(result, v)
	}
	return result, nil
}

// QuerySingle 返回第一条结果，没有结果时返回 ErrRecordNotFound
func QuerySingle[T any](ctx context.Context, e *Engine, query string, args ...any) (*T, error) {
	result, err := Query[T](ctx, e, query, args...)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, ErrRecordNotFound
	}
	return result[0], nil
}

// Load 按 id 加载，优先返回身份缓存中的实例
func Load[T any](ctx context.Context, e *Engine, id int64) (*T, error) {
	info, err := e.TableInfo(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	if entity, ok := e.GetEntity(info.Name(), id); ok {
		if v, ok := any(entity).(*T); ok {
			return v, nil
		}
	}
	v, err := QuerySingle[T](ctx, e, fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", info.Name(), info.IDName()), id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrRecordNotFound, "%s id %d", info.Name(), id)
	}
	return v, err
}
