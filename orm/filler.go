package orm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/pkg/errors"

	"github.com/hatlonely/liteorm/schema"
	"github.com/hatlonely/liteorm/serializer"
)

// Filler 模型可以实现该接口替代反射填充，NoGenerate 的模型总是使用反射填充
type Filler interface {
	FillRow(row *Row) error
}

// fill 把一行的数据写入实体
func (e *Engine) fill(ctx context.Context, info *schema.TableInfo, entity schema.Entity, row *Row) error {
	if filler, ok := entity.(Filler); ok && !info.DoNotGenerate() {
		if err := filler.FillRow(row); err != nil {
			return err
		}
		if !row.IsNull(info.IDName()) {
			entity.SetID(row.Int64(info.IDName()))
		}
		return nil
	}

	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return errors.Errorf("entity of table %s is %T, want pointer to struct", info.Name(), entity)
	}
	rv = rv.Elem()

	for _, column := range info.Columns() {
		i := row.Index(column.Name)
		if i < 0 {
			continue
		}
		if column.IsPrimaryKey() {
			entity.SetID(serializer.AsInt64(row.values[i]))
			continue
		}
		if column.FieldIndex() == nil {
			continue
		}
		if err := e.setField(ctx, column, rv.FieldByIndex(column.FieldIndex()), row.values[i]); err != nil {
			return errors.WithMessagef(err, "column %s", column.Name)
		}
	}
	return nil
}

func (e *Engine) setField(ctx context.Context, column *schema.ColumnInfo, field reflect.Value, raw any) error {
	if raw == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	switch column.Kind {
	case schema.KindSerialized:
		v, err := column.Serializer.Deserialize(raw)
		if err != nil {
			return err
		}
		if v == nil {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		field.Set(reflect.ValueOf(v))
		return nil

	case schema.KindEnum:
		ptr := reflect.New(field.Type())
		if err := ptr.Interface().(schema.EnumParser).ParseEnum(serializer.AsString(raw)); err != nil {
			return err
		}
		field.Set(ptr.Elem())
		return nil

	case schema.KindEntity:
		ref, err := e.resolveReference(ctx, field.Type(), serializer.AsInt64(raw))
		if err != nil {
			return err
		}
		if ref == nil {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		field.Set(reflect.ValueOf(ref))
		return nil
	}

	if column.Nullable {
		ptr := reflect.New(field.Type().Elem())
		if err := assign(ptr.Elem(), raw); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	}
	return assign(field, raw)
}

// resolveReference 先查身份缓存，再按 id 查询，引用的行不存在时返回 nil
func (e *Engine) resolveReference(ctx context.Context, t reflect.Type, id int64) (schema.Entity, error) {
	info, err := e.TableInfo(t)
	if err != nil {
		return nil, err
	}
	if ent, ok := e.GetEntity(info.Name(), id); ok {
		return ent, nil
	}
	entities, err := e.QueryEntities(ctx, t,
		fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", info.Name(), info.IDName()), id)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return entities[0], nil
}

func assign(dst reflect.Value, raw any) error {
	switch dst.Kind() {
	case reflect.Bool:
		dst.SetBool(serializer.AsInt64(raw) != 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dst.SetInt(serializer.AsInt64(raw))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		dst.SetUint(uint64(serializer.AsInt64(raw)))
	case reflect.Float32, reflect.Float64:
		dst.SetFloat(serializer.AsFloat64(raw))
	case reflect.String:
		dst.SetString(serializer.AsString(raw))
	case reflect.Slice:
		if dst.Type().Elem().Kind() != reflect.Uint8 {
			return errors.Errorf("unsupported slice type %v", dst.Type())
		}
		dst.SetBytes(serializer.AsBytes(raw))
	default:
		return errors.Errorf("unsupported field type %v", dst.Type())
	}
	return nil
}

// columnValue 字段值转换为写入数据库的值
func (e *Engine) columnValue(info *schema.TableInfo, column *schema.ColumnInfo, field reflect.Value) (any, error) {
	switch column.Kind {
	case schema.KindSerialized:
		v, err := column.Serializer.Serialize(field.Interface())
		if err != nil {
			return nil, errors.WithMessagef(err, "serialize column %s", column.Name)
		}
		if v != nil && reflect.TypeOf(v) != column.Serializer.SerializedType() {
			e.logger.Warn("serializer returned unexpected type",
				"table", info.Name(), "column", column.Name,
				"expected", column.Serializer.SerializedType().String(), "actual", fmt.Sprintf("%T", v))
		}
		return v, nil

	case schema.KindEnum:
		return field.Interface().(fmt.Stringer).String(), nil

	case schema.KindEntity:
		if field.IsNil() {
			return nil, nil
		}
		if id := field.Interface().(schema.Entity).GetID(); id != 0 {
			return id, nil
		}
		return nil, nil
	}

	if column.Nullable {
		if field.IsNil() {
			return nil, nil
		}
		field = field.Elem()
	}
	switch field.Kind() {
	case reflect.Bool:
		if field.Bool() {
			return int64(1), nil
		}
		return int64(0), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return field.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(field.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return field.Float(), nil
	case reflect.String:
		return field.String(), nil
	case reflect.Slice:
		return field.Bytes(), nil
	}
	return nil, errors.Errorf("unsupported field type %v", field.Type())
}
