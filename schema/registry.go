package schema

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/hatlonely/liteorm/log"
	"github.com/hatlonely/liteorm/serializer"
)

type RegistryOptions struct {
	// DefaultDatabase 定义中未指定数据库时使用
	DefaultDatabase string
	// Serializers 用户自定义的序列化器，同类型时覆盖内置的
	Serializers []serializer.TypeSerializer
	Logger      log.Logger
}

// Registry 所有已注册模型的元数据，初始化时构建一次，之后只读
type Registry struct {
	tables      []*TableInfo
	byType      map[reflect.Type]*TableInfo
	byName      map[string]*TableInfo
	serializers *serializer.Registry
	logger      log.Logger
}

func NewRegistryWithOptions(options *RegistryOptions, definitions ...*Definition) (*Registry, error) {
	if options == nil {
		options = &RegistryOptions{}
	}
	logger := options.Logger
	if logger == nil {
		logger = log.Default()
	}

	r := &Registry{
		byType:      make(map[reflect.Type]*TableInfo),
		byName:      make(map[string]*TableInfo),
		serializers: serializer.NewRegistry(options.Serializers...),
		logger:      logger,
	}

	// 先登记所有表，引用列解析时需要知道目标表
	for _, def := range definitions {
		if def == nil {
			continue
		}
		if def.Table == "" {
			return nil, errors.Errorf("definition of %v has no table name", def.Type)
		}
		if _, ok := r.byName[def.Table]; ok {
			return nil, errors.Wrapf(ErrDuplicateTable, "table %s", def.Table)
		}

		info := &TableInfo{
			name:          def.Table,
			idName:        def.IDName,
			database:      def.Database,
			typ:           def.Type,
			doNotGenerate: def.DoNotGenerate,
			newFunc:       def.New,
			byField:       make(map[string]*ColumnInfo),
			byName:        make(map[string]*ColumnInfo),
		}
		if info.idName == "" {
			info.idName = DefaultIDName
		}
		if info.database == "" {
			info.database = options.DefaultDatabase
		}
		if def.Type != nil {
			if _, ok := r.byType[def.Type]; ok {
				return nil, errors.Wrapf(ErrDuplicateTable, "type %v", def.Type)
			}
			r.byType[def.Type] = info
			if IsDoNotGenerate(def.Type) {
				info.doNotGenerate = true
			}
		}

		r.tables = append(r.tables, info)
		r.byName[info.name] = info
	}

	mapper := NewTypeMapper(r.serializers)
	for i, def := range nonNil(definitions) {
		if err := r.buildColumns(r.tables[i], def, mapper); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func nonNil(definitions []*Definition) []*Definition {
	var defs []*Definition
	for _, def := range definitions {
		if def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

func (r *Registry) buildColumns(info *TableInfo, def *Definition, mapper *TypeMapper) error {
	id := &ColumnInfo{
		Name:    info.idName,
		Type:    reflect.TypeOf(int64(0)),
		Storage: StorageInteger,
		Kind:    KindPrimitive,
		primary: true,
	}
	_ = info.addColumn(id)

	for _, cd := range def.Columns {
		name := cd.Name
		if name == "" {
			name = cd.Field
		}
		if name == info.idName {
			continue
		}

		column := &ColumnInfo{
			Field:            cd.Field,
			Name:             name,
			Type:             cd.Type,
			NotNull:          cd.NotNull,
			OnNullConflict:   cd.OnNullConflict,
			Unique:           cd.Unique,
			OnUniqueConflict: cd.OnUniqueConflict,
			Default:          cd.Default,
			Length:           cd.Length,
			IndexGroups:      cd.IndexGroups,
			Index:            cd.Index,
			OnDelete:         cd.OnDelete,
			OnUpdate:         cd.OnUpdate,
		}
		if column.NotNull && column.OnNullConflict == "" {
			column.OnNullConflict = ConflictFail
		}
		if column.Unique && column.OnUniqueConflict == "" {
			column.OnUniqueConflict = ConflictFail
		}
		if column.OnDelete == "" {
			column.OnDelete = ForeignKeyNoAction
		}
		if column.OnUpdate == "" {
			column.OnUpdate = ForeignKeyNoAction
		}

		if def.Type != nil && cd.Field != "" {
			field, ok := def.Type.FieldByName(cd.Field)
			if !ok {
				return errors.Wrapf(ErrUnknownField, "table %s field %s", info.name, cd.Field)
			}
			column.index = field.Index
			if column.Type == nil {
				column.Type = field.Type
			}
		}

		mapping, err := mapper.Resolve(column.Type)
		if err != nil {
			return errors.WithMessagef(err, "table %s column %s", info.name, name)
		}
		column.Storage = mapping.Storage
		column.Kind = mapping.Kind
		column.Serializer = mapping.Serializer
		column.Nullable = mapping.Nullable

		if column.Kind == KindEntity {
			if target, ok := r.byType[column.Type.Elem()]; ok {
				column.References = target.name
				column.ReferencesID = target.idName
			}
		}

		if len(cd.UniqueGroups) != len(cd.OnUniqueConflicts) {
			r.logger.Warn("unique groups ignored",
				"table", info.name, "column", name,
				"groups", len(cd.UniqueGroups), "actions", len(cd.OnUniqueConflicts),
				"error", ErrUniqueGroupMismatch)
		} else {
			for j, group := range cd.UniqueGroups {
				column.UniqueGroups = append(column.UniqueGroups, UniqueGroup{Name: group, Action: cd.OnUniqueConflicts[j]})
			}
		}

		if err := info.addColumn(column); err != nil {
			return err
		}
	}
	return nil
}

// Tables 按注册顺序返回所有表
func (r *Registry) Tables() []*TableInfo {
	return r.tables
}

// TablesOf 属于某个数据库的表
func (r *Registry) TablesOf(database string) []*TableInfo {
	var tables []*TableInfo
	for _, t := range r.tables {
		if t.database == database {
			tables = append(tables, t)
		}
	}
	return tables
}

// Table t 可以是模型结构体类型或其指针类型
func (r *Registry) Table(t reflect.Type) (*TableInfo, bool) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	info, ok := r.byType[t]
	return info, ok
}

func (r *Registry) TableByName(name string) (*TableInfo, bool) {
	info, ok := r.byName[name]
	return info, ok
}

func (r *Registry) Serializers() *serializer.Registry {
	return r.serializers
}
