package schema

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Definition 一个模型的注册信息，可以手写也可以由 Define 从结构体 tag 生成
type Definition struct {
	Table    string
	IDName   string // 默认 Id
	Database string // 为空时使用默认数据库
	Type     reflect.Type
	New      func() Entity
	Columns  []ColumnDefinition

	DoNotGenerate bool
}

// ColumnDefinition 列的声明
type ColumnDefinition struct {
	Field string
	Name  string // 为空时使用字段名
	Type  reflect.Type

	NotNull          bool
	OnNullConflict   ConflictAction
	Unique           bool
	OnUniqueConflict ConflictAction
	Default          string
	Length           int

	UniqueGroups      []string
	OnUniqueConflicts []ConflictAction
	IndexGroups       []string
	Index             bool

	OnDelete ForeignKeyAction
	OnUpdate ForeignKeyAction
}

// Define 从结构体 T 的 orm tag 生成定义，*T 必须实现 Entity
//
// 列名与 notNull/unique/index 同名时使用 name=，比如 `orm:"name=index"`
//
// tag 格式：`orm:"name,notNull=fail,unique=replace,default=0,length=32,index,indexGroups=a|b,uniqueGroups=a|b,onUniqueConflicts=fail|replace,onDelete=cascade,onUpdate=noAction"`
//
// T 可以实现 Table() / IDName() / DatabaseName() 覆盖表名、id 列名和所属数据库
func Define[T any]() (*Definition, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct || !reflect.PointerTo(t).Implements(entityType) {
		return nil, errors.Wrapf(ErrNotEntity, "%v", t)
	}

	def := &Definition{
		Table:         t.Name(),
		IDName:        DefaultIDName,
		Type:          t,
		DoNotGenerate: IsDoNotGenerate(t),
		New: func() Entity {
			return any(new(T)).(Entity)
		},
	}

	zero := any(new(T))
	if v, ok := zero.(tabler); ok && v.Table() != "" {
		def.Table = v.Table()
	}
	if v, ok := zero.(idNamer); ok && v.IDName() != "" {
		def.IDName = v.IDName()
	}
	if v, ok := zero.(databaseNamer); ok {
		def.Database = v.DatabaseName()
	}

	columns, err := columnsFromStruct(t)
	if err != nil {
		return nil, errors.WithMessagef(err, "define %v", t)
	}
	def.Columns = columns

	return def, nil
}

func MustDefine[T any]() *Definition {
	def, err := Define[T]()
	if err != nil {
		panic(err)
	}
	return def
}

// columnsFromStruct 嵌入的结构体字段展开到当前表，Model 和 NoGenerate 跳过
func columnsFromStruct(t reflect.Type) ([]ColumnDefinition, error) {
	var columns []ColumnDefinition
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous {
			if field.Type == modelType || field.Type == noGenerateType {
				continue
			}
			if field.Type.Kind() == reflect.Struct {
				embedded, err := columnsFromStruct(field.Type)
				if err != nil {
					return nil, err
				}
				columns = append(columns, embedded...)
			}
			continue
		}
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("orm")
		if tag == "-" {
			continue
		}

		column, err := parseFieldTag(field, tag)
		if err != nil {
			return nil, errors.WithMessagef(err, "field %s", field.Name)
		}
		columns = append(columns, column)
	}
	return columns, nil
}

var flagKeys = map[string]bool{"notNull": true, "unique": true, "index": true}

func parseFieldTag(field reflect.StructField, tag string) (ColumnDefinition, error) {
	column := ColumnDefinition{
		Field: field.Name,
		Name:  field.Name,
		Type:  field.Type,
	}
	if tag == "" {
		return column, nil
	}

	parts := strings.Split(tag, ",")
	// 第一部分是列名，可以为空；notNull, unique, index 单独出现时是标记而不是列名
	if first := strings.TrimSpace(parts[0]); !strings.Contains(first, "=") && !flagKeys[first] {
		if first != "" {
			column.Name = first
		}
		parts = parts[1:]
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, hasValue := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		var err error
		switch key {
		case "name":
			if value == "" {
				err = errors.Wrapf(ErrInvalidTag, "empty name")
			}
			column.Name = value
		case "notNull":
			column.NotNull = true
			column.OnNullConflict = ConflictFail
			if hasValue {
				column.OnNullConflict, err = ParseConflictAction(value)
			}
		case "unique":
			column.Unique = true
			column.OnUniqueConflict = ConflictFail
			if hasValue {
				column.OnUniqueConflict, err = ParseConflictAction(value)
			}
		case "default":
			column.Default = value
		case "length":
			column.Length, err = strconv.Atoi(value)
			if err != nil || column.Length < 0 {
				err = errors.Wrapf(ErrInvalidTag, "length [%s]", value)
			}
		case "index":
			column.Index = true
		case "indexGroups":
			column.IndexGroups = splitGroups(value)
		case "uniqueGroups":
			column.UniqueGroups = splitGroups(value)
		case "onUniqueConflicts":
			for _, v := range splitGroups(value) {
				action, e := ParseConflictAction(v)
				if e != nil {
					err = e
					break
				}
				column.OnUniqueConflicts = append(column.OnUniqueConflicts, action)
			}
		case "onDelete":
			column.OnDelete, err = ParseForeignKeyAction(value)
		case "onUpdate":
			column.OnUpdate, err = ParseForeignKeyAction(value)
		default:
			err = errors.Wrapf(ErrInvalidTag, "unknown key [%s]", key)
		}
		if err != nil {
			return column, err
		}
	}

	return column, nil
}

func splitGroups(value string) []string {
	var groups []string
	for _, g := range strings.Split(value, "|") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}
