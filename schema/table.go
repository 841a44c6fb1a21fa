package schema

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/hatlonely/liteorm/serializer"
)

const DefaultIDName = "Id"

// UniqueGroup 多列唯一约束中的一个分组
type UniqueGroup struct {
	Name   string
	Action ConflictAction
}

// ColumnInfo 列的元数据，构建后只读
type ColumnInfo struct {
	Field   string // 模型字段名，id 列为空
	Name    string
	Type    reflect.Type
	Storage StorageType
	Kind    ValueKind

	Serializer serializer.TypeSerializer
	Nullable   bool

	NotNull          bool
	OnNullConflict   ConflictAction
	Unique           bool
	OnUniqueConflict ConflictAction
	Default          string
	Length           int

	UniqueGroups []UniqueGroup
	IndexGroups  []string
	Index        bool

	// References 引用的表名，目标模型未注册时为空
	References   string
	ReferencesID string
	OnDelete     ForeignKeyAction
	OnUpdate     ForeignKeyAction

	primary bool
	index   []int
}

func (c *ColumnInfo) IsPrimaryKey() bool {
	return c.primary
}

// FieldIndex 字段在模型结构体中的下标路径，可直接用于 reflect.Value.FieldByIndex
func (c *ColumnInfo) FieldIndex() []int {
	return c.index
}

func (c *ColumnInfo) IsReference() bool {
	return c.Kind == KindEntity
}

// TableInfo 表的元数据
type TableInfo struct {
	name          string
	idName        string
	database      string
	typ           reflect.Type
	doNotGenerate bool
	newFunc       func() Entity

	columns []*ColumnInfo
	byField map[string]*ColumnInfo
	byName  map[string]*ColumnInfo
}

func (t *TableInfo) Name() string {
	return t.name
}

func (t *TableInfo) IDName() string {
	return t.idName
}

func (t *TableInfo) Database() string {
	return t.database
}

// Type 模型结构体类型，显式定义且未提供类型时为 nil
func (t *TableInfo) Type() reflect.Type {
	return t.typ
}

func (t *TableInfo) DoNotGenerate() bool {
	return t.doNotGenerate
}

// Columns 按声明顺序返回所有列，id 列在最前
func (t *TableInfo) Columns() []*ColumnInfo {
	return t.columns
}

func (t *TableInfo) IDColumn() *ColumnInfo {
	return t.columns[0]
}

func (t *TableInfo) Column(field string) (*ColumnInfo, bool) {
	c, ok := t.byField[field]
	return c, ok
}

func (t *TableInfo) ColumnByName(name string) (*ColumnInfo, bool) {
	c, ok := t.byName[name]
	return c, ok
}

func (t *TableInfo) ColumnNames() []string {
	names := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		names = append(names, c.Name)
	}
	return names
}

// New 创建一个空的模型实例
func (t *TableInfo) New() (Entity, error) {
	if t.newFunc == nil {
		return nil, errors.Wrapf(ErrNoConstructor, "table %s", t.name)
	}
	return t.newFunc(), nil
}

func (t *TableInfo) addColumn(c *ColumnInfo) error {
	if _, ok := t.byName[c.Name]; ok {
		return errors.Wrapf(ErrDuplicateColumn, "table %s column %s", t.name, c.Name)
	}
	t.columns = append(t.columns, c)
	t.byName[c.Name] = c
	if c.Field != "" {
		t.byField[c.Field] = c
	}
	return nil
}
