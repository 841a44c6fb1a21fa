package schema

import (
	"fmt"
	"reflect"
)

// Entity 可以绑定到一行记录的模型，ID 为 0 表示尚未保存
type Entity interface {
	GetID() int64
	SetID(id int64)
}

// Model 嵌入到模型结构体中提供 id 列
type Model struct {
	ID int64 `orm:"-"`
}

func (m *Model) GetID() int64 {
	return m.ID
}

func (m *Model) SetID(id int64) {
	m.ID = id
}

// NoGenerate 嵌入后该模型及所有嵌入它的模型都不使用生成的填充代码，
// 适用于多个表共享的基础结构体
type NoGenerate struct{}

// EnumParser 枚举类型的指针实现该接口，与 String() 配合按符号名存储
type EnumParser interface {
	ParseEnum(name string) error
}

// 模型可选实现的接口
type (
	tabler interface {
		Table() string
	}
	idNamer interface {
		IDName() string
	}
	databaseNamer interface {
		DatabaseName() string
	}
)

var (
	entityType     = reflect.TypeOf((*Entity)(nil)).Elem()
	stringerType   = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
	enumParserType = reflect.TypeOf((*EnumParser)(nil)).Elem()
	modelType      = reflect.TypeOf(Model{})
	noGenerateType = reflect.TypeOf(NoGenerate{})
)

// IsEntityType t 为指向实现了 Entity 的结构体的指针
func IsEntityType(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct && t.Implements(entityType)
}

// IsEnumType t 实现 fmt.Stringer 且 *t 实现 EnumParser
func IsEnumType(t reflect.Type) bool {
	return t.Kind() != reflect.Ptr && t.Implements(stringerType) && reflect.PointerTo(t).Implements(enumParserType)
}

// IsDoNotGenerate 沿嵌入链递归检查是否嵌入了 NoGenerate
func IsDoNotGenerate(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		if f.Type == noGenerateType || IsDoNotGenerate(f.Type) {
			return true
		}
	}
	return false
}
