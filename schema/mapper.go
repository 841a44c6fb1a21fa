package schema

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hatlonely/liteorm/serializer"
)

// ValueKind 字段值写入和读出时的转换方式
type ValueKind int

const (
	KindPrimitive ValueKind = iota
	KindSerialized
	KindEntity
	KindEnum
)

func (k ValueKind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindSerialized:
		return "serialized"
	case KindEntity:
		return "entity"
	case KindEnum:
		return "enum"
	}
	return "unknown"
}

// Mapping 字段类型解析的结果
type Mapping struct {
	Storage    StorageType
	Kind       ValueKind
	Serializer serializer.TypeSerializer
	// Nullable 指针类型的基础字段，nil 写入 NULL
	Nullable bool
}

var primitiveStorage = map[reflect.Type]StorageType{
	reflect.TypeOf(false):       StorageInteger,
	reflect.TypeOf(int(0)):      StorageInteger,
	reflect.TypeOf(int8(0)):     StorageInteger,
	reflect.TypeOf(int16(0)):    StorageInteger,
	reflect.TypeOf(int32(0)):    StorageInteger,
	reflect.TypeOf(int64(0)):    StorageInteger,
	reflect.TypeOf(uint(0)):     StorageInteger,
	reflect.TypeOf(uint8(0)):    StorageInteger,
	reflect.TypeOf(uint16(0)):   StorageInteger,
	reflect.TypeOf(uint32(0)):   StorageInteger,
	reflect.TypeOf(uint64(0)):   StorageInteger,
	reflect.TypeOf(float32(0)):  StorageReal,
	reflect.TypeOf(float64(0)):  StorageReal,
	reflect.TypeOf(""):          StorageText,
	reflect.TypeOf([]byte(nil)): StorageBlob,
}

// PrimitiveStorage 基础类型对应的存储类型，只做精确匹配
func PrimitiveStorage(t reflect.Type) (StorageType, bool) {
	s, ok := primitiveStorage[t]
	return s, ok
}

// TypeMapper 按固定顺序解析字段类型：序列化器、基础类型、模型引用、枚举
type TypeMapper struct {
	serializers *serializer.Registry
}

func NewTypeMapper(serializers *serializer.Registry) *TypeMapper {
	if serializers == nil {
		serializers = serializer.NewRegistry()
	}
	return &TypeMapper{serializers: serializers}
}

func (m *TypeMapper) Resolve(t reflect.Type) (Mapping, error) {
	if t == nil {
		return Mapping{}, errors.Wrap(ErrUnmappedType, "nil type")
	}

	if s, ok := m.serializers.Lookup(t); ok {
		storage, ok := PrimitiveStorage(s.SerializedType())
		if !ok {
			return Mapping{}, errors.Wrapf(ErrUnmappedType, "serializer for %v produces %v", t, s.SerializedType())
		}
		return Mapping{Storage: storage, Kind: KindSerialized, Serializer: s}, nil
	}

	if storage, ok := PrimitiveStorage(t); ok {
		return Mapping{Storage: storage, Kind: KindPrimitive}, nil
	}
	if t.Kind() == reflect.Ptr {
		if storage, ok := PrimitiveStorage(t.Elem()); ok {
			return Mapping{Storage: storage, Kind: KindPrimitive, Nullable: true}, nil
		}
	}

	if IsEntityType(t) {
		return Mapping{Storage: StorageInteger, Kind: KindEntity, Nullable: true}, nil
	}

	if IsEnumType(t) {
		return Mapping{Storage: StorageText, Kind: KindEnum}, nil
	}

	return Mapping{}, errors.Wrapf(ErrUnmappedType, "type %v", t)
}

// QuoteLiteral 单引号字符串字面量，内部单引号转义
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// DefaultLiteral 按列的存储类型把默认值转换为 SQL 字面量，没有默认值时返回空串
//
// bool 字段写为 0/1，INTEGER 和 REAL 必须能解析为数字，TEXT 和 BLOB 加引号
func (c *ColumnInfo) DefaultLiteral() (string, error) {
	if c.Default == "" {
		return "", nil
	}
	value := strings.TrimSpace(c.Default)

	if c.valueType().Kind() == reflect.Bool {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", errors.Wrapf(ErrInvalidDefault, "column %s: [%s] is not a bool", c.Name, c.Default)
		}
		if b {
			return "1", nil
		}
		return "0", nil
	}

	switch c.Storage {
	case StorageInteger:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return "", errors.Wrapf(ErrInvalidDefault, "column %s: [%s] is not an integer", c.Name, c.Default)
		}
		return value, nil
	case StorageReal:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return "", errors.Wrapf(ErrInvalidDefault, "column %s: [%s] is not a real", c.Name, c.Default)
		}
		return value, nil
	}
	return QuoteLiteral(c.Default), nil
}

// valueType 实际写入数据库的 Go 类型
func (c *ColumnInfo) valueType() reflect.Type {
	t := c.Type
	if c.Serializer != nil {
		t = c.Serializer.SerializedType()
	}
	if t == nil {
		return reflect.TypeOf(int64(0))
	}
	if t.Kind() == reflect.Ptr && c.Kind == KindPrimitive {
		t = t.Elem()
	}
	return t
}
