package serializer

import (
	"reflect"

	"github.com/pkg/errors"
)

var ErrUnexpectedType = errors.New("unexpected value type")

// Serializer 类型安全的序列化器，F 为字段类型，T 为存储类型
//
// T 只能是 int64, float64, string, []byte 之一，对应 INTEGER/REAL/TEXT/BLOB
type Serializer[F, T any] interface {
	Serialize(from F) (T, error)
	Deserialize(to T) (F, error)
}

// TypeSerializer 类型擦除后的序列化器，schema 在构建阶段按字段类型查找并缓存
type TypeSerializer interface {
	// DeserializedType 模型字段的类型
	DeserializedType() reflect.Type
	// SerializedType 写入数据库的类型
	SerializedType() reflect.Type
	Serialize(value any) (any, error)
	Deserialize(value any) (any, error)
}

type typeSerializer[F, T any] struct {
	s Serializer[F, T]
}

// Adapt 把 Serializer[F, T] 包装为 TypeSerializer
func Adapt[F, T any](s Serializer[F, T]) TypeSerializer {
	return &typeSerializer[F, T]{s: s}
}

func (a *typeSerializer[F, T]) DeserializedType() reflect.Type {
	return reflect.TypeOf((*F)(nil)).Elem()
}

func (a *typeSerializer[F, T]) SerializedType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (a *typeSerializer[F, T]) Serialize(value any) (any, error) {
	from, ok := value.(F)
	if !ok {
		return nil, errors.Wrapf(ErrUnexpectedType, "want %v, got %T", a.DeserializedType(), value)
	}
	return a.s.Serialize(from)
}

func (a *typeSerializer[F, T]) Deserialize(value any) (any, error) {
	to, err := convertTo[T](value)
	if err != nil {
		return nil, err
	}
	return a.s.Deserialize(to)
}

// convertTo 数据库驱动返回的值与声明的存储类型不完全一致，比如 TEXT 可能以 []byte 返回
func convertTo[T any](value any) (T, error) {
	var zero T
	if v, ok := value.(T); ok {
		return v, nil
	}

	rv := reflect.ValueOf(value)
	tt := reflect.TypeOf((*T)(nil)).Elem()
	if !rv.IsValid() {
		return zero, errors.Wrapf(ErrUnexpectedType, "want %v, got nil", tt)
	}

	numeric := func(k reflect.Kind) bool {
		return k >= reflect.Int && k <= reflect.Float64
	}
	switch {
	case rv.Kind() == reflect.String && tt.Kind() == reflect.Slice && tt.Elem().Kind() == reflect.Uint8,
		rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 && tt.Kind() == reflect.String,
		numeric(rv.Kind()) && numeric(tt.Kind()):
		return rv.Convert(tt).Interface().(T), nil
	}

	return zero, errors.Wrapf(ErrUnexpectedType, "want %v, got %T", tt, value)
}
