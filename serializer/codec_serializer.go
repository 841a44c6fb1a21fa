package serializer

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson"
	"google.golang.org/protobuf/proto"
)

// CodecSerializer 用一对编解码函数把任意值存为 BLOB
type CodecSerializer[T any] struct {
	name      string
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

func (s *CodecSerializer[T]) Serialize(from T) ([]byte, error) {
	buf, err := s.marshal(from)
	return buf, errors.Wrapf(err, "%s marshal failed", s.name)
}

func (s *CodecSerializer[T]) Deserialize(to []byte) (T, error) {
	var result T
	err := s.unmarshal(to, &result)
	return result, errors.Wrapf(err, "%s unmarshal failed", s.name)
}

// NewMsgPackSerializer msgpack 编码
func NewMsgPackSerializer[T any]() *CodecSerializer[T] {
	return &CodecSerializer[T]{name: "msgpack", marshal: msgpack.Marshal, unmarshal: msgpack.Unmarshal}
}

// NewBSONSerializer bson 文档，T 需要是结构体或 map
func NewBSONSerializer[T any]() *CodecSerializer[T] {
	return &CodecSerializer[T]{name: "bson", marshal: bson.Marshal, unmarshal: bson.Unmarshal}
}

// JSONSerializer JSON 文本存为 TEXT，便于在 sqlite3 命令行中直接查看
type JSONSerializer[T any] struct{}

func NewJSONSerializer[T any]() *JSONSerializer[T] {
	return &JSONSerializer[T]{}
}

func (s *JSONSerializer[T]) Serialize(from T) (string, error) {
	buf, err := json.Marshal(from)
	return string(buf), errors.Wrap(err, "json marshal failed")
}

func (s *JSONSerializer[T]) Deserialize(to string) (T, error) {
	var result T
	err := json.Unmarshal([]byte(to), &result)
	return result, errors.Wrap(err, "json unmarshal failed")
}

// ProtobufSerializer T 为生成的消息指针类型
type ProtobufSerializer[T proto.Message] struct{}

func NewProtobufSerializer[T proto.Message]() *ProtobufSerializer[T] {
	return &ProtobufSerializer[T]{}
}

func (s *ProtobufSerializer[T]) Serialize(from T) ([]byte, error) {
	buf, err := proto.Marshal(from)
	return buf, errors.Wrap(err, "proto marshal failed")
}

func (s *ProtobufSerializer[T]) Deserialize(to []byte) (T, error) {
	var zero T
	// nil 指针的 ProtoReflect 仍然可以创建新消息
	result := zero.ProtoReflect().New().Interface().(T)
	if err := proto.Unmarshal(to, result); err != nil {
		return zero, errors.Wrap(err, "proto unmarshal failed")
	}
	return result, nil
}
