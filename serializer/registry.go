package serializer

import (
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry 字段类型到序列化器的映射
type Registry struct {
	mu          sync.RWMutex
	serializers map[reflect.Type]TypeSerializer
}

// NewRegistry 创建注册表，内置序列化器先注册，参数中同类型的序列化器会覆盖内置的
func NewRegistry(serializers ...TypeSerializer) *Registry {
	r := &Registry{
		serializers: make(map[reflect.Type]TypeSerializer),
	}
	for _, s := range Builtins() {
		r.Register(s)
	}
	for _, s := range serializers {
		r.Register(s)
	}
	return r
}

func (r *Registry) Register(s TypeSerializer) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serializers[s.DeserializedType()] = s
}

func (r *Registry) Lookup(t reflect.Type) (TypeSerializer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.serializers[t]
	return s, ok
}

// Builtins 内置的序列化器
func Builtins() []TypeSerializer {
	return []TypeSerializer{
		Adapt[time.Time, int64](NewTimeSerializer()),
		Adapt[time.Duration, int64](NewDurationSerializer()),
		Adapt[uuid.UUID, string](NewUUIDSerializer()),
	}
}
