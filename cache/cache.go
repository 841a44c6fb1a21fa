package cache

import (
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hatlonely/liteorm/schema"
)

var ErrInvalidCapacity = errors.New("invalid cache capacity")

const DefaultCapacity = 1024

type Options struct {
	Capacity int `cfg:"capacity" def:"1024" validate:"gte=1"`
	// Metrics 为 nil 时不统计
	Metrics *Metrics `cfg:"-"`
}

// IdentityCache 按 (表名, id) 缓存实体，保证同一行在缓存中只有一个实例，容量满时淘汰最久未访问的
type IdentityCache struct {
	lru     *lru.Cache[string, schema.Entity]
	metrics *Metrics
}

func NewIdentityCacheWithOptions(options *Options) (*IdentityCache, error) {
	capacity := DefaultCapacity
	var metrics *Metrics
	if options != nil {
		capacity = options.Capacity
		metrics = options.Metrics
	}
	if capacity <= 0 {
		return nil, errors.Wrapf(ErrInvalidCapacity, "capacity %d", capacity)
	}

	l, err := lru.New[string, schema.Entity](capacity)
	if err != nil {
		return nil, errors.Wrap(err, "lru.New failed")
	}
	return &IdentityCache{lru: l, metrics: metrics}, nil
}

// Key 缓存键，形如 Item@42
func Key(table string, id int64) string {
	return table + "@" + strconv.FormatInt(id, 10)
}

func (c *IdentityCache) Get(table string, id int64) (schema.Entity, bool) {
	e, ok := c.lru.Get(Key(table, id))
	if c.metrics != nil {
		if ok {
			c.metrics.hits.Inc()
		} else {
			c.metrics.misses.Inc()
		}
	}
	return e, ok
}

// Put id 为 0 的实体还没有保存，不缓存
func (c *IdentityCache) Put(table string, e schema.Entity) {
	if e == nil || e.GetID() == 0 {
		return
	}
	evicted := c.lru.Add(Key(table, e.GetID()), e)
	if evicted && c.metrics != nil {
		c.metrics.evictions.Inc()
	}
}

func (c *IdentityCache) Remove(table string, e schema.Entity) {
	if e == nil {
		return
	}
	c.RemoveID(table, e.GetID())
}

func (c *IdentityCache) RemoveID(table string, id int64) {
	c.lru.Remove(Key(table, id))
}

// Clear 清空缓存，不关闭任何数据库
func (c *IdentityCache) Clear() {
	c.lru.Purge()
}

func (c *IdentityCache) Len() int {
	return c.lru.Len()
}

// Metrics 缓存命中情况
type Metrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
}

// NewMetrics registerer 为 nil 时注册到默认 registry
func NewMetrics(name string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: name + "_identity_cache_hits_total",
			Help: "Total number of identity cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: name + "_identity_cache_misses_total",
			Help: "Total number of identity cache misses",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: name + "_identity_cache_evictions_total",
			Help: "Total number of entities evicted by capacity",
		}),
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	registerer.MustRegister(m.hits, m.misses, m.evictions)
	return m
}

func (m *Metrics) Hits() prometheus.Counter      { return m.hits }
func (m *Metrics) Misses() prometheus.Counter    { return m.misses }
func (m *Metrics) Evictions() prometheus.Counter { return m.evictions }
