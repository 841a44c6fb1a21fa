package orm

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hatlonely/liteorm/log"
	"github.com/hatlonely/liteorm/serializer"
)

type Options struct {
	// Dir 数据库文件所在目录，为空时使用当前目录
	Dir string `cfg:"dir"`
	// DatabaseName 模型未指定数据库时使用
	DatabaseName string `cfg:"databaseName" def:"application.db"`
	// Version 目标版本，数据库版本更低时自动迁移
	Version int `cfg:"version" def:"1" validate:"gte=1"`
	// CacheSize 身份缓存容量
	CacheSize int `cfg:"cacheSize" def:"1024" validate:"gte=1"`
	// DisableForeignKeys 关闭外键约束，建表时也不输出 REFERENCES
	DisableForeignKeys bool `cfg:"disableForeignKeys"`
	// SQLParser 迁移脚本解析器：legacy, delimited
	SQLParser string `cfg:"sqlParser" def:"legacy" validate:"oneof=legacy delimited"`
	// MigrationDir 存放 <version>.sql 迁移脚本的目录
	MigrationDir string `cfg:"migrationDir"`
	MaxConns     int    `cfg:"maxConns" def:"1" validate:"gte=1"`

	Logger *log.Options `cfg:"logger"`

	// Metrics 开启 prometheus 指标，MetricsName 作为指标名前缀
	Metrics     bool   `cfg:"metrics"`
	MetricsName string `cfg:"metricsName" def:"liteorm"`
	// Tracing 开启后迁移过程通过 otel 记录 span
	Tracing bool `cfg:"tracing"`

	// 以下只能在代码中设置
	Serializers []serializer.TypeSerializer `cfg:"-"`
	Registerer  prometheus.Registerer       `cfg:"-"`
	Log         log.Logger                  `cfg:"-"`
}
