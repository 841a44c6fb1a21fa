package orm

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/hatlonely/liteorm/cache"
	"github.com/hatlonely/liteorm/config"
	"github.com/hatlonely/liteorm/log"
	"github.com/hatlonely/liteorm/migrate"
	"github.com/hatlonely/liteorm/schema"
)

var (
	ErrNotInitialized = errors.New("engine not initialized")
	ErrUnknownModel   = errors.New("model not registered")
	ErrRecordNotFound = errors.New("record not found")
	ErrNoConstructor  = schema.ErrNoConstructor
)

// Engine 持有模型元数据、身份缓存和按名字打开的数据库连接
//
// 所有对这些共享状态的读写都通过同一把锁串行化，SQL 的执行不在锁内
type Engine struct {
	mu sync.Mutex

	options     *Options
	definitions []*schema.Definition
	logger      log.Logger

	cacheMetrics   *cache.Metrics
	migrateMetrics *migrate.Metrics

	initialized bool
	registry    *schema.Registry
	cache       *cache.IdentityCache
	migrator    *migrate.Migrator
	databases   map[string]*sql.DB
}

func NewEngineWithOptions(options *Options, definitions ...*schema.Definition) (*Engine, error) {
	if options == nil {
		options = &Options{}
	}
	if err := config.Prepare(options); err != nil {
		return nil, errors.WithMessage(err, "invalid options")
	}

	logger := options.Log
	if logger == nil {
		var err error
		logger, err = log.NewLogWithOptions(options.Logger)
		if err != nil {
			return nil, errors.WithMessage(err, "log.NewLogWithOptions failed")
		}
	}

	e := &Engine{
		options:     options,
		definitions: definitions,
		logger:      logger,
	}
	if options.Metrics {
		e.cacheMetrics = cache.NewMetrics(options.MetricsName, options.Registerer)
		e.migrateMetrics = migrate.NewMetrics(options.MetricsName, options.Registerer)
	}

	if err := e.Initialize(); err != nil {
		return nil, err
	}
	return e, nil
}

// Initialize 构建模型元数据和缓存，已初始化时什么也不做
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		e.logger.Info("engine already initialized")
		return nil
	}

	registry, err := schema.NewRegistryWithOptions(&schema.RegistryOptions{
		DefaultDatabase: e.options.DatabaseName,
		Serializers:     e.options.Serializers,
		Logger:          e.logger,
	}, e.definitions...)
	if err != nil {
		return errors.WithMessage(err, "build schema registry failed")
	}

	identityCache, err := cache.NewIdentityCacheWithOptions(&cache.Options{
		Capacity: e.options.CacheSize,
		Metrics:  e.cacheMetrics,
	})
	if err != nil {
		return err
	}

	migrator, err := migrate.NewMigratorWithOptions(&migrate.Options{
		Version:     e.options.Version,
		ForeignKeys: !e.options.DisableForeignKeys,
		ScriptDir:   e.options.MigrationDir,
		SQLParser:   e.options.SQLParser,
		Logger:      e.logger,
		Metrics:     e.migrateMetrics,
		Tracing:     e.options.Tracing,
	})
	if err != nil {
		return err
	}

	e.registry = registry
	e.cache = identityCache
	e.migrator = migrator
	e.databases = map[string]*sql.DB{}
	e.initialized = true

	e.logger.Info("engine initialized", "tables", len(registry.Tables()), "version", e.options.Version)
	return nil
}

func (e *Engine) IsInitialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// Clear 清空身份缓存，不关闭数据库
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cache != nil {
		e.cache.Clear()
	}
}

// Dispose 关闭所有数据库，释放元数据和缓存，之后需要重新 Initialize
func (e *Engine) Dispose() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for name, db := range e.databases {
		if err := db.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "close %s", name))
		}
	}

	e.databases = nil
	e.registry = nil
	e.cache = nil
	e.migrator = nil
	e.initialized = false

	e.logger.Info("engine disposed")
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// OpenDatabase 第一次打开时创建连接并执行迁移，之后返回同一个 *sql.DB
func (e *Engine) OpenDatabase(ctx context.Context, name string) (*sql.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	if db, ok := e.databases[name]; ok {
		return db, nil
	}

	if e.options.Dir != "" {
		if err := os.MkdirAll(e.options.Dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "create dir %s", e.options.Dir)
		}
	}
	fk := 1
	if e.options.DisableForeignKeys {
		fk = 0
	}
	dsn := fmt.Sprintf("%s?_foreign_keys=%d", filepath.Join(e.options.Dir, name), fk)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "sql.Open failed, database [%s]", name)
	}
	db.SetMaxOpenConns(e.options.MaxConns)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping database [%s]", name)
	}

	if _, err := e.migrator.Migrate(ctx, db, e.registry.TablesOf(name)); err != nil {
		_ = db.Close()
		return nil, errors.WithMessagef(err, "migrate database [%s]", name)
	}

	e.databases[name] = db
	return db, nil
}

func (e *Engine) CloseDatabase(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	db, ok := e.databases[name]
	if !ok {
		return nil
	}
	delete(e.databases, name)
	return errors.Wrapf(db.Close(), "close database [%s]", name)
}

// TableInfo t 为模型结构体类型或其指针类型
func (e *Engine) TableInfo(t reflect.Type) (*schema.TableInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tableInfo(t)
}

func (e *Engine) tableInfo(t reflect.Type) (*schema.TableInfo, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	info, ok := e.registry.Table(t)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownModel, "%v", t)
	}
	return info, nil
}

func (e *Engine) TableInfos() []*schema.TableInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil
	}
	return e.registry.Tables()
}

func (e *Engine) tableOf(entity schema.Entity) (*schema.TableInfo, error) {
	if entity == nil {
		return nil, errors.Wrap(ErrUnknownModel, "nil entity")
	}
	return e.TableInfo(reflect.TypeOf(entity))
}

// GetEntity 从身份缓存中查找
func (e *Engine) GetEntity(table string, id int64) (schema.Entity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil, false
	}
	return e.cache.Get(table, id)
}

// getOrCreate 查找和新建注册在同一个锁内完成，并发处理同一行时只会创建一个实例
func (e *Engine) getOrCreate(info *schema.TableInfo, id int64) (schema.Entity, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil, false, ErrNotInitialized
	}
	if entity, ok := e.cache.Get(info.Name(), id); ok {
		return entity, true, nil
	}
	entity, err := info.New()
	if err != nil {
		return nil, false, err
	}
	entity.SetID(id)
	e.cache.Put(info.Name(), entity)
	return entity, false, nil
}

func (e *Engine) AddEntity(entity schema.Entity) error {
	info, err := e.tableOf(entity)
	if err != nil {
		return err
	}
	e.addEntity(info, entity)
	return nil
}

func (e *Engine) addEntity(info *schema.TableInfo, entity schema.Entity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		e.cache.Put(info.Name(), entity)
	}
}

func (e *Engine) RemoveEntity(entity schema.Entity) error {
	info, err := e.tableOf(entity)
	if err != nil {
		return err
	}
	e.removeEntity(info, entity.GetID())
	return nil
}

func (e *Engine) removeEntity(info *schema.TableInfo, id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		e.cache.RemoveID(info.Name(), id)
	}
}

func (e *Engine) Logger() log.Logger {
	return e.logger
}
