package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hatlonely/liteorm/ddl"
	"github.com/hatlonely/liteorm/log"
	"github.com/hatlonely/liteorm/schema"
)

var (
	ErrMigrationFailed  = errors.New("migration failed")
	ErrVersionDowngrade = errors.New("database version is newer than target version")
)

// MigrationError 迁移中第一条失败的语句，errors.Is(err, ErrMigrationFailed) 为 true
type MigrationError struct {
	Table     string
	Statement string
	Err       error
}

func (e *MigrationError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("migration failed: %v", e.Err)
	}
	return fmt.Sprintf("migration failed on table %s: %v", e.Table, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

func (e *MigrationError) Is(target error) bool {
	return target == ErrMigrationFailed
}

type Options struct {
	// Version 目标版本，数据库版本低于它时才迁移
	Version int
	// ForeignKeys 连接开启了外键约束，重建期间临时关闭，提交前检查
	ForeignKeys bool
	// ScriptDir 存放 <version>.sql 的目录
	ScriptDir string
	// SQLParser legacy 或 delimited
	SQLParser string

	Logger  log.Logger
	Metrics *Metrics
	// Tracing 为 true 时通过 otel 全局 TracerProvider 记录 span
	Tracing bool
}

// Migrator 在一个事务中完成所有表的迁移、迁移脚本和版本号更新，任何一步失败都整体回滚
type Migrator struct {
	version   int
	fk        bool
	scriptDir string
	parser    string
	generator *ddl.Generator
	planner   *Planner
	logger    log.Logger
	metrics   *Metrics
	tracer    trace.Tracer
}

func NewMigratorWithOptions(options *Options) (*Migrator, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if options.Version < 1 {
		return nil, errors.Errorf("invalid version %d", options.Version)
	}
	if _, err := SplitScript(options.SQLParser, ""); err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = log.Default()
	}
	generator := ddl.NewGeneratorWithOptions(&ddl.Options{ForeignKeys: options.ForeignKeys, Logger: logger})

	m := &Migrator{
		version:   options.Version,
		fk:        options.ForeignKeys,
		scriptDir: options.ScriptDir,
		parser:    options.SQLParser,
		generator: generator,
		planner:   NewPlanner(generator),
		logger:    logger.WithGroup("migrate"),
		metrics:   options.Metrics,
	}
	if options.Tracing {
		m.tracer = otel.Tracer("liteorm.migrate")
	}
	return m, nil
}

func (m *Migrator) Generator() *ddl.Generator {
	return m.generator
}

// Migrate 数据库版本等于目标版本时直接返回空计划
func (m *Migrator) Migrate(ctx context.Context, db *sql.DB, tables []*schema.TableInfo) (plan *Plan, err error) {
	start := time.Now()

	var span trace.Span
	if m.tracer != nil {
		ctx, span = m.tracer.Start(ctx, "migrate.Migrate",
			trace.WithAttributes(
				attribute.Int("version.target", m.version),
				attribute.Int("tables", len(tables)),
			),
		)
		defer func() {
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				span.RecordError(err)
			} else {
				span.SetStatus(codes.Ok, "")
			}
			span.End()
		}()
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "pin connection")
	}
	defer conn.Close()

	from, err := UserVersion(ctx, conn)
	if err != nil {
		return nil, err
	}
	plan = &Plan{From: from, To: m.version}
	if span != nil {
		span.SetAttributes(attribute.Int("version.from", from))
	}
	if from == m.version {
		return plan, nil
	}
	if from > m.version {
		return plan, errors.Wrapf(ErrVersionDowngrade, "database version %d, target %d", from, m.version)
	}

	if m.fk {
		// 事务中修改 foreign_keys 不生效，必须在 BEGIN 之前
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
			return plan, errors.Wrap(err, "disable foreign keys")
		}
		defer func() {
			if _, e := conn.ExecContext(context.Background(), "PRAGMA foreign_keys = ON"); e != nil {
				m.logger.Error("restore foreign keys failed", "error", e.Error())
			}
		}()
	}

	err = m.migrate(ctx, conn, plan, tables)

	if m.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		m.metrics.RunsCounter(status).Inc()
		m.metrics.duration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		m.logger.ErrorContext(ctx, "migration rolled back", "from", from, "to", m.version, "error", err.Error())
		return plan, err
	}

	if m.metrics != nil {
		for _, tp := range plan.Tables {
			m.metrics.TablesCounter(tp.Strategy).Inc()
		}
	}
	m.logger.InfoContext(ctx, "migration completed", "from", from, "to", m.version,
		"tables", len(plan.Tables), "duration_ms", time.Since(start).Milliseconds())
	return plan, nil
}

func (m *Migrator) migrate(ctx context.Context, conn *sql.Conn, plan *Plan, tables []*schema.TableInfo) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return &MigrationError{Err: errors.Wrap(err, "begin transaction")}
	}
	committed := false
	defer func() {
		if !committed {
			if e := tx.Rollback(); e != nil {
				m.logger.Error("rollback failed", "error", e.Error())
			}
		}
	}()

	for _, info := range tables {
		live, err := InspectTable(ctx, tx, info.Name())
		if err != nil {
			return &MigrationError{Table: info.Name(), Err: err}
		}
		tp := m.planner.PlanTable(info, live)
		plan.Tables = append(plan.Tables, tp)

		if err := m.execTable(ctx, tx, tp); err != nil {
			return err
		}
	}

	if err := m.execScripts(ctx, tx, plan.From); err != nil {
		return err
	}

	if err := SetUserVersion(ctx, tx, m.version); err != nil {
		return &MigrationError{Err: err}
	}

	if m.fk {
		n, err := ForeignKeyViolations(ctx, tx)
		if err != nil {
			return &MigrationError{Err: err}
		}
		if n > 0 {
			return &MigrationError{Err: errors.Errorf("%d rows violate foreign key constraints", n)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &MigrationError{Err: errors.Wrap(err, "commit")}
	}
	committed = true
	return nil
}

func (m *Migrator) execTable(ctx context.Context, tx *sql.Tx, tp *TablePlan) error {
	if m.tracer != nil {
		var span trace.Span
		ctx, span = m.tracer.Start(ctx, "migrate.Table",
			trace.WithAttributes(
				attribute.String("table", tp.Table),
				attribute.String("strategy", tp.Strategy.String()),
			),
		)
		defer span.End()
	}

	if tp.Strategy == StrategyRebuild {
		m.logger.WarnContext(ctx, "rebuild table", "table", tp.Table, "reasons", tp.Reasons, "dropped", tp.Dropped)
	} else if tp.Strategy != StrategyUnchanged {
		m.logger.InfoContext(ctx, "migrate table", "table", tp.Table, "strategy", tp.Strategy.String(), "added", tp.Added)
	}

	for _, stmt := range tp.Statements {
		m.logger.DebugContext(ctx, "exec", "table", tp.Table, "sql", stmt)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &MigrationError{Table: tp.Table, Statement: stmt, Err: err}
		}
	}
	return nil
}

func (m *Migrator) execScripts(ctx context.Context, tx *sql.Tx, from int) error {
	scripts, err := LoadScripts(m.scriptDir, from, m.version)
	if err != nil {
		return &MigrationError{Err: err}
	}
	for _, script := range scripts {
		content, err := os.ReadFile(script.Path)
		if err != nil {
			return &MigrationError{Err: errors.Wrapf(err, "read %s", script.Path)}
		}
		statements, err := SplitScript(m.parser, string(content))
		if err != nil {
			return &MigrationError{Err: err}
		}
		m.logger.InfoContext(ctx, "run migration script", "version", script.Version, "statements", len(statements))
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return &MigrationError{Statement: stmt, Err: errors.Wrapf(err, "script %d", script.Version)}
			}
		}
	}
	return nil
}
