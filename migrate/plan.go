package migrate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hatlonely/liteorm/ddl"
	"github.com/hatlonely/liteorm/schema"
)

// Strategy 单个表的迁移方式
type Strategy int

const (
	StrategyUnchanged Strategy = iota
	StrategyCreate
	StrategyIncremental
	StrategyRebuild
)

func (s Strategy) String() string {
	switch s {
	case StrategyUnchanged:
		return "unchanged"
	case StrategyCreate:
		return "create"
	case StrategyIncremental:
		return "incremental"
	case StrategyRebuild:
		return "rebuild"
	}
	return "unknown"
}

const tmpSuffix = "__migration_tmp"

// TablePlan 单个表的迁移语句
type TablePlan struct {
	Table    string
	Strategy Strategy
	// Reasons 选择重建的原因
	Reasons []string
	// Added 新增的列
	Added []string
	// Dropped 重建后丢弃的列，数据不保留
	Dropped []string
	// DroppedIndexes 模型中不再声明的索引
	DroppedIndexes []string
	Statements     []string
}

// Plan 一次迁移的完整计划
type Plan struct {
	From   int
	To     int
	Tables []*TablePlan
}

func (p *Plan) Statements() []string {
	var statements []string
	for _, t := range p.Tables {
		statements = append(statements, t.Statements...)
	}
	return statements
}

func (p *Plan) Table(name string) (*TablePlan, bool) {
	for _, t := range p.Tables {
		if t.Table == name {
			return t, true
		}
	}
	return nil, false
}

// Planner 比较模型定义和数据库中的表结构，决定增量添加列还是重建表
type Planner struct {
	generator *ddl.Generator
}

func NewPlanner(generator *ddl.Generator) *Planner {
	return &Planner{generator: generator}
}

// PlanTable live 为 nil 表示表不存在
func (p *Planner) PlanTable(info *schema.TableInfo, live *TableSchema) *TablePlan {
	tp := &TablePlan{Table: info.Name()}

	if live == nil {
		tp.Strategy = StrategyCreate
		tp.Statements = append([]string{p.generator.CreateTable(info)}, p.generator.CreateIndexes(info)...)
		return tp
	}

	tp.Reasons = append(tp.Reasons, p.primaryKeyDiff(info, live)...)

	var added []*schema.ColumnInfo
	for _, column := range info.Columns() {
		if column.IsPrimaryKey() {
			continue
		}
		existing, ok := live.Column(column.Name)
		if !ok {
			added = append(added, column)
			tp.Added = append(tp.Added, column.Name)
			if column.Unique {
				tp.Reasons = append(tp.Reasons, fmt.Sprintf("new unique column %s", column.Name))
			}
			if column.NotNull {
				if literal, err := column.DefaultLiteral(); err != nil || literal == "" {
					tp.Reasons = append(tp.Reasons, fmt.Sprintf("new not null column %s without default", column.Name))
				}
			}
			continue
		}
		if existing.NotNull != column.NotNull {
			tp.Reasons = append(tp.Reasons, fmt.Sprintf("not null changed on %s", column.Name))
		}
	}

	tp.Reasons = append(tp.Reasons, p.uniqueDiff(info, live)...)

	if len(tp.Reasons) > 0 {
		p.rebuild(tp, info, live)
		return tp
	}

	if len(added) > 0 {
		tp.Strategy = StrategyIncremental
		for _, column := range added {
			tp.Statements = append(tp.Statements, p.generator.AddColumn(info, column))
		}
	}
	if stale := p.staleIndexes(info, live); len(stale) > 0 {
		if tp.Strategy == StrategyUnchanged {
			tp.Strategy = StrategyIncremental
		}
		tp.DroppedIndexes = stale
		for _, name := range stale {
			tp.Statements = append(tp.Statements, ddl.DropIndex(name))
		}
	}
	tp.Statements = append(tp.Statements, p.generator.CreateIndexes(info)...)
	return tp
}

// staleIndexes 由模型生成（idx_<table>_ 前缀）但已不再声明或列发生变化的索引，其他索引不处理
func (p *Planner) staleIndexes(info *schema.TableInfo, live *TableSchema) []string {
	names, columns := p.generator.Indexes(info)
	desired := make(map[string]string, len(names))
	for _, name := range names {
		desired[strings.ToLower(name)] = strings.ToLower(strings.Join(columns[name], ", "))
	}

	prefix := strings.ToLower(ddl.IndexName(info.Name(), ""))
	var stale []string
	for _, idx := range live.Indexes {
		name := strings.ToLower(idx.Name)
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		want, ok := desired[name]
		if !ok || want != strings.ToLower(strings.Join(idx.Columns, ", ")) {
			stale = append(stale, idx.Name)
		}
	}
	return stale
}

func (p *Planner) primaryKeyDiff(info *schema.TableInfo, live *TableSchema) []string {
	var pks []string
	for _, c := range live.Columns {
		if c.PrimaryKey {
			pks = append(pks, c.Name)
		}
	}
	if len(pks) != 1 || !strings.EqualFold(pks[0], info.IDName()) {
		return []string{fmt.Sprintf("primary key changed from [%s] to [%s]", strings.Join(pks, ", "), info.IDName())}
	}
	return nil
}

// uniqueDiff 只比较完全由模型中的列组成的约束，涉及未管理列的约束不做处理
func (p *Planner) uniqueDiff(info *schema.TableInfo, live *TableSchema) []string {
	desired := map[string]bool{}
	for _, set := range p.generator.UniqueColumnSets(info) {
		desired[setKey(set)] = true
	}

	existing := map[string]bool{}
	for _, set := range live.UniqueSets {
		managed := true
		for _, name := range set {
			if !hasColumn(info, name) {
				managed = false
				break
			}
		}
		if managed {
			existing[setKey(set)] = true
		}
	}

	var reasons []string
	for _, key := range sortedKeys(desired) {
		if !existing[key] {
			reasons = append(reasons, fmt.Sprintf("new unique constraint (%s)", key))
		}
	}
	for _, key := range sortedKeys(existing) {
		if !desired[key] {
			reasons = append(reasons, fmt.Sprintf("removed unique constraint (%s)", key))
		}
	}
	return reasons
}

// rebuild 新建临时表，复制共有的列，删除旧表，重命名，重建索引
func (p *Planner) rebuild(tp *TablePlan, info *schema.TableInfo, live *TableSchema) {
	tp.Strategy = StrategyRebuild
	tmp := info.Name() + tmpSuffix

	var common []string
	for _, column := range info.Columns() {
		if _, ok := live.Column(column.Name); ok {
			common = append(common, column.Name)
		}
	}
	for _, c := range live.Columns {
		if !hasColumn(info, c.Name) {
			tp.Dropped = append(tp.Dropped, c.Name)
		}
	}

	tp.Statements = append(tp.Statements, p.generator.CreateTableAs(info, tmp))
	if len(common) > 0 {
		tp.Statements = append(tp.Statements, ddl.CopyRows(info.Name(), tmp, common))
	}
	tp.Statements = append(tp.Statements,
		ddl.DropTable(info.Name()),
		ddl.RenameTable(tmp, info.Name()),
	)
	tp.Statements = append(tp.Statements, p.generator.CreateIndexes(info)...)
}

// hasColumn 列名和 SQLite 一样不区分大小写
func hasColumn(info *schema.TableInfo, name string) bool {
	for _, column := range info.Columns() {
		if strings.EqualFold(column.Name, name) {
			return true
		}
	}
	return false
}

func setKey(columns []string) string {
	sorted := make([]string, 0, len(columns))
	for _, c := range columns {
		sorted = append(sorted, strings.ToLower(c))
	}
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
