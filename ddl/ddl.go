package ddl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hatlonely/liteorm/log"
	"github.com/hatlonely/liteorm/schema"
)

type Options struct {
	// ForeignKeys 为 true 时引用列输出 REFERENCES 子句
	ForeignKeys bool
	Logger      log.Logger
}

// Generator 把 TableInfo 渲染为 SQLite 的 DDL 语句，同一个 TableInfo 的输出总是相同
type Generator struct {
	foreignKeys bool
	logger      log.Logger
}

func NewGeneratorWithOptions(options *Options) *Generator {
	if options == nil {
		options = &Options{}
	}
	logger := options.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Generator{
		foreignKeys: options.ForeignKeys,
		logger:      logger,
	}
}

// CreateTable CREATE TABLE IF NOT EXISTS <table> (<columns>, <unique groups>);
func (g *Generator) CreateTable(info *schema.TableInfo) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", info.Name(), g.tableBody(info))
}

// CreateTableAs 以 name 为表名创建与 info 结构相同的表，重建迁移时用作临时表
func (g *Generator) CreateTableAs(info *schema.TableInfo, name string) string {
	return fmt.Sprintf("CREATE TABLE %s (%s);", name, g.tableBody(info))
}

func (g *Generator) tableBody(info *schema.TableInfo) string {
	var definitions []string
	for _, column := range info.Columns() {
		definitions = append(definitions, g.ColumnDefinition(info, column))
	}
	definitions = append(definitions, g.UniqueDefinitions(info)...)
	return strings.Join(definitions, ", ")
}

// ColumnDefinition 单个列的定义，顺序为 类型(长度) NOT NULL UNIQUE DEFAULT REFERENCES
func (g *Generator) ColumnDefinition(info *schema.TableInfo, column *schema.ColumnInfo) string {
	var b strings.Builder
	b.WriteString(column.Name)
	b.WriteString(" ")
	b.WriteString(string(column.Storage))

	if column.IsPrimaryKey() {
		b.WriteString(" PRIMARY KEY AUTOINCREMENT")
		return b.String()
	}

	if column.Length > 0 {
		b.WriteString("(")
		b.WriteString(strconv.Itoa(column.Length))
		b.WriteString(")")
	}
	if column.NotNull {
		b.WriteString(" NOT NULL ON CONFLICT ")
		b.WriteString(string(column.OnNullConflict))
	}
	if column.Unique {
		b.WriteString(" UNIQUE ON CONFLICT ")
		b.WriteString(string(column.OnUniqueConflict))
	}
	if literal := g.defaultLiteral(info, column); literal != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(literal)
	}
	if g.foreignKeys && column.IsReference() && column.References != "" {
		fmt.Fprintf(&b, " REFERENCES %s(%s) ON DELETE %s ON UPDATE %s",
			column.References, column.ReferencesID, column.OnDelete, column.OnUpdate)
	}

	return b.String()
}

// defaultLiteral 默认值无法转换时记录告警并且不输出 DEFAULT
func (g *Generator) defaultLiteral(info *schema.TableInfo, column *schema.ColumnInfo) string {
	literal, err := column.DefaultLiteral()
	if err != nil {
		g.logger.Warn("default value ignored", "table", info.Name(), "column", column.Name, "error", err.Error())
		return ""
	}
	return literal
}

type group struct {
	name    string
	columns []string
	action  schema.ConflictAction
}

// uniqueGroups 按首次出现的顺序收集唯一约束分组
func (g *Generator) uniqueGroups(info *schema.TableInfo) []*group {
	var groups []*group
	byName := map[string]*group{}
	for _, column := range info.Columns() {
		for _, ug := range column.UniqueGroups {
			grp, ok := byName[ug.Name]
			if !ok {
				grp = &group{name: ug.Name, action: ug.Action}
				byName[ug.Name] = grp
				groups = append(groups, grp)
			} else if grp.action != ug.Action {
				g.logger.Warn("conflicting unique group actions, keep the first",
					"table", info.Name(), "group", ug.Name, "keep", grp.action, "ignore", ug.Action)
			}
			grp.columns = append(grp.columns, column.Name)
		}
	}
	return groups
}

// UniqueDefinitions 每个分组输出一个 UNIQUE (<cols>) ON CONFLICT <action>
func (g *Generator) UniqueDefinitions(info *schema.TableInfo) []string {
	var definitions []string
	for _, grp := range g.uniqueGroups(info) {
		definitions = append(definitions, fmt.Sprintf("UNIQUE (%s) ON CONFLICT %s",
			strings.Join(grp.columns, ", "), grp.action))
	}
	return definitions
}

// UniqueColumnSets 表上所有唯一约束涵盖的列集合，单列 unique 也算一个
func (g *Generator) UniqueColumnSets(info *schema.TableInfo) [][]string {
	var sets [][]string
	for _, column := range info.Columns() {
		if column.Unique && !column.IsPrimaryKey() {
			sets = append(sets, []string{column.Name})
		}
	}
	for _, grp := range g.uniqueGroups(info) {
		sets = append(sets, grp.columns)
	}
	return sets
}

func IndexName(table, group string) string {
	return "idx_" + table + "_" + group
}

// CreateIndexes 每个索引分组一条语句，单独标记 index 的列以列名作为分组名
// Indexes 索引名到列的映射，names 按首次出现的顺序
func (g *Generator) Indexes(info *schema.TableInfo) (names []string, columns map[string][]string) {
	columns = map[string][]string{}
	add := func(group, column string) {
		name := IndexName(info.Name(), group)
		if _, ok := columns[name]; !ok {
			names = append(names, name)
		}
		columns[name] = append(columns[name], column)
	}
	for _, column := range info.Columns() {
		if column.IsPrimaryKey() {
			continue
		}
		if column.Index {
			add(column.Name, column.Name)
		}
		for _, group := range column.IndexGroups {
			add(group, column.Name)
		}
	}
	return names, columns
}

func (g *Generator) CreateIndexes(info *schema.TableInfo) []string {
	names, columns := g.Indexes(info)
	var statements []string
	for _, name := range names {
		statements = append(statements, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s);",
			name, info.Name(), strings.Join(columns[name], ", ")))
	}
	return statements
}

func (g *Generator) AddColumn(info *schema.TableInfo, column *schema.ColumnInfo) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", info.Name(), g.ColumnDefinition(info, column))
}

// CopyRows 把 columns 从 from 复制到 to
func CopyRows(from, to string, columns []string) string {
	cols := strings.Join(columns, ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s;", to, cols, cols, from)
}

func DropIndex(name string) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s;", name)
}

func DropTable(name string) string {
	return fmt.Sprintf("DROP TABLE %s;", name)
}

func RenameTable(from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", from, to)
}
