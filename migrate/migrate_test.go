package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/hatlonely/liteorm/log"
	"github.com/hatlonely/liteorm/schema"
)

type IncrementalModel struct {
	schema.Model
	TextValue  string   `orm:"textValue"`
	BoolValue  bool     `orm:"boolValue"`
	FloatValue float64  `orm:"floatValue"`
	NewString  string   `orm:"newString"`
	NewFloat   *float64 `orm:"newFloat"`
}

func (*IncrementalModel) Table() string { return "MigrationModel" }

type UniqueModel struct {
	schema.Model
	TextValue  string  `orm:"textValue,notNull,unique"`
	BoolValue  bool    `orm:"boolValue"`
	FloatValue float64 `orm:"floatValue"`
}

func (*UniqueModel) Table() string { return "MigrationModel" }

type DefaultModel struct {
	schema.Model
	TextValue    string  `orm:"textValue"`
	BoolValue    bool    `orm:"boolValue"`
	FloatValue   float64 `orm:"floatValue"`
	DefaultValue string  `orm:"defaultValue,default=some_value"`
}

func (*DefaultModel) Table() string { return "MigrationModel" }

type OwnerV1 struct {
	schema.Model
	Label string `orm:"label"`
}

func (*OwnerV1) Table() string { return "Owner" }

type PetV1 struct {
	schema.Model
	Name  string   `orm:"name"`
	Owner *OwnerV1 `orm:"owner,onDelete=cascade"`
}

func (*PetV1) Table() string { return "Pet" }

type OwnerV2 struct {
	schema.Model
	Label string `orm:"label,notNull,unique"`
}

func (*OwnerV2) Table() string { return "Owner" }

type PetV2 struct {
	schema.Model
	Name  string   `orm:"name"`
	Owner *OwnerV2 `orm:"owner,onDelete=cascade"`
}

func (*PetV2) Table() string { return "Pet" }

const rowCount = 10

func openDB(dir string) *sql.DB {
	db, err := sql.Open("sqlite3", filepath.Join(dir, "migrate.db")+"?_foreign_keys=1")
	So(err, ShouldBeNil)
	db.SetMaxOpenConns(1)
	return db
}

// seed 版本 1 的 MigrationModel 表，带一个模型中不存在的列
func seed(db *sql.DB) {
	_, err := db.Exec("CREATE TABLE MigrationModel (Id INTEGER PRIMARY KEY AUTOINCREMENT, textValue TEXT, boolValue INTEGER, floatValue REAL, unusedColumn TEXT)")
	So(err, ShouldBeNil)
	for i := 0; i < rowCount; i++ {
		_, err := db.Exec("INSERT INTO MigrationModel (textValue, boolValue, floatValue, unusedColumn) VALUES (?, ?, ?, ?)",
			fmt.Sprintf("Text %d", i), i%2 == 0, float64(i), fmt.Sprintf("unused %d", i))
		So(err, ShouldBeNil)
	}
	_, err = db.Exec("PRAGMA user_version = 1")
	So(err, ShouldBeNil)
}

func tables(defs ...*schema.Definition) []*schema.TableInfo {
	r, err := schema.NewRegistryWithOptions(&schema.RegistryOptions{Logger: log.Discard()}, defs...)
	So(err, ShouldBeNil)
	return r.Tables()
}

func newMigrator(options *Options) *Migrator {
	if options.Logger == nil {
		options.Logger = log.Discard()
	}
	m, err := NewMigratorWithOptions(options)
	So(err, ShouldBeNil)
	return m
}

func inspect(db *sql.DB, table string) *TableSchema {
	ts, err := InspectTable(context.Background(), db, table)
	So(err, ShouldBeNil)
	return ts
}

func version(db *sql.DB) int {
	v, err := UserVersion(context.Background(), db)
	So(err, ShouldBeNil)
	return v
}

func assertOriginalRows(db *sql.DB) {
	rows, err := db.Query("SELECT textValue, boolValue, floatValue FROM MigrationModel ORDER BY Id")
	So(err, ShouldBeNil)
	defer rows.Close()
	i := 0
	for rows.Next() {
		var text string
		var b bool
		var f float64
		So(rows.Scan(&text, &b, &f), ShouldBeNil)
		So(text, ShouldEqual, fmt.Sprintf("Text %d", i))
		So(b, ShouldEqual, i%2 == 0)
		So(f, ShouldEqual, float64(i))
		i++
	}
	So(rows.Err(), ShouldBeNil)
	So(i, ShouldEqual, rowCount)
}

func TestMigrateScenarios(t *testing.T) {
	Convey("自动迁移", t, func() {
		db := openDB(t.TempDir())
		defer db.Close()
		seed(db)
		ctx := context.Background()

		Convey("增量添加列，保留未管理的列", func() {
			registry := prometheus.NewRegistry()
			metrics := NewMetrics("test", registry)
			m := newMigrator(&Options{Version: 2, ForeignKeys: true, Metrics: metrics})

			plan, err := m.Migrate(ctx, db, tables(schema.MustDefine[IncrementalModel]()))
			So(err, ShouldBeNil)
			So(plan.From, ShouldEqual, 1)
			So(plan.To, ShouldEqual, 2)
			tp, ok := plan.Table("MigrationModel")
			So(ok, ShouldBeTrue)
			So(tp.Strategy, ShouldEqual, StrategyIncremental)
			So(tp.Added, ShouldResemble, []string{"newString", "newFloat"})
			So(tp.Statements, ShouldResemble, []string{
				"ALTER TABLE MigrationModel ADD COLUMN newString TEXT;",
				"ALTER TABLE MigrationModel ADD COLUMN newFloat REAL;",
			})

			So(version(db), ShouldEqual, 2)
			assertOriginalRows(db)

			ts := inspect(db, "MigrationModel")
			_, ok = ts.Column("unusedColumn")
			So(ok, ShouldBeTrue)

			var nulls int
			So(db.QueryRow("SELECT COUNT(*) FROM MigrationModel WHERE newString IS NULL AND newFloat IS NULL").Scan(&nulls), ShouldBeNil)
			So(nulls, ShouldEqual, rowCount)

			So(testutil.ToFloat64(metrics.TablesCounter(StrategyIncremental)), ShouldEqual, 1)
			So(testutil.ToFloat64(metrics.RunsCounter("success")), ShouldEqual, 1)
		})

		Convey("新增唯一非空约束时重建表，丢弃未管理的列", func() {
			m := newMigrator(&Options{Version: 2, ForeignKeys: true})

			plan, err := m.Migrate(ctx, db, tables(schema.MustDefine[UniqueModel]()))
			So(err, ShouldBeNil)
			tp, _ := plan.Table("MigrationModel")
			So(tp.Strategy, ShouldEqual, StrategyRebuild)
			So(tp.Dropped, ShouldResemble, []string{"unusedColumn"})
			So(tp.Statements[0], ShouldStartWith, "CREATE TABLE MigrationModel__migration_tmp (")
			So(tp.Statements[1], ShouldEqual, "INSERT INTO MigrationModel__migration_tmp (Id, textValue, boolValue, floatValue) SELECT Id, textValue, boolValue, floatValue FROM MigrationModel;")

			So(version(db), ShouldEqual, 2)
			assertOriginalRows(db)

			ts := inspect(db, "MigrationModel")
			_, ok := ts.Column("unusedColumn")
			So(ok, ShouldBeFalse)
			So(ts.UniqueSets, ShouldResemble, [][]string{{"textValue"}})
			c, _ := ts.Column("textValue")
			So(c.NotNull, ShouldBeTrue)
			So(inspect(db, "MigrationModel__migration_tmp"), ShouldBeNil)

			_, err = db.Exec("INSERT INTO MigrationModel (textValue) VALUES ('Text 1')")
			So(err, ShouldNotBeNil)
		})

		Convey("新增带默认值的列，旧数据回填默认值", func() {
			m := newMigrator(&Options{Version: 2})

			plan, err := m.Migrate(ctx, db, tables(schema.MustDefine[DefaultModel]()))
			So(err, ShouldBeNil)
			tp, _ := plan.Table("MigrationModel")
			So(tp.Strategy, ShouldEqual, StrategyIncremental)
			So(tp.Statements, ShouldResemble, []string{"ALTER TABLE MigrationModel ADD COLUMN defaultValue TEXT DEFAULT 'some_value';"})

			assertOriginalRows(db)
			var n int
			So(db.QueryRow("SELECT COUNT(*) FROM MigrationModel WHERE defaultValue = 'some_value'").Scan(&n), ShouldBeNil)
			So(n, ShouldEqual, rowCount)
			_, ok := inspect(db, "MigrationModel").Column("unusedColumn")
			So(ok, ShouldBeTrue)
		})

		Convey("重建失败时整体回滚，版本号不变", func() {
			_, err := db.Exec("UPDATE MigrationModel SET textValue = 'dup' WHERE Id <= 2")
			So(err, ShouldBeNil)

			registry := prometheus.NewRegistry()
			metrics := NewMetrics("test", registry)
			m := newMigrator(&Options{Version: 2, ForeignKeys: true, Metrics: metrics})
			_, err = m.Migrate(ctx, db, tables(schema.MustDefine[UniqueModel]()))
			So(errors.Is(err, ErrMigrationFailed), ShouldBeTrue)
			var me *MigrationError
			So(errors.As(err, &me), ShouldBeTrue)
			So(me.Table, ShouldEqual, "MigrationModel")
			So(me.Statement, ShouldStartWith, "INSERT INTO MigrationModel__migration_tmp")

			So(version(db), ShouldEqual, 1)
			ts := inspect(db, "MigrationModel")
			_, ok := ts.Column("unusedColumn")
			So(ok, ShouldBeTrue)
			So(ts.UniqueSets, ShouldBeEmpty)
			So(inspect(db, "MigrationModel__migration_tmp"), ShouldBeNil)

			var n int
			So(db.QueryRow("SELECT COUNT(*) FROM MigrationModel").Scan(&n), ShouldBeNil)
			So(n, ShouldEqual, rowCount)
			So(testutil.ToFloat64(metrics.RunsCounter("error")), ShouldEqual, 1)
		})

		Convey("版本相同时不迁移", func() {
			m := newMigrator(&Options{Version: 1})
			plan, err := m.Migrate(ctx, db, tables(schema.MustDefine[IncrementalModel]()))
			So(err, ShouldBeNil)
			So(plan.Tables, ShouldBeEmpty)
			_, ok := inspect(db, "MigrationModel").Column("newString")
			So(ok, ShouldBeFalse)
		})

		Convey("数据库版本高于目标版本", func() {
			_, err := db.Exec("PRAGMA user_version = 3")
			So(err, ShouldBeNil)
			m := newMigrator(&Options{Version: 2})
			_, err = m.Migrate(ctx, db, tables(schema.MustDefine[IncrementalModel]()))
			So(errors.Is(err, ErrVersionDowngrade), ShouldBeTrue)
		})

		Convey("迁移脚本", func() {
			dir := filepath.Join(t.TempDir(), "migrations")
			So(os.MkdirAll(dir, 0755), ShouldBeNil)
			So(os.WriteFile(filepath.Join(dir, "1.sql"), []byte("DELETE FROM MigrationModel;"), 0644), ShouldBeNil)
			So(os.WriteFile(filepath.Join(dir, "2.sql"), []byte(
				"INSERT INTO MigrationModel (textValue) VALUES ('from;script');\n"+
					"-- 注释\n"+
					"UPDATE MigrationModel SET newString = 'updated' WHERE textValue = 'Text 0';\n"), 0644), ShouldBeNil)
			So(os.WriteFile(filepath.Join(dir, "3.sql"), []byte("DELETE FROM MigrationModel;"), 0644), ShouldBeNil)

			Convey("在表迁移之后执行版本区间内的脚本", func() {
				m := newMigrator(&Options{Version: 2, ScriptDir: dir, SQLParser: ParserDelimited})
				_, err := m.Migrate(ctx, db, tables(schema.MustDefine[IncrementalModel]()))
				So(err, ShouldBeNil)

				var n int
				So(db.QueryRow("SELECT COUNT(*) FROM MigrationModel").Scan(&n), ShouldBeNil)
				So(n, ShouldEqual, rowCount+1)
				var s string
				So(db.QueryRow("SELECT newString FROM MigrationModel WHERE textValue = 'Text 0'").Scan(&s), ShouldBeNil)
				So(s, ShouldEqual, "updated")
			})

			Convey("脚本失败时表迁移也回滚", func() {
				So(os.WriteFile(filepath.Join(dir, "2.sql"), []byte("INSERT INTO nope VALUES (1);"), 0644), ShouldBeNil)
				m := newMigrator(&Options{Version: 2, ScriptDir: dir})
				_, err := m.Migrate(ctx, db, tables(schema.MustDefine[IncrementalModel]()))
				So(errors.Is(err, ErrMigrationFailed), ShouldBeTrue)
				So(version(db), ShouldEqual, 1)
				_, ok := inspect(db, "MigrationModel").Column("newString")
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestMigrateCreateAndForeignKeys(t *testing.T) {
	Convey("新库建表，重建被引用的表时保留引用方数据", t, func() {
		db := openDB(t.TempDir())
		defer db.Close()
		ctx := context.Background()

		m1 := newMigrator(&Options{Version: 1, ForeignKeys: true})
		plan, err := m1.Migrate(ctx, db, tables(schema.MustDefine[OwnerV1](), schema.MustDefine[PetV1]()))
		So(err, ShouldBeNil)
		So(plan.From, ShouldEqual, 0)
		for _, tp := range plan.Tables {
			So(tp.Strategy, ShouldEqual, StrategyCreate)
		}
		So(version(db), ShouldEqual, 1)

		_, err = db.Exec("INSERT INTO Owner (label) VALUES ('alice')")
		So(err, ShouldBeNil)
		_, err = db.Exec("INSERT INTO Pet (name, owner) VALUES ('tom', 1)")
		So(err, ShouldBeNil)
		_, err = db.Exec("INSERT INTO Pet (name, owner) VALUES ('ghost', 42)")
		So(err, ShouldNotBeNil)

		m2 := newMigrator(&Options{Version: 2, ForeignKeys: true})
		plan, err = m2.Migrate(ctx, db, tables(schema.MustDefine[OwnerV2](), schema.MustDefine[PetV2]()))
		So(err, ShouldBeNil)
		owner, _ := plan.Table("Owner")
		So(owner.Strategy, ShouldEqual, StrategyRebuild)
		pet, _ := plan.Table("Pet")
		So(pet.Strategy, ShouldEqual, StrategyUnchanged)

		var n int
		So(db.QueryRow("SELECT COUNT(*) FROM Pet WHERE owner = 1").Scan(&n), ShouldBeNil)
		So(n, ShouldEqual, 1)

		_, err = db.Exec("DELETE FROM Owner")
		So(err, ShouldBeNil)
		So(db.QueryRow("SELECT COUNT(*) FROM Pet").Scan(&n), ShouldBeNil)
		So(n, ShouldEqual, 0)
	})
}

func TestInspectTable(t *testing.T) {
	Convey("读取表结构", t, func() {
		db := openDB(t.TempDir())
		defer db.Close()

		_, err := db.Exec("CREATE TABLE t (Id INTEGER PRIMARY KEY AUTOINCREMENT, a TEXT NOT NULL DEFAULT 'x', b INTEGER, c TEXT UNIQUE, UNIQUE (a, b))")
		So(err, ShouldBeNil)
		_, err = db.Exec("CREATE UNIQUE INDEX idx_t_b ON t(b)")
		So(err, ShouldBeNil)

		ts := inspect(db, "t")
		So(ts.ColumnNames(), ShouldResemble, []string{"Id", "a", "b", "c"})
		id, _ := ts.Column("id")
		So(id.PrimaryKey, ShouldBeTrue)
		a, _ := ts.Column("a")
		So(a.NotNull, ShouldBeTrue)
		So(a.Default.String, ShouldEqual, "'x'")
		var sets []string
		for _, set := range ts.UniqueSets {
			sets = append(sets, strings.Join(set, ","))
		}
		sort.Strings(sets)
		So(sets, ShouldResemble, []string{"a,b", "c"})
		So(ts.Indexes, ShouldResemble, []IndexSchema{{Name: "idx_t_b", Columns: []string{"b"}}})

		So(inspect(db, "missing"), ShouldBeNil)
	})
}
