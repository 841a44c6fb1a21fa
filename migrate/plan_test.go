package migrate

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hatlonely/liteorm/ddl"
	"github.com/hatlonely/liteorm/log"
	"github.com/hatlonely/liteorm/schema"
)

type IndexedV1 struct {
	schema.Model
	Code string `orm:"code,indexGroups=lookup"`
	Kind int64  `orm:"kind,indexGroups=lookup"`
	Name string `orm:"name,index"`
}

func (*IndexedV1) Table() string { return "Indexed" }

type IndexedV2 struct {
	schema.Model
	Code string `orm:"code,indexGroups=lookup"`
	Kind int64  `orm:"kind"`
	Name string `orm:"name"`
}

func (*IndexedV2) Table() string { return "Indexed" }

func TestPlanColumnCase(t *testing.T) {
	Convey("列名大小写不同视为同一列", t, func() {
		planner := NewPlanner(ddl.NewGeneratorWithOptions(&ddl.Options{Logger: log.Discard()}))
		info := tables(schema.MustDefine[UniqueModel]())[0]

		live := &TableSchema{
			Name: "MigrationModel",
			Columns: []ColumnSchema{
				{Name: "Id", Type: "INTEGER", PrimaryKey: true},
				{Name: "TextValue", Type: "TEXT", NotNull: true},
				{Name: "BoolValue", Type: "INTEGER"},
				{Name: "FloatValue", Type: "REAL"},
			},
			UniqueSets: [][]string{{"TextValue"}},
		}

		Convey("约束一致时不重建", func() {
			tp := planner.PlanTable(info, live)
			So(tp.Strategy, ShouldEqual, StrategyUnchanged)
			So(tp.Reasons, ShouldBeEmpty)
			So(tp.Added, ShouldBeEmpty)
		})

		Convey("重建时不把已有的列算作丢弃", func() {
			live.Columns[1].NotNull = false
			live.Columns = append(live.Columns, ColumnSchema{Name: "unusedColumn", Type: "TEXT"})
			tp := planner.PlanTable(info, live)
			So(tp.Strategy, ShouldEqual, StrategyRebuild)
			So(tp.Dropped, ShouldResemble, []string{"unusedColumn"})
		})
	})
}

func TestPlanStaleIndexes(t *testing.T) {
	Convey("模型中去掉的索引在迁移时删除", t, func() {
		ctx := context.Background()
		db := openDB(t.TempDir())
		defer db.Close()

		_, err := newMigrator(&Options{Version: 1}).Migrate(ctx, db, tables(schema.MustDefine[IndexedV1]()))
		So(err, ShouldBeNil)
		_, err = db.Exec("CREATE INDEX custom_kind ON Indexed(kind)")
		So(err, ShouldBeNil)

		before := inspect(db, "Indexed")
		So(before.Indexes, ShouldResemble, []IndexSchema{
			{Name: "custom_kind", Columns: []string{"kind"}},
			{Name: "idx_Indexed_lookup", Columns: []string{"code", "kind"}},
			{Name: "idx_Indexed_name", Columns: []string{"name"}},
		})

		plan, err := newMigrator(&Options{Version: 2}).Migrate(ctx, db, tables(schema.MustDefine[IndexedV2]()))
		So(err, ShouldBeNil)
		tp, ok := plan.Table("Indexed")
		So(ok, ShouldBeTrue)
		So(tp.Strategy, ShouldEqual, StrategyIncremental)
		So(tp.DroppedIndexes, ShouldResemble, []string{"idx_Indexed_lookup", "idx_Indexed_name"})

		after := inspect(db, "Indexed")
		So(after.Indexes, ShouldResemble, []IndexSchema{
			{Name: "custom_kind", Columns: []string{"kind"}},
			{Name: "idx_Indexed_lookup", Columns: []string{"code"}},
		})

		Convey("索引没有变化时不删除", func() {
			plan, err := newMigrator(&Options{Version: 3}).Migrate(ctx, db, tables(schema.MustDefine[IndexedV2]()))
			So(err, ShouldBeNil)
			tp, _ := plan.Table("Indexed")
			So(tp.Strategy, ShouldEqual, StrategyUnchanged)
			So(tp.DroppedIndexes, ShouldBeEmpty)
		})
	})
}
