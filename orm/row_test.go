package orm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRow(t *testing.T) {
	row := NewRow(
		[]string{"Id", "name", "price", "flag", "data", "name", "empty"},
		[]any{int64(3), "first", 1.5, int64(1), []byte("42"), "second", nil},
	)

	assert.Equal(t, []string{"Id", "name", "price", "flag", "data", "name", "empty"}, row.Columns())
	assert.Equal(t, 1, row.Index("name"))
	assert.Equal(t, -1, row.Index("missing"))

	assert.Equal(t, int64(3), row.Int64("Id"))
	assert.Equal(t, "first", row.String("name"))
	assert.Equal(t, 1.5, row.Float64("price"))
	assert.Equal(t, int64(1), row.Int64("price"))
	assert.True(t, row.Bool("flag"))
	assert.Equal(t, int64(42), row.Int64("data"))
	assert.Equal(t, []byte("42"), row.Bytes("data"))
	assert.Equal(t, "3", row.String("Id"))

	assert.True(t, row.IsNull("empty"))
	assert.True(t, row.IsNull("missing"))
	assert.Nil(t, row.Bytes("empty"))
	assert.Equal(t, "", row.String("empty"))
	assert.Equal(t, int64(0), row.Int64("missing"))
}
