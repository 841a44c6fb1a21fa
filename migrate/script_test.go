package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexSQLScript(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{"empty", "  \n ", nil},
		{"single", "SELECT 1", []string{"SELECT 1"}},
		{"multiple", "SELECT 1;\nSELECT 2;\n", []string{"SELECT 1", "SELECT 2"}},
		{"semicolon in string", "INSERT INTO t VALUES ('a;b'); SELECT 2", []string{"INSERT INTO t VALUES ('a;b')", "SELECT 2"}},
		{"escaped quote", `INSERT INTO t VALUES ('it\'s;'); SELECT 2`, []string{`INSERT INTO t VALUES ('it\'s;')`, "SELECT 2"}},
		{"doubled quote", "INSERT INTO t VALUES ('it''s;x');", []string{"INSERT INTO t VALUES ('it''s;x')"}},
		{"quoted identifier", `SELECT "a;b" FROM t;`, []string{`SELECT "a;b" FROM t`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LexSQLScript(tt.script))
		})
	}
}

func TestSplitDelimited(t *testing.T) {
	script := "-- header; comment\n" +
		"CREATE TABLE t (a TEXT); /* block; comment */\n" +
		"INSERT INTO t VALUES ('--not a comment;');\n" +
		"/* multi\nline */ SELECT 1"
	assert.Equal(t, []string{
		"CREATE TABLE t (a TEXT)",
		"INSERT INTO t VALUES ('--not a comment;')",
		"SELECT 1",
	}, SplitDelimited(script))

	// legacy 解析器不处理注释
	legacy, err := SplitScript(ParserLegacy, "-- a;b\nSELECT 1")
	require.NoError(t, err)
	assert.Equal(t, []string{"-- a", "b\nSELECT 1"}, legacy)

	_, err = SplitScript("yacc", "")
	assert.ErrorIs(t, err, ErrUnknownParser)
}

func TestLoadScripts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1.sql", "2.sql", "3.sql", "10.sql", "readme.md", "x.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0644))
	}

	scripts, err := LoadScripts(dir, 1, 10)
	require.NoError(t, err)
	var versions []int
	for _, s := range scripts {
		versions = append(versions, s.Version)
	}
	assert.Equal(t, []int{2, 3, 10}, versions)

	scripts, err = LoadScripts(filepath.Join(dir, "missing"), 0, 10)
	assert.NoError(t, err)
	assert.Empty(t, scripts)

	scripts, err = LoadScripts("", 0, 10)
	assert.NoError(t, err)
	assert.Empty(t, scripts)
}
