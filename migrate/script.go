package migrate

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	ParserLegacy    = "legacy"
	ParserDelimited = "delimited"
)

var ErrUnknownParser = errors.New("unknown sql parser")

// Script 迁移目录中的 <version>.sql
type Script struct {
	Version int
	Path    string
}

// LoadScripts 返回 from < version <= to 的脚本，按版本升序
func LoadScripts(dir string, from, to int) ([]Script, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read migration dir %s", dir)
	}

	var scripts []Script
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		version, err := strconv.Atoi(strings.TrimSuffix(entry.Name(), ".sql"))
		if err != nil {
			continue
		}
		if version > from && version <= to {
			scripts = append(scripts, Script{Version: version, Path: filepath.Join(dir, entry.Name())})
		}
	}
	sort.Slice(scripts, func(i, j int) bool {
		return scripts[i].Version < scripts[j].Version
	})
	return scripts, nil
}

// SplitScript 按解析器切分脚本为独立的语句
func SplitScript(parser string, script string) ([]string, error) {
	switch parser {
	case "", ParserLegacy:
		return LexSQLScript(script), nil
	case ParserDelimited:
		return SplitDelimited(script), nil
	}
	return nil, errors.Wrapf(ErrUnknownParser, "[%s]", parser)
}

// LexSQLScript 以引号外的分号切分语句，引号内支持反斜杠转义
func LexSQLScript(script string) []string {
	var statements []string
	var b strings.Builder
	var quote rune
	escaped := false

	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			statements = append(statements, s)
		}
		b.Reset()
	}

	for _, r := range script {
		switch {
		case escaped:
			escaped = false
		case quote != 0 && r == '\\':
			escaped = true
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
		case quote == 0 && r == ';':
			flush()
			continue
		}
		b.WriteRune(r)
	}
	flush()

	return statements
}

// SplitDelimited 先去掉引号外的 -- 和 /* */ 注释，再按分号切分
func SplitDelimited(script string) []string {
	return LexSQLScript(stripComments(script))
}

func stripComments(script string) string {
	var b strings.Builder
	runes := []rune(script)
	var quote rune
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if quote != 0 {
			b.WriteRune(r)
			if r == '\\' && i+1 < len(runes) {
				i++
				b.WriteRune(runes[i])
			} else if r == quote {
				quote = 0
			}
			continue
		}

		switch {
		case r == '\'' || r == '"':
			quote = r
			b.WriteRune(r)
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			b.WriteRune('\n')
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i < len(runes) && !(runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '/') {
				i++
			}
			i++
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
