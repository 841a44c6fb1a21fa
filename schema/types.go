package schema

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrUnmappedType        = errors.New("no storage type mapping")
	ErrDuplicateTable      = errors.New("duplicate table")
	ErrDuplicateColumn     = errors.New("duplicate column")
	ErrNotEntity           = errors.New("type does not implement Entity")
	ErrUnknownField        = errors.New("unknown field")
	ErrInvalidTag          = errors.New("invalid orm tag")
	ErrUniqueGroupMismatch = errors.New("unique groups and conflict actions count mismatch")
	ErrNoConstructor       = errors.New("model has no constructor")
	ErrInvalidDefault      = errors.New("invalid default value")
)

// StorageType SQLite 的四种存储类型
type StorageType string

const (
	StorageInteger StorageType = "INTEGER"
	StorageReal    StorageType = "REAL"
	StorageText    StorageType = "TEXT"
	StorageBlob    StorageType = "BLOB"
)

// ConflictAction 约束冲突时的处理策略
type ConflictAction string

const (
	ConflictRollback ConflictAction = "ROLLBACK"
	ConflictAbort    ConflictAction = "ABORT"
	ConflictFail     ConflictAction = "FAIL"
	ConflictIgnore   ConflictAction = "IGNORE"
	ConflictReplace  ConflictAction = "REPLACE"
)

func ParseConflictAction(s string) (ConflictAction, error) {
	switch a := ConflictAction(strings.ToUpper(strings.TrimSpace(s))); a {
	case ConflictRollback, ConflictAbort, ConflictFail, ConflictIgnore, ConflictReplace:
		return a, nil
	}
	return "", errors.Wrapf(ErrInvalidTag, "unknown conflict action [%s]", s)
}

// ForeignKeyAction 外键 ON DELETE / ON UPDATE 的动作
type ForeignKeyAction string

const (
	ForeignKeySetNull    ForeignKeyAction = "SET NULL"
	ForeignKeySetDefault ForeignKeyAction = "SET DEFAULT"
	ForeignKeyCascade    ForeignKeyAction = "CASCADE"
	ForeignKeyRestrict   ForeignKeyAction = "RESTRICT"
	ForeignKeyNoAction   ForeignKeyAction = "NO ACTION"
)

// ParseForeignKeyAction 接受 "SET NULL", "set_null", "setNull" 等写法
func ParseForeignKeyAction(s string) (ForeignKeyAction, error) {
	key := strings.ToLower(strings.NewReplacer(" ", "", "_", "").Replace(s))
	switch key {
	case "setnull":
		return ForeignKeySetNull, nil
	case "setdefault":
		return ForeignKeySetDefault, nil
	case "cascade":
		return ForeignKeyCascade, nil
	case "restrict":
		return ForeignKeyRestrict, nil
	case "noaction":
		return ForeignKeyNoAction, nil
	}
	return "", errors.Wrapf(ErrInvalidTag, "unknown foreign key action [%s]", s)
}
