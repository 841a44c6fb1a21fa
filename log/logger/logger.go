package logger

import (
	"context"
)

// Logger 日志接口，orm 各组件通过它输出结构化日志
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	// With 返回附带固定字段的日志器，例如 With("table", name)
	With(args ...any) Logger
	WithGroup(name string) Logger
}
