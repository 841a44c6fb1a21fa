package log

import (
	"io"

	"github.com/hatlonely/liteorm/log/logger"
)

type Logger = logger.Logger

type Options = logger.SLogOptions

var defaultLogger logger.Logger

func init() {
	// 默认向 stderr 输出 text 格式日志
	slog, err := logger.NewSLogWithOptions(&logger.SLogOptions{
		Level:  "info",
		Format: "text",
		Output: "stderr",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	defaultLogger = slog
}

func Default() Logger {
	return defaultLogger
}

// Discard 丢弃所有输出的日志器
func Discard() Logger {
	l, _ := logger.NewSLogWithOptions(&logger.SLogOptions{Writer: io.Discard})
	return l
}

// NewLogWithOptions options 为 nil 时返回默认日志器
func NewLogWithOptions(options *Options) (Logger, error) {
	if options == nil {
		return Default(), nil
	}
	return logger.NewSLogWithOptions(options)
}
