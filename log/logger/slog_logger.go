package logger

import (
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// SLogOptions 日志配置，可以直接嵌入 orm.Options 从配置文件加载
type SLogOptions struct {
	// Level debug, info, warn, error
	Level string `cfg:"level" def:"info" validate:"omitempty,oneof=debug info warn warning error"`
	// Format text 或 json
	Format string `cfg:"format" def:"text" validate:"omitempty,oneof=text json"`
	// Output stdout, stderr, discard
	Output    string `cfg:"output" def:"stderr" validate:"omitempty,oneof=stdout stderr discard"`
	AddSource bool   `cfg:"addSource"`
	// Fields 附加到每一条日志，比如 app=reader
	Fields map[string]string `cfg:"fields"`

	// Writer 非空时忽略 Output
	Writer io.Writer `cfg:"-"`
}

var levels = map[string]slog.Level{
	"":        slog.LevelInfo,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

var outputs = map[string]io.Writer{
	"":        os.Stderr,
	"stderr":  os.Stderr,
	"stdout":  os.Stdout,
	"discard": io.Discard,
}

// SLog 基于 log/slog，Debug/Info/Warn/Error 及其 Context 版本直接使用 *slog.Logger 的实现
type SLog struct {
	*slog.Logger
}

func NewSLogWithOptions(options *SLogOptions) (*SLog, error) {
	if options == nil {
		return nil, errors.New("options cannot be nil")
	}

	level, ok := levels[strings.ToLower(options.Level)]
	if !ok {
		return nil, errors.Errorf("unknown level [%s]", options.Level)
	}

	w := options.Writer
	if w == nil {
		if w, ok = outputs[strings.ToLower(options.Output)]; !ok {
			return nil, errors.Errorf("unsupported output [%s]", options.Output)
		}
	}

	handlerOptions := &slog.HandlerOptions{Level: level, AddSource: options.AddSource}
	var handler slog.Handler
	switch strings.ToLower(options.Format) {
	case "", "text":
		handler = slog.NewTextHandler(w, handlerOptions)
	case "json":
		handler = slog.NewJSONHandler(w, handlerOptions)
	default:
		return nil, errors.Errorf("unsupported format [%s]", options.Format)
	}

	l := slog.New(handler)
	if len(options.Fields) > 0 {
		keys := make([]string, 0, len(options.Fields))
		for k := range options.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		args := make([]any, 0, len(keys)*2)
		for _, k := range keys {
			args = append(args, k, options.Fields[k])
		}
		l = l.With(args...)
	}
	return &SLog{Logger: l}, nil
}

func (l *SLog) With(args ...any) Logger {
	return &SLog{Logger: l.Logger.With(args...)}
}

func (l *SLog) WithGroup(name string) Logger {
	return &SLog{Logger: l.Logger.WithGroup(name)}
}
