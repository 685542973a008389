package clog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// NamespaceKey 是日志中命名空间的字段名
const NamespaceKey = "namespace"

// loggerImpl 是 Logger 接口的具体实现
type loggerImpl struct {
	handler   slog.Handler
	level     *slog.LevelVar
	namespace string
	baseAttrs []slog.Attr
}

// newLogger 创建 Logger 实例（内部使用）
func newLogger(config *Config, opt *options) (Logger, error) {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(level.toSlogLevel())

	var w io.Writer
	switch {
	case opt.writer != nil:
		w = opt.writer
	case config.Output == "stdout":
		w = os.Stdout
	case config.Output == "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		w = f
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     levelVar,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return &loggerImpl{
		handler:   handler,
		level:     levelVar,
		namespace: strings.Join(opt.namespaceParts, "."),
	}, nil
}

func (l *loggerImpl) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields...) }
func (l *loggerImpl) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields...) }
func (l *loggerImpl) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields...) }
func (l *loggerImpl) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields...) }

func (l *loggerImpl) Fatal(msg string, fields ...Field) {
	l.log(FatalLevel, msg, fields...)
	os.Exit(1)
}

// With 创建带有预设字段的子 Logger
func (l *loggerImpl) With(fields ...Field) Logger {
	child := *l
	child.baseAttrs = append(append([]slog.Attr{}, l.baseAttrs...), fields...)
	return &child
}

// WithNamespace 创建扩展命名空间的子 Logger
func (l *loggerImpl) WithNamespace(parts ...string) Logger {
	child := *l
	ns := strings.Join(parts, ".")
	if l.namespace != "" && ns != "" {
		ns = l.namespace + "." + ns
	} else if ns == "" {
		ns = l.namespace
	}
	child.namespace = ns
	return &child
}

// SetLevel 动态调整日志级别
func (l *loggerImpl) SetLevel(level Level) error {
	l.level.Set(level.toSlogLevel())
	return nil
}

// log 组装记录并交给 handler（内部使用）
func (l *loggerImpl) log(level Level, msg string, fields ...Field) {
	ctx := context.Background()
	slogLevel := level.toSlogLevel()

	if !l.handler.Enabled(ctx, slogLevel) {
		return
	}

	// 获取调用方 PC 值，保证 AddSource 时源码位置准确
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip: Callers, log, Debug/Info/...

	record := slog.NewRecord(time.Now(), slogLevel, msg, pcs[0])
	record.AddAttrs(l.baseAttrs...)
	record.AddAttrs(fields...)
	if l.namespace != "" {
		record.AddAttrs(slog.String(NamespaceKey, l.namespace))
	}

	_ = l.handler.Handle(ctx, record)
}
