package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	_ "time/tzdata"

	"github.com/tphakala/drawmap/internal/errors"
)

// levelTrace sits one step below slog.LevelDebug.
const levelTrace = slog.Level(-8)

// CentralLogger owns the output handlers and the per-module level table.
// Obtain component loggers with Module.
type CentralLogger struct {
	handler slog.Handler
	levels  *levelTable

	mu   sync.Mutex
	file *logFile
}

// NewCentralLogger builds the console and file outputs described by cfg.
// Nil sections of cfg are filled with defaults.
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	return newCentralLogger(cfg, os.Stdout)
}

func newCentralLogger(cfg *LoggingConfig, console io.Writer) (*CentralLogger, error) {
	if cfg == nil {
		return nil, errors.NewStd("logging config is nil")
	}
	applyConfigDefaults(cfg)

	tz, err := loadTimezone(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	cl := &CentralLogger{
		levels: newLevelTable(cfg.DefaultLevel, cfg.ModuleLevels),
	}

	var handlers []slog.Handler
	if cfg.Console.Enabled {
		handlers = append(handlers, newTextHandler(console, parseLevel(cfg.Console.Level), tz))
	}
	if cfg.FileOutput.Enabled {
		f, err := openLogFile(cfg.FileOutput.Path, DefaultFlushInterval)
		if err != nil {
			return nil, errors.New(err).
				Component("logger").
				Category(errors.CategoryFileIO).
				Context("operation", "open_log_file").
				FileContext(cfg.FileOutput.Path).
				Build()
		}
		cl.file = f
		handlers = append(handlers, newJSONHandler(f, parseLevel(cfg.FileOutput.Level), tz))
	}

	switch len(handlers) {
	case 0:
		// Never go silent: fall back to the console at the default level.
		cl.handler = newTextHandler(console, parseLevel(cfg.DefaultLevel), tz)
	case 1:
		cl.handler = handlers[0]
	default:
		cl.handler = fanout(handlers...)
	}
	return cl, nil
}

func loadTimezone(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	tz, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.New(fmt.Errorf("invalid timezone %q: %w", name, err)).
			Component("logger").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return tz, nil
}

// Module returns the logger for a top-level component. An empty name yields
// a root logger whose children are named without a prefix.
func (cl *CentralLogger) Module(name string) Logger {
	base := slog.New(cl.handler)
	root := &moduleLogger{
		base:   base,
		out:    base,
		levels: cl.levels,
		level:  cl.levels.resolve(""),
	}
	if name == "" {
		return root
	}
	return root.Module(name)
}

// Flush pushes buffered file records to the OS.
func (cl *CentralLogger) Flush() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.file == nil {
		return nil
	}
	return cl.file.Flush()
}

// Close flushes and closes the log file. Calling it again is a no-op.
func (cl *CentralLogger) Close() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.file == nil {
		return nil
	}
	err := cl.file.Close()
	cl.file = nil
	if err != nil {
		return errors.New(err).
			Component("logger").
			Category(errors.CategoryFileIO).
			Context("operation", "close_log_file").
			Build()
	}
	return nil
}

// levelTable maps module names to minimum levels. A module without its own
// entry inherits from its nearest dotted ancestor, then from the default.
type levelTable struct {
	def     slog.Level
	modules map[string]slog.Level
}

func newLevelTable(def string, modules map[string]string) *levelTable {
	t := &levelTable{def: parseLevel(def), modules: make(map[string]slog.Level, len(modules))}
	for name, lvl := range modules {
		t.modules[name] = parseLevel(lvl)
	}
	return t
}

func (t *levelTable) resolve(module string) slog.Level {
	for name := module; name != ""; {
		if lvl, ok := t.modules[name]; ok {
			return lvl
		}
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			break
		}
		name = name[:i]
	}
	return t.def
}

func parseLevel(level string) slog.Level {
	switch LogLevel(strings.ToLower(strings.TrimSpace(level))) {
	case LogLevelTrace:
		return levelTrace
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// moduleLogger is the Logger handed to components. It is immutable;
// Module and With return copies.
type moduleLogger struct {
	name   string
	base   *slog.Logger
	out    *slog.Logger
	fields []slog.Attr
	levels *levelTable
	level  slog.Level
}

func (m *moduleLogger) derive(name string, fields []slog.Attr) *moduleLogger {
	next := &moduleLogger{
		name:   name,
		base:   m.base,
		fields: fields,
		levels: m.levels,
		level:  m.levels.resolve(name),
	}
	attrs := make([]any, 0, len(fields)+1)
	if name != "" {
		attrs = append(attrs, slog.String(moduleKey, name))
	}
	for _, a := range fields {
		attrs = append(attrs, a)
	}
	next.out = m.base.With(attrs...)
	return next
}

func (m *moduleLogger) Module(name string) Logger {
	full := name
	if m.name != "" {
		full = m.name + "." + name
	}
	return m.derive(full, slices.Clone(m.fields))
}

func (m *moduleLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return m
	}
	return m.derive(m.name, slices.Concat(m.fields, toAttrs(fields)))
}

func (m *moduleLogger) WithContext(ctx context.Context) Logger {
	id := TraceID(ctx)
	if id == "" {
		return m
	}
	return m.With(String(traceIDKey, id))
}

func (m *moduleLogger) Trace(msg string, fields ...Field) { m.emit(levelTrace, msg, fields) }
func (m *moduleLogger) Debug(msg string, fields ...Field) { m.emit(slog.LevelDebug, msg, fields) }
func (m *moduleLogger) Info(msg string, fields ...Field)  { m.emit(slog.LevelInfo, msg, fields) }
func (m *moduleLogger) Warn(msg string, fields ...Field)  { m.emit(slog.LevelWarn, msg, fields) }

// Error records are never filtered by module level.
func (m *moduleLogger) Error(msg string, fields ...Field) {
	m.write(slog.LevelError, msg, fields)
}

func (m *moduleLogger) Log(level LogLevel, msg string, fields ...Field) {
	m.emit(parseLevel(string(level)), msg, fields)
}

// Flush is a no-op; the CentralLogger owns the file.
func (m *moduleLogger) Flush() error { return nil }

func (m *moduleLogger) emit(level slog.Level, msg string, fields []Field) {
	if level < m.level {
		return
	}
	m.write(level, msg, fields)
}

func (m *moduleLogger) write(level slog.Level, msg string, fields []Field) {
	m.out.LogAttrs(context.Background(), level, msg, toAttrs(fields)...)
}

func toAttrs(fields []Field) []slog.Attr {
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = toAttr(f)
	}
	return attrs
}

func toAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		return slog.String(f.Key, v)
	case int:
		return slog.Int(f.Key, v)
	case int64:
		return slog.Int64(f.Key, v)
	case float64:
		return slog.Float64(f.Key, math.Round(v*1000)/1000)
	case bool:
		return slog.Bool(f.Key, v)
	case time.Duration:
		return slog.String(f.Key, v.Round(time.Millisecond).String())
	case time.Time:
		return slog.Time(f.Key, v)
	default:
		return slog.Any(f.Key, v)
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == path {
		return nil
	}
	return os.MkdirAll(dir, 0o700)
}
