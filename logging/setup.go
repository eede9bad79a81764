package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// RootName is the name of the library's root logger.
const RootName = "vexora"

// Output formats accepted by Setup.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// QualifiedName places name below the root logger. Names that already carry
// the root prefix are returned unchanged.
func QualifiedName(name string) string {
	switch {
	case name == "" || name == RootName:
		return RootName
	case strings.HasPrefix(name, RootName+"."):
		return name
	default:
		return RootName + "." + name
	}
}

// GetLogger returns a child of slog.Default tagged with the qualified logger
// name.
func GetLogger(name string) *slog.Logger {
	return slog.Default().With("logger", QualifiedName(name))
}

// Named wraps GetLogger(name) in the Logger interface.
func Named(name string) Logger {
	return NewSlogAdapter(GetLogger(name))
}

// ParseLevel converts a case-insensitive level name.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LogLevelDebug, nil
	case "", "INFO":
		return LogLevelInfo, nil
	case "WARN", "WARNING":
		return LogLevelWarn, nil
	case "ERROR":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Setup installs a slog handler writing to w as the process default and
// returns it. FormatAuto selects text output when w is a terminal and JSON
// otherwise.
func Setup(level LogLevel, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: slogLevel(level)}

	var handler slog.Handler
	if resolveFormat(format, w) == FormatText {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

func resolveFormat(format string, w io.Writer) string {
	switch format {
	case FormatText, FormatJSON:
		return format
	}

	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return FormatText
	}

	return FormatJSON
}

// MaybeQuote renders v for key=value style messages, quoting strings that
// contain whitespace or quotes.
func MaybeQuote(v any) string {
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v)
	}

	if s == "" || strings.ContainsAny(s, " \t\n\"'") {
		return strconv.Quote(s)
	}

	return s
}

// With returns a logger that adds args to every entry. Known implementations
// keep their type; others are wrapped.
func With(l Logger, args ...any) Logger {
	if len(args) == 0 || l == nil {
		return l
	}

	switch v := l.(type) {
	case NoOpLogger:
		return v
	case *SlogAdapter:
		return NewSlogAdapter(v.Logger.With(args...))
	case *VexoraLogger:
		nl := v
		for i := 0; i+1 < len(args); i += 2 {
			nl = nl.WithContext(fmt.Sprint(args[i]), args[i+1])
		}
		return nl
	default:
		return withLogger{base: l, args: args}
	}
}

type withLogger struct {
	base Logger
	args []any
}

func (w withLogger) merge(args []any) []any {
	return append(append(make([]any, 0, len(w.args)+len(args)), w.args...), args...)
}

func (w withLogger) Debug(msg string, args ...any) { w.base.Debug(msg, w.merge(args)...) }

func (w withLogger) Info(msg string, args ...any) { w.base.Info(msg, w.merge(args)...) }

func (w withLogger) Warn(msg string, args ...any) { w.base.Warn(msg, w.merge(args)...) }

func (w withLogger) Error(msg string, args ...any) { w.base.Error(msg, w.merge(args)...) }
