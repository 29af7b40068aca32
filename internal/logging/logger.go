package logging

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Output and format names accepted by Config.
const (
	OutputStderr  = "stderr"
	OutputFile    = "file"
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config describes how a logger is built.
type Config struct {
	// Level is a zerolog level name ("debug", "info", ...). Invalid values fall back to info.
	Level string

	// Format is "console" (human readable) or "json".
	Format string

	// Output is "stderr" or "file".
	Output string

	// File is the log file path used when Output is "file".
	File string

	// Caller adds file:line to every event.
	Caller bool

	// Writer replaces stderr for the "stderr" output. Nil means os.Stderr.
	Writer io.Writer
}

// Result is a built logger plus the file handle backing it, if any.
type Result struct {
	Logger zerolog.Logger

	// FilePath is set when logs are written to a file.
	FilePath string

	file *os.File
}

// Close releases the log file, if one was opened.
func (r *Result) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// New builds a logger from cfg. When the configured file cannot be opened the
// logger falls back to stderr and the returned error explains why.
func New(cfg Config) (*Result, error) {
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}

	var (
		out      io.Writer = os.Stderr
		res                = &Result{}
		fallback error
	)
	if cfg.Writer != nil {
		out = cfg.Writer
	}

	if cfg.Output == OutputFile && cfg.File != "" {
		if mkErr := os.MkdirAll(filepath.Dir(cfg.File), 0750); mkErr != nil {
			fallback = fmt.Errorf("create log directory: %w", mkErr)
		} else {
			f, openErr := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
			if openErr != nil {
				fallback = fmt.Errorf("open log file: %w", openErr)
			} else {
				out = f
				res.file = f
				res.FilePath = cfg.File
			}
		}
	}

	if cfg.Format != FormatJSON && res.file == nil {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(lvl).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	res.Logger = ctx.Logger()

	return res, fallback
}

// NewWriter builds a JSON logger writing to w. Mostly useful in tests.
func NewWriter(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ComponentLogger returns a child logger tagged with the component name.
func ComponentLogger(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// FromContext returns the logger stored on ctx, or a disabled logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return zerolog.Ctx(ctx)
}

type requestIDKey struct{}

// NewRequestID returns a new lexically sortable request identifier.
func NewRequestID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// ContextWithRequestID stores id on ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id stored on ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// GetOrGenerateRequestID returns the id on ctx or a fresh one.
func GetOrGenerateRequestID(ctx context.Context) string {
	if id := RequestIDFromContext(ctx); id != "" {
		return id
	}
	return NewRequestID()
}
