package app

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/deploymenttheory/go-dvdread/internal/config"
)

// Context holds application-wide configuration and state
type Context struct {
	// Output preferences
	Verbose bool
	Quiet   bool

	// Fs opens sources; tests swap in an in-memory filesystem
	Fs afero.Fs

	// Diagnostics receives progress and event lines; Output receives the image
	Diagnostics io.Writer
	Output      io.Writer

	// Interactive enables per-sector progress redraws on Diagnostics
	Interactive bool

	Config *config.Config
	Logger *slog.Logger
	RunID  string
}

// NewContext creates a new application context writing to the process streams
func NewContext() *Context {
	return &Context{
		Fs:          afero.NewOsFs(),
		Diagnostics: os.Stderr,
		Output:      os.Stdout,
		Config:      config.Default(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		RunID:       uuid.NewString(),
	}
}

// Configure applies cfg: it selects the progress mode and builds the structured
// logger. The returned closer releases the log file, if any.
func (c *Context) Configure(cfg *config.Config) io.Closer {
	c.Config = cfg

	switch cfg.Progress.Interactive {
	case config.ProgressAlways:
		c.Interactive = true
	case config.ProgressNever:
		c.Interactive = false
	default:
		c.Interactive = isTerminal(c.Diagnostics)
	}

	var (
		writers []io.Writer
		closer  io.Closer = nopCloser{}
	)
	if c.Verbose && !c.Quiet {
		writers = append(writers, c.Diagnostics)
	}
	if cfg.Log.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			Compress:   cfg.Log.Compress,
		}
		writers = append(writers, rotator)
		closer = rotator
	}

	if len(writers) == 0 {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	} else {
		handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
			Level: ParseLevel(cfg.Log.Level),
		})
		c.Logger = slog.New(handler).With("run_id", c.RunID)
	}
	return closer
}

// ParseLevel maps a configured level name to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
