package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/deploymenttheory/go-dvdread/internal/types"
)

// ProgressReporter coalesces consecutive sectors of the same file into one
// updating range line on the diagnostic stream.
//
// Interactive reporters rewrite the current line with a carriage return for every
// sector. Non-interactive reporters only write a range once it is closed, so log
// files get one line per range instead of one per sector.
type ProgressReporter struct {
	w           io.Writer
	interactive bool
	pending     types.Sector
	line        string
	open        bool
}

// NewProgressReporter creates a reporter whose first range starts at start
func NewProgressReporter(w io.Writer, start types.Sector, interactive bool) *ProgressReporter {
	return &ProgressReporter{w: w, interactive: interactive, pending: start}
}

// Report shows sector s, inside file when file is not empty
func (r *ProgressReporter) Report(s types.Sector, file string) {
	line := fmt.Sprintf("%d ", s)
	if r.pending < s {
		line = fmt.Sprintf("%d - %d ", r.pending, s)
	}
	if file != "" {
		line += "(" + file + ") "
	}

	r.line = line
	r.open = true
	if r.interactive {
		fmt.Fprint(r.w, "\r"+line)
	}
}

// Break closes the current range because the file context changed at s
func (r *ProgressReporter) Break(s types.Sector) {
	r.endLine()
	r.pending = s
}

// Interrupt ends the current line so that a discrete event starts on a fresh one
func (r *ProgressReporter) Interrupt() {
	r.endLine()
}

// Restart begins a new range at next, after a discrete event was reported
func (r *ProgressReporter) Restart(next types.Sector) {
	r.pending = next
}

// Finish closes the last range
func (r *ProgressReporter) Finish() {
	r.endLine()
}

func (r *ProgressReporter) endLine() {
	if !r.open {
		return
	}
	if r.interactive {
		fmt.Fprint(r.w, "\n")
	} else {
		fmt.Fprint(r.w, r.line+"\n")
	}
	r.open = false
}

// EventLogger writes discrete diagnostic lines. It keeps no formatting state;
// every event is a complete line. Events are mirrored to the structured log.
type EventLogger struct {
	w      io.Writer
	logger *slog.Logger
}

// NewEventLogger creates an event logger writing to w; logger may be nil
func NewEventLogger(w io.Writer, logger *slog.Logger) *EventLogger {
	return &EventLogger{w: w, logger: logger}
}

// Info reports a notice that is not tied to a sector
func (l *EventLogger) Info(format string, args ...any) {
	l.emit(slog.LevelInfo, fmt.Sprintf(format, args...))
}

// Warn reports a recovered problem that is not tied to a sector
func (l *EventLogger) Warn(format string, args ...any) {
	l.emit(slog.LevelWarn, fmt.Sprintf(format, args...))
}

// Error reports a fatal problem
func (l *EventLogger) Error(format string, args ...any) {
	l.emit(slog.LevelError, fmt.Sprintf(format, args...))
}

// SectorInfo reports a notice about sector s of file
func (l *EventLogger) SectorInfo(s types.Sector, file, msg string) {
	l.emitSector(slog.LevelInfo, s, file, msg)
}

// SectorWarn reports a recovered problem at sector s of file
func (l *EventLogger) SectorWarn(s types.Sector, file, msg string) {
	l.emitSector(slog.LevelWarn, s, file, msg)
}

func (l *EventLogger) emitSector(level slog.Level, s types.Sector, file, msg string) {
	prefix := fmt.Sprintf("%d ", s)
	if file != "" {
		prefix += "(" + file + ") "
	}
	fmt.Fprintln(l.w, prefix+msg)
	if l.logger != nil {
		l.logger.Log(context.Background(), level, msg, "sector", uint32(s), "file", file)
	}
}

func (l *EventLogger) emit(level slog.Level, msg string) {
	fmt.Fprintln(l.w, msg)
	if l.logger != nil {
		l.logger.Log(context.Background(), level, msg)
	}
}
