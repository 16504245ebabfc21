package services

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/deploymenttheory/go-dvdread/internal/interfaces"
	"github.com/deploymenttheory/go-dvdread/internal/parsers/ifo"
	"github.com/deploymenttheory/go-dvdread/internal/types"
)

var (
	// ErrSeekProtocol is returned when a seek fails or lands on another sector
	ErrSeekProtocol = errors.New("seek protocol violation")

	// ErrWrite is returned when the output sink rejects a sector
	ErrWrite = errors.New("output write failed")
)

// Termination tells why a transfer stopped
type Termination string

const (
	TerminationEndOfMedia Termination = "end_of_media"
	TerminationRangeDone  Termination = "range_complete"
	TerminationSeekError  Termination = "seek_error"
	TerminationWriteError Termination = "write_error"
)

// Stage names the collaborator call that was in progress, as printed in diagnostics
type Stage string

const (
	StageSeek    Stage = "seek"
	StageSeekKey Stage = "seek key"
	StageRead    Stage = "read"
	StageDecrypt Stage = "decrypt"
	StageWrite   Stage = "write"
)

// StreamError is a fatal pipeline failure at a given sector
type StreamError struct {
	Stage  Stage
	Sector types.Sector
	Err    error
	Kind   error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s - %v", e.Stage, e.Err)
}

// Unwrap exposes both the failure kind and the collaborator error
func (e *StreamError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// StreamStats summarises a transfer
type StreamStats struct {
	Start          types.Sector  `json:"start" yaml:"start"`
	Next           types.Sector  `json:"next" yaml:"next"`
	SectorsEmitted uint64        `json:"sectors_emitted" yaml:"sectors_emitted"`
	ZeroFilled     uint64        `json:"zero_filled" yaml:"zero_filled"`
	ReadRetries    uint64        `json:"read_retries" yaml:"read_retries"`
	KeySeeks       uint64        `json:"key_seeks" yaml:"key_seeks"`
	PlainSeeks     uint64        `json:"plain_seeks" yaml:"plain_seeks"`
	HeaderReports  uint64        `json:"header_reports" yaml:"header_reports"`
	Termination    Termination   `json:"termination" yaml:"termination"`
	Elapsed        time.Duration `json:"elapsed" yaml:"elapsed"`
}

// RetryPolicy bounds the attempts made for a failing sector read
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
}

// StreamService copies a sector range from a decryption session to an output sink
type StreamService struct {
	index     *ExtentIndex
	session   interfaces.DecryptionSession
	sink      io.Writer
	progress  *ProgressReporter
	events    *EventLogger
	inspector *ifo.ControlFieldInspector
	retry     RetryPolicy
	logger    *slog.Logger
}

// StreamOption customises a StreamService
type StreamOption func(*StreamService)

// WithInspector replaces the report-only control field inspector
func WithInspector(inspector *ifo.ControlFieldInspector) StreamOption {
	return func(s *StreamService) { s.inspector = inspector }
}

// WithRetry retries failing sector reads before substituting zeros
func WithRetry(policy RetryPolicy) StreamOption {
	return func(s *StreamService) { s.retry = policy }
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) StreamOption {
	return func(s *StreamService) { s.logger = logger }
}

// NewStreamService wires the pipeline collaborators
func NewStreamService(
	index *ExtentIndex,
	session interfaces.DecryptionSession,
	sink io.Writer,
	progress *ProgressReporter,
	events *EventLogger,
	opts ...StreamOption,
) *StreamService {
	s := &StreamService{
		index:     index,
		session:   session,
		sink:      sink,
		progress:  progress,
		events:    events,
		inspector: ifo.NewControlFieldInspector(ifo.ReportOnly),
		retry:     RetryPolicy{Attempts: 1},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retry.Attempts < 1 {
		s.retry.Attempts = 1
	}
	return s
}

// Run streams [start, end). It returns normally at end of media or when the
// range is exhausted, and a *StreamError on a seek or write failure. The
// session is left open for the caller to close.
func (s *StreamService) Run(start, end types.Sector) (*StreamStats, error) {
	began := time.Now()
	stats := &StreamStats{Start: start, Next: start}
	defer func() {
		stats.Elapsed = time.Since(began)
		s.progress.Finish()
	}()

	block := make([]byte, types.SectorSize)
	current, previous := NoExtent, NoExtent

	// uint64 so that an end of MaxSector cannot wrap the counter
	for pos := uint64(start); pos < uint64(end); pos++ {
		sector := types.Sector(pos)
		stats.Next = sector

		if current == NoExtent || !s.index.Extent(current).Contains(sector) {
			current = s.index.Lookup(sector)
		}

		var extent types.FileExtent
		inFile := current != NoExtent
		if inFile {
			extent = s.index.Extent(current)
		}

		if current != previous && sector != start {
			s.progress.Break(sector)
		}
		s.progress.Report(sector, extent.Name)

		content := inFile && extent.Role.IsContent()
		if err := s.seek(sector, content && current != previous, stats); err != nil {
			stats.Termination = TerminationSeekError
			return stats, err
		}

		n, err := s.read(sector, content, block, stats)
		var seekErr *StreamError
		if errors.As(err, &seekErr) {
			stats.Termination = TerminationSeekError
			return stats, err
		}
		if n == 0 && err == nil {
			stats.Termination = TerminationEndOfMedia
			return stats, nil
		}
		if err != nil {
			stage := StageRead
			if content {
				stage = StageDecrypt
			}
			s.sectorEvent(sector, extent.Name, true, fmt.Sprintf("%s - %v", stage, err))
			clear(block)
			stats.ZeroFilled++
		}

		if inFile && extent.Role.HasControlField() && sector == extent.Start {
			s.inspect(sector, extent.Name, block, stats)
		}

		if written, err := s.sink.Write(block); err != nil || written != len(block) {
			if err == nil {
				err = io.ErrShortWrite
			}
			stats.Termination = TerminationWriteError
			return stats, &StreamError{Stage: StageWrite, Sector: sector, Err: err, Kind: ErrWrite}
		}
		stats.SectorsEmitted++
		stats.Next = sector + 1

		previous = current
	}

	stats.Termination = TerminationRangeDone
	return stats, nil
}

// seek positions the session, priming the key when a content extent is entered
func (s *StreamService) seek(sector types.Sector, key bool, stats *StreamStats) error {
	stage := StageSeek
	seek := s.session.SeekPlain
	if key {
		stage = StageSeekKey
		seek = s.session.SeekKey
		stats.KeySeeks++
	} else {
		stats.PlainSeeks++
	}

	got, err := seek(sector)
	if err != nil {
		return &StreamError{Stage: stage, Sector: sector, Err: err, Kind: ErrSeekProtocol}
	}
	if got != sector {
		return &StreamError{
			Stage:  stage,
			Sector: sector,
			Err:    fmt.Errorf("positioned at sector %d instead of %d", got, sector),
			Kind:   ErrSeekProtocol,
		}
	}
	return nil
}

// read fetches one sector. It returns 0, nil at end of media and a non-nil
// error once every attempt failed. A failed re-seek between attempts is
// returned as a *StreamError.
func (s *StreamService) read(sector types.Sector, content bool, block []byte, stats *StreamStats) (int, error) {
	readFn := s.session.ReadPlain
	if content {
		readFn = s.session.ReadDecrypt
	}

	var (
		n       int
		seekErr error
	)
	attempt := 0
	err := retry.Do(
		func() error {
			if attempt > 0 {
				stats.ReadRetries++
				// The failed read moved the position; go back without touching the key.
				if err := s.seek(sector, false, stats); err != nil {
					seekErr = err
					return retry.Unrecoverable(err)
				}
			}
			attempt++

			var err error
			n, err = readFn(block)
			if err == nil && n != 0 && n != 1 {
				err = fmt.Errorf("unexpected block count %d", n)
			}
			return err
		},
		retry.Attempts(s.retry.Attempts),
		retry.Delay(s.retry.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(try uint, err error) {
			s.logger.Debug("Sector read failed", "sector", uint32(sector), "attempt", try+1, "error", err)
		}),
	)
	if seekErr != nil {
		return -1, seekErr
	}
	if err != nil {
		return -1, err
	}
	return n, nil
}

// inspect reports the region mask of a video manager header sector
func (s *StreamService) inspect(sector types.Sector, file string, block []byte, stats *StreamStats) {
	report, err := s.inspector.Inspect(block)
	if err != nil {
		s.sectorEvent(sector, file, true, err.Error())
		return
	}
	stats.HeaderReports++
	s.sectorEvent(sector, file, !report.HeaderPresent, report.String())
}

// sectorEvent writes a discrete event on its own line and restarts the range after it
func (s *StreamService) sectorEvent(sector types.Sector, file string, warn bool, msg string) {
	s.progress.Interrupt()
	if warn {
		s.events.SectorWarn(sector, file, msg)
	} else {
		s.events.SectorInfo(sector, file, msg)
	}
	s.progress.Restart(sector + 1)
}
