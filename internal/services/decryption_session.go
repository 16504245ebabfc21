package services

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-dvdread/internal/device"
	"github.com/deploymenttheory/go-dvdread/internal/interfaces"
	"github.com/deploymenttheory/go-dvdread/internal/types"
)

// ErrSessionClosed is returned by operations on a closed session
var ErrSessionClosed = errors.New("session is closed")

// SessionOptions configures an ImageSession
type SessionOptions struct {
	// Descrambler handles scrambled content sectors. Without one the session
	// passes content through unmodified, which suits unscrambled images.
	Descrambler interfaces.Descrambler

	// ProbeSector is a content sector used to decide whether the source is
	// protected. HasProbe false skips probing.
	ProbeSector types.Sector
	HasProbe    bool

	Logger *slog.Logger
}

// SessionStatistics counts session activity
type SessionStatistics struct {
	KeySeeks          int64
	PlainSeeks        int64
	SectorsRead       int64
	ScrambledSectors  int64
	PassedScrambled   int64
	DescrambleFailure int64
}

// ImageSession reads sectors of an image or device in plain and content-key modes
type ImageSession struct {
	device      interfaces.SectorDevice
	descrambler interfaces.Descrambler
	logger      *slog.Logger
	position    types.Sector
	protected   bool
	keyErr      error
	closed      bool
	stats       SessionStatistics
}

// OpenImageSession opens source through fs for sector access
func OpenImageSession(fs afero.Fs, source string, opts SessionOptions) (*ImageSession, error) {
	dev, err := device.OpenImage(fs, source)
	if err != nil {
		return nil, err
	}
	return NewImageSession(dev, opts), nil
}

// NewImageSession wraps an already opened device. The session owns the device.
func NewImageSession(dev interfaces.SectorDevice, opts SessionOptions) *ImageSession {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &ImageSession{
		device:      dev,
		descrambler: opts.Descrambler,
		logger:      logger,
	}
	if opts.HasProbe {
		s.protected = s.probe(opts.ProbeSector)
	}
	return s
}

// probe reads one content sector and checks its PES scrambling control bits
func (s *ImageSession) probe(sector types.Sector) bool {
	block := make([]byte, types.SectorSize)
	if _, err := s.device.ReadSector(sector, block); err != nil {
		s.logger.Debug("Protection probe failed", "sector", uint32(sector), "error", err)
		return false
	}
	return types.IsScrambled(block)
}

// IsProtected reports whether the probed content sector was scrambled
func (s *ImageSession) IsProtected() bool {
	return s.protected
}

// SeekPlain positions the session at sector
func (s *ImageSession) SeekPlain(sector types.Sector) (types.Sector, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}
	s.position = sector
	s.stats.PlainSeeks++
	return s.position, nil
}

// SeekKey positions the session at sector and primes the key of the extent starting there
func (s *ImageSession) SeekKey(sector types.Sector) (types.Sector, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}
	s.position = sector
	s.stats.KeySeeks++
	s.keyErr = nil

	if s.descrambler != nil {
		if err := s.descrambler.PrimeKey(s.device, sector); err != nil {
			// A missing key is not fatal for the position; reads of scrambled
			// sectors fail until the next key seek.
			s.keyErr = fmt.Errorf("no key for sector %d: %w", sector, err)
			s.logger.Warn("Failed to prime content key", "sector", uint32(sector), "error", err)
		}
	}
	return s.position, nil
}

// ReadPlain reads the sector at the current position
func (s *ImageSession) ReadPlain(block []byte) (int, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}

	_, err := s.device.ReadSector(s.position, block)
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		// The position is still advanced, like a failed block read on a drive.
		s.position++
		return -1, err
	}

	s.position++
	s.stats.SectorsRead++
	return 1, nil
}

// ReadDecrypt reads the sector at the current position and descrambles it
func (s *ImageSession) ReadDecrypt(block []byte) (int, error) {
	n, err := s.ReadPlain(block)
	if n != 1 || err != nil {
		return n, err
	}
	if !types.IsScrambled(block) {
		return 1, nil
	}

	s.stats.ScrambledSectors++
	if s.descrambler == nil {
		s.stats.PassedScrambled++
		return 1, nil
	}
	if s.keyErr != nil {
		s.stats.DescrambleFailure++
		return -1, s.keyErr
	}
	if err := s.descrambler.Descramble(block); err != nil {
		s.stats.DescrambleFailure++
		return -1, fmt.Errorf("descramble sector %d: %w", s.position-1, err)
	}
	block[types.PESScramblingOffset] &^= types.PESScramblingMask
	return 1, nil
}

// Stats returns the session counters
func (s *ImageSession) Stats() SessionStatistics {
	return s.stats
}

// Close releases the device; closing twice is an error
func (s *ImageSession) Close() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	return s.device.Close()
}
