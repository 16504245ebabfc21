// File: internal/interfaces/disc.go
package interfaces

import (
	"io"

	"github.com/deploymenttheory/go-dvdread/internal/types"
)

// FilesystemQuery resolves on-disc paths to the sectors they occupy
type FilesystemQuery interface {
	// FindFile returns the first sector and the byte length of the file at path.
	// A file that does not exist is reported as a zero start and zero length
	// with a nil error; errors are reserved for I/O and format failures.
	FindFile(path string) (start types.Sector, length uint32, err error)
}

// SectorDevice provides sector-granular access to a disc or disc image
type SectorDevice interface {
	io.ReaderAt
	io.Closer

	// ReadSector reads one logical block into buf and returns the bytes read.
	// A read starting at or beyond the end of the media returns 0, io.EOF.
	ReadSector(sector types.Sector, buf []byte) (int, error)

	// TotalSectors returns the number of whole sectors on the device
	TotalSectors() uint64

	// Path returns the path the device was opened from
	Path() string
}

// DecryptionSession positions on and reads sectors in plain or content-key mode
type DecryptionSession interface {
	// IsProtected reports whether the source carries scrambled content
	IsProtected() bool

	// SeekPlain positions the session at sector and returns the position reached
	SeekPlain(sector types.Sector) (types.Sector, error)

	// SeekKey positions the session at sector and primes the content key for
	// the extent that begins there
	SeekKey(sector types.Sector) (types.Sector, error)

	// ReadPlain reads one sector without descrambling.
	// It returns 1 on success and 0 at end of media.
	ReadPlain(block []byte) (int, error)

	// ReadDecrypt reads one sector and descrambles it with the primed key.
	// It returns 1 on success and 0 at end of media.
	ReadDecrypt(block []byte) (int, error)

	// Close releases the session
	Close() error
}

// Descrambler holds the key schedule and content descrambling algorithm
type Descrambler interface {
	// PrimeKey derives the key for the content extent starting at sector
	PrimeKey(device SectorDevice, sector types.Sector) error

	// Descramble decrypts one scrambled sector in place
	Descramble(block []byte) error
}
