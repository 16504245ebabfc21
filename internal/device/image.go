package device

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-dvdread/internal/types"
)

// ImageDevice provides sector access to a DVD image file or a raw optical device
type ImageDevice struct {
	file    afero.File
	path    string
	size    int64
	stats   ImageStatistics
	statsMu sync.RWMutex
}

// ImageStatistics tracks device access statistics
type ImageStatistics struct {
	SectorsRead int64
	BytesRead   int64
	ShortReads  int64
	ReadErrors  int64
}

// OpenImage opens the image or device at path through fs
func OpenImage(fs afero.Fs, path string) (*ImageDevice, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}
	if stat.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	size := stat.Size()
	if size == 0 {
		// Block devices report a zero size through stat; ask the file itself.
		if end, err := file.Seek(0, io.SeekEnd); err == nil {
			size = end
		}
	}

	return &ImageDevice{
		file: file,
		path: path,
		size: size,
	}, nil
}

// ReadAt implements io.ReaderAt over the whole image
func (d *ImageDevice) ReadAt(p []byte, off int64) (int, error) {
	if d.file == nil {
		return 0, os.ErrClosed
	}
	n, err := d.file.ReadAt(p, off)

	d.statsMu.Lock()
	d.stats.BytesRead += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		d.stats.ReadErrors++
	}
	d.statsMu.Unlock()

	return n, err
}

// ReadSector reads one logical block. A partial trailing sector counts as end of media.
func (d *ImageDevice) ReadSector(sector types.Sector, buf []byte) (int, error) {
	if len(buf) < types.SectorSize {
		return 0, fmt.Errorf("buffer too small for sector: %d bytes, need %d", len(buf), types.SectorSize)
	}

	n, err := d.ReadAt(buf[:types.SectorSize], sector.Offset())
	switch {
	case n == types.SectorSize:
		d.statsMu.Lock()
		d.stats.SectorsRead++
		d.statsMu.Unlock()
		return n, nil
	case errors.Is(err, io.EOF), n == 0 && errors.Is(err, io.ErrUnexpectedEOF):
		return 0, io.EOF
	case err != nil:
		return n, fmt.Errorf("read sector %d: %w", sector, err)
	default:
		d.statsMu.Lock()
		d.stats.ShortReads++
		d.statsMu.Unlock()
		return n, fmt.Errorf("short read at sector %d: %d of %d bytes", sector, n, types.SectorSize)
	}
}

// TotalSectors returns the number of whole sectors in the image
func (d *ImageDevice) TotalSectors() uint64 {
	return uint64(d.size / types.SectorSize)
}

// Size returns the size of the image in bytes
func (d *ImageDevice) Size() int64 {
	return d.size
}

// Path returns the path the image was opened from
func (d *ImageDevice) Path() string {
	return d.path
}

// Close closes the underlying file
func (d *ImageDevice) Close() error {
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}

// GetStats returns a snapshot of the access statistics
func (d *ImageDevice) GetStats() ImageStatistics {
	d.statsMu.RLock()
	defer d.statsMu.RUnlock()
	return d.stats
}
