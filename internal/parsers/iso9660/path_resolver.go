package iso9660

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/deploymenttheory/go-dvdread/internal/types"
)

// ISO 9660 volume descriptor layout (ECMA-119)
const (
	volumeDescriptorStart = 16 // first volume descriptor sector
	maxVolumeDescriptors  = 64

	descriptorTypePrimary    = 1
	descriptorTypeTerminator = 255

	standardIdentifier = "CD001"

	rootRecordOffset = 156 // root directory record inside the primary descriptor
	rootRecordLength = 34

	flagDirectory = 0x02
)

// ErrNotISO9660 is returned when no primary volume descriptor can be found
var ErrNotISO9660 = errors.New("no ISO 9660 primary volume descriptor")

// dirRecord is one parsed directory record
type dirRecord struct {
	name   string
	isDir  bool
	extent uint32
	length uint32
}

// PathResolver resolves absolute paths on an ISO 9660 volume to sector extents.
// DVD-Video discs are UDF bridge volumes, so the VIDEO_TS files are reachable
// through the ISO 9660 directory tree as well.
type PathResolver struct {
	r     io.ReaderAt
	root  dirRecord
	dirs  map[uint32][]dirRecord
	label string
}

// NewPathResolver locates the primary volume descriptor of the image read through r
func NewPathResolver(r io.ReaderAt) (*PathResolver, error) {
	buf := make([]byte, types.SectorSize)

	for i := 0; i < maxVolumeDescriptors; i++ {
		sector := types.Sector(volumeDescriptorStart + i)
		n, err := r.ReadAt(buf, sector.Offset())
		if n < len(buf) {
			if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrNotISO9660
			}
			return nil, fmt.Errorf("read volume descriptor %d: %w", sector, err)
		}
		if string(buf[1:6]) != standardIdentifier {
			return nil, ErrNotISO9660
		}

		switch buf[0] {
		case descriptorTypePrimary:
			root, ok := parseDirRecord(buf[rootRecordOffset : rootRecordOffset+rootRecordLength])
			if !ok || !root.isDir {
				return nil, fmt.Errorf("malformed root directory record")
			}
			return &PathResolver{
				r:     r,
				root:  root,
				dirs:  make(map[uint32][]dirRecord),
				label: strings.TrimRight(string(buf[40:72]), " \x00"),
			}, nil
		case descriptorTypeTerminator:
			return nil, ErrNotISO9660
		}
	}

	return nil, ErrNotISO9660
}

// VolumeLabel returns the volume identifier of the primary descriptor
func (p *PathResolver) VolumeLabel() string {
	return p.label
}

// FindFile resolves path case-insensitively. Missing files resolve to a zero
// start and length without error.
func (p *PathResolver) FindFile(path string) (types.Sector, uint32, error) {
	current := p.root

	components := strings.Split(strings.Trim(path, "/"), "/")
	for i, component := range components {
		if component == "" {
			continue
		}
		if !current.isDir {
			return 0, 0, nil
		}

		entries, err := p.listDir(current)
		if err != nil {
			return 0, 0, fmt.Errorf("list directory for %s: %w", path, err)
		}

		found := false
		for _, e := range entries {
			if strings.EqualFold(e.name, component) {
				current = e
				found = true
				break
			}
		}
		if !found {
			return 0, 0, nil
		}
		if i == len(components)-1 && current.isDir {
			return 0, 0, nil
		}
	}

	if current.isDir {
		return 0, 0, nil
	}
	return types.Sector(current.extent), current.length, nil
}

// listDir returns the records of a directory, excluding the dot entries
func (p *PathResolver) listDir(dir dirRecord) ([]dirRecord, error) {
	if cached, ok := p.dirs[dir.extent]; ok {
		return cached, nil
	}

	data := make([]byte, dir.length)
	if _, err := p.r.ReadAt(data, types.Sector(dir.extent).Offset()); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	var entries []dirRecord
	offset := 0
	for offset < len(data) {
		recLen := int(data[offset])
		if recLen == 0 {
			// Records never span sectors; skip the zero padding to the next one.
			next := (offset/types.SectorSize + 1) * types.SectorSize
			if next >= len(data) {
				break
			}
			offset = next
			continue
		}
		if offset+recLen > len(data) {
			break
		}

		record, ok := parseDirRecord(data[offset : offset+recLen])
		if ok && record.name != "\x00" && record.name != "\x01" {
			entries = append(entries, record)
		}
		offset += recLen
	}

	p.dirs[dir.extent] = entries
	return entries, nil
}

// parseDirRecord decodes one directory record, stripping the version suffix
func parseDirRecord(rec []byte) (dirRecord, bool) {
	if len(rec) < 34 {
		return dirRecord{}, false
	}
	nameLen := int(rec[32])
	if nameLen == 0 || 33+nameLen > len(rec) {
		return dirRecord{}, false
	}

	name := string(rec[33 : 33+nameLen])
	if idx := strings.Index(name, ";"); idx >= 0 {
		name = name[:idx]
	}
	if len(name) > 1 {
		name = strings.TrimSuffix(name, ".")
	}

	return dirRecord{
		name:   name,
		isDir:  rec[25]&flagDirectory != 0,
		extent: binary.LittleEndian.Uint32(rec[2:6]),
		length: binary.LittleEndian.Uint32(rec[10:14]),
	}, true
}
