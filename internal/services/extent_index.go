package services

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/deploymenttheory/go-dvdread/internal/interfaces"
	"github.com/deploymenttheory/go-dvdread/internal/types"
)

// ErrCapacity is returned when an extent does not fit in the index
var ErrCapacity = errors.New("extent index is full")

// NoExtent is the lookup result for sectors outside every known file
const NoExtent = -1

var titleStem = regexp.MustCompile(`(?i)^VTS_\d+_\d+$`)

// ClassifyRole maps a file path to its content role using only its base name.
// The extension selects info, content or backup; the stem selects the video
// manager (VIDEO_TS) or a title set (VTS_nn_p). Anything else is RoleOther.
func ClassifyRole(name string) types.Role {
	base := path.Base(name)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	var kind int
	switch strings.ToUpper(ext) {
	case ".IFO":
		kind = 0
	case ".VOB":
		kind = 1
	case ".BUP":
		kind = 2
	default:
		return types.RoleOther
	}

	switch {
	case strings.EqualFold(stem, "VIDEO_TS"):
		return types.RoleTopLevelInfo + types.Role(kind)
	case titleStem.MatchString(stem):
		return types.RoleTitleInfo + types.Role(kind)
	default:
		return types.RoleOther
	}
}

// ExtentIndex is the ordered, bounded list of file extents found on a disc.
// Order is discovery order; extents are assumed not to overlap.
type ExtentIndex struct {
	extents  []types.FileExtent
	capacity int
}

// NewExtentIndex creates an empty index holding at most capacity extents
func NewExtentIndex(capacity int) *ExtentIndex {
	return &ExtentIndex{capacity: capacity}
}

// Add appends the file at name occupying length bytes from start. The extent is
// returned even when the index is full, together with ErrCapacity.
func (x *ExtentIndex) Add(name string, start types.Sector, length uint32) (types.FileExtent, error) {
	extent := types.FileExtent{
		Name:  types.TruncateName(name),
		Role:  ClassifyRole(name),
		Start: start,
		End:   start + types.Sector(types.SectorsForLength(length)),
	}
	if len(x.extents) >= x.capacity {
		return extent, ErrCapacity
	}
	x.extents = append(x.extents, extent)
	return extent, nil
}

// Lookup returns the position of the first extent containing s, or NoExtent
func (x *ExtentIndex) Lookup(s types.Sector) int {
	for i, e := range x.extents {
		if e.Contains(s) {
			return i
		}
	}
	return NoExtent
}

// Extent returns the extent at position i
func (x *ExtentIndex) Extent(i int) types.FileExtent {
	return x.extents[i]
}

// Len returns the number of extents
func (x *ExtentIndex) Len() int {
	return len(x.extents)
}

// Extents returns a copy of all extents in discovery order
func (x *ExtentIndex) Extents() []types.FileExtent {
	out := make([]types.FileExtent, len(x.extents))
	copy(out, x.extents)
	return out
}

// FirstContentExtent returns the first content extent in discovery order
func (x *ExtentIndex) FirstContentExtent() (types.FileExtent, bool) {
	for _, e := range x.extents {
		if e.Role.IsContent() {
			return e, true
		}
	}
	return types.FileExtent{}, false
}

// ExtentIndexBuilder discovers the well-known DVD-Video files through a filesystem query
type ExtentIndexBuilder struct {
	query    interfaces.FilesystemQuery
	events   *EventLogger
	capacity int
	probed   []string
}

// NewExtentIndexBuilder creates a builder; events receives dropped-extent and lookup warnings
func NewExtentIndexBuilder(query interfaces.FilesystemQuery, events *EventLogger) *ExtentIndexBuilder {
	return &ExtentIndexBuilder{
		query:    query,
		events:   events,
		capacity: types.MaxExtents,
	}
}

// WithCapacity overrides the index capacity
func (b *ExtentIndexBuilder) WithCapacity(capacity int) *ExtentIndexBuilder {
	b.capacity = capacity
	return b
}

// Probed returns every path queried by the last Build, in order
func (b *ExtentIndexBuilder) Probed() []string {
	return b.probed
}

// Build probes the video manager files, then each title's info file, its
// content parts and its backup file. Parts stop at the first absent one; titles
// stop at the first title after title 0 without content parts.
func (b *ExtentIndexBuilder) Build() *ExtentIndex {
	index := NewExtentIndex(b.capacity)
	b.probed = b.probed[:0]

	for _, p := range types.TopLevelPaths {
		b.probe(index, p)
	}

	for title := 0; title < types.MaxTitles; title++ {
		b.probe(index, types.TitleInfoPath(title))

		parts := 0
		for part := 0; part < types.MaxTitleParts; part++ {
			if !b.probe(index, types.TitleContentPath(title, part)) {
				break
			}
			parts++
		}
		if title != 0 && parts == 0 {
			break
		}

		b.probe(index, types.TitleBackupPath(title))
	}

	return index
}

// probe queries one path and adds it when present. It reports whether the file exists.
func (b *ExtentIndexBuilder) probe(index *ExtentIndex, name string) bool {
	b.probed = append(b.probed, name)

	start, length, err := b.query.FindFile(name)
	if err != nil {
		b.warn("can't look up %s: %v", name, err)
		return false
	}
	if start == 0 || length == 0 {
		return false
	}

	if extent, err := index.Add(name, start, length); err != nil {
		b.warn("can't add %s [%d -- %d)", name, extent.Start, extent.End)
	}
	return true
}

func (b *ExtentIndexBuilder) warn(format string, args ...any) {
	if b.events != nil {
		b.events.Warn(format, args...)
	}
}

// String lists the index one extent per line
func (x *ExtentIndex) String() string {
	var sb strings.Builder
	for _, e := range x.extents {
		fmt.Fprintf(&sb, "%s %s\n", e.Role, e)
	}
	return sb.String()
}
