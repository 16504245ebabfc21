// Package types holds the on-disc constants and value types shared by the
// DVD-Video readers, the extent index and the streaming pipeline.
package types

import (
	"fmt"
	"math"
)

// Logical block layout (DVD-Video, ECMA-267)
const (
	// SectorSize is the logical block size of the disc and of the output stream.
	SectorSize = 2048

	// MaxTitles is the number of title sets probed during discovery (VTS_00 .. VTS_99).
	MaxTitles = 100

	// MaxTitleParts is the number of content parts probed per title (VTS_nn_0 .. VTS_nn_9).
	MaxTitleParts = 10

	// MaxExtents bounds the extent index: per title one info, up to MaxTitleParts
	// content parts and one backup, plus the top-level entries.
	MaxExtents = MaxTitles*(MaxTitleParts+2) + 2

	// MaxNameLength is the number of visible characters kept from a file path.
	MaxNameLength = 22
)

// Sector is a logical block address on the disc.
type Sector uint32

// MaxSector is the largest addressable sector; it doubles as the "until end of
// media" upper bound of a transfer.
const MaxSector Sector = math.MaxUint32

// Offset returns the byte offset of the sector within the image.
func (s Sector) Offset() int64 {
	return int64(s) * SectorSize
}

// SectorsForLength converts a byte length into a whole number of sectors, rounding up.
func SectorsForLength(length uint32) uint32 {
	return uint32((uint64(length) + SectorSize - 1) / SectorSize)
}

// Role is the content role of a file on the disc, derived from its name.
type Role int

const (
	RoleOther Role = iota
	RoleTopLevelInfo
	RoleTopLevelContent
	RoleTopLevelBackup
	RoleTitleInfo
	RoleTitleContent
	RoleTitleBackup
)

var roleNames = map[Role]string{
	RoleOther:           "other",
	RoleTopLevelInfo:    "vmg_ifo",
	RoleTopLevelContent: "vmg_vob",
	RoleTopLevelBackup:  "vmg_bup",
	RoleTitleInfo:       "vts_ifo",
	RoleTitleContent:    "vts_vob",
	RoleTitleBackup:     "vts_bup",
}

// String returns the short role name used in listings
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// MarshalText lets roles render by name in json and yaml listings.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// IsContent reports whether sectors of this role are scrambled audio/video
// data that must be read through the content key.
func (r Role) IsContent() bool {
	return r == RoleTopLevelContent || r == RoleTitleContent
}

// HasControlField reports whether the first sector of a file with this role
// carries the video manager header with the region mask.
func (r Role) HasControlField() bool {
	return r == RoleTopLevelInfo || r == RoleTopLevelBackup
}

// FileExtent is the sector range [Start, End) occupied by one file.
type FileExtent struct {
	Name  string `json:"name" yaml:"name"`
	Role  Role   `json:"role" yaml:"role"`
	Start Sector `json:"start" yaml:"start"`
	End   Sector `json:"end" yaml:"end"`
}

// Contains reports whether the sector lies inside the extent.
func (e FileExtent) Contains(s Sector) bool {
	return e.Start <= s && s < e.End
}

// Sectors returns the number of sectors covered by the extent.
func (e FileExtent) Sectors() uint32 {
	return uint32(e.End - e.Start)
}

// String formats the extent the way diagnostics print it
func (e FileExtent) String() string {
	return fmt.Sprintf("%s [%d -- %d)", e.Name, e.Start, e.End)
}

// TruncateName bounds a file path to MaxNameLength characters.
func TruncateName(name string) string {
	if len(name) > MaxNameLength {
		return name[:MaxNameLength]
	}
	return name
}

// Well-known paths of the video manager and title sets
const (
	VideoTSDir = "/VIDEO_TS"

	TopLevelInfoPath    = VideoTSDir + "/VIDEO_TS.IFO"
	TopLevelContentPath = VideoTSDir + "/VIDEO_TS.VOB"
	TopLevelBackupPath  = VideoTSDir + "/VIDEO_TS.BUP"
)

// TopLevelPaths lists the video manager files in probe order.
var TopLevelPaths = []string{
	TopLevelInfoPath,
	TopLevelContentPath,
	TopLevelBackupPath,
}

// TitleInfoPath returns the path of a title's info file.
func TitleInfoPath(title int) string {
	return fmt.Sprintf("%s/VTS_%02d_0.IFO", VideoTSDir, title)
}

// TitleContentPath returns the path of one content part of a title.
func TitleContentPath(title, part int) string {
	return fmt.Sprintf("%s/VTS_%02d_%d.VOB", VideoTSDir, title, part)
}

// TitleBackupPath returns the path of a title's backup info file.
func TitleBackupPath(title int) string {
	return fmt.Sprintf("%s/VTS_%02d_0.BUP", VideoTSDir, title)
}

// Video manager header (VMGI_MAT)
const (
	// VMGMagic is the identifier at the start of VIDEO_TS.IFO and VIDEO_TS.BUP.
	VMGMagic = "DVDVIDEO-VMG"

	// RegionMaskOffset is the byte offset of the region restriction mask in the header.
	RegionMaskOffset = 0x23

	// RegionMaskFree is the mask value written when region restrictions are stripped.
	RegionMaskFree = 0xC0
)

// MPEG-2 program stream pack layout used to detect scrambled sectors
const (
	// PESScramblingOffset is the byte holding the PES scrambling control bits.
	PESScramblingOffset = 0x14

	// PESScramblingMask selects the scrambling control bits.
	PESScramblingMask = 0x30
)

// IsScrambled reports whether a sector's PES header marks it as scrambled.
func IsScrambled(block []byte) bool {
	return len(block) > PESScramblingOffset && block[PESScramblingOffset]&PESScramblingMask != 0
}
