// Package testdisc builds small synthetic DVD-Video images for tests.
package testdisc

import (
	"encoding/binary"
	"strings"

	"github.com/deploymenttheory/go-dvdread/internal/types"
)

// Layout of the generated volume
const (
	pvdSector     = 16
	rootDirSector = 18
	videoTSSector = 19
)

// File describes one file placed under /VIDEO_TS
type File struct {
	Name    string // e.g. "VTS_01_1.VOB"
	Sectors int
	// Length overrides the byte length recorded in the directory; zero means Sectors*SectorSize.
	Length uint32
	// Fill writes the content of the file's i-th sector. Nil leaves the sector
	// filled with its own sector number pattern.
	Fill func(i int, block []byte)
}

// Image is a generated volume and the extents its files occupy
type Image struct {
	Data    []byte
	Extents map[string]types.FileExtent
}

// Build lays out an ISO 9660 volume containing /VIDEO_TS and the given files,
// in order, directly after the directory sectors.
func Build(label string, files []File) *Image {
	dirRecords := [][]byte{
		dirRecord("\x00", videoTSSector, 0, true),
		dirRecord("\x01", rootDirSector, types.SectorSize, true),
	}
	// Placeholder lengths are patched once the directory size is known.
	for _, f := range files {
		dirRecords = append(dirRecords, dirRecord(f.Name+";1", 0, 0, false))
	}
	dirSectors := sectorsForRecords(dirRecords)

	next := uint32(videoTSSector + dirSectors)
	img := &Image{Extents: make(map[string]types.FileExtent)}
	for i, f := range files {
		length := f.Length
		if length == 0 {
			length = uint32(f.Sectors) * types.SectorSize
		}
		dirRecords[i+2] = dirRecord(f.Name+";1", next, length, false)
		img.Extents[f.Name] = types.FileExtent{
			Name:  types.TruncateName(types.VideoTSDir + "/" + f.Name),
			Start: types.Sector(next),
			End:   types.Sector(next + uint32(f.Sectors)),
		}
		next += uint32(f.Sectors)
	}
	dirRecords[0] = dirRecord("\x00", videoTSSector, uint32(dirSectors)*types.SectorSize, true)

	img.Data = make([]byte, int(next)*types.SectorSize)
	writePVD(img.Data, label, next)
	writeTerminator(img.Data)

	root := [][]byte{
		dirRecord("\x00", rootDirSector, types.SectorSize, true),
		dirRecord("\x01", rootDirSector, types.SectorSize, true),
		dirRecord("VIDEO_TS", videoTSSector, uint32(dirSectors)*types.SectorSize, true),
	}
	writeRecords(img.Data, rootDirSector, root)
	writeRecords(img.Data, videoTSSector, dirRecords)

	for _, f := range files {
		ext := img.Extents[f.Name]
		for i := 0; i < f.Sectors; i++ {
			s := ext.Start + types.Sector(i)
			block := img.Data[s.Offset() : s.Offset()+types.SectorSize]
			if f.Fill != nil {
				f.Fill(i, block)
			} else {
				SectorPattern(s, block)
			}
		}
	}

	return img
}

// Sector returns a copy of the content of sector s
func (img *Image) Sector(s types.Sector) []byte {
	block := make([]byte, types.SectorSize)
	copy(block, img.Data[s.Offset():])
	return block
}

// SectorPattern fills block with a pattern derived from its sector number
func SectorPattern(s types.Sector, block []byte) {
	for i := 0; i < len(block); i += 4 {
		binary.LittleEndian.PutUint32(block[i:], uint32(s))
	}
}

// VMGHeader returns a Fill function writing a video manager header with the given region mask
func VMGHeader(mask byte) func(i int, block []byte) {
	return func(i int, block []byte) {
		if i != 0 {
			return
		}
		copy(block, types.VMGMagic)
		block[types.RegionMaskOffset] = mask
	}
}

// ScrambledPacks returns a Fill function marking every sector as a scrambled MPEG-2 pack
func ScrambledPacks() func(i int, block []byte) {
	return func(i int, block []byte) {
		copy(block, []byte{0x00, 0x00, 0x01, 0xBA})
		block[types.PESScramblingOffset] = 0x30
	}
}

func dirRecord(name string, extent, length uint32, isDir bool) []byte {
	size := 33 + len(name)
	if size%2 == 1 {
		size++
	}
	rec := make([]byte, size)
	rec[0] = byte(size)
	binary.LittleEndian.PutUint32(rec[2:], extent)
	binary.BigEndian.PutUint32(rec[6:], extent)
	binary.LittleEndian.PutUint32(rec[10:], length)
	binary.BigEndian.PutUint32(rec[14:], length)
	if isDir {
		rec[25] = 0x02
	}
	binary.LittleEndian.PutUint16(rec[28:], 1)
	binary.BigEndian.PutUint16(rec[30:], 1)
	rec[32] = byte(len(name))
	copy(rec[33:], name)
	return rec
}

func sectorsForRecords(records [][]byte) int {
	sectors, used := 1, 0
	for _, rec := range records {
		if used+len(rec) > types.SectorSize {
			sectors++
			used = 0
		}
		used += len(rec)
	}
	return sectors
}

func writeRecords(data []byte, start int, records [][]byte) {
	sector, used := start, 0
	for _, rec := range records {
		if used+len(rec) > types.SectorSize {
			sector++
			used = 0
		}
		copy(data[sector*types.SectorSize+used:], rec)
		used += len(rec)
	}
}

func writePVD(data []byte, label string, totalSectors uint32) {
	pvd := data[pvdSector*types.SectorSize : (pvdSector+1)*types.SectorSize]
	pvd[0] = 1
	copy(pvd[1:6], "CD001")
	pvd[6] = 1
	copy(pvd[40:72], label+strings.Repeat(" ", 32))
	binary.LittleEndian.PutUint32(pvd[80:], totalSectors)
	binary.BigEndian.PutUint32(pvd[84:], totalSectors)
	binary.LittleEndian.PutUint16(pvd[128:], types.SectorSize)
	binary.BigEndian.PutUint16(pvd[130:], types.SectorSize)
	copy(pvd[156:], dirRecord("\x00", rootDirSector, types.SectorSize, true))
}

func writeTerminator(data []byte) {
	term := data[(pvdSector+1)*types.SectorSize : (pvdSector+2)*types.SectorSize]
	term[0] = 255
	copy(term[1:6], "CD001")
	term[6] = 1
}
