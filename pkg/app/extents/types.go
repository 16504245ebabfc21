package extents

import (
	"github.com/deploymenttheory/go-dvdread/internal/types"
)

// Request represents an extent listing request
type Request struct {
	Source string
}

// Response lists the extents found on a disc
type Response struct {
	Source      string             `json:"source" yaml:"source"`
	VolumeLabel string             `json:"volume_label" yaml:"volume_label"`
	Extents     []types.FileExtent `json:"extents" yaml:"extents"`
	Sectors     uint64             `json:"sectors" yaml:"sectors"`
}

// ContentSectors returns the number of sectors read through the content key
func (r *Response) ContentSectors() uint64 {
	var total uint64
	for _, e := range r.Extents {
		if e.Role.IsContent() {
			total += uint64(e.Sectors())
		}
	}
	return total
}
