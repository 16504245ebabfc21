package dump

import (
	"github.com/deploymenttheory/go-dvdread/internal/services"
	"github.com/deploymenttheory/go-dvdread/internal/types"
	"github.com/deploymenttheory/go-dvdread/pkg/app"
)

// Request represents a sector dump request
type Request struct {
	Source string
	// Bounds holds the optional start and end sector arguments as typed
	Bounds []string
	Digest bool

	// Range is filled in by Validate
	Range app.SectorRange
}

// Response summarises a finished dump
type Response struct {
	RunID       string               `json:"run_id" yaml:"run_id"`
	Source      string               `json:"source" yaml:"source"`
	VolumeLabel string               `json:"volume_label" yaml:"volume_label"`
	Start       uint32               `json:"start" yaml:"start"`
	End         uint32               `json:"end" yaml:"end"`
	Extents     int                  `json:"extents" yaml:"extents"`
	Protected   bool                 `json:"protected" yaml:"protected"`
	Stats       services.StreamStats `json:"stats" yaml:"stats"`
	Digest      string               `json:"digest,omitempty" yaml:"digest,omitempty"`
}

// BytesEmitted returns the size of the produced image
func (r *Response) BytesEmitted() uint64 {
	return r.Stats.SectorsEmitted * types.SectorSize
}
