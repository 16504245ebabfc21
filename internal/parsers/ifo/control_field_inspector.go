package ifo

import (
	"fmt"
	"strings"

	"github.com/deploymenttheory/go-dvdread/internal/types"
)

// RegionPolicy decides whether a region mask should be rewritten to region free
type RegionPolicy func(mask byte) bool

// ReportOnly never rewrites the region mask
func ReportOnly(mask byte) bool {
	return false
}

// StripAll rewrites every restricted mask to region free
func StripAll(mask byte) bool {
	return mask != types.RegionMaskFree
}

// InspectionReport describes the video manager header of one sector
type InspectionReport struct {
	HeaderPresent bool
	RegionMask    byte
	Stripped      bool
}

// String renders the report as a diagnostic message
func (r InspectionReport) String() string {
	if !r.HeaderPresent {
		return "missing " + types.VMGMagic
	}
	prefix := ""
	if r.Stripped {
		prefix = "stripping "
	}
	return fmt.Sprintf("%sreg.mask 0x%02X", prefix, r.RegionMask)
}

// ControlFieldInspector validates the video manager header and reports its region mask
type ControlFieldInspector struct {
	policy RegionPolicy
}

// NewControlFieldInspector creates an inspector applying policy; a nil policy reports only
func NewControlFieldInspector(policy RegionPolicy) *ControlFieldInspector {
	if policy == nil {
		policy = ReportOnly
	}
	return &ControlFieldInspector{policy: policy}
}

// Inspect examines the first sector of VIDEO_TS.IFO or VIDEO_TS.BUP. The block is
// modified only when the policy asks for the mask to be stripped.
func (i *ControlFieldInspector) Inspect(block []byte) (InspectionReport, error) {
	if len(block) <= types.RegionMaskOffset {
		return InspectionReport{}, fmt.Errorf("block too small for header: %d bytes, need at least %d", len(block), types.RegionMaskOffset+1)
	}

	if !strings.EqualFold(string(block[:len(types.VMGMagic)]), types.VMGMagic) {
		return InspectionReport{}, nil
	}

	report := InspectionReport{
		HeaderPresent: true,
		RegionMask:    block[types.RegionMaskOffset],
	}
	if i.policy(report.RegionMask) {
		block[types.RegionMaskOffset] = types.RegionMaskFree
		report.Stripped = true
	}

	return report, nil
}
