package ifo

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-dvdread/internal/types"
)

func vmgBlock(magic string, mask byte) []byte {
	block := make([]byte, types.SectorSize)
	copy(block, magic)
	block[types.RegionMaskOffset] = mask
	return block
}

func TestControlFieldInspector_Inspect(t *testing.T) {
	tests := []struct {
		name       string
		policy     RegionPolicy
		block      []byte
		want       InspectionReport
		wantString string
		wantMask   byte
	}{
		{
			name:       "region 2 reported",
			block:      vmgBlock(types.VMGMagic, 0xFD),
			want:       InspectionReport{HeaderPresent: true, RegionMask: 0xFD},
			wantString: "reg.mask 0xFD",
			wantMask:   0xFD,
		},
		{
			name:       "region free reported",
			block:      vmgBlock(types.VMGMagic, 0x00),
			want:       InspectionReport{HeaderPresent: true, RegionMask: 0x00},
			wantString: "reg.mask 0x00",
			wantMask:   0x00,
		},
		{
			name:       "magic compared case-insensitively",
			block:      vmgBlock("dvdvideo-vmg", 0xC0),
			want:       InspectionReport{HeaderPresent: true, RegionMask: 0xC0},
			wantString: "reg.mask 0xC0",
			wantMask:   0xC0,
		},
		{
			name:       "missing magic",
			block:      vmgBlock("DVDVIDEO-VTS", 0xFD),
			want:       InspectionReport{},
			wantString: "missing DVDVIDEO-VMG",
			wantMask:   0xFD,
		},
		{
			name:       "strip policy rewrites mask",
			policy:     StripAll,
			block:      vmgBlock(types.VMGMagic, 0xFD),
			want:       InspectionReport{HeaderPresent: true, RegionMask: 0xFD, Stripped: true},
			wantString: "stripping reg.mask 0xFD",
			wantMask:   types.RegionMaskFree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := bytes.Clone(tt.block)

			report, err := NewControlFieldInspector(tt.policy).Inspect(tt.block)
			require.NoError(t, err)

			assert.Equal(t, tt.want, report)
			assert.Equal(t, tt.wantString, report.String())
			assert.Equal(t, tt.wantMask, tt.block[types.RegionMaskOffset])
			if !report.Stripped {
				assert.Equal(t, original, tt.block, "block must not change without a strip")
			}
		})
	}
}

func TestControlFieldInspector_ShortBlock(t *testing.T) {
	_, err := NewControlFieldInspector(nil).Inspect(make([]byte, 16))
	assert.Error(t, err)
}
