package extents

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-dvdread/internal/testdisc"
	"github.com/deploymenttheory/go-dvdread/internal/types"
	"github.com/deploymenttheory/go-dvdread/pkg/app"
)

func newContext(t *testing.T, files []testdisc.File) (*app.Context, *bytes.Buffer) {
	t.Helper()
	ctx := app.NewContext()
	ctx.Fs = afero.NewMemMapFs()
	if files != nil {
		img := testdisc.Build("LISTING", files)
		require.NoError(t, afero.WriteFile(ctx.Fs, "/disc.iso", img.Data, 0o644))
	}
	diag := &bytes.Buffer{}
	ctx.Diagnostics = diag
	return ctx, diag
}

func TestHandle(t *testing.T) {
	ctx, diag := newContext(t, []testdisc.File{
		{Name: "VIDEO_TS.IFO", Sectors: 2},
		{Name: "VIDEO_TS.VOB", Sectors: 3},
		{Name: "VTS_01_0.IFO", Sectors: 1},
		{Name: "VTS_01_1.VOB", Sectors: 5},
		{Name: "VTS_01_2.VOB", Sectors: 5},
		{Name: "VTS_01_0.BUP", Sectors: 1},
		{Name: "README.TXT", Sectors: 1},
	})

	resp, err := Handle(ctx, &Request{Source: "/disc.iso"})
	require.NoError(t, err)
	assert.Empty(t, diag.String())

	assert.Equal(t, "LISTING", resp.VolumeLabel)
	require.Len(t, resp.Extents, 6, "unrelated files are not indexed")

	roles := make([]types.Role, len(resp.Extents))
	for i, e := range resp.Extents {
		roles[i] = e.Role
	}
	assert.Equal(t, []types.Role{
		types.RoleTopLevelInfo,
		types.RoleTopLevelContent,
		types.RoleTitleInfo,
		types.RoleTitleContent,
		types.RoleTitleContent,
		types.RoleTitleBackup,
	}, roles)

	assert.Equal(t, uint64(17), resp.Sectors)
	assert.Equal(t, uint64(13), resp.ContentSectors())
}

func TestHandle_OpenFailure(t *testing.T) {
	ctx, diag := newContext(t, nil)

	_, err := Handle(ctx, &Request{Source: "/disc.iso"})
	require.Error(t, err)
	assert.Equal(t, app.ErrCodeOpenFailed, app.ErrorCode(err))
	assert.Equal(t, "can't open /disc.iso\n", diag.String())
}

func TestHandle_NoFilesystem(t *testing.T) {
	ctx, diag := newContext(t, nil)
	require.NoError(t, afero.WriteFile(ctx.Fs, "/disc.iso", make([]byte, 20*types.SectorSize), 0o644))

	resp, err := Handle(ctx, &Request{Source: "/disc.iso"})
	require.NoError(t, err)
	assert.Empty(t, resp.Extents)
	assert.Empty(t, resp.VolumeLabel)
	assert.Equal(t, "no ISO 9660 filesystem on /disc.iso; no files indexed\n", diag.String())
}

func TestHandle_InvalidRequest(t *testing.T) {
	ctx, _ := newContext(t, nil)

	_, err := Handle(ctx, &Request{Source: "  "})
	assert.Equal(t, app.ErrCodeInvalidInput, app.ErrorCode(err))
}

func TestFormatOutput(t *testing.T) {
	resp := &Response{
		Source:      "/disc.iso",
		VolumeLabel: "LISTING",
		Extents: []types.FileExtent{
			{Name: "/VIDEO_TS/VIDEO_TS.IFO", Role: types.RoleTopLevelInfo, Start: 20, End: 22},
			{Name: "/VIDEO_TS/VTS_01_1.VOB", Role: types.RoleTitleContent, Start: 22, End: 30},
		},
		Sectors: 10,
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatOutput(&buf, resp, "table"))
		out := buf.String()
		assert.Contains(t, out, "NAME")
		assert.Contains(t, out, "vts_vob")
		assert.Contains(t, out, "Volume: LISTING")
		assert.Contains(t, out, "2 files, 10 sectors (8 content)")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatOutput(&buf, resp, "json"))
		var decoded struct {
			Extents []struct {
				Name string `json:"name"`
				Role string `json:"role"`
				End  uint32 `json:"end"`
			} `json:"extents"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded.Extents, 2)
		assert.Equal(t, "vmg_ifo", decoded.Extents[0].Role)
		assert.Equal(t, uint32(30), decoded.Extents[1].End)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatOutput(&buf, resp, "yaml"))
		assert.Contains(t, buf.String(), "role: vts_vob")
	})

	t.Run("empty table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, FormatOutput(&buf, &Response{Source: "/disc.iso"}, "table"))
		assert.Equal(t, "No DVD-Video files found on /disc.iso.\n", buf.String())
	})

	assert.Error(t, FormatOutput(&bytes.Buffer{}, resp, "xml"))
	assert.NoError(t, ValidateFormat("yaml"))
	assert.Error(t, ValidateFormat("xml"))
}
