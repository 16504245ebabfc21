package dump

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/deploymenttheory/go-dvdread/internal/services"
	"github.com/deploymenttheory/go-dvdread/internal/testdisc"
	"github.com/deploymenttheory/go-dvdread/internal/types"
	"github.com/deploymenttheory/go-dvdread/pkg/app"
)

func testImage() *testdisc.Image {
	return testdisc.Build("TESTDISC", []testdisc.File{
		{Name: "VIDEO_TS.IFO", Sectors: 2, Fill: testdisc.VMGHeader(0xFD)},
		{Name: "VIDEO_TS.BUP", Sectors: 2, Fill: testdisc.VMGHeader(0xFD)},
		{Name: "VTS_01_0.IFO", Sectors: 1},
		{Name: "VTS_01_1.VOB", Sectors: 4, Fill: testdisc.ScrambledPacks()},
		{Name: "VTS_01_0.BUP", Sectors: 1},
	})
}

type testRun struct {
	ctx  *app.Context
	out  *bytes.Buffer
	diag *bytes.Buffer
}

func newTestRun(t *testing.T, data []byte) *testRun {
	t.Helper()
	ctx := app.NewContext()
	ctx.Fs = afero.NewMemMapFs()
	if data != nil {
		require.NoError(t, afero.WriteFile(ctx.Fs, "/disc.iso", data, 0o644))
	}
	run := &testRun{ctx: ctx, out: &bytes.Buffer{}, diag: &bytes.Buffer{}}
	ctx.Output = run.out
	ctx.Diagnostics = run.diag
	return run
}

// limitedOutput accepts limit sectors and fails every later write
type limitedOutput struct {
	bytes.Buffer
	limit  int
	writes int
}

func (w *limitedOutput) Write(p []byte) (int, error) {
	w.writes++
	if w.Len() >= w.limit*types.SectorSize {
		return 0, errors.New("broken pipe")
	}
	return w.Buffer.Write(p)
}

type brokenOutput struct{}

func (brokenOutput) Write(p []byte) (int, error) {
	return 0, errors.New("no space left on device")
}

func TestHandle_FullImage(t *testing.T) {
	img := testImage()
	run := newTestRun(t, img.Data)

	resp, err := Handle(run.ctx, &Request{Source: "/disc.iso"})
	require.NoError(t, err)

	assert.Equal(t, img.Data, run.out.Bytes(), "the whole image is copied through unchanged")
	assert.Equal(t, services.TerminationEndOfMedia, resp.Stats.Termination)
	assert.Equal(t, uint64(len(img.Data)/types.SectorSize), resp.Stats.SectorsEmitted)
	assert.Equal(t, 5, resp.Extents)
	assert.Equal(t, "TESTDISC", resp.VolumeLabel)
	assert.True(t, resp.Protected)
	assert.Equal(t, uint64(1), resp.Stats.KeySeeks)
	assert.Equal(t, uint64(2), resp.Stats.HeaderReports)
	assert.Zero(t, resp.Stats.ZeroFilled)
	assert.Empty(t, resp.Digest)

	diag := run.diag.String()
	assert.Contains(t, diag, "/disc.iso disk is scrambled\n")
	assert.Contains(t, diag, "(/VIDEO_TS/VIDEO_TS.IFO) reg.mask 0xFD\n")
	assert.Contains(t, diag, "(/VIDEO_TS/VIDEO_TS.BUP) reg.mask 0xFD\n")
	assert.Contains(t, diag, "(/VIDEO_TS/VTS_01_1.VOB) \n")
	assert.True(t, bytes.HasSuffix(run.diag.Bytes(), []byte("end of file /disc.iso\n")))
}

func TestHandle_SectorRange(t *testing.T) {
	img := testImage()
	run := newTestRun(t, img.Data)
	require.Equal(t, types.Sector(25), img.Extents["VTS_01_1.VOB"].Start)

	resp, err := Handle(run.ctx, &Request{Source: "/disc.iso", Bounds: []string{"20", "25"}})
	require.NoError(t, err)

	assert.Equal(t, img.Data[20*types.SectorSize:25*types.SectorSize], run.out.Bytes())
	assert.Equal(t, services.TerminationRangeDone, resp.Stats.Termination)
	assert.Equal(t, uint64(5), resp.Stats.SectorsEmitted)
	assert.Equal(t, uint32(20), resp.Start)
	assert.Equal(t, uint32(25), resp.End)
	assert.Equal(t, uint64(2), resp.Stats.HeaderReports)
	assert.Zero(t, resp.Stats.KeySeeks, "range stops at the content file")
}

func TestHandle_Digest(t *testing.T) {
	img := testImage()
	run := newTestRun(t, img.Data)

	resp, err := Handle(run.ctx, &Request{Source: "/disc.iso", Digest: true})
	require.NoError(t, err)

	sum := blake2b.Sum256(img.Data)
	assert.Equal(t, hex.EncodeToString(sum[:]), resp.Digest)
}

func TestHandle_Errors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		request  *Request
		output   bool
		wantCode string
		wantDiag string
	}{
		{
			name:     "missing source",
			request:  &Request{Source: "/disc.iso"},
			wantCode: app.ErrCodeOpenFailed,
			wantDiag: "can't open /disc.iso\n",
		},
		{
			name:     "empty source",
			request:  &Request{Source: ""},
			wantCode: app.ErrCodeInvalidInput,
		},
		{
			name:     "non numeric start",
			data:     testImage().Data,
			request:  &Request{Source: "/disc.iso", Bounds: []string{"ten"}},
			wantCode: app.ErrCodeInvalidInput,
		},
		{
			name:     "unwritable output",
			data:     testImage().Data,
			request:  &Request{Source: "/disc.iso"},
			output:   true,
			wantCode: app.ErrCodeWriteFailed,
			wantDiag: "write - no space left on device\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := newTestRun(t, tt.data)
			if tt.output {
				run.ctx.Output = brokenOutput{}
			}

			_, err := Handle(run.ctx, tt.request)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, app.ErrorCode(err))
			if tt.wantDiag != "" {
				assert.Contains(t, run.diag.String(), tt.wantDiag)
			}
		})
	}
}

func TestHandle_WriteFailureStopsAtFailingSector(t *testing.T) {
	img := testImage()
	run := newTestRun(t, img.Data)
	out := &limitedOutput{limit: 4}
	run.ctx.Output = out

	resp, err := Handle(run.ctx, &Request{Source: "/disc.iso", Digest: true})
	require.Error(t, err)
	assert.Equal(t, app.ErrCodeWriteFailed, app.ErrorCode(err))

	assert.Equal(t, 5, out.writes, "no sector is read after the failing write")
	assert.Equal(t, 4*types.SectorSize, out.Len())
	assert.Equal(t, uint64(4), resp.Stats.SectorsEmitted)
	assert.Equal(t, types.Sector(4), resp.Stats.Next)
	assert.Equal(t, services.TerminationWriteError, resp.Stats.Termination)

	sum := blake2b.Sum256(img.Data[:4*types.SectorSize])
	assert.Equal(t, hex.EncodeToString(sum[:]), resp.Digest, "digest covers written sectors only")

	var streamErr *services.StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, types.Sector(4), streamErr.Sector)
	assert.Contains(t, run.diag.String(), "write - broken pipe\n")
}

func TestHandle_NoFilesystemIsCopiedPlain(t *testing.T) {
	data := make([]byte, 20*types.SectorSize)
	for s := 0; s < 20; s++ {
		testdisc.SectorPattern(types.Sector(s), data[s*types.SectorSize:(s+1)*types.SectorSize])
	}
	run := newTestRun(t, data)

	resp, err := Handle(run.ctx, &Request{Source: "/disc.iso"})
	require.NoError(t, err)

	assert.Equal(t, data, run.out.Bytes())
	assert.Zero(t, resp.Extents)
	assert.False(t, resp.Protected)
	assert.Zero(t, resp.Stats.KeySeeks)
	assert.Equal(t, services.TerminationEndOfMedia, resp.Stats.Termination)

	diag := run.diag.String()
	assert.Contains(t, diag, "no ISO 9660 filesystem on /disc.iso")
	assert.Contains(t, diag, "end of file /disc.iso\n")
}

func TestHandle_EmptyRange(t *testing.T) {
	img := testImage()
	run := newTestRun(t, img.Data)

	resp, err := Handle(run.ctx, &Request{Source: "/disc.iso", Bounds: []string{"10", "5"}})
	require.NoError(t, err)

	assert.Zero(t, run.out.Len())
	assert.Zero(t, resp.Stats.SectorsEmitted)
	assert.Equal(t, services.TerminationRangeDone, resp.Stats.Termination)
	assert.Equal(t, "/disc.iso disk is scrambled\nend of file /disc.iso\n", run.diag.String(), "no range line for an empty range")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "write failure",
			err:  &services.StreamError{Stage: services.StageWrite, Err: errors.New("broken pipe"), Kind: services.ErrWrite},
			want: app.ErrCodeWriteFailed,
		},
		{
			name: "seek mismatch",
			err:  &services.StreamError{Stage: services.StageSeek, Err: errors.New("moved"), Kind: services.ErrSeekProtocol},
			want: app.ErrCodeSeekProtocol,
		},
		{
			name: "anything else",
			err:  errors.New("unexpected"),
			want: app.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err)
			assert.Equal(t, tt.want, app.ErrorCode(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
