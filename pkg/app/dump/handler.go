package dump

import (
	"encoding/hex"
	"errors"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/deploymenttheory/go-dvdread/internal/services"
	"github.com/deploymenttheory/go-dvdread/pkg/app"
	"github.com/deploymenttheory/go-dvdread/pkg/app/extents"
)

// Handle copies the requested sector range of a disc to ctx.Output
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cfg := ctx.Config
	events := services.NewEventLogger(ctx.Diagnostics, ctx.Logger)

	// 1. Index the disc files
	index, label, err := extents.BuildIndex(ctx, req.Source, events)
	if err != nil {
		events.Error("can't open %s", req.Source)
		return nil, err
	}

	// 2. Open the session, probing the first content sector for scrambling
	opts := services.SessionOptions{Logger: ctx.Logger}
	if first, ok := index.FirstContentExtent(); ok {
		opts.ProbeSector = first.Start
		opts.HasProbe = true
	}
	session, err := services.OpenImageSession(ctx.Fs, req.Source, opts)
	if err != nil {
		events.Error("can't open %s", req.Source)
		return nil, app.NewError(app.ErrCodeOpenFailed, "can't open "+req.Source, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			ctx.Logger.Warn("Failed to close session", "source", req.Source, "error", err)
		}
	}()

	resp := &Response{
		RunID:       ctx.RunID,
		Source:      req.Source,
		VolumeLabel: label,
		Start:       uint32(req.Range.Start),
		End:         uint32(req.Range.End),
		Extents:     index.Len(),
		Protected:   session.IsProtected(),
	}
	if resp.Protected {
		events.Info("%s disk is scrambled", req.Source)
	}

	// 3. Stream
	var (
		out    = ctx.Output
		digest hash.Hash
	)
	if req.Digest || cfg.Output.Digest {
		digest, err = blake2b.New256(nil)
		if err != nil {
			return nil, app.NewError(app.ErrCodeInternal, "can't create digest", err)
		}
		out = io.MultiWriter(ctx.Output, digest)
	}

	progress := services.NewProgressReporter(ctx.Diagnostics, req.Range.Start, ctx.Interactive)
	stream := services.NewStreamService(index, session, out, progress, events,
		services.WithRetry(services.RetryPolicy{
			Attempts: cfg.Read.Retries,
			Delay:    cfg.Read.RetryDelay,
		}),
		services.WithLogger(ctx.Logger),
	)

	ctx.Logger.Info("Starting transfer",
		"source", req.Source,
		"range", req.Range.String(),
		"sectors", req.Range.Sectors(),
		"extents", index.Len(),
		"protected", resp.Protected)

	stats, runErr := stream.Run(req.Range.Start, req.Range.End)
	resp.Stats = *stats
	if digest != nil {
		resp.Digest = hex.EncodeToString(digest.Sum(nil))
	}

	ctx.Logger.Info("Transfer finished",
		"termination", stats.Termination,
		"sectors", stats.SectorsEmitted,
		"zero_filled", stats.ZeroFilled,
		"elapsed", stats.Elapsed)

	if runErr != nil {
		events.Error("%v", runErr)
		return resp, classify(runErr)
	}

	events.Info("end of file %s", req.Source)
	return resp, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, services.ErrWrite):
		return app.NewError(app.ErrCodeWriteFailed, "output write failed", err)
	case errors.Is(err, services.ErrSeekProtocol):
		return app.NewError(app.ErrCodeSeekProtocol, "seek failed", err)
	default:
		return app.NewError(app.ErrCodeInternal, "transfer failed", err)
	}
}
