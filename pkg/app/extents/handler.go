package extents

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-dvdread/internal/device"
	"github.com/deploymenttheory/go-dvdread/internal/parsers/iso9660"
	"github.com/deploymenttheory/go-dvdread/internal/services"
	"github.com/deploymenttheory/go-dvdread/internal/types"
	"github.com/deploymenttheory/go-dvdread/pkg/app"
)

// Handle builds the extent index of a disc
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	events := services.NewEventLogger(ctx.Diagnostics, ctx.Logger)
	index, label, err := BuildIndex(ctx, req.Source, events)
	if err != nil {
		events.Error("can't open %s", req.Source)
		return nil, err
	}

	resp := &Response{
		Source:      req.Source,
		VolumeLabel: label,
		Extents:     index.Extents(),
	}
	for _, e := range resp.Extents {
		resp.Sectors += uint64(e.Sectors())
	}
	return resp, nil
}

// BuildIndex opens source, resolves the DVD-Video files through its ISO 9660
// directory and returns their extents with the volume label. A source without
// an ISO 9660 volume yields an empty index. The source is closed again before
// returning.
func BuildIndex(ctx *app.Context, source string, events *services.EventLogger) (*services.ExtentIndex, string, error) {
	dev, err := device.OpenImage(ctx.Fs, source)
	if err != nil {
		return nil, "", app.NewError(app.ErrCodeOpenFailed, fmt.Sprintf("can't open %s", source), err)
	}
	defer dev.Close()

	resolver, err := iso9660.NewPathResolver(dev)
	if errors.Is(err, iso9660.ErrNotISO9660) {
		// Damaged or UDF-only images are still copied, just without file context.
		if events != nil {
			events.Warn("no ISO 9660 filesystem on %s; no files indexed", source)
		}
		return services.NewExtentIndex(types.MaxExtents), "", nil
	}
	if err != nil {
		return nil, "", app.NewError(app.ErrCodeOpenFailed, fmt.Sprintf("can't read filesystem of %s", source), err)
	}

	builder := services.NewExtentIndexBuilder(resolver, events)
	index := builder.Build()

	ctx.Logger.Info("Built extent index",
		"source", source,
		"label", resolver.VolumeLabel(),
		"extents", index.Len(),
		"probed", len(builder.Probed()))

	return index, resolver.VolumeLabel(), nil
}
