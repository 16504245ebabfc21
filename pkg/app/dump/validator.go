package dump

import (
	"strings"

	"github.com/deploymenttheory/go-dvdread/pkg/app"
)

// Validate validates a dump request and resolves its sector range
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Source) == "" {
		return app.NewError(app.ErrCodeInvalidInput, "source path is required", nil)
	}

	rng, err := app.ParseSectorRange(r.Bounds)
	if err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid sector range", err)
	}
	r.Range = rng
	return nil
}

// ValidateSummaryFormat checks the --summary value; empty disables the summary
func ValidateSummaryFormat(format string) error {
	switch format {
	case "", "table", "json", "yaml":
		return nil
	default:
		return app.NewError(app.ErrCodeInvalidInput, "unsupported summary format: "+format, nil)
	}
}
