package extents

import (
	"strings"

	"github.com/deploymenttheory/go-dvdread/pkg/app"
)

// Validate validates an extent listing request
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Source) == "" {
		return app.NewError(app.ErrCodeInvalidInput, "source path is required", nil)
	}
	return nil
}

// ValidateFormat checks an output format name
func ValidateFormat(format string) error {
	switch format {
	case "table", "json", "yaml":
		return nil
	default:
		return app.NewError(app.ErrCodeInvalidInput, "unsupported output format: "+format, nil)
	}
}
