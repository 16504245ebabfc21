package extents

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// FormatOutput writes the extent listing to w in the given format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		return formatJSON(w, response)
	case "yaml":
		return formatYAML(w, response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func formatTable(w io.Writer, response *Response) error {
	if len(response.Extents) == 0 {
		fmt.Fprintf(w, "No DVD-Video files found on %s.\n", response.Source)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NAME\tROLE\tSTART\tEND\tSECTORS\n")
	fmt.Fprintf(tw, "----\t----\t-----\t---\t-------\n")
	for _, e := range response.Extents {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", e.Name, e.Role, e.Start, e.End, e.Sectors())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n")
	if response.VolumeLabel != "" {
		fmt.Fprintf(w, "Volume: %s\n", response.VolumeLabel)
	}
	fmt.Fprintf(w, "%d files, %d sectors (%d content)\n",
		len(response.Extents), response.Sectors, response.ContentSectors())
	return nil
}

func formatJSON(w io.Writer, response *Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

func formatYAML(w io.Writer, response *Response) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}
