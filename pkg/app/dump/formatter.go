package dump

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// FormatSummary writes the end-of-run summary to w in the given format
func FormatSummary(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func formatTable(w io.Writer, response *Response) error {
	stats := response.Stats

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Source:\t%s\n", response.Source)
	if response.VolumeLabel != "" {
		fmt.Fprintf(tw, "Volume:\t%s\n", response.VolumeLabel)
	}
	fmt.Fprintf(tw, "Range:\t%d - %d\n", stats.Start, stats.Next)
	fmt.Fprintf(tw, "Files indexed:\t%d\n", response.Extents)
	fmt.Fprintf(tw, "Scrambled:\t%t\n", response.Protected)
	fmt.Fprintf(tw, "Sectors written:\t%d (%s)\n", stats.SectorsEmitted, formatBytes(response.BytesEmitted()))
	fmt.Fprintf(tw, "Zero-filled:\t%d\n", stats.ZeroFilled)
	fmt.Fprintf(tw, "Read retries:\t%d\n", stats.ReadRetries)
	fmt.Fprintf(tw, "Key seeks:\t%d\n", stats.KeySeeks)
	fmt.Fprintf(tw, "Header reports:\t%d\n", stats.HeaderReports)
	fmt.Fprintf(tw, "Termination:\t%s\n", stats.Termination)
	fmt.Fprintf(tw, "Elapsed:\t%v\n", stats.Elapsed)
	if response.Digest != "" {
		fmt.Fprintf(tw, "BLAKE2b-256:\t%s\n", response.Digest)
	}
	return tw.Flush()
}

// formatBytes formats byte count as human readable
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
