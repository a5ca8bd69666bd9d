package metrics

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Markdown renders the record as a Markdown document with a GFM table.
func (r *Record) Markdown(title string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	sb.WriteString("| Landmark | Position | Centerline Index | Diameter (mm) |\n")
	sb.WriteString("|---|---|---|---:|\n")
	for _, row := range r.allRows() {
		fmt.Fprintf(&sb, "| %s | %s | %s | %.2f |\n", row.Name, formatPosition(row.Position), FormatLocation(row.Loc), row.Diameter)
	}
	sb.WriteString("\n")
	if r.Height > 0 {
		fmt.Fprintf(&sb, "- **Patient height:** %s m\n", formatFloat(r.Height))
		fmt.Fprintf(&sb, "- **AHI:** %.2f mm/m\n", r.AHI)
	}
	if r.HasVolume {
		fmt.Fprintf(&sb, "- **Volume:** %.1f mm³\n", r.Volume)
		fmt.Fprintf(&sb, "- **Surface:** %.1f mm²\n", r.Surface)
		var locs []string
		for _, l := range slices.Concat(r.Bounds, r.Exclusions) {
			locs = append(locs, FormatLocation(l))
		}
		fmt.Fprintf(&sb, "- **Bounds:** %s\n", strings.Join(locs, " "))
	}
	return sb.String()
}

// WriteHTML renders the record's Markdown report to HTML.
func (r *Record) WriteHTML(w io.Writer, title string) error {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(r.Markdown(title)), &buf); err != nil {
		return fmt.Errorf("metrics report: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
