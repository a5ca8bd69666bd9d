package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/samber/lo"

	"github.com/chazu/xylem/pkg/centerline"
)

// MaxDiameterName labels the maximum diameter row of a record.
const MaxDiameterName = "Maximum diameter"

// CSV column headers.
const (
	colLandmark = "Landmark"
	colPosition = "Position"
	colIndex    = "Centerline Index"
	colDiameter = "Diameter (mm)"
	colHeight   = "Patient Height"
	colAHI      = "AHI (diameter/height)"
	colVolume   = "Volume measurement (mm^3)"
	colSurface  = "Surface measurement (mm^2)"
	colBounds   = "Bounds volume"
)

var locationPattern = regexp.MustCompile(`\[(\d+),\s*(\d+)\]`)

// Row is one diameter measurement.
type Row struct {
	Name     string              `json:"name"`
	Position v3.Vec              `json:"position"`
	Loc      centerline.Location `json:"loc"`
	Diameter float64             `json:"diameter"`
}

// Record is the flat set of metrics saved for one patient.
type Record struct {
	Rows        []Row   `json:"rows"`
	MaxDiameter *Row    `json:"max_diameter,omitempty"`
	Height      float64 `json:"height,omitzero"`
	AHI         float64 `json:"ahi,omitzero"`

	HasVolume  bool                  `json:"has_volume"`
	Volume     float64               `json:"volume,omitzero"`
	Surface    float64               `json:"surface,omitzero"`
	Bounds     []centerline.Location `json:"bounds,omitempty"`
	Exclusions []centerline.Location `json:"exclusions,omitempty"`
}

func rowAt(t *centerline.Tree, name string, loc centerline.Location) (Row, error) {
	p, err := t.Position(loc)
	if err != nil {
		return Row{}, err
	}
	d, _ := DiameterAt(t, loc)
	return Row{Name: name, Position: p, Loc: loc, Diameter: d}, nil
}

// Compose builds a record from landmarks, the tree's maximum diameter, an
// optional patient height (0 when unknown) and an optional measurement.
func Compose(t *centerline.Tree, lms []Landmark, height float64, m *Measurement) (*Record, error) {
	rec := &Record{Height: height}
	for _, lm := range lms {
		row, err := rowAt(t, lm.Name, lm.Loc)
		if err != nil {
			return nil, fmt.Errorf("landmark %q: %w", lm.Name, err)
		}
		rec.Rows = append(rec.Rows, row)
	}
	loc, _ := MaxDiameter(t)
	maxRow, err := rowAt(t, MaxDiameterName, loc)
	if err != nil {
		return nil, err
	}
	rec.MaxDiameter = &maxRow
	if height > 0 {
		rec.AHI, _ = AHI(maxRow.Diameter, height)
	}
	if m != nil {
		rec.HasVolume = true
		rec.Volume = m.Volume
		rec.Surface = m.Surface
		rec.Bounds = m.Bounds()
		rec.Exclusions = m.Exclusions
	}
	return rec, nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func formatPosition(p v3.Vec) string {
	return fmt.Sprintf("[%s, %s, %s]", formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z))
}

func (r *Record) header() []string {
	h := []string{"", colLandmark, colPosition, colIndex, colDiameter}
	if r.Height > 0 {
		h = append(h, colHeight, colAHI)
	}
	if r.HasVolume {
		h = append(h, colVolume, colSurface, colBounds)
	}
	return h
}

// allRows returns the landmark rows followed by the maximum diameter row.
func (r *Record) allRows() []Row {
	if r.MaxDiameter == nil {
		return r.Rows
	}
	return append(append([]Row(nil), r.Rows...), *r.MaxDiameter)
}

// WriteCSV writes the record. Scalar values appear on the first row only.
func (r *Record) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.header()); err != nil {
		return fmt.Errorf("metrics csv: %w", err)
	}
	rows := r.allRows()
	if len(rows) == 0 {
		// Scalars still need a row to live on.
		rows = []Row{{}}
	}
	for i, row := range rows {
		rec := []string{strconv.Itoa(i), row.Name, "", "", ""}
		if row.Name != "" {
			rec[2], rec[3], rec[4] = formatPosition(row.Position), FormatLocation(row.Loc), formatFloat(row.Diameter)
		}
		first := i == 0
		if r.Height > 0 {
			rec = append(rec, scalar(first, formatFloat(r.Height)), scalar(first, formatFloat(r.AHI)))
		}
		if r.HasVolume {
			bounds := strings.Join(lo.Map(slices.Concat(r.Bounds, r.Exclusions),
				func(l centerline.Location, _ int) string { return FormatLocation(l) }), " ")
			rec = append(rec, scalar(first, formatFloat(r.Volume)), scalar(first, formatFloat(r.Surface)), scalar(first, bounds))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("metrics csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func scalar(first bool, v string) string {
	if first {
		return v
	}
	return ""
}

// ParseLocations extracts every "[branch, index]" pair from s.
func ParseLocations(s string) []centerline.Location {
	return lo.Map(locationPattern.FindAllStringSubmatch(s, -1), func(m []string, _ int) centerline.Location {
		b, _ := strconv.Atoi(m[1])
		i, _ := strconv.Atoi(m[2])
		return centerline.Location{Branch: b, Index: i}
	})
}

func parsePosition(s string) (v3.Vec, error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(s), "[]"), ",")
	if len(parts) != 3 {
		return v3.Vec{}, fmt.Errorf("position %q: want 3 coordinates", s)
	}
	var c [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return v3.Vec{}, fmt.Errorf("position %q: %w", s, err)
		}
		c[i] = v
	}
	return v3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}

// ReadCSV parses a record written by WriteCSV.
func ReadCSV(r io.Reader) (*Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("metrics csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("metrics csv: empty file")
	}
	col := make(map[string]int)
	for i, h := range records[0] {
		col[h] = i
	}
	cell := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}
	number := func(rec []string, name string) (float64, error) {
		s := cell(rec, name)
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	}

	out := &Record{}
	for n, rec := range records[1:] {
		if n == 0 {
			if out.Height, err = number(rec, colHeight); err != nil {
				return nil, fmt.Errorf("metrics csv: height: %w", err)
			}
			if out.AHI, err = number(rec, colAHI); err != nil {
				return nil, fmt.Errorf("metrics csv: ahi: %w", err)
			}
			if _, ok := col[colVolume]; ok {
				out.HasVolume = true
				if out.Volume, err = number(rec, colVolume); err != nil {
					return nil, fmt.Errorf("metrics csv: volume: %w", err)
				}
				if out.Surface, err = number(rec, colSurface); err != nil {
					return nil, fmt.Errorf("metrics csv: surface: %w", err)
				}
				locs := ParseLocations(cell(rec, colBounds))
				if len(locs) >= 2 {
					out.Bounds, out.Exclusions = locs[:2], locs[2:]
				}
			}
		}
		name := cell(rec, colLandmark)
		if name == "" {
			continue
		}
		row := Row{Name: name}
		if row.Position, err = parsePosition(cell(rec, colPosition)); err != nil {
			return nil, fmt.Errorf("metrics csv: row %d: %w", n+1, err)
		}
		locs := ParseLocations(cell(rec, colIndex))
		if len(locs) != 1 {
			return nil, fmt.Errorf("metrics csv: row %d: bad centerline index %q", n+1, cell(rec, colIndex))
		}
		row.Loc = locs[0]
		if row.Diameter, err = number(rec, colDiameter); err != nil {
			return nil, fmt.Errorf("metrics csv: row %d: diameter: %w", n+1, err)
		}
		if name == MaxDiameterName {
			out.MaxDiameter = &row
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	if len(out.Exclusions) == 0 {
		out.Exclusions = nil
	}
	return out, nil
}

// Landmarks returns the record's landmark rows as landmarks.
func (r *Record) Landmarks() []Landmark {
	return lo.Map(r.Rows, func(row Row, _ int) Landmark { return Landmark{Name: row.Name, Loc: row.Loc} })
}

// Reload recomputes positions and diameters of a stored record from t. The
// volume and surface are kept as stored; Remeasure measures them again.
func Reload(t *centerline.Tree, r *Record) (*Record, error) {
	out, err := Compose(t, r.Landmarks(), r.Height, nil)
	if err != nil {
		return nil, err
	}
	if r.MaxDiameter == nil {
		out.MaxDiameter = nil
	}
	out.HasVolume, out.Volume, out.Surface = r.HasVolume, r.Volume, r.Surface
	out.Bounds, out.Exclusions = r.Bounds, r.Exclusions
	return out, nil
}
