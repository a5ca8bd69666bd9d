// Package vtp reads and writes polyline sets in the VTK XML PolyData format.
//
// Only points, lines and point data arrays are supported. The reader handles
// ascii, inline binary and appended (raw or base64) data, with or without
// zlib compression, for both UInt32 and UInt64 headers.
package vtp

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Array is a named point data array. Values holds Components values per point.
type Array struct {
	Name       string
	Components int
	Values     []float64
}

// PolyData is a set of polylines over a shared point list.
type PolyData struct {
	Points    []v3.Vec
	Lines     [][]int
	PointData []Array
}

// Array returns the point data array with the given name.
func (pd *PolyData) Array(name string) (*Array, bool) {
	for i := range pd.PointData {
		if pd.PointData[i].Name == name {
			return &pd.PointData[i], true
		}
	}
	return nil, false
}

// Line returns the points of line i.
func (pd *PolyData) Line(i int) []v3.Vec {
	ids := pd.Lines[i]
	out := make([]v3.Vec, len(ids))
	for k, id := range ids {
		out[k] = pd.Points[id]
	}
	return out
}

// ReadFile reads a .vtp file.
func ReadFile(path string) (*PolyData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vtp: %w", err)
	}
	defer f.Close()
	pd, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("vtp: %s: %w", path, err)
	}
	return pd, nil
}

// WriteFile writes pd as an ascii .vtp file.
func WriteFile(path string, pd *PolyData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vtp: %w", err)
	}
	if err := Write(f, pd); err != nil {
		f.Close()
		return fmt.Errorf("vtp: %s: %w", path, err)
	}
	return f.Close()
}

// Write encodes pd as an ascii VTK XML PolyData document.
func Write(w io.Writer, pd *PolyData) error {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0"?>` + "\n")
	sb.WriteString(`<VTKFile type="PolyData" version="1.0" byte_order="LittleEndian" header_type="UInt64">` + "\n")
	sb.WriteString("  <PolyData>\n")
	fmt.Fprintf(&sb, `    <Piece NumberOfPoints="%d" NumberOfVerts="0" NumberOfLines="%d" NumberOfStrips="0" NumberOfPolys="0">`+"\n",
		len(pd.Points), len(pd.Lines))

	sb.WriteString("      <PointData>\n")
	for _, a := range pd.PointData {
		fmt.Fprintf(&sb, `        <DataArray type="Float64" Name="%s" NumberOfComponents="%d" format="ascii">`+"\n", a.Name, max(a.Components, 1))
		writeFloats(&sb, a.Values)
		sb.WriteString("        </DataArray>\n")
	}
	sb.WriteString("      </PointData>\n")

	sb.WriteString("      <Points>\n")
	sb.WriteString(`        <DataArray type="Float64" Name="Points" NumberOfComponents="3" format="ascii">` + "\n")
	flat := make([]float64, 0, 3*len(pd.Points))
	for _, p := range pd.Points {
		flat = append(flat, p.X, p.Y, p.Z)
	}
	writeFloats(&sb, flat)
	sb.WriteString("        </DataArray>\n")
	sb.WriteString("      </Points>\n")

	sb.WriteString("      <Lines>\n")
	sb.WriteString(`        <DataArray type="Int64" Name="connectivity" format="ascii">` + "\n")
	var conn, offs []int
	for _, l := range pd.Lines {
		conn = append(conn, l...)
		offs = append(offs, len(conn))
	}
	writeInts(&sb, conn)
	sb.WriteString("        </DataArray>\n")
	sb.WriteString(`        <DataArray type="Int64" Name="offsets" format="ascii">` + "\n")
	writeInts(&sb, offs)
	sb.WriteString("        </DataArray>\n")
	sb.WriteString("      </Lines>\n")

	sb.WriteString("    </Piece>\n  </PolyData>\n</VTKFile>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeFloats(sb *strings.Builder, vals []float64) {
	for i, v := range vals {
		if i%6 == 0 {
			if i > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString("          ")
		} else {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	sb.WriteByte('\n')
}

func writeInts(sb *strings.Builder, vals []int) {
	for i, v := range vals {
		if i%12 == 0 {
			if i > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString("          ")
		} else {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(v))
	}
	sb.WriteByte('\n')
}
