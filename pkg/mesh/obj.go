package mesh

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Polylines is a set of lines over shared points, as stored by OBJ "l"
// records.
type Polylines struct {
	Points []v3.Vec
	Lines  [][]int
}

// ReadOBJ reads faces and polylines from a Wavefront OBJ stream. Polygons are
// fan-triangulated; negative indices count back from the last vertex. Vertex
// normals are taken from "vn" records referenced by faces; if any vertex
// lacks one, normals are computed instead.
func ReadOBJ(r io.Reader) (*Mesh, *Polylines, error) {
	var (
		verts   []v3.Vec
		vnorms  []v3.Vec
		faces   [][3]int
		lines   [][]int
		normFor = map[int]int{}
	)
	resolve := func(s string, n int) (int, error) {
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, err
		}
		switch {
		case i > 0 && i <= n:
			return i - 1, nil
		case i < 0 && -i <= n:
			return n + i, nil
		}
		return 0, fmt.Errorf("index %d out of range 1..%d", i, n)
	}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v", "vn":
			if len(fields) < 4 {
				return nil, nil, fmt.Errorf("obj: line %d: %s needs 3 coordinates", line, fields[0])
			}
			var c [3]float64
			for i := range c {
				v, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, nil, fmt.Errorf("obj: line %d: %w", line, err)
				}
				c[i] = v
			}
			p := v3.Vec{X: c[0], Y: c[1], Z: c[2]}
			if fields[0] == "v" {
				verts = append(verts, p)
			} else {
				vnorms = append(vnorms, p)
			}
		case "f":
			var poly []int
			for _, ref := range fields[1:] {
				parts := strings.Split(ref, "/")
				vi, err := resolve(parts[0], len(verts))
				if err != nil {
					return nil, nil, fmt.Errorf("obj: line %d: %w", line, err)
				}
				if len(parts) == 3 && parts[2] != "" {
					ni, err := resolve(parts[2], len(vnorms))
					if err != nil {
						return nil, nil, fmt.Errorf("obj: line %d: normal %w", line, err)
					}
					normFor[vi] = ni
				}
				poly = append(poly, vi)
			}
			for k := 1; k+1 < len(poly); k++ {
				faces = append(faces, [3]int{poly[0], poly[k], poly[k+1]})
			}
		case "l":
			var ids []int
			for _, ref := range fields[1:] {
				vi, err := resolve(strings.Split(ref, "/")[0], len(verts))
				if err != nil {
					return nil, nil, fmt.Errorf("obj: line %d: %w", line, err)
				}
				ids = append(ids, vi)
			}
			lines = append(lines, ids)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("obj: %w", err)
	}

	m := &Mesh{Vertices: verts, Faces: faces}
	if len(normFor) == len(verts) && len(verts) > 0 {
		m.Normals = make([]v3.Vec, len(verts))
		for vi, ni := range normFor {
			m.Normals[vi] = vnorms[ni]
		}
	} else {
		m.Normals = m.ComputeNormals()
	}
	var pl *Polylines
	if len(lines) > 0 {
		pl = &Polylines{Points: verts, Lines: lines}
	}
	return m, pl, nil
}

// WriteOBJ writes m with its vertex normals.
func WriteOBJ(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)
	for _, p := range m.Vertices {
		fmt.Fprintf(bw, "v %g %g %g\n", p.X, p.Y, p.Z)
	}
	if m.HasNormals() {
		for _, n := range m.Normals {
			fmt.Fprintf(bw, "vn %g %g %g\n", n.X, n.Y, n.Z)
		}
		for _, t := range m.Faces {
			fmt.Fprintf(bw, "f %d//%d %d//%d %d//%d\n", t[0]+1, t[0]+1, t[1]+1, t[1]+1, t[2]+1, t[2]+1)
		}
	} else {
		for _, t := range m.Faces {
			fmt.Fprintf(bw, "f %d %d %d\n", t[0]+1, t[1]+1, t[2]+1)
		}
	}
	return bw.Flush()
}

// WritePolylinesOBJ writes polylines as OBJ "l" records.
func WritePolylinesOBJ(w io.Writer, pl *Polylines) error {
	bw := bufio.NewWriter(w)
	for _, p := range pl.Points {
		fmt.Fprintf(bw, "v %g %g %g\n", p.X, p.Y, p.Z)
	}
	for _, l := range pl.Lines {
		bw.WriteString("l")
		for _, i := range l {
			fmt.Fprintf(bw, " %d", i+1)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
