package mesh

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format is a surface mesh file format.
type Format string

const (
	FormatSTL Format = "stl"
	FormatOBJ Format = "obj"
)

// FormatOf returns the format implied by a file extension.
func FormatOf(path string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")); f {
	case FormatSTL, FormatOBJ:
		return f, nil
	}
	return "", fmt.Errorf("mesh: unsupported mesh file %q", path)
}

// ReadFile reads an STL or OBJ file.
func ReadFile(path string) (*Mesh, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	var m *Mesh
	switch format {
	case FormatSTL:
		m, err = ReadSTL(path)
	default:
		m, err = readOBJFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("mesh: %s: %w", path, err)
	}
	return m, nil
}

func readOBJFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, _, err := ReadOBJ(f)
	return m, err
}

// WriteFile writes m in the format implied by the path's extension.
func WriteFile(path string, m *Mesh) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if format == FormatSTL {
		if err := WriteSTL(path, m); err != nil {
			return fmt.Errorf("mesh: %s: %w", path, err)
		}
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("mesh: %w", err)
	}
	if err := WriteOBJ(f, m); err != nil {
		f.Close()
		return fmt.Errorf("mesh: %s: %w", path, err)
	}
	return f.Close()
}
