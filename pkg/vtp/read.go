package vtp

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrFormat is returned for documents the reader cannot interpret.
var ErrFormat = errors.New("vtp: unsupported or malformed document")

type xmlFile struct {
	XMLName    xml.Name `xml:"VTKFile"`
	Type       string   `xml:"type,attr"`
	ByteOrder  string   `xml:"byte_order,attr"`
	HeaderType string   `xml:"header_type,attr"`
	Compressor string   `xml:"compressor,attr"`
	Piece      xmlPiece `xml:"PolyData>Piece"`
}

type xmlPiece struct {
	NumberOfPoints int            `xml:"NumberOfPoints,attr"`
	NumberOfLines  int            `xml:"NumberOfLines,attr"`
	PointData      []xmlDataArray `xml:"PointData>DataArray"`
	Points         []xmlDataArray `xml:"Points>DataArray"`
	Lines          []xmlDataArray `xml:"Lines>DataArray"`
}

type xmlDataArray struct {
	Type       string `xml:"type,attr"`
	Name       string `xml:"Name,attr"`
	Components int    `xml:"NumberOfComponents,attr"`
	Format     string `xml:"format,attr"`
	Offset     int    `xml:"offset,attr"`
	Text       string `xml:",chardata"`
}

var appendedOpen = regexp.MustCompile(`<AppendedData[^>]*>`)
var appendedEncoding = regexp.MustCompile(`encoding\s*=\s*"([^"]*)"`)

// decoder carries document-level encoding settings.
type decoder struct {
	order      binary.ByteOrder
	header8    bool
	compressed bool
	appended   []byte
	appended64 bool
}

// Read decodes a VTK XML PolyData document.
func Read(r io.Reader) (*PolyData, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// Raw appended data is not valid XML; cut it out before unmarshalling.
	dec := &decoder{}
	doc := raw
	if loc := appendedOpen.FindIndex(raw); loc != nil {
		open := raw[loc[0]:loc[1]]
		end := bytes.LastIndex(raw, []byte("</AppendedData>"))
		if end < loc[1] {
			return nil, fmt.Errorf("%w: unterminated AppendedData", ErrFormat)
		}
		body := raw[loc[1]:end]
		us := bytes.IndexByte(body, '_')
		if us < 0 {
			return nil, fmt.Errorf("%w: AppendedData without '_' marker", ErrFormat)
		}
		dec.appended = body[us+1:]
		if m := appendedEncoding.FindSubmatch(open); m != nil && string(m[1]) == "base64" {
			dec.appended64 = true
			dec.appended = bytes.TrimSpace(dec.appended)
		}
		doc = append(append([]byte{}, raw[:loc[0]]...), raw[end+len("</AppendedData>"):]...)
	}

	var f xmlFile
	if err := xml.Unmarshal(doc, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if f.Type != "PolyData" {
		return nil, fmt.Errorf("%w: file type %q", ErrFormat, f.Type)
	}
	dec.order = binary.LittleEndian
	if f.ByteOrder == "BigEndian" {
		dec.order = binary.BigEndian
	}
	dec.header8 = f.HeaderType == "UInt64"
	dec.compressed = f.Compressor != ""

	pd := &PolyData{}
	if len(f.Piece.Points) == 0 {
		return nil, fmt.Errorf("%w: no Points array", ErrFormat)
	}
	coords, err := dec.values(f.Piece.Points[0])
	if err != nil {
		return nil, fmt.Errorf("points: %w", err)
	}
	if len(coords)%3 != 0 {
		return nil, fmt.Errorf("%w: %d point coordinates", ErrFormat, len(coords))
	}
	pd.Points = make([]v3.Vec, len(coords)/3)
	for i := range pd.Points {
		pd.Points[i] = v3.Vec{X: coords[3*i], Y: coords[3*i+1], Z: coords[3*i+2]}
	}

	var conn, offs []float64
	for _, a := range f.Piece.Lines {
		vals, err := dec.values(a)
		if err != nil {
			return nil, fmt.Errorf("lines %s: %w", a.Name, err)
		}
		switch a.Name {
		case "connectivity":
			conn = vals
		case "offsets":
			offs = vals
		}
	}
	start := 0
	for _, o := range offs {
		end := int(o)
		if end < start || end > len(conn) {
			return nil, fmt.Errorf("%w: line offset %d out of range", ErrFormat, end)
		}
		line := make([]int, 0, end-start)
		for _, id := range conn[start:end] {
			if int(id) < 0 || int(id) >= len(pd.Points) {
				return nil, fmt.Errorf("%w: point id %d out of range", ErrFormat, int(id))
			}
			line = append(line, int(id))
		}
		pd.Lines = append(pd.Lines, line)
		start = end
	}

	for _, a := range f.Piece.PointData {
		vals, err := dec.values(a)
		if err != nil {
			return nil, fmt.Errorf("point data %s: %w", a.Name, err)
		}
		pd.PointData = append(pd.PointData, Array{Name: a.Name, Components: max(a.Components, 1), Values: vals})
	}
	return pd, nil
}

// values decodes one DataArray to float64 regardless of its storage type.
func (d *decoder) values(a xmlDataArray) ([]float64, error) {
	switch a.Format {
	case "ascii", "":
		return parseASCII(a.Text)
	case "binary":
		data, err := d.inline(strings.TrimSpace(a.Text))
		if err != nil {
			return nil, err
		}
		return convert(data, a.Type, d.order)
	case "appended":
		data, err := d.appendedAt(a.Offset)
		if err != nil {
			return nil, err
		}
		return convert(data, a.Type, d.order)
	}
	return nil, fmt.Errorf("%w: data format %q", ErrFormat, a.Format)
}

func parseASCII(text string) ([]float64, error) {
	fields := strings.Fields(text)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		out[i] = v
	}
	return out, nil
}

func (d *decoder) headerSize() int {
	if d.header8 {
		return 8
	}
	return 4
}

func (d *decoder) headerValue(b []byte) uint64 {
	if d.header8 {
		return d.order.Uint64(b)
	}
	return uint64(d.order.Uint32(b))
}

// inline decodes a base64 DataArray body. Compressed arrays encode the block
// header and the blocks as two separate base64 streams.
func (d *decoder) inline(text string) ([]byte, error) {
	if !d.compressed {
		buf, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return d.sized(buf)
	}
	hs := d.headerSize()
	first, err := decodePrefix(text, hs)
	if err != nil {
		return nil, err
	}
	nblocks := int(d.headerValue(first))
	headerChars := base64Len((3 + nblocks) * hs)
	if len(text) < headerChars {
		return nil, fmt.Errorf("%w: truncated compression header", ErrFormat)
	}
	header, err := base64.StdEncoding.DecodeString(text[:headerChars])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	blocks, err := base64.StdEncoding.DecodeString(text[headerChars:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return d.inflate(header, blocks)
}

func (d *decoder) appendedAt(offset int) ([]byte, error) {
	if d.appended == nil {
		return nil, fmt.Errorf("%w: appended array without AppendedData", ErrFormat)
	}
	if d.appended64 {
		if offset > len(d.appended) {
			return nil, fmt.Errorf("%w: appended offset %d out of range", ErrFormat, offset)
		}
		return d.appendedBase64(string(d.appended[offset:]))
	}
	if offset < 0 || offset > len(d.appended) {
		return nil, fmt.Errorf("%w: appended offset %d out of range", ErrFormat, offset)
	}
	rest := d.appended[offset:]
	if !d.compressed {
		return d.sized(rest)
	}
	hs := d.headerSize()
	if len(rest) < hs {
		return nil, fmt.Errorf("%w: truncated compression header", ErrFormat)
	}
	nblocks := int(d.headerValue(rest))
	n := (3 + nblocks) * hs
	if len(rest) < n {
		return nil, fmt.Errorf("%w: truncated compression header", ErrFormat)
	}
	return d.inflate(rest[:n], rest[n:])
}

// appendedBase64 decodes one array from a base64 appended stream, reading
// only as many characters as the array's headers announce.
func (d *decoder) appendedBase64(text string) ([]byte, error) {
	hs := d.headerSize()
	first, err := decodePrefix(text, hs)
	if err != nil {
		return nil, err
	}
	if !d.compressed {
		chars := base64Len(hs + int(d.headerValue(first)))
		if len(text) < chars {
			return nil, fmt.Errorf("%w: truncated appended array", ErrFormat)
		}
		return d.inline(text[:chars])
	}
	nblocks := int(d.headerValue(first))
	headerChars := base64Len((3 + nblocks) * hs)
	if len(text) < headerChars {
		return nil, fmt.Errorf("%w: truncated compression header", ErrFormat)
	}
	header, err := base64.StdEncoding.DecodeString(text[:headerChars])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	total := 0
	for i := 0; i < nblocks; i++ {
		total += int(d.headerValue(header[(3+i)*hs:]))
	}
	end := headerChars + base64Len(total)
	if len(text) < end {
		return nil, fmt.Errorf("%w: truncated compressed blocks", ErrFormat)
	}
	blocks, err := base64.StdEncoding.DecodeString(text[headerChars:end])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return d.inflate(header, blocks)
}

// sized strips the byte-count header of an uncompressed array.
func (d *decoder) sized(buf []byte) ([]byte, error) {
	hs := d.headerSize()
	if len(buf) < hs {
		return nil, fmt.Errorf("%w: truncated array header", ErrFormat)
	}
	n := int(d.headerValue(buf))
	if len(buf) < hs+n {
		return nil, fmt.Errorf("%w: array holds %d of %d bytes", ErrFormat, len(buf)-hs, n)
	}
	return buf[hs : hs+n], nil
}

// inflate decompresses zlib blocks described by a
// [nblocks, blocksize, lastblocksize, compressed sizes...] header.
func (d *decoder) inflate(header, blocks []byte) ([]byte, error) {
	hs := d.headerSize()
	nblocks := int(d.headerValue(header))
	var out bytes.Buffer
	pos := 0
	for i := 0; i < nblocks; i++ {
		size := int(d.headerValue(header[(3+i)*hs:]))
		if pos+size > len(blocks) {
			return nil, fmt.Errorf("%w: compressed block %d truncated", ErrFormat, i)
		}
		zr, err := zlib.NewReader(bytes.NewReader(blocks[pos : pos+size]))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		if _, err := io.Copy(&out, zr); err != nil {
			zr.Close()
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		zr.Close()
		pos += size
	}
	return out.Bytes(), nil
}

func base64Len(n int) int { return (n + 2) / 3 * 4 }

func decodePrefix(text string, n int) ([]byte, error) {
	chars := base64Len(n)
	if len(text) < chars {
		return nil, fmt.Errorf("%w: truncated base64 header", ErrFormat)
	}
	b, err := base64.StdEncoding.DecodeString(text[:chars])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return b[:n], nil
}

func convert(data []byte, typ string, order binary.ByteOrder) ([]float64, error) {
	var size int
	switch typ {
	case "Int8", "UInt8":
		size = 1
	case "Int16", "UInt16":
		size = 2
	case "Int32", "UInt32", "Float32":
		size = 4
	case "Int64", "UInt64", "Float64":
		size = 8
	default:
		return nil, fmt.Errorf("%w: data type %q", ErrFormat, typ)
	}
	n := len(data) / size
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		b := data[i*size:]
		switch typ {
		case "Int8":
			out[i] = float64(int8(b[0]))
		case "UInt8":
			out[i] = float64(b[0])
		case "Int16":
			out[i] = float64(int16(order.Uint16(b)))
		case "UInt16":
			out[i] = float64(order.Uint16(b))
		case "Int32":
			out[i] = float64(int32(order.Uint32(b)))
		case "UInt32":
			out[i] = float64(order.Uint32(b))
		case "Int64":
			out[i] = float64(int64(order.Uint64(b)))
		case "UInt64":
			out[i] = float64(order.Uint64(b))
		case "Float32":
			out[i] = float64(math.Float32frombits(order.Uint32(b)))
		case "Float64":
			out[i] = math.Float64frombits(order.Uint64(b))
		}
	}
	return out, nil
}
