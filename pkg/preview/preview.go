// Package preview renders an orthographic PNG of a centerline tree with its
// markers. Branches are stroked at their sampled radius; markers are discs
// colored by role.
package preview

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/marker"
)

// ErrEmptyTree is returned when there is nothing to draw.
var ErrEmptyTree = errors.New("preview: tree has no branches")

// View selects the projection plane.
type View int

const (
	ViewXY View = iota // looking down -Z
	ViewXZ             // looking along +Y
	ViewYZ             // looking along -X
)

var viewNames = [...]string{"xy", "xz", "yz"}

func (v View) String() string {
	if v < 0 || int(v) >= len(viewNames) {
		return fmt.Sprintf("View(%d)", int(v))
	}
	return viewNames[v]
}

// ParseView returns the view with the given name.
func ParseView(s string) (View, error) {
	for i, n := range viewNames {
		if strings.EqualFold(s, n) {
			return View(i), nil
		}
	}
	return 0, fmt.Errorf("preview: unknown view %q, expected xy, xz or yz", s)
}

// project drops the coordinate the view looks along.
func (v View) project(p v3.Vec) (x, y float64) {
	switch v {
	case ViewXZ:
		return p.X, p.Z
	case ViewYZ:
		return p.Y, p.Z
	}
	return p.X, p.Y
}

// Options controls the rendered image.
type Options struct {
	Width, Height int
	Margin        int
	View          View
	// MarkerRadius is the disc radius in pixels.
	MarkerRadius float32
	// Labels draws branch ids and marker roles.
	Labels bool
}

// DefaultOptions returns an 800x600 top view with labels.
func DefaultOptions() Options {
	return Options{Width: 800, Height: 600, Margin: 20, View: ViewXY, MarkerRadius: 5, Labels: true}
}

var (
	// Background fills the image.
	Background = color.RGBA{R: 0xfa, G: 0xfa, B: 0xf7, A: 0xff}

	branchColors = []color.RGBA{
		{R: 0xc0, G: 0x39, B: 0x2b, A: 0xff},
		{R: 0x29, G: 0x80, B: 0xb9, A: 0xff},
		{R: 0x27, G: 0xae, B: 0x60, A: 0xff},
		{R: 0x8e, G: 0x44, B: 0xad, A: 0xff},
		{R: 0xd3, G: 0x54, B: 0x00, A: 0xff},
		{R: 0x16, G: 0xa0, B: 0x85, A: 0xff},
	}

	roleColors = map[marker.Role]color.RGBA{
		marker.RoleInlet:   {R: 0x00, G: 0x00, B: 0x00, A: 0xff},
		marker.RoleOutlet:  {R: 0xf1, G: 0xc4, B: 0x0f, A: 0xff},
		marker.RoleBound:   {R: 0x2c, G: 0x3e, B: 0x50, A: 0xff},
		marker.RoleExclude: {R: 0x7f, G: 0x8c, B: 0x8d, A: 0xff},
		marker.RoleCut:     {R: 0xe6, G: 0x7e, B: 0x22, A: 0xff},
	}

	labelColor = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
)

// BranchColor returns the stroke color of branch id.
func BranchColor(id int) color.RGBA { return branchColors[id%len(branchColors)] }

// RoleColor returns the disc color of a marker role.
func RoleColor(r marker.Role) color.RGBA { return roleColors[r] }

// projector maps world coordinates to pixels, preserving aspect ratio and
// centering the drawing.
type projector struct {
	view         View
	scale        float64
	wcx, wcy     float64
	pixcx, pixcy float64
}

func newProjector(t *centerline.Tree, opts Options) projector {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, b := range t.Branches() {
		for i, p := range b.Points {
			x, y := opts.View.project(p)
			r := b.Radii[i]
			minX, maxX = math.Min(minX, x-r), math.Max(maxX, x+r)
			minY, maxY = math.Min(minY, y-r), math.Max(maxY, y+r)
		}
	}
	w := float64(opts.Width - 2*opts.Margin)
	h := float64(opts.Height - 2*opts.Margin)
	spanX, spanY := math.Max(maxX-minX, 1e-9), math.Max(maxY-minY, 1e-9)
	return projector{
		view:  opts.View,
		scale: math.Min(w/spanX, h/spanY),
		wcx:   (minX + maxX) / 2,
		wcy:   (minY + maxY) / 2,
		pixcx: float64(opts.Width) / 2,
		pixcy: float64(opts.Height) / 2,
	}
}

// pixel returns image coordinates; image y grows downwards.
func (pr projector) pixel(p v3.Vec) (float32, float32) {
	x, y := pr.view.project(p)
	return float32(pr.pixcx + (x-pr.wcx)*pr.scale), float32(pr.pixcy - (y-pr.wcy)*pr.scale)
}

// Render draws the tree and markers.
func Render(t *centerline.Tree, markers []marker.Marker, opts Options) (*image.RGBA, error) {
	if t == nil || t.Len() == 0 {
		return nil, ErrEmptyTree
	}
	if opts.Width <= 2*opts.Margin || opts.Height <= 2*opts.Margin {
		return nil, fmt.Errorf("preview: image %dx%d too small for margin %d", opts.Width, opts.Height, opts.Margin)
	}
	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)

	pr := newProjector(t, opts)
	r := vector.NewRasterizer(opts.Width, opts.Height)
	for _, b := range t.Branches() {
		r.Reset(opts.Width, opts.Height)
		strokeBranch(r, pr, &b)
		r.Draw(img, img.Bounds(), image.NewUniform(BranchColor(b.ID)), image.Point{})
	}
	for _, m := range markers {
		p, err := t.Position(m.Loc)
		if err != nil {
			return nil, fmt.Errorf("preview: marker %d: %w", m.ID, err)
		}
		x, y := pr.pixel(p)
		r.Reset(opts.Width, opts.Height)
		disc(r, x, y, opts.MarkerRadius)
		r.Draw(img, img.Bounds(), image.NewUniform(RoleColor(m.Role)), image.Point{})
	}

	if opts.Labels {
		for _, b := range t.Branches() {
			x, y := pr.pixel(b.Points[b.Len()/2])
			label(img, x+6, y-6, fmt.Sprintf("%d", b.ID))
		}
		for _, m := range markers {
			p, _ := t.Position(m.Loc)
			x, y := pr.pixel(p)
			label(img, x+opts.MarkerRadius+2, y+opts.MarkerRadius+10, m.Role.String())
		}
	}
	return img, nil
}

// strokeBranch adds one quad per segment and a disc per sample. All shapes
// share a winding so overlaps accumulate instead of cancelling.
func strokeBranch(r *vector.Rasterizer, pr projector, b *centerline.Branch) {
	half := func(i int) float32 {
		return float32(math.Max(b.Radii[i]*pr.scale, 0.5))
	}
	for i := range b.Len() {
		x, y := pr.pixel(b.Points[i])
		disc(r, x, y, half(i))
		if i == 0 {
			continue
		}
		px, py := pr.pixel(b.Points[i-1])
		dx, dy := x-px, y-py
		l := float32(math.Hypot(float64(dx), float64(dy)))
		if l == 0 {
			continue
		}
		nx, ny := -dy/l, dx/l
		h0, h1 := half(i-1), half(i)
		r.MoveTo(px+nx*h0, py+ny*h0)
		r.LineTo(x+nx*h1, y+ny*h1)
		r.LineTo(x-nx*h1, y-ny*h1)
		r.LineTo(px-nx*h0, py-ny*h0)
		r.ClosePath()
	}
}

const discSides = 24

// disc adds a polygonal circle wound the same way as strokeBranch quads.
func disc(r *vector.Rasterizer, x, y, radius float32) {
	for i := range discSides {
		a := -2 * math.Pi * float64(i) / discSides
		px := x + radius*float32(math.Cos(a))
		py := y + radius*float32(math.Sin(a))
		if i == 0 {
			r.MoveTo(px, py)
		} else {
			r.LineTo(px, py)
		}
	}
	r.ClosePath()
}

func label(img draw.Image, x, y float32, s string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(x), int(y)),
	}
	d.DrawString(s)
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	return nil
}
