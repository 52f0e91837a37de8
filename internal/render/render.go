// Package render draws arena snapshots as PNG images.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"

	"forage/internal/sim"
)

// Palette
var (
	colorBackground = color.RGBA{12, 12, 28, 255}
	colorGrid       = color.RGBA{30, 30, 45, 255}
	colorNest       = color.RGBA{46, 204, 113, 90}
	colorCluster    = color.RGBA{52, 152, 219, 70}
	colorCache      = color.RGBA{241, 196, 15, 110}
	colorCacheEdge  = color.RGBA{241, 196, 15, 255}
	colorBlock      = color.RGBA{236, 240, 241, 255}
	colorRamp       = color.RGBA{189, 195, 199, 255}
	colorCached     = color.RGBA{230, 126, 34, 255}
	colorRobot      = color.RGBA{231, 76, 60, 255}
	colorCarrying   = color.RGBA{155, 89, 182, 255}
	colorText       = color.White
)

// MaxImageSide caps the rendered image size in pixels.
const MaxImageSide = 4096

// Renderer draws snapshots at a fixed scale.
type Renderer struct {
	Scale    float64 // pixels per arena unit
	GridStep float64 // arena units between grid lines, 0 disables the grid
}

// New returns a renderer with the given scale.
func New(scale float64) *Renderer {
	return &Renderer{Scale: scale, GridStep: 1}
}

// Size returns the image size for snap, clamping the scale so neither side
// exceeds MaxImageSide.
func (r *Renderer) Size(snap *sim.Snapshot) (int, int, float64) {
	scale := r.Scale
	if side := max(snap.Width, snap.Height) * scale; side > MaxImageSide {
		scale = MaxImageSide / max(snap.Width, snap.Height)
	}
	return max(int(snap.Width*scale), 1), max(int(snap.Height*scale), 1), scale
}

// Render draws snap. The arena's y axis points up, so the image is flipped.
func (r *Renderer) Render(snap *sim.Snapshot) image.Image {
	w, h, scale := r.Size(snap)
	dc := gg.NewContext(w, h)
	px := func(x, y float64) (float64, float64) { return x * scale, (snap.Height - y) * scale }
	rect := func(cx, cy, width, height float64) {
		x, y := px(cx-width/2, cy+height/2)
		dc.DrawRectangle(x, y, width*scale, height*scale)
	}

	dc.SetColor(colorBackground)
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Fill()

	if r.GridStep > 0 {
		dc.SetColor(colorGrid)
		dc.SetLineWidth(1)
		for x := 0.0; x <= snap.Width; x += r.GridStep {
			dc.DrawLine(x*scale, 0, x*scale, float64(h))
			dc.Stroke()
		}
		for y := 0.0; y <= snap.Height; y += r.GridStep {
			dc.DrawLine(0, y*scale, float64(w), y*scale)
			dc.Stroke()
		}
	}

	dc.SetColor(colorCluster)
	for _, c := range snap.Clusters {
		rect(c.X, c.Y, c.Width, c.Height)
		dc.Fill()
	}
	dc.SetColor(colorNest)
	for _, n := range snap.Nests {
		rect(n.X, n.Y, n.Width, n.Height)
		dc.Fill()
	}

	dc.SetLineWidth(2)
	for _, c := range snap.Caches {
		rect(c.X, c.Y, c.Dim, c.Dim)
		dc.SetColor(colorCache)
		dc.FillPreserve()
		dc.SetColor(colorCacheEdge)
		dc.Stroke()
	}

	// Blocks are inset a little so neighbours stay distinguishable
	inset := 0.1 * snap.Resolution
	for _, b := range snap.Blocks {
		switch {
		case b.Cache >= 0:
			dc.SetColor(colorCached)
		case b.Shape == "ramp":
			dc.SetColor(colorRamp)
		default:
			dc.SetColor(colorBlock)
		}
		rect(b.X, b.Y, b.Width-2*inset, b.Height-2*inset)
		dc.Fill()
	}

	radius := max(snap.Resolution*scale*0.4, 2)
	for _, rb := range snap.Robots {
		x, y := px(rb.X, rb.Y)
		dc.SetColor(colorRobot)
		if rb.Carrying >= 0 {
			dc.SetColor(colorCarrying)
		}
		dc.DrawCircle(x, y, radius)
		dc.Fill()
	}

	st := snap.Stats
	dc.SetColor(colorText)
	dc.DrawString(fmt.Sprintf("t=%d caches=%d free=%d collected=%d", st.Tick, st.Caches, st.FreeBlocks, st.Collected), 6, 14)

	return dc.Image()
}

// WritePNG renders snap and encodes it as PNG to w.
func (r *Renderer) WritePNG(w io.Writer, snap *sim.Snapshot) error {
	return gg.NewContextForImage(r.Render(snap)).EncodePNG(w)
}
