// Package render draws the 2-D cluster projection as a PNG scatter plot.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/KaramelBytes/microlens-cli/internal/analysis"
)

// PlaceholderURL is a 1x1 PNG used when there is nothing to plot.
const PlaceholderURL = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

const (
	defaultWidth  = 960
	defaultHeight = 640
	margin        = 60
	legendWidth   = 240
	pointRadius   = 6
)

var (
	white     = color.RGBA{255, 255, 255, 255}
	black     = color.RGBA{0, 0, 0, 255}
	gridColor = color.RGBA{225, 225, 225, 255}
	// Cluster colors in cluster order: green, orange, red.
	clusterColors = []color.RGBA{
		{0, 128, 0, 255},
		{255, 165, 0, 255},
		{255, 0, 0, 255},
	}
)

// Scatter renders projection points colored by cluster, labeled by entity.
type Scatter struct {
	Width, Height int
	Title         string
}

// New returns a Scatter with the default size and title.
func New() *Scatter {
	return &Scatter{Width: defaultWidth, Height: defaultHeight, Title: "Global Microplastic Exposure Risk Analysis"}
}

// Placeholder returns the fallback image URL.
func (s *Scatter) Placeholder() string { return PlaceholderURL }

// Render returns the plot as a data:image/png;base64 URL.
func (s *Scatter) Render(points []analysis.Point, clusters []analysis.Cluster) (string, error) {
	var buf bytes.Buffer
	if err := s.Encode(&buf, points, clusters); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Encode writes the plot as PNG to w.
func (s *Scatter) Encode(w io.Writer, points []analysis.Point, clusters []analysis.Cluster) error {
	if len(points) == 0 {
		return fmt.Errorf("render: no points")
	}
	width, height := s.Width, s.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	plotW := width - 2*margin - legendWidth
	plotH := height - 2*margin
	if plotW < 50 || plotH < 50 {
		return fmt.Errorf("render: canvas %dx%d too small", width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: white}, image.Point{}, draw.Src)

	minX, maxX, minY, maxY := bounds(points)
	toPx := func(p analysis.Point) (int, int) {
		x := margin + int(math.Round((p.PC1-minX)/(maxX-minX)*float64(plotW)))
		y := margin + plotH - int(math.Round((p.PC2-minY)/(maxY-minY)*float64(plotH)))
		return x, y
	}

	for i := 0; i <= 4; i++ {
		gx := margin + i*plotW/4
		gy := margin + i*plotH/4
		vline(img, gx, margin, margin+plotH, gridColor)
		hline(img, margin, margin+plotW, gy, gridColor)
	}
	hline(img, margin, margin+plotW, margin+plotH, black)
	vline(img, margin, margin, margin+plotH, black)

	for _, p := range points {
		x, y := toPx(p)
		c := clusterColor(p.Cluster)
		disc(img, x, y, pointRadius+1, black)
		disc(img, x, y, pointRadius, c)
		text(img, x+pointRadius+3, y-pointRadius, p.Label, black)
	}

	title := s.Title
	text(img, margin, margin/2, title, black)
	text(img, margin+plotW/2-90, height-margin/3, "Dietary Pattern Component 1", black)
	text(img, 4, margin-8, "Component 2", black)

	lx := margin + plotW + 30
	ly := margin + 10
	text(img, lx, ly, "Population Risk Groups", black)
	for i, c := range clusters {
		y := ly + 24*(i+1)
		disc(img, lx+6, y-4, pointRadius, clusterColor(c.ID))
		text(img, lx+18, y, fmt.Sprintf("%s (n=%d)", c.Category, len(c.Members)), black)
	}

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func clusterColor(id int) color.RGBA {
	if id < 0 {
		id = 0
	}
	return clusterColors[id%len(clusterColors)]
}

// bounds returns padded data extents; degenerate spans widen to 1.
func bounds(points []analysis.Point) (minX, maxX, minY, maxY float64) {
	minX, maxX = math.Inf(1), math.Inf(-1)
	minY, maxY = math.Inf(1), math.Inf(-1)
	for _, p := range points {
		minX, maxX = math.Min(minX, p.PC1), math.Max(maxX, p.PC1)
		minY, maxY = math.Min(minY, p.PC2), math.Max(maxY, p.PC2)
	}
	pad := func(lo, hi float64) (float64, float64) {
		span := hi - lo
		if span < 1e-9 {
			return lo - 0.5, hi + 0.5
		}
		return lo - span*0.08, hi + span*0.08
	}
	minX, maxX = pad(minX, maxX)
	minY, maxY = pad(minY, maxY)
	return
}

func hline(img *image.RGBA, x0, x1, y int, c color.Color) {
	for x := x0; x <= x1; x++ {
		img.Set(x, y, c)
	}
}

func vline(img *image.RGBA, x, y0, y1 int, c color.Color) {
	for y := y0; y <= y1; y++ {
		img.Set(x, y, c)
	}
}

func disc(img *image.RGBA, cx, cy, r int, c color.Color) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				img.Set(cx+dx, cy+dy, c)
			}
		}
	}
}

func text(img *image.RGBA, x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
