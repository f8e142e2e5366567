package profile

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"gonum.org/v1/plot"
	_ "gonum.org/v1/plot/font/liberation"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// MakePlot renders a radial curve into an in-memory image of the given pixel
// size. The value axis is plotted on a log10 scale when logY is set, which
// is the conventional way to look at PSF wings.
func MakePlot(pts []Point, title, xLabel, yLabel string, wPx, hPx float64, logY bool) (image.Image, error) {
	if len(pts) == 0 {
		return nil, ErrEmptyGrid
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	p.Title.TextStyle.Font.Typeface = "Liberation"
	p.Title.TextStyle.Font.Variant = "Sans"
	p.Title.TextStyle.Font.Size = vg.Points(12)

	p.X.Label.TextStyle.Font.Typeface = "Liberation"
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.Label.TextStyle.Font.Size = vg.Points(12)

	p.Y.Label.TextStyle.Font.Typeface = "Liberation"
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)

	p.X.Tick.Label.Font.Typeface = "Liberation"
	p.X.Tick.Label.Font.Variant = "Sans"
	p.X.Tick.Label.Font.Size = vg.Points(10)

	p.Y.Tick.Label.Font.Typeface = "Liberation"
	p.Y.Tick.Label.Font.Variant = "Sans"
	p.Y.Tick.Label.Font.Size = vg.Points(10)

	data := make(plotter.XYs, 0, len(pts))
	for _, pt := range pts {
		y := pt.Value
		if logY {
			if y <= 0 {
				continue
			}
			y = math.Log10(y)
		}
		data = append(data, plotter.XY{X: pt.Radius, Y: y})
	}
	if len(data) == 0 {
		return nil, ErrEmptyGrid
	}

	line, err := plotter.NewLine(data)
	if err != nil {
		return nil, err
	}
	line.Color = color.RGBA{R: 0, G: 0, B: 255, A: 255} // blue

	p.Add(plotter.NewGrid())
	p.Add(line)

	span := data[len(data)-1].X - data[0].X
	if span > 0 {
		p.X.Tick.Marker = StepTicks{Step: span / 10, Format: "%.2f"}
	}

	// Render into an in-memory image, mapping vg units to pixels via DPI.
	const dpi = 96
	width := vg.Length(wPx) * vg.Inch / dpi
	height := vg.Length(hPx) * vg.Inch / dpi

	c := vgimg.New(width, height)
	dc := vgdraw.New(c)
	p.Draw(dc)

	return c.Image(), nil
}

// SavePlotPNG writes a rendered chart image to a PNG file.
func SavePlotPNG(filename string, img image.Image) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return png.Encode(f, img)
}

// StepTicks generates evenly spaced axis ticks with a fixed step and label
// format.
type StepTicks struct {
	Step   float64
	Format string
}

func (t StepTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	start := math.Ceil(min/t.Step) * t.Step
	for v := start; v <= max; v += t.Step {
		ticks = append(ticks, plot.Tick{
			Value: v,
			Label: fmt.Sprintf(t.Format, v),
		})
	}
	return ticks
}
