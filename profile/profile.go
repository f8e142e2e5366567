// Package profile extracts radial intensity profiles, encircled-energy
// curves, and centroids from PSF intensity grids, and renders them as PNG or
// HTML charts.
package profile

import (
	"errors"
	"math"
)

// Point is one sample of a radial curve: a radius (in whatever angular unit
// the caller's pixel scale was given in) and the curve value there.
type Point struct {
	Radius float64
	Value  float64
}

// ErrEmptyGrid is returned when a profile is requested of an empty or
// all-zero grid.
var ErrEmptyGrid = errors.New("profile: empty or zero intensity grid")

// Centroid returns the intensity-weighted center of mass of a grid, in
// fractional pixel coordinates (x, y).
func Centroid(m [][]float64) (x, y float64, err error) {
	var sum, sx, sy float64
	for yi, row := range m {
		for xi, v := range row {
			sum += v
			sx += v * float64(xi)
			sy += v * float64(yi)
		}
	}
	if sum == 0 || len(m) == 0 {
		return 0, 0, ErrEmptyGrid
	}
	return sx / sum, sy / sum, nil
}

// Radial returns the mean intensity in one-pixel-wide annuli around the
// geometric center of the grid. pixelScale converts pixel radii to angular
// radii; pass 1 for profiles in pixels.
func Radial(m [][]float64, pixelScale float64) ([]Point, error) {
	n := len(m)
	if n == 0 || len(m[0]) != n {
		return nil, ErrEmptyGrid
	}
	c := float64(n-1) / 2

	nbins := n/2 + 1
	sums := make([]float64, nbins)
	counts := make([]int, nbins)
	for yi, row := range m {
		dy := float64(yi) - c
		for xi, v := range row {
			dx := float64(xi) - c
			bin := int(math.Round(math.Sqrt(dx*dx + dy*dy)))
			if bin < nbins {
				sums[bin] += v
				counts[bin]++
			}
		}
	}

	pts := make([]Point, 0, nbins)
	for bin, cnt := range counts {
		if cnt == 0 {
			continue
		}
		pts = append(pts, Point{
			Radius: float64(bin) * pixelScale,
			Value:  sums[bin] / float64(cnt),
		})
	}
	return pts, nil
}

// EncircledEnergy returns the fraction of the grid's total intensity that
// falls within each one-pixel radius step around the geometric center.
func EncircledEnergy(m [][]float64, pixelScale float64) ([]Point, error) {
	n := len(m)
	if n == 0 || len(m[0]) != n {
		return nil, ErrEmptyGrid
	}
	c := float64(n-1) / 2

	nbins := n/2 + 1
	sums := make([]float64, nbins)
	total := 0.0
	for yi, row := range m {
		dy := float64(yi) - c
		for xi, v := range row {
			dx := float64(xi) - c
			total += v
			bin := int(math.Round(math.Sqrt(dx*dx + dy*dy)))
			if bin < nbins {
				sums[bin] += v
			}
		}
	}
	if total == 0 {
		return nil, ErrEmptyGrid
	}

	pts := make([]Point, nbins)
	cum := 0.0
	for bin := 0; bin < nbins; bin++ {
		cum += sums[bin]
		pts[bin] = Point{Radius: float64(bin) * pixelScale, Value: cum / total}
	}
	return pts, nil
}
