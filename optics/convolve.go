package optics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ConvolveGaussian smooths an intensity grid with a circular Gaussian of the
// given sigma in pixels, via FFT multiplication. It models pointing jitter
// applied to a finished PSF. The kernel is normalized to unit sum, so the
// total intensity is preserved. Convolution is circular; PSF grids are
// compact relative to the array, so wrap-around is negligible for any
// realistic jitter.
func ConvolveGaussian(m [][]float64, sigmaPx float64) ([][]float64, error) {
	n := len(m)
	if n == 0 || len(m[0]) != n {
		return nil, fmt.Errorf("%w: jitter convolution requires a square non-empty grid", ErrConfiguration)
	}
	if sigmaPx <= 0 {
		return nil, fmt.Errorf("%w: jitter sigma %g px must be positive", ErrConfiguration, sigmaPx)
	}

	// Kernel centered at n/2, then rolled so its center sits at (0,0),
	// which keeps the convolution shift-free.
	kernel := make([][]complex128, n)
	c := n / 2
	sum := 0.0
	for y := range kernel {
		kernel[y] = make([]complex128, n)
		for x := range kernel[y] {
			dy := float64(y - c)
			dx := float64(x - c)
			v := math.Exp(-(dx*dx + dy*dy) / (2 * sigmaPx * sigmaPx))
			kernel[y][x] = complex(v, 0)
			sum += v
		}
	}
	shifted := make([][]complex128, n)
	for y := range shifted {
		shifted[y] = make([]complex128, n)
		yy := (y + c) % n
		for x := range shifted[y] {
			shifted[y][x] = kernel[yy][(x+c)%n] / complex(sum, 0)
		}
	}

	grid := make([][]complex128, n)
	for y := range grid {
		grid[y] = make([]complex128, n)
		for x, v := range m[y] {
			grid[y][x] = complex(v, 0)
		}
	}

	fft2Slices(grid, true)
	fft2Slices(shifted, true)
	for y := range grid {
		for x := range grid[y] {
			grid[y][x] *= shifted[y][x]
		}
	}
	fft2Slices(grid, false)

	// Forward then inverse multiplies by n*n.
	scale := float64(n) * float64(n)
	out := make([][]float64, n)
	for y := range out {
		out[y] = make([]float64, n)
		for x := range out[y] {
			v := real(grid[y][x]) / scale
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: jitter convolution", ErrNumericalInstability)
			}
			out[y][x] = v
		}
	}
	return out, nil
}

// fft2Slices transforms a square [][]complex128 grid in place, rows then
// columns.
func fft2Slices(a [][]complex128, forward bool) {
	n := len(a)
	fft := fourier.NewCmplxFFT(n)

	tmp := make([]complex128, n)
	for y := 0; y < n; y++ {
		copy(tmp, a[y])
		if forward {
			fft.Coefficients(tmp, tmp)
		} else {
			fft.Sequence(tmp, tmp)
		}
		copy(a[y], tmp)
	}

	col := make([]complex128, n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			col[y] = a[y][x]
		}
		if forward {
			fft.Coefficients(col, col)
		} else {
			fft.Sequence(col, col)
		}
		for y := 0; y < n; y++ {
			a[y][x] = col[y]
		}
	}
}
