// Package render converts PSF intensity grids to grayscale images for
// inspection and archival output.
package render

import (
	"errors"
	"image"
	"image/png"
	"math"
	"os"
	"sort"
)

func checkRect(m [][]float64) (h, w int, err error) {
	if len(m) == 0 || len(m[0]) == 0 {
		return 0, 0, errors.New("render: empty matrix")
	}
	h = len(m)
	w = len(m[0])
	for y := 1; y < h; y++ {
		if len(m[y]) != w {
			return 0, 0, errors.New("render: ragged matrix")
		}
	}
	return h, w, nil
}

// Gray16Data maps intensities to 16-bit gray with a fixed physical scale:
// Y16 = round(v * scale), clamped to [0, 65535]. Use this for archival
// output where pixel values must stay comparable between images.
func Gray16Data(m [][]float64, scale float64) (*image.Gray16, error) {
	h, w, err := checkRect(m)
	if err != nil {
		return nil, err
	}
	if scale <= 0 {
		return nil, errors.New("render: scale must be > 0")
	}

	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			v := m[y][x]
			i := row + 2*x
			if math.IsNaN(v) || math.IsInf(v, 0) {
				img.Pix[i], img.Pix[i+1] = 0, 0
				continue
			}
			u := math.Round(v * scale)
			if u < 0 {
				u = 0
			} else if u > 65535 {
				u = 65535
			}
			y16 := uint16(u)
			// Gray16 Pix is big-endian per pixel: high then low
			img.Pix[i] = uint8(y16 >> 8)
			img.Pix[i+1] = uint8(y16)
		}
	}
	return img, nil
}

// GrayPercentile maps intensities to 8-bit gray with a percentile stretch:
// values at or below the pLow percentile go to 0, values at or above pHigh
// go to 255. Robust to the bright core of a PSF dominating the range.
func GrayPercentile(m [][]float64, pLow, pHigh float64) (*image.Gray, error) {
	h, w, err := checkRect(m)
	if err != nil {
		return nil, err
	}
	if !(0 <= pLow && pLow < pHigh && pHigh <= 100) {
		return nil, errors.New("render: percentiles must satisfy 0 <= pLow < pHigh <= 100")
	}

	vals := make([]float64, 0, h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := m[y][x]
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				vals = append(vals, v)
			}
		}
	}
	if len(vals) == 0 {
		return nil, errors.New("render: matrix has no finite values")
	}
	sort.Float64s(vals)

	percentile := func(p float64) float64 {
		if p <= 0 {
			return vals[0]
		}
		if p >= 100 {
			return vals[len(vals)-1]
		}
		pos := (p / 100.0) * float64(len(vals)-1)
		i := int(math.Floor(pos))
		f := pos - float64(i)
		if i >= len(vals)-1 {
			return vals[len(vals)-1]
		}
		return vals[i]*(1-f) + vals[i+1]*f
	}

	lo := percentile(pLow)
	hi := percentile(pHigh)
	if hi == lo {
		hi = lo + 1 // avoid divide-by-zero; image becomes mostly constant
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			v := m[y][x]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				img.Pix[row+x] = 0
				continue
			}
			t := (v - lo) / (hi - lo)
			if t < 0 {
				t = 0
			} else if t > 1 {
				t = 1
			}
			img.Pix[row+x] = uint8(math.Round(t * 255.0))
		}
	}
	return img, nil
}

// LogStretch replaces each intensity v with log10(v/peak) clipped below at
// -decades, then rescales to [0, 1]. Faint Airy rings become visible that a
// linear stretch would crush to black.
func LogStretch(m [][]float64, decades float64) ([][]float64, error) {
	h, w, err := checkRect(m)
	if err != nil {
		return nil, err
	}
	if decades <= 0 {
		return nil, errors.New("render: decades must be > 0")
	}

	peak := 0.0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if v := m[y][x]; v > peak {
				peak = v
			}
		}
	}
	if peak <= 0 {
		return nil, errors.New("render: matrix has no positive values")
	}

	out := make([][]float64, h)
	for y := 0; y < h; y++ {
		out[y] = make([]float64, w)
		for x := 0; x < w; x++ {
			v := m[y][x]
			if v <= 0 || math.IsNaN(v) {
				continue
			}
			d := math.Log10(v / peak)
			if d < -decades {
				continue
			}
			out[y][x] = 1.0 + d/decades
		}
	}
	return out, nil
}

// Resize samples the matrix onto a size x size grid with bilinear
// interpolation. Used to blow small detector grids up to a viewable size.
func Resize(m [][]float64, size int) ([][]float64, error) {
	h, w, err := checkRect(m)
	if err != nil {
		return nil, err
	}
	if h != w {
		return nil, errors.New("render: matrix must be square")
	}
	if size < 2 {
		return nil, errors.New("render: size must be >= 2")
	}

	out := make([][]float64, size)
	step := float64(h-1) / float64(size-1)
	for y := 0; y < size; y++ {
		out[y] = make([]float64, size)
		for x := 0; x < size; x++ {
			out[y][x] = bilinear(m, float64(x)*step, float64(y)*step)
		}
	}
	return out, nil
}

func bilinear(matrix [][]float64, x, y float64) float64 {
	n := len(matrix)

	// Clamp to the valid range at matrix edges
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x >= float64(n-1) {
		x = float64(n-1) - 1e-9
	}
	if y >= float64(n-1) {
		y = float64(n-1) - 1e-9
	}

	x0 := int(x)
	y0 := int(y)
	xFrac := x - float64(x0)
	yFrac := y - float64(y0)

	v00 := matrix[y0][x0]
	v01 := matrix[y0][x0+1]
	v10 := matrix[y0+1][x0]
	v11 := matrix[y0+1][x0+1]

	v0 := v00*(1-xFrac) + v01*xFrac
	v1 := v10*(1-xFrac) + v11*xFrac
	return v0*(1-yFrac) + v1*yFrac
}

func SaveGrayPNG(filename string, img *image.Gray) (err error) {
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

func SaveGray16PNG(filename string, img *image.Gray16) (err error) {
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

// LoadGray16PNG reads a 16-bit grayscale PNG back into intensities, undoing
// the fixed scale used by Gray16Data.
func LoadGray16PNG(filename string, scale float64) ([][]float64, error) {
	if scale <= 0 {
		return nil, errors.New("render: scale must be > 0")
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoded, err := png.Decode(f)
	if err != nil {
		return nil, err
	}
	img, ok := decoded.(*image.Gray16)
	if !ok {
		return nil, errors.New("render: not a 16-bit grayscale PNG")
	}

	b := img.Bounds()
	m := make([][]float64, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		m[y] = make([]float64, b.Dx())
		for x := 0; x < b.Dx(); x++ {
			m[y][x] = float64(img.Gray16At(b.Min.X+x, b.Min.Y+y).Y) / scale
		}
	}
	return m, nil
}
