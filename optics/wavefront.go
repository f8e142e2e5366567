package optics

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// PlaneType identifies the sampling convention of a wavefront or optical
// element plane.
type PlaneType int

const (
	// PlanePupil is a plane conjugate to the entrance aperture, sampled in
	// meters per pixel.
	PlanePupil PlaneType = iota
	// PlaneImage is a focal plane, sampled in resolution elements
	// (lambda/D) per pixel.
	PlaneImage
	// PlaneIntermediate is an image-like plane between pupil planes, for
	// example an occulter plane. It shares the image sampling convention.
	PlaneIntermediate
)

func (p PlaneType) String() string {
	switch p {
	case PlanePupil:
		return "pupil"
	case PlaneImage:
		return "image"
	case PlaneIntermediate:
		return "intermediate"
	}
	return fmt.Sprintf("PlaneType(%d)", int(p))
}

// imageLike reports whether the plane uses the lambda/D sampling convention.
func (p PlaneType) imageLike() bool {
	return p == PlaneImage || p == PlaneIntermediate
}

// Wavefront is a monochromatic complex amplitude grid travelling through the
// optical system. The grid is square. Its pixel scale is interpreted
// according to Plane: meters/pixel in a pupil plane, lambda/D per pixel in an
// image plane. A wavefront is created once per wavelength and mutated in
// place by elements and propagators.
type Wavefront struct {
	amp *mat.CDense

	Wavelength float64   // meters
	Diam       float64   // pupil diameter, meters
	Plane      PlaneType // current sampling convention
	PixelScale float64   // m/px (pupil) or lambda/D per px (image)
	Oversample int       // computational subpixels per requested output pixel

	// TiltX and TiltY record the accumulated phase tilt applied so far, in
	// lambda/D. They are bookkeeping only and are never re-derived from the
	// amplitude grid.
	TiltX, TiltY float64

	// cornerX and cornerY track the corner-centering share of the applied
	// tilt so that it alone can be removed before detector resampling.
	cornerX, cornerY float64
}

// NewWavefront creates a uniformly illuminated pupil-plane wavefront for one
// wavelength. The computational grid is npix*oversample on a side, sampled so
// that the aperture diameter spans npix pixels; the padding is what yields
// oversample computational pixels per lambda/D after an FFT to an image
// plane.
func NewWavefront(wavelength, diam float64, npix, oversample int) (*Wavefront, error) {
	if wavelength <= 0 {
		return nil, fmt.Errorf("%w: wavelength %g m must be positive", ErrConfiguration, wavelength)
	}
	if diam <= 0 {
		return nil, fmt.Errorf("%w: aperture diameter %g m must be positive", ErrConfiguration, diam)
	}
	if npix < 2 {
		return nil, fmt.Errorf("%w: pupil grid of %d pixels is too small", ErrConfiguration, npix)
	}
	if oversample < 1 {
		return nil, fmt.Errorf("%w: oversample %d must be a positive integer", ErrConfiguration, oversample)
	}

	n := npix * oversample
	amp := mat.NewCDense(n, n, nil)
	data := amp.RawCMatrix().Data
	for i := range data {
		data[i] = 1
	}

	return &Wavefront{
		amp:        amp,
		Wavelength: wavelength,
		Diam:       diam,
		Plane:      PlanePupil,
		PixelScale: diam / float64(npix),
		Oversample: oversample,
	}, nil
}

// GridSize returns the side length of the amplitude grid in pixels.
func (w *Wavefront) GridSize() int {
	n, _ := w.amp.Dims()
	return n
}

// Amplitude returns the live amplitude grid. Callers that need an immutable
// view should use Copy.
func (w *Wavefront) Amplitude() *mat.CDense { return w.amp }

// Copy returns a deep copy of the wavefront, suitable for read-only
// snapshots of intermediate planes.
func (w *Wavefront) Copy() *Wavefront {
	n := w.GridSize()
	amp := mat.NewCDense(n, n, nil)
	amp.Copy(w.amp)
	dup := *w
	dup.amp = amp
	return &dup
}

// Coordinates returns the pixel center coordinates along one axis, in the
// current plane's native units, with the origin at index n/2. Both axes of
// the square grid share the same coordinates.
func (w *Wavefront) Coordinates() []float64 {
	n := w.GridSize()
	c := n / 2
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i-c) * w.PixelScale
	}
	return xs
}

// ApplyTilt multiplies the amplitude by the phase ramp
// exp(i*2*pi*(tx*x + ty*y)) with (tx, ty) in lambda/D and (x, y) in units of
// the aperture diameter. Applying (tx, ty) followed by (-tx, -ty) restores
// the grid to numerical-precision identity. Tilts are applied in the pupil
// plane only.
func (w *Wavefront) ApplyTilt(tx, ty float64) error {
	if w.Plane != PlanePupil {
		return fmt.Errorf("%w: tilt must be applied in a pupil plane, wavefront is in %v plane", ErrConfiguration, w.Plane)
	}
	w.TiltX += tx
	w.TiltY += ty
	if tx == 0 && ty == 0 {
		return nil
	}

	// Separable ramp: one phasor per column and one per row.
	xs := w.Coordinates()
	n := w.GridSize()
	colPh := make([]complex128, n)
	rowPh := make([]complex128, n)
	for i, x := range xs {
		u := x / w.Diam // pupil coordinate in units of D
		colPh[i] = cmplx.Exp(complex(0, 2*math.Pi*tx*u))
		rowPh[i] = cmplx.Exp(complex(0, 2*math.Pi*ty*u))
	}

	raw := w.amp.RawCMatrix()
	for y := 0; y < n; y++ {
		row := raw.Data[y*raw.Stride : y*raw.Stride+n]
		ph := rowPh[y]
		for x := 0; x < n; x++ {
			row[x] *= ph * colPh[x]
		}
	}
	return nil
}

// MultiplyGrid multiplies the amplitude elementwise by a complex
// transmission grid of identical shape.
func (w *Wavefront) MultiplyGrid(g *mat.CDense) error {
	n := w.GridSize()
	gr, gc := g.Dims()
	if gr != n || gc != n {
		return fmt.Errorf("%w: wavefront is %dx%d, grid is %dx%d", ErrShapeMismatch, n, n, gr, gc)
	}
	raw := w.amp.RawCMatrix()
	graw := g.RawCMatrix()
	for y := 0; y < n; y++ {
		row := raw.Data[y*raw.Stride : y*raw.Stride+n]
		grow := graw.Data[y*graw.Stride : y*graw.Stride+n]
		for x := 0; x < n; x++ {
			row[x] *= grow[x]
		}
	}
	return nil
}

// Intensity returns |amplitude|^2 as a freshly allocated matrix.
func (w *Wavefront) Intensity() [][]float64 {
	n := w.GridSize()
	raw := w.amp.RawCMatrix()
	out := make([][]float64, n)
	for y := 0; y < n; y++ {
		row := raw.Data[y*raw.Stride : y*raw.Stride+n]
		o := make([]float64, n)
		for x, v := range row {
			re, im := real(v), imag(v)
			o[x] = re*re + im*im
		}
		out[y] = o
	}
	return out
}

// TotalIntensity returns the summed intensity of the grid.
func (w *Wavefront) TotalIntensity() float64 {
	n := w.GridSize()
	raw := w.amp.RawCMatrix()
	sum := 0.0
	for y := 0; y < n; y++ {
		row := raw.Data[y*raw.Stride : y*raw.Stride+n]
		for _, v := range row {
			re, im := real(v), imag(v)
			sum += re*re + im*im
		}
	}
	return sum
}

// scaleAmplitude multiplies every amplitude sample by a real factor.
func (w *Wavefront) scaleAmplitude(s float64) {
	cs := complex(s, 0)
	n := w.GridSize()
	raw := w.amp.RawCMatrix()
	for y := 0; y < n; y++ {
		row := raw.Data[y*raw.Stride : y*raw.Stride+n]
		for x := range row {
			row[x] *= cs
		}
	}
}

// isFinite reports whether every amplitude sample is finite.
func (w *Wavefront) isFinite() bool {
	n := w.GridSize()
	raw := w.amp.RawCMatrix()
	for y := 0; y < n; y++ {
		row := raw.Data[y*raw.Stride : y*raw.Stride+n]
		for _, v := range row {
			if math.IsNaN(real(v)) || math.IsInf(real(v), 0) ||
				math.IsNaN(imag(v)) || math.IsInf(imag(v), 0) {
				return false
			}
		}
	}
	return true
}
