package optics

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// OpticalElement is a read-only description of a pupil- or image-plane mask.
// Elements are applied to a wavefront in place, in prescription order, by
// OpticalSystem. An element never resamples itself: grid-backed elements
// must already match the wavefront sampling, and analytic elements evaluate
// their masks at the wavefront's current pixel scale.
type OpticalElement interface {
	Name() string
	Plane() PlaneType
	Apply(w *Wavefront) error
}

// checkPlane verifies that the wavefront is in the sampling convention the
// element was declared for.
func checkPlane(e OpticalElement, w *Wavefront) error {
	if e.Plane() == w.Plane || (e.Plane().imageLike() && w.Plane.imageLike()) {
		return nil
	}
	return fmt.Errorf("%w: element %q expects a %v plane, wavefront is in %v plane",
		ErrConfiguration, e.Name(), e.Plane(), w.Plane)
}

// applyMask multiplies the wavefront by a real-valued mask evaluated per
// pixel at the given axis coordinates.
func applyMask(w *Wavefront, xs []float64, mask func(x, y float64) float64) {
	n := w.GridSize()
	raw := w.amp.RawCMatrix()
	for yi := 0; yi < n; yi++ {
		row := raw.Data[yi*raw.Stride : yi*raw.Stride+n]
		y := xs[yi]
		for xi := 0; xi < n; xi++ {
			row[xi] *= complex(mask(xs[xi], y), 0)
		}
	}
}

// imageCoords returns image-plane pixel coordinates in arcseconds with the
// origin at the grid's geometric center (n-1)/2, which is where the
// corner-centering tilt places the PSF for both parities.
func imageCoords(w *Wavefront) []float64 {
	lamD := w.Wavelength / w.Diam * RadToArcsec
	n := w.GridSize()
	c := float64(n-1) / 2
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = (float64(i) - c) * w.PixelScale * lamD
	}
	return xs
}

// CircularAperture is a pupil-plane stop of the given radius in meters, with
// an optional concentric circular obscuration (a secondary mirror shadow).
type CircularAperture struct {
	ElementName string
	Radius      float64 // meters
	Obscuration float64 // meters; 0 means unobstructed
}

func (a *CircularAperture) Name() string {
	if a.ElementName != "" {
		return a.ElementName
	}
	return fmt.Sprintf("circular aperture r=%.3g m", a.Radius)
}

func (a *CircularAperture) Plane() PlaneType { return PlanePupil }

func (a *CircularAperture) Apply(w *Wavefront) error {
	if err := checkPlane(a, w); err != nil {
		return err
	}
	if a.Radius <= 0 {
		return fmt.Errorf("%w: aperture radius %g m must be positive", ErrConfiguration, a.Radius)
	}
	xs := w.Coordinates()
	r2 := a.Radius * a.Radius
	o2 := a.Obscuration * a.Obscuration
	applyMask(w, xs, func(x, y float64) float64 {
		d2 := x*x + y*y
		if d2 > r2 || d2 < o2 {
			return 0
		}
		return 1
	})
	return nil
}

// EllipticalObscuration blocks a rotated elliptical region of the pupil,
// e.g. a support strut or an off-center secondary shadow. Dimensions are in
// meters; rotation is counterclockwise in degrees.
type EllipticalObscuration struct {
	ElementName    string
	XDiam, YDiam   float64 // meters
	XCenter        float64 // meters
	YCenter        float64 // meters
	RotationDeg    float64
}

func (o *EllipticalObscuration) Name() string {
	if o.ElementName != "" {
		return o.ElementName
	}
	return fmt.Sprintf("elliptical obscuration %gx%g m", o.XDiam, o.YDiam)
}

func (o *EllipticalObscuration) Plane() PlaneType { return PlanePupil }

func (o *EllipticalObscuration) Apply(w *Wavefront) error {
	if err := checkPlane(o, w); err != nil {
		return err
	}
	if o.XDiam <= 0 || o.YDiam <= 0 {
		return fmt.Errorf("%w: obscuration diameters %gx%g m must be positive", ErrConfiguration, o.XDiam, o.YDiam)
	}
	xSemi := o.XDiam / 2
	ySemi := o.YDiam / 2
	theta := o.RotationDeg * math.Pi / 180
	sin, cos := math.Sin(theta), math.Cos(theta)
	xs := w.Coordinates()
	applyMask(w, xs, func(x, y float64) float64 {
		dx := x - o.XCenter
		dy := y - o.YCenter
		t1 := (dx*cos + dy*sin) / xSemi
		t2 := (-dx*sin + dy*cos) / ySemi
		if t1*t1+t2*t2 <= 1 {
			return 0
		}
		return 1
	})
	return nil
}

// GridElement is an arbitrary complex transmission grid, already resampled
// by the caller to the wavefront's plane convention.
type GridElement struct {
	ElementName  string
	PlaneKind    PlaneType
	Transmission *mat.CDense
}

func (g *GridElement) Name() string {
	if g.ElementName != "" {
		return g.ElementName
	}
	return "grid transmission"
}

func (g *GridElement) Plane() PlaneType { return g.PlaneKind }

func (g *GridElement) Apply(w *Wavefront) error {
	if err := checkPlane(g, w); err != nil {
		return err
	}
	if err := w.MultiplyGrid(g.Transmission); err != nil {
		return fmt.Errorf("element %q: %w", g.Name(), err)
	}
	return nil
}

// OPDMap is a pupil-plane optical path difference map in meters, with an
// optional amplitude transmission. The phasor exp(i*2*pi*opd/lambda) is
// wavelength dependent, so the same map produces a different phase screen at
// every wavelength of a calculation.
type OPDMap struct {
	ElementName  string
	OPD          *mat.Dense // meters
	Transmission *mat.Dense // optional; nil means unity
}

func (m *OPDMap) Name() string {
	if m.ElementName != "" {
		return m.ElementName
	}
	return "OPD map"
}

func (m *OPDMap) Plane() PlaneType { return PlanePupil }

func (m *OPDMap) Apply(w *Wavefront) error {
	if err := checkPlane(m, w); err != nil {
		return err
	}
	n := w.GridSize()
	or, oc := m.OPD.Dims()
	if or != n || oc != n {
		return fmt.Errorf("%w: element %q: wavefront is %dx%d, OPD map is %dx%d",
			ErrShapeMismatch, m.Name(), n, n, or, oc)
	}
	if m.Transmission != nil {
		tr, tc := m.Transmission.Dims()
		if tr != n || tc != n {
			return fmt.Errorf("%w: element %q: wavefront is %dx%d, transmission is %dx%d",
				ErrShapeMismatch, m.Name(), n, n, tr, tc)
		}
	}
	k := 2 * math.Pi / w.Wavelength
	raw := w.amp.RawCMatrix()
	for y := 0; y < n; y++ {
		row := raw.Data[y*raw.Stride : y*raw.Stride+n]
		for x := 0; x < n; x++ {
			ph := cmplx.Exp(complex(0, k*m.OPD.At(y, x)))
			if m.Transmission != nil {
				ph *= complex(m.Transmission.At(y, x), 0)
			}
			row[x] *= ph
		}
	}
	return nil
}

// CircularOcculter blocks a circular region at the center of an image plane,
// the simplest coronagraph mask. Radius is in arcseconds.
type CircularOcculter struct {
	ElementName string
	Radius      float64 // arcsec
}

func (o *CircularOcculter) Name() string {
	if o.ElementName != "" {
		return o.ElementName
	}
	return fmt.Sprintf("circular occulter r=%.3g arcsec", o.Radius)
}

func (o *CircularOcculter) Plane() PlaneType { return PlaneImage }

func (o *CircularOcculter) Apply(w *Wavefront) error {
	if err := checkPlane(o, w); err != nil {
		return err
	}
	if o.Radius <= 0 {
		return fmt.Errorf("%w: occulter radius %g arcsec must be positive", ErrConfiguration, o.Radius)
	}
	xs := imageCoords(w)
	r2 := o.Radius * o.Radius
	applyMask(w, xs, func(x, y float64) float64 {
		if x*x+y*y <= r2 {
			return 0
		}
		return 1
	})
	return nil
}

// FieldStop transmits only a centered square region of an image plane.
// Size is the full width in arcseconds.
type FieldStop struct {
	ElementName string
	Size        float64 // arcsec
}

func (f *FieldStop) Name() string {
	if f.ElementName != "" {
		return f.ElementName
	}
	return fmt.Sprintf("field stop %.3g arcsec", f.Size)
}

func (f *FieldStop) Plane() PlaneType { return PlaneImage }

func (f *FieldStop) Apply(w *Wavefront) error {
	if err := checkPlane(f, w); err != nil {
		return err
	}
	if f.Size <= 0 {
		return fmt.Errorf("%w: field stop size %g arcsec must be positive", ErrConfiguration, f.Size)
	}
	half := f.Size / 2
	xs := imageCoords(w)
	applyMask(w, xs, func(x, y float64) float64 {
		if math.Abs(x) > half || math.Abs(y) > half {
			return 0
		}
		return 1
	})
	return nil
}

// ScalarTransmission multiplies the whole wavefront by a constant complex
// factor, e.g. a neutral density filter. PlaneKind records the plane the
// prescription places it in; the zero value is a pupil plane.
type ScalarTransmission struct {
	ElementName string
	PlaneKind   PlaneType
	T           complex128
}

func (s *ScalarTransmission) Name() string {
	if s.ElementName != "" {
		return s.ElementName
	}
	return "scalar transmission"
}

func (s *ScalarTransmission) Plane() PlaneType { return s.PlaneKind }

func (s *ScalarTransmission) Apply(w *Wavefront) error {
	n := w.GridSize()
	raw := w.amp.RawCMatrix()
	for y := 0; y < n; y++ {
		row := raw.Data[y*raw.Stride : y*raw.Stride+n]
		for x := range row {
			row[x] *= s.T
		}
	}
	return nil
}
