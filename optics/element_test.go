package optics_test

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/fourieroptics/psfsim/optics"
)

func TestCircularApertureTransmission(t *testing.T) {
	w, err := optics.NewWavefront(1e-6, 2.0, 16, 2)
	require.NoError(t, err)
	ap := &optics.CircularAperture{Radius: 1.0}
	require.NoError(t, ap.Apply(w))

	n := w.GridSize()
	c := n / 2
	amp := w.Amplitude()
	assert.Equal(t, complex(1, 0), amp.At(c, c))
	assert.Equal(t, complex(0, 0), amp.At(0, 0), "grid corner lies outside the stop")

	// Transmitted pixel count approximates the aperture area.
	area := w.TotalIntensity()
	rPx := 1.0 / w.PixelScale
	assert.InDelta(t, math.Pi*rPx*rPx, area, math.Pi*rPx*rPx*0.15)
}

func TestCircularApertureObscuration(t *testing.T) {
	w, err := optics.NewWavefront(1e-6, 2.0, 16, 2)
	require.NoError(t, err)
	ap := &optics.CircularAperture{Radius: 1.0, Obscuration: 0.5}
	require.NoError(t, ap.Apply(w))

	c := w.GridSize() / 2
	amp := w.Amplitude()
	assert.Equal(t, complex(0, 0), amp.At(c, c), "center blocked by secondary")
}

func TestCircularApertureValidation(t *testing.T) {
	w, err := optics.NewWavefront(1e-6, 2.0, 16, 2)
	require.NoError(t, err)
	ap := &optics.CircularAperture{Radius: -1}
	assert.ErrorIs(t, ap.Apply(w), optics.ErrConfiguration)
}

func TestElementPlaneCheck(t *testing.T) {
	w, err := optics.NewWavefront(1e-6, 2.0, 16, 2)
	require.NoError(t, err)

	occ := &optics.CircularOcculter{Radius: 0.1}
	assert.ErrorIs(t, occ.Apply(w), optics.ErrConfiguration, "image mask on a pupil wavefront")

	require.NoError(t, w.PropagateFFT(optics.PlaneImage))
	ap := &optics.CircularAperture{Radius: 1.0}
	assert.ErrorIs(t, ap.Apply(w), optics.ErrConfiguration, "pupil stop on an image wavefront")
}

func TestEllipticalObscurationBlocksRotatedRegion(t *testing.T) {
	w, err := optics.NewWavefront(1e-6, 2.0, 32, 1)
	require.NoError(t, err)
	before := w.TotalIntensity()

	ob := &optics.EllipticalObscuration{XDiam: 1.0, YDiam: 0.25, RotationDeg: 90}
	require.NoError(t, ob.Apply(w))

	c := w.GridSize() / 2
	amp := w.Amplitude()
	assert.Equal(t, complex(0, 0), amp.At(c, c))
	// Rotated 90 degrees, the long axis runs along y: a point 0.4 m out
	// in y is blocked, the same point in x is not.
	dy := int(math.Round(0.4 / w.PixelScale))
	assert.Equal(t, complex(0, 0), amp.At(c+dy, c))
	assert.Equal(t, complex(1, 0), amp.At(c, c+dy))
	assert.Less(t, w.TotalIntensity(), before)
}

func TestOPDMapAppliesWavelengthDependentPhase(t *testing.T) {
	opd := mat.NewDense(16, 16, nil)
	opd.Set(8, 8, 0.25e-6) // quarter wave at 1 micron

	apply := func(wavelength float64) complex128 {
		w, err := optics.NewWavefront(wavelength, 2.0, 16, 1)
		require.NoError(t, err)
		m := &optics.OPDMap{OPD: opd}
		require.NoError(t, m.Apply(w))
		return w.Amplitude().At(8, 8)
	}

	// 2*pi*opd/lambda is pi/2 at 1 micron and pi/4 at 2 microns.
	got1 := apply(1e-6)
	assert.InDelta(t, 0.0, real(got1), 1e-12)
	assert.InDelta(t, 1.0, imag(got1), 1e-12)

	got2 := apply(2e-6)
	want2 := cmplx.Exp(complex(0, math.Pi/4))
	assert.InDelta(t, real(want2), real(got2), 1e-12)
	assert.InDelta(t, imag(want2), imag(got2), 1e-12)
}

func TestOPDMapShapeMismatch(t *testing.T) {
	w, err := optics.NewWavefront(1e-6, 2.0, 16, 2)
	require.NoError(t, err)
	m := &optics.OPDMap{OPD: mat.NewDense(16, 16, nil)}
	assert.ErrorIs(t, m.Apply(w), optics.ErrShapeMismatch)
}

func TestFieldStopClipsImagePlane(t *testing.T) {
	w, err := optics.NewWavefront(1e-6, 2.0, 16, 2)
	require.NoError(t, err)
	require.NoError(t, w.PropagateFFT(optics.PlaneImage))

	lamD := 1e-6 / 2.0 * optics.RadToArcsec
	stop := &optics.FieldStop{Size: 4 * lamD}
	require.NoError(t, stop.Apply(w))

	// Everything outside the central +-2 lambda/D square is gone. The
	// grid samples at half a resolution element per pixel around
	// (n-1)/2, so pixels more than 4 samples out are dark.
	amp := w.Amplitude()
	n := w.GridSize()
	assert.Equal(t, complex(0, 0), amp.At(0, 0))
	assert.Equal(t, complex(0, 0), amp.At(n/2, n-1))
}

func TestScalarTransmissionAttenuates(t *testing.T) {
	w, err := optics.NewWavefront(1e-6, 2.0, 8, 1)
	require.NoError(t, err)
	before := w.TotalIntensity()

	nd := &optics.ScalarTransmission{T: complex(0.5, 0)}
	require.NoError(t, nd.Apply(w))
	assert.InDelta(t, before/4, w.TotalIntensity(), 1e-12)
}

func TestElementNames(t *testing.T) {
	assert.Equal(t, "primary", (&optics.CircularAperture{ElementName: "primary", Radius: 1}).Name())
	assert.Contains(t, (&optics.CircularAperture{Radius: 1}).Name(), "circular aperture")
	assert.Contains(t, (&optics.CircularOcculter{Radius: 0.1}).Name(), "occulter")
	assert.Contains(t, (&optics.FieldStop{Size: 1}).Name(), "field stop")
	assert.Equal(t, "grid transmission", (&optics.GridElement{}).Name())
	assert.Equal(t, "OPD map", (&optics.OPDMap{}).Name())
}
