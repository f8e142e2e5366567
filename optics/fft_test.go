package optics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fourieroptics/psfsim/optics"
)

// apertureWavefront builds a pupil wavefront with a full-diameter circular
// stop applied, the standard starting point of these tests.
func apertureWavefront(t *testing.T, wavelength, diam float64, npix, oversample int) *optics.Wavefront {
	t.Helper()
	w, err := optics.NewWavefront(wavelength, diam, npix, oversample)
	require.NoError(t, err)
	ap := &optics.CircularAperture{Radius: diam / 2}
	require.NoError(t, ap.Apply(w))
	return w
}

func TestFFTPixelScaleLaw(t *testing.T) {
	w := apertureWavefront(t, 2e-6, 6.5, 32, 4)

	require.NoError(t, w.PropagateFFT(optics.PlaneImage))
	assert.Equal(t, optics.PlaneImage, w.Plane)
	// D/(n*d) with n = npix*oversample and d = D/npix is 1/oversample.
	assert.InDelta(t, 0.25, w.PixelScale, 1e-14)

	require.NoError(t, w.PropagateFFT(optics.PlanePupil))
	assert.Equal(t, optics.PlanePupil, w.Plane)
	assert.InDelta(t, 6.5/32, w.PixelScale, 1e-14)
}

func TestFFTRoundTripIsIdentity(t *testing.T) {
	w := apertureWavefront(t, 1e-6, 2.0, 16, 4)
	ref := w.Copy()

	require.NoError(t, w.PropagateFFT(optics.PlaneImage))
	require.NoError(t, w.PropagateFFT(optics.PlanePupil))

	assert.Less(t, maxAmpDiff(t, w, ref), 1e-12)
}

func TestFFTPreservesTotalIntensity(t *testing.T) {
	w := apertureWavefront(t, 1e-6, 2.0, 16, 4)
	before := w.TotalIntensity()

	require.NoError(t, w.PropagateFFT(optics.PlaneImage))
	assert.InDelta(t, before, w.TotalIntensity(), before*1e-12)
}

func TestFFTSamePlaneIsNoOp(t *testing.T) {
	w := apertureWavefront(t, 1e-6, 2.0, 16, 2)
	ref := w.Copy()
	require.NoError(t, w.PropagateFFT(optics.PlanePupil))
	assert.Equal(t, 0.0, maxAmpDiff(t, w, ref))
}

func TestUntiltedFFTPeaksAtHalfIndex(t *testing.T) {
	// A uniform (unapertured) pupil transforms to a single bright pixel.
	w, err := optics.NewWavefront(1e-6, 2.0, 16, 2)
	require.NoError(t, err)
	require.NoError(t, w.PropagateFFT(optics.PlaneImage))

	n := w.GridSize()
	in := w.Intensity()
	px, py := peakPixel(in)
	assert.Equal(t, n/2, px)
	assert.Equal(t, n/2, py)

	tot := w.TotalIntensity()
	assert.InDelta(t, tot, in[py][px], tot*1e-10, "all energy lands in one pixel")
}

func TestIntegerTiltShiftsPeak(t *testing.T) {
	// A tilt of t lambda/D displaces the image by t*oversample pixels.
	w, err := optics.NewWavefront(1e-6, 2.0, 16, 2)
	require.NoError(t, err)
	require.NoError(t, w.ApplyTilt(3, -2))
	require.NoError(t, w.PropagateFFT(optics.PlaneImage))

	n := w.GridSize()
	px, py := peakPixel(w.Intensity())
	assert.Equal(t, n/2+6, px)
	assert.Equal(t, n/2-4, py)
}

func TestCornerTiltCentersOnSharedCorner(t *testing.T) {
	// The half-pixel correction splits the peak symmetrically across the
	// two central columns and rows.
	w, err := optics.NewWavefront(1e-6, 2.0, 16, 2)
	require.NoError(t, err)
	tx, ty := optics.CornerTilt(16, 2)
	require.NoError(t, w.ApplyTilt(tx, ty))
	require.NoError(t, w.PropagateFFT(optics.PlaneImage))

	in := w.Intensity()
	n := len(in)
	c := n / 2
	assert.InDelta(t, in[c-1][c-1], in[c][c], in[c][c]*1e-10)
	assert.InDelta(t, in[c-1][c], in[c][c-1], in[c][c]*1e-10)
}

func peakPixel(in [][]float64) (x, y int) {
	best := -1.0
	for yi, row := range in {
		for xi, v := range row {
			if v > best {
				best = v
				x, y = xi, yi
			}
		}
	}
	return x, y
}
