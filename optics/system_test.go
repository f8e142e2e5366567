package optics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fourieroptics/psfsim/optics"
	"github.com/fourieroptics/psfsim/profile"
)

func newTestSystem(t *testing.T, diam float64, npix, oversample int) *optics.OpticalSystem {
	t.Helper()
	sys, err := optics.NewOpticalSystem("test scope", diam, npix, oversample)
	require.NoError(t, err)
	sys.AddElement(&optics.CircularAperture{Radius: diam / 2})
	return sys
}

func sumGrid(m [][]float64) float64 {
	tot := 0.0
	for _, row := range m {
		for _, v := range row {
			tot += v
		}
	}
	return tot
}

func TestNewOpticalSystemValidation(t *testing.T) {
	_, err := optics.NewOpticalSystem("bad", 0, 32, 2)
	assert.ErrorIs(t, err, optics.ErrConfiguration)
	_, err = optics.NewOpticalSystem("bad", 6.5, 1, 2)
	assert.ErrorIs(t, err, optics.ErrConfiguration)
	_, err = optics.NewOpticalSystem("bad", 6.5, 32, 0)
	assert.ErrorIs(t, err, optics.ErrConfiguration)
}

func TestDetectorSpecResolution(t *testing.T) {
	lamD, err := optics.LamDArcsec(2e-6, 6.5)
	require.NoError(t, err)
	sys := newTestSystem(t, 6.5, 32, 2)

	// A field of view request resolves to the same grid as the explicit
	// pixel count.
	byPixels, err := sys.CalcPSF(context.Background(), optics.Monochromatic(2e-6), optics.Options{
		Detector: optics.DetectorSpec{Pixels: 10, PixelScale: lamD},
	})
	require.NoError(t, err)
	byFOV, err := sys.CalcPSF(context.Background(), optics.Monochromatic(2e-6), optics.Options{
		Detector: optics.DetectorSpec{FOVArcsec: 10 * lamD, PixelScale: lamD},
	})
	require.NoError(t, err)

	assert.Len(t, byPixels.Detector, 10)
	assert.Len(t, byFOV.Detector, 10)

	_, err = sys.CalcPSF(context.Background(), optics.Monochromatic(2e-6), optics.Options{
		Detector: optics.DetectorSpec{PixelScale: lamD},
	})
	assert.ErrorIs(t, err, optics.ErrConfiguration)

	_, err = sys.CalcPSF(context.Background(), optics.Monochromatic(2e-6), optics.Options{
		Detector: optics.DetectorSpec{Pixels: 10},
	})
	assert.ErrorIs(t, err, optics.ErrConfiguration)
}

// A 6.5 m aperture observed at 2 microns with a 10x10 detector at 4x
// oversampling must land its PSF on the corner shared by the four central
// oversampled pixels, (19.5, 19.5) of the 40x40 grid.
func TestPSFCenteredOnDetectorCorner(t *testing.T) {
	lamD, err := optics.LamDArcsec(2e-6, 6.5)
	require.NoError(t, err)

	sys := newTestSystem(t, 6.5, 32, 4)
	res, err := sys.CalcPSF(context.Background(), optics.Monochromatic(2e-6), optics.Options{
		Detector:  optics.DetectorSpec{Pixels: 10, PixelScale: lamD / 2},
		Normalize: optics.NormalizeFirst,
	})
	require.NoError(t, err)
	require.Len(t, res.Oversampled, 40)

	cx, cy, err := profile.Centroid(res.Oversampled)
	require.NoError(t, err)
	// 0.01 detector pixels is 0.04 oversampled pixels.
	assert.InDelta(t, 19.5, cx, 0.04)
	assert.InDelta(t, 19.5, cy, 0.04)
}

func TestNormalizeFirstCapturesMostEnergy(t *testing.T) {
	lamD, err := optics.LamDArcsec(2e-6, 6.5)
	require.NoError(t, err)

	sys := newTestSystem(t, 6.5, 32, 4)
	res, err := sys.CalcPSF(context.Background(), optics.Monochromatic(2e-6), optics.Options{
		Detector:  optics.DetectorSpec{Pixels: 10, PixelScale: lamD},
		Normalize: optics.NormalizeFirst,
	})
	require.NoError(t, err)

	frac := sumGrid(res.Oversampled)
	assert.Greater(t, frac, 0.95, "10 lambda/D field of view should capture most of the light")
	assert.Less(t, frac, 1.0001)

	// Block summing preserves the total.
	assert.InDelta(t, frac, sumGrid(res.Detector), frac*1e-12)
	assert.Len(t, res.Detector, 10)
}

func TestOcculterRemovesCoreEnergy(t *testing.T) {
	lamD, err := optics.LamDArcsec(2e-6, 6.5)
	require.NoError(t, err)
	opts := optics.Options{
		Detector:  optics.DetectorSpec{Pixels: 10, PixelScale: lamD},
		Normalize: optics.NormalizeFirst,
	}

	open := newTestSystem(t, 6.5, 32, 4)
	unblocked, err := open.CalcPSF(context.Background(), optics.Monochromatic(2e-6), opts)
	require.NoError(t, err)

	blocked := newTestSystem(t, 6.5, 32, 4)
	blocked.AddElement(&optics.CircularOcculter{Radius: 2.5 * lamD})
	occ, err := blocked.CalcPSF(context.Background(), optics.Monochromatic(2e-6), opts)
	require.NoError(t, err)

	assert.Less(t, sumGrid(occ.Oversampled), 0.5*sumGrid(unblocked.Oversampled))
}

func TestCoronagraphPrescription(t *testing.T) {
	// The classic chain: entrance pupil, occulter in the image plane, an
	// undersized Lyot stop back in the pupil plane, then the detector.
	// Each mask only removes light.
	lamD, err := optics.LamDArcsec(2e-6, 6.5)
	require.NoError(t, err)
	opts := optics.Options{
		Detector:  optics.DetectorSpec{Pixels: 10, PixelScale: lamD},
		Normalize: optics.NormalizeFirst,
	}

	occOnly := newTestSystem(t, 6.5, 32, 4)
	occOnly.AddElement(&optics.CircularOcculter{Radius: 2.5 * lamD})
	occ, err := occOnly.CalcPSF(context.Background(), optics.Monochromatic(2e-6), opts)
	require.NoError(t, err)

	full := newTestSystem(t, 6.5, 32, 4)
	full.AddElement(&optics.CircularOcculter{Radius: 2.5 * lamD})
	full.AddElement(&optics.CircularAperture{ElementName: "Lyot stop", Radius: 0.8 * 6.5 / 2})
	lyot, err := full.CalcPSF(context.Background(), optics.Monochromatic(2e-6), opts)
	require.NoError(t, err)

	occFlux := sumGrid(occ.Oversampled)
	lyotFlux := sumGrid(lyot.Oversampled)
	assert.Less(t, lyotFlux, occFlux)
	assert.Greater(t, lyotFlux, 0.0)
}

func TestOutputModes(t *testing.T) {
	lamD, err := optics.LamDArcsec(2e-6, 6.5)
	require.NoError(t, err)
	det := optics.DetectorSpec{Pixels: 6, PixelScale: lamD}
	sys := newTestSystem(t, 6.5, 16, 2)
	src := optics.Monochromatic(2e-6)

	both, err := sys.CalcPSF(context.Background(), src, optics.Options{Detector: det, Mode: optics.OutputBoth})
	require.NoError(t, err)
	assert.Len(t, both.Oversampled, 12)
	assert.Len(t, both.Detector, 6)

	ov, err := sys.CalcPSF(context.Background(), src, optics.Options{Detector: det, Mode: optics.OutputOversampled})
	require.NoError(t, err)
	assert.NotNil(t, ov.Oversampled)
	assert.Nil(t, ov.Detector)

	d, err := sys.CalcPSF(context.Background(), src, optics.Options{Detector: det, Mode: optics.OutputDetector})
	require.NoError(t, err)
	assert.Nil(t, d.Oversampled)
	assert.NotNil(t, d.Detector)

	assert.InDelta(t, lamD/2, both.OversampledPixelScale, 1e-14)
	assert.InDelta(t, lamD, both.DetectorPixelScale, 1e-14)
}

func TestNormalizeLastSumsToUnity(t *testing.T) {
	lamD, err := optics.LamDArcsec(2e-6, 6.5)
	require.NoError(t, err)
	sys := newTestSystem(t, 6.5, 16, 2)

	res, err := sys.CalcPSF(context.Background(), optics.Monochromatic(2e-6), optics.Options{
		Detector:  optics.DetectorSpec{Pixels: 8, PixelScale: lamD},
		Normalize: optics.NormalizeLast,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sumGrid(res.Oversampled), 1e-12)
}

func TestSaveIntermediates(t *testing.T) {
	lamD, err := optics.LamDArcsec(2e-6, 6.5)
	require.NoError(t, err)
	sys := newTestSystem(t, 6.5, 16, 2)
	sys.AddElement(&optics.FieldStop{Size: 8 * lamD})

	res, err := sys.CalcPSF(context.Background(), optics.Monochromatic(2e-6), optics.Options{
		Detector:          optics.DetectorSpec{Pixels: 6, PixelScale: lamD},
		SaveIntermediates: true,
	})
	require.NoError(t, err)

	// Entrance pupil, one snapshot per element, detector.
	require.Len(t, res.Snapshots, 4)
	assert.Equal(t, "entrance pupil", res.Snapshots[0].Name)
	assert.Equal(t, optics.PlanePupil, res.Snapshots[0].Plane)
	assert.Equal(t, optics.PlaneImage, res.Snapshots[2].Plane)
	assert.Equal(t, "detector", res.Snapshots[3].Name)
	assert.Equal(t, optics.PlaneImage, res.Snapshots[3].Plane)
	assert.Equal(t, 2e-6, res.Snapshots[0].Wavelength)
}

func TestIntermediateImagePlaneIsCornerCentered(t *testing.T) {
	// Inside the prescription the corner tilt keeps the PSF centered on
	// (n-1)/2 of the oversampled FFT grid, so image-plane masks evaluated
	// around the geometric center act on a centered PSF.
	lamD, err := optics.LamDArcsec(2e-6, 6.5)
	require.NoError(t, err)
	sys := newTestSystem(t, 6.5, 16, 2)
	sys.AddElement(&optics.ScalarTransmission{PlaneKind: optics.PlaneImage, T: 1})

	res, err := sys.CalcPSF(context.Background(), optics.Monochromatic(2e-6), optics.Options{
		Detector:          optics.DetectorSpec{Pixels: 6, PixelScale: lamD},
		SaveIntermediates: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Snapshots, 4)

	snap := res.Snapshots[2]
	require.Equal(t, optics.PlaneImage, snap.Plane)
	n, _ := snap.Amplitude.Dims()
	in := make([][]float64, n)
	for y := 0; y < n; y++ {
		in[y] = make([]float64, n)
		for x := 0; x < n; x++ {
			v := snap.Amplitude.At(y, x)
			in[y][x] = real(v)*real(v) + imag(v)*imag(v)
		}
	}
	cx, cy, err := profile.Centroid(in)
	require.NoError(t, err)
	assert.InDelta(t, float64(n-1)/2, cx, 0.05)
	assert.InDelta(t, float64(n-1)/2, cy, 0.05)
}

func TestSourceOffsetMovesPSF(t *testing.T) {
	lamD, err := optics.LamDArcsec(2e-6, 6.5)
	require.NoError(t, err)
	sys := newTestSystem(t, 6.5, 32, 1)

	// An offset of two resolution elements due +y, on a detector sampled
	// at one lambda/D per pixel with an odd pixel count, lands the peak
	// exactly two pixels above the central sample.
	res, err := sys.CalcPSF(context.Background(), optics.Monochromatic(2e-6), optics.Options{
		Detector:  optics.DetectorSpec{Pixels: 25, PixelScale: lamD},
		OffsetR:   2 * lamD,
		OffsetPA:  0,
		Normalize: optics.NormalizeFirst,
	})
	require.NoError(t, err)

	px, py := peakPixel(res.Oversampled)
	assert.Equal(t, 12, px)
	assert.Equal(t, 14, py)
}
