package optics

import (
	"fmt"
	"math"
)

// Corner-centering and source-offset tilts.
//
// A tilt is always stored in lambda/D, because a fixed lambda/D tilt has the
// same effect, in image pixels, at every wavelength of a calculation: one
// resolution element spans the same number of computational pixels
// regardless of wavelength. The arcsecond equivalent of such a tilt scales
// with wavelength. A source offset requested in arcseconds is therefore
// converted to a different lambda/D magnitude at each wavelength, while the
// corner-centering tilt is a single wavelength-independent lambda/D value.

// CornerTilt returns the per-axis tilt, in lambda/D, that centers the
// transformed PSF on the corner shared by the four central pixels of an
// even-sized output grid. Parity is judged on the oversampled output grid
// (outputPixels*oversample); an odd grid needs no correction and yields a
// zero tilt.
//
// The magnitude is half a computational image pixel. An image pixel on the
// oversampled FFT grid spans 1/oversample lambda/D, and the sign convention
// moves the untilted FFT peak from index n/2 back to (n-1)/2.
func CornerTilt(outputPixels, oversample int) (tx, ty float64) {
	if oversample < 1 || (outputPixels*oversample)%2 != 0 {
		return 0, 0
	}
	t := -0.5 / float64(oversample)
	return t, t
}

// OffsetTilt converts a source offset of r arcseconds at position angle
// paDeg degrees (counterclockwise from +y) into a lambda/D tilt for one
// specific wavelength.
func OffsetTilt(r, paDeg, wavelength, diam float64) (tx, ty float64, err error) {
	lamD, err := LamDArcsec(wavelength, diam)
	if err != nil {
		return 0, 0, err
	}
	if r == 0 {
		return 0, 0, nil
	}
	pa := paDeg * math.Pi / 180
	return -r * math.Sin(pa) / lamD, r * math.Cos(pa) / lamD, nil
}

// applyInitialTilt applies the combined corner-centering and source-offset
// tilt to a freshly created pupil wavefront and records the corner share so
// removeCornerTilt can subtract it alone later.
func (w *Wavefront) applyInitialTilt(cornerX, cornerY, offsetX, offsetY float64) error {
	if err := w.ApplyTilt(cornerX+offsetX, cornerY+offsetY); err != nil {
		return err
	}
	w.cornerX += cornerX
	w.cornerY += cornerY
	return nil
}

// removeCornerTilt subtracts only the corner-centering component of the
// accumulated tilt, leaving any source offset in place. It must be called at
// a pupil plane, after the last pupil or intermediate optic and before the
// final detector resampling, so that all wavelengths re-align on a common
// output grid.
func (w *Wavefront) removeCornerTilt() error {
	if w.cornerX == 0 && w.cornerY == 0 {
		return nil
	}
	if err := w.ApplyTilt(-w.cornerX, -w.cornerY); err != nil {
		return fmt.Errorf("removing corner tilt: %w", err)
	}
	w.cornerX = 0
	w.cornerY = 0
	return nil
}
