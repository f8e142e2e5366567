package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	json "github.com/KevinWang15/go-json5"
	log "github.com/sirupsen/logrus"

	"github.com/fourieroptics/psfsim/optics"
	"github.com/fourieroptics/psfsim/profile"
	"github.com/fourieroptics/psfsim/render"
)

const version = "1_2_0"

func main() {

	programStart := time.Now()

	// We supply an ID (hopefully unique) because we may need to use the preferences API
	myApp := app.NewWithID("com.github.fourieroptics.psfsim")
	w := myApp.NewWindow("psfsim - diffraction-limited PSF simulator")
	w.Resize(fyne.Size{Height: 800, Width: 800})

	args := os.Args

	if len(args) != 2 {
		fmt.Println("\n\tWrong number of arguments.\n\tUsage: psfsim <parameter-file>")
		os.Exit(1)
	}

	path := args[1]

	// Read the Json5 (or Json) parameter file
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tAttempt to read input file %q failed: %w\n", path, err))
		os.Exit(2)
	}

	// Parse json(5) data into a generic container
	var jsonTable map[string]interface{}
	err = json.Unmarshal(data, &jsonTable)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tFormat error in file %q: %w\n", path, err))
		os.Exit(3)
	}

	var run SimulationRun
	msg, ok := validateJsonFileAndFillRun(jsonTable, &run)
	if !ok {
		fmt.Println(msg)
		os.Exit(4)
	}

	if run.LogLevel != "" {
		level, err := log.ParseLevel(run.LogLevel)
		if err != nil {
			fmt.Println(fmt.Errorf("\n\tUnknown log_level %q: %w\n", run.LogLevel, err))
			os.Exit(5)
		}
		log.SetLevel(level)
	}

	// Check for user wanting printout of complete jsonTable
	if run.ShowInput {
		fmt.Printf("%s", "\nPrintout of complete jsonTable contents...\n")
		fmt.Println(string(data))
	}

	fmt.Printf("\nVersion %s\n\n", version)

	// If a path to a spectrum file was given, read it and normalize the
	// weights so that they sum to one.
	source := optics.Monochromatic(run.WavelengthUm * 1e-6)
	if run.PathToSpectrumTable != "" {
		data, err := os.ReadFile(run.PathToSpectrumTable)
		if err != nil {
			fmt.Println(fmt.Errorf("\n\tAttempt to read file %q failed: %w\n", run.PathToSpectrumTable, err))
			os.Exit(6)
		}
		spectrum, err := parseArrayFormat(data)
		if err != nil {
			fmt.Println(fmt.Errorf("\n\tError reading spectrum file %q: %w\n", run.PathToSpectrumTable, err))
			os.Exit(7)
		}
		if len(spectrum) < 1 {
			fmt.Println(fmt.Errorf("\n\tThe spectrum file %q is empty.", run.PathToSpectrumTable))
			os.Exit(8)
		}
		var cumWeights = 0.0
		for i := 0; i < len(spectrum); i++ {
			cumWeights += spectrum[i][1]
		}
		for i := 0; i < len(spectrum); i++ {
			spectrum[i][1] /= cumWeights
		}
		run.SpectrumTable = spectrum

		source = optics.Source{}
		for _, pair := range spectrum {
			source.Wavelengths = append(source.Wavelengths, pair[0]*1e-6)
			source.Weights = append(source.Weights, pair[1])
		}
		makeSpectrumPlot(spectrum, run.PathToSpectrumTable)
	}

	sys, err := optics.NewOpticalSystem(run.Title, run.PupilDiameterM, run.PupilGridPixels, run.Oversample)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tBad telescope geometry: %w", err))
		os.Exit(9)
	}
	sys.AddElement(&optics.CircularAperture{
		ElementName: "entrance aperture",
		Radius:      run.PupilDiameterM / 2,
		Obscuration: run.SecondaryDiameterM / 2,
	})
	if run.StrutWidthM > 0 {
		// Two crossed full-width spider vanes.
		sys.AddElement(&optics.EllipticalObscuration{
			ElementName: "spider vane ns",
			XDiam:       run.StrutWidthM,
			YDiam:       run.PupilDiameterM * 1.5,
		})
		sys.AddElement(&optics.EllipticalObscuration{
			ElementName: "spider vane ew",
			XDiam:       run.StrutWidthM,
			YDiam:       run.PupilDiameterM * 1.5,
			RotationDeg: 90,
		})
	}
	if run.OcculterRadiusAs > 0 {
		sys.AddElement(&optics.CircularOcculter{Radius: run.OcculterRadiusAs})
	}
	if run.FieldStopAs > 0 {
		sys.AddElement(&optics.FieldStop{Size: run.FieldStopAs})
	}

	// Report the sampling the run implies, using the longest requested
	// wavelength for the Nyquist check.
	maxWl := source.Wavelengths[0]
	for _, wl := range source.Wavelengths {
		if wl > maxWl {
			maxWl = wl
		}
	}
	lamD, err := optics.LamDArcsec(maxWl, run.PupilDiameterM)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tBad source wavelength: %w", err))
		os.Exit(10)
	}
	fmt.Printf("Resolution element at %0.3f um is %0.5f arcsec\n", maxWl*1e6, lamD)
	fmt.Printf("Oversampled grid is computed at %0.5f arcsec/pixel\n", run.DetectorPixelScaleAs/float64(run.Oversample))
	if run.DetectorPixelScaleAs > lamD/2 {
		fmt.Printf("Note: the detector undersamples the PSF (%0.5f arcsec/pixel against a Nyquist scale of %0.5f)\n",
			run.DetectorPixelScaleAs, lamD/2)
	}

	opts := optics.Options{
		Detector: optics.DetectorSpec{
			Pixels:     run.DetectorPixels,
			PixelScale: run.DetectorPixelScaleAs,
			FOVArcsec:  run.DetectorFOVAs,
		},
		OffsetR:           run.SourceOffsetAs,
		OffsetPA:          run.SourceOffsetPaDeg,
		JitterSigma:       run.JitterSigmaAs,
		SaveIntermediates: run.SaveIntermediates,
		MaxWorkers:        run.MaxWorkers,
	}
	switch run.Normalize {
	case "last":
		opts.Normalize = optics.NormalizeLast
	case "none":
		opts.Normalize = optics.NormalizeNone
	default:
		opts.Normalize = optics.NormalizeFirst
	}

	start := time.Now()
	res, err := sys.CalcPSF(context.Background(), source, opts)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tPSF calculation failed: %w", err))
		os.Exit(11)
	}
	fmt.Printf("Calculation of the PSF (%d wavelength(s)) took %s\n", len(source.Wavelengths), time.Since(start))

	if err = writeOutputs(&run, res); err != nil {
		fmt.Println(err)
		os.Exit(12)
	}

	fmt.Printf("\nTotal program run time is %s\n", time.Since(programStart))

	if run.WindowSizePixels > 0 { // We have displays to make!
		size := run.WindowSizePixels

		winTitle := run.Title
		if len(run.SpectrumTable) > 0 {
			winTitle += " (multi-wavelength composite using spectrum file)"
		}

		// w is our main window, created at the beginning of the program
		w.SetTitle(winTitle)
		w.SetPadded(false)
		w.CenterOnScreen()

		img := canvas.NewImageFromFile(run.OutputPrefix + "_view8bit.png")
		img.FillMode = canvas.ImageFillContain
		w.Resize(fyne.Size{Height: float32(size), Width: float32(size)})
		w.SetContent(container.NewStack(img))
		w.Show()

		profileImg := canvas.NewImageFromFile(run.OutputPrefix + "_profile.png")
		profileImg.FillMode = canvas.ImageFillContain
		profileImg.SetMinSize(fyne.NewSize(1200, 500))

		w2 := myApp.NewWindow("Radial intensity profile")
		w2.SetContent(container.NewCenter(profileImg))
		w2.Resize(fyne.NewSize(950, 550))
		w2.Show()

		if len(run.SpectrumTable) > 0 {
			spectrumImg := canvas.NewImageFromFile("spectrum_response.png")
			spectrumImg.FillMode = canvas.ImageFillContain
			spectrumImg.SetMinSize(fyne.NewSize(1200, 500))

			w3 := myApp.NewWindow("Source spectrum")
			w3.SetContent(container.NewCenter(spectrumImg))
			w3.Resize(fyne.NewSize(950, 550))
			w3.Show()
		}

		w.ShowAndRun()
	}
}

// writeOutputs saves the science and display products of a finished run.
func writeOutputs(run *SimulationRun, res *optics.Result) error {
	start := time.Now()

	// Scientific (well-defined scaling) 16-bit image of the detector grid
	peak := 0.0
	for _, row := range res.Detector {
		for _, v := range row {
			if v > peak {
				peak = v
			}
		}
	}
	if peak <= 0 {
		return fmt.Errorf("detector grid has no positive intensity")
	}
	scale := 60000.0 / peak
	fmt.Printf("16-bit output scaling is %0.1f counts per unit intensity\n", scale)

	detImage, err := render.Gray16Data(res.Detector, scale)
	if err != nil {
		return fmt.Errorf("creation of the detector image failed: %w", err)
	}
	name := run.OutputPrefix + "_detector16bit.png"
	if err = render.SaveGray16PNG(name, detImage); err != nil {
		return fmt.Errorf("writing of %q failed: %w", name, err)
	}

	// User-friendly log-stretched 8-bit view of the oversampled grid
	stretched, err := render.LogStretch(res.Oversampled, 5)
	if err != nil {
		return fmt.Errorf("log stretch of the oversampled grid failed: %w", err)
	}
	viewImage, err := render.GrayPercentile(stretched, 0.0, 100)
	if err != nil {
		return fmt.Errorf("creation of the display image failed: %w", err)
	}
	name = run.OutputPrefix + "_view8bit.png"
	if err = render.SaveGrayPNG(name, viewImage); err != nil {
		return fmt.Errorf("writing of %q failed: %w", name, err)
	}

	// Radial profile and encircled energy, as a PNG plot and an
	// interactive HTML chart
	radial, err := profile.Radial(res.Oversampled, res.OversampledPixelScale)
	if err != nil {
		return fmt.Errorf("radial profile failed: %w", err)
	}
	ee, err := profile.EncircledEnergy(res.Oversampled, res.OversampledPixelScale)
	if err != nil {
		return fmt.Errorf("encircled energy failed: %w", err)
	}

	plotImg, err := profile.MakePlot(radial, run.Title+" radial profile",
		"Radius (arcsec)", "Mean intensity", 1200, 500, true)
	if err != nil {
		return fmt.Errorf("creation of the profile plot failed: %w", err)
	}
	name = run.OutputPrefix + "_profile.png"
	if err = profile.SavePlotPNG(name, plotImg); err != nil {
		return fmt.Errorf("writing of %q failed: %w", name, err)
	}

	name = run.OutputPrefix + "_profile.html"
	err = profile.SaveChartHTML(name, run.Title+" PSF profiles", "Radius (arcsec)", "Value",
		map[string][]profile.Point{
			"radial profile":    radial,
			"encircled energy":  ee,
		})
	if err != nil {
		return fmt.Errorf("writing of %q failed: %w", name, err)
	}

	fmt.Printf("Writing of output files took %s\n", time.Since(start))
	return nil
}

// makeSpectrumPlot records the normalized source spectrum alongside the
// other outputs.
func makeSpectrumPlot(spectrum [][2]float64, sourceName string) {
	pts := make([]profile.Point, len(spectrum))
	for i, pair := range spectrum {
		pts[i] = profile.Point{Radius: pair[0], Value: pair[1]}
	}
	img, err := profile.MakePlot(pts, "Source spectrum from "+sourceName,
		"Wavelength (um)", "Normalized weight", 1200, 500, false)
	if err != nil {
		fmt.Println(fmt.Errorf("creation of the spectrum plot failed: %w", err))
		return
	}
	if err = profile.SavePlotPNG("spectrum_response.png", img); err != nil {
		fmt.Println(fmt.Errorf("writing of %q failed: %w", "spectrum_response.png", err))
	}
}
