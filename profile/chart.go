package profile

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	log "github.com/sirupsen/logrus"
)

// Chart builds an interactive line chart from one or more radial curves.
// Each curve shares the radius axis of the first one.
func Chart(title, xLabel, yLabel string, curves map[string][]Point) (*charts.Line, error) {
	if len(curves) == 0 {
		return nil, fmt.Errorf("profile: no curves to chart")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			BackgroundColor: "#ffffff",
			Width:           "100%",
			Height:          "600px",
			PageTitle:       title,
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "slider",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "inside",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
		charts.WithLegendOpts(opts.Legend{
			Orient:       "horizontal",
			Show:         opts.Bool(true),
			SelectedMode: "multiple",
			Type:         "scroll",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
			AxisPointer: &opts.AxisPointer{
				Type: "cross",
				Snap: opts.Bool(true),
			},
		}),
		charts.WithToolboxOpts(opts.Toolbox{
			Show: opts.Bool(true),
			Top:  "0%",
			Feature: &opts.ToolBoxFeature{
				SaveAsImage: &opts.ToolBoxFeatureSaveAsImage{
					Show:  opts.Bool(true),
					Type:  "png",
					Name:  "chart",
					Title: "Save as image",
				},
				DataZoom: &opts.ToolBoxFeatureDataZoom{
					Show:       opts.Bool(true),
					YAxisIndex: "default",
					Title: map[string]string{
						"zoom": "area zooming",
						"back": "restore area zooming",
					},
				},
				Restore: &opts.ToolBoxFeatureRestore{
					Show:  opts.Bool(true),
					Title: "refresh",
				},
			},
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: xLabel,
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:  yLabel,
			Type:  "value",
			Show:  opts.Bool(true),
			Scale: opts.Bool(true),
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}),
	)

	names := make([]string, 0, len(curves))
	for name := range curves {
		names = append(names, name)
	}
	sort.Strings(names)

	first := curves[names[0]]
	xs := make([]float64, len(first))
	for i, p := range first {
		xs[i] = p.Radius
	}
	line.SetXAxis(xs)

	for _, name := range names {
		pts := curves[name]
		series := make([]opts.LineData, len(pts))
		for i, p := range pts {
			series[i] = opts.LineData{Value: p.Value}
		}
		line.AddSeries(name, series)
	}
	return line, nil
}

// SaveChartHTML renders the curves to a standalone HTML file.
func SaveChartHTML(path, title, xLabel, yLabel string, curves map[string][]Point) error {
	line, err := Chart(title, xLabel, yLabel, curves)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("profile: create chart file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.Errorf("closing %s: %v", path, cerr)
		}
	}()
	if err := line.Render(f); err != nil {
		return fmt.Errorf("profile: render chart: %w", err)
	}
	return nil
}
