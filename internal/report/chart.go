package report

import (
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ayusman/lizard/internal/session"
)

// Chart labels.
const (
	ChartTitle  = "Focus Over Time"
	ChartXLabel = "Time (s)"
	ChartYLabel = "Focus (1 = focused, 0 = not)"
)

// PNG dimensions.
var (
	PNGWidth  = 10 * vg.Inch
	PNGHeight = 4 * vg.Inch
)

// Plot builds the focus-over-time plot for r.
func Plot(r session.Report) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%.1f%% focused)", ChartTitle, r.FocusPercent)
	p.X.Label.Text = ChartXLabel
	p.Y.Label.Text = ChartYLabel

	timestamps, scores := r.Series()
	if len(timestamps) > 0 {
		pts := make(plotter.XYs, len(timestamps))
		for i := range timestamps {
			pts[i] = plotter.XY{X: timestamps[i], Y: scores[i]}
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("focus line: %w", err)
		}
		line.StepStyle = plotter.PostStep
		line.Width = vg.Points(1.5)
		line.Color = color.RGBA{R: 46, G: 139, B: 87, A: 255}
		p.Add(line, plotter.NewGrid())
	}

	// Fixed axes keep empty and single-point sessions drawable.
	p.X.Min = 0
	p.X.Max = r.TotalElapsed.Seconds()
	if n := len(timestamps); n > 0 && timestamps[n-1] > p.X.Max {
		p.X.Max = timestamps[n-1]
	}
	if p.X.Max <= 0 {
		p.X.Max = 1
	}
	p.Y.Min = -0.1
	p.Y.Max = 1.1

	return p, nil
}

// WritePNG renders the plot for r as PNG to w.
func WritePNG(w io.Writer, r session.Report) error {
	p, err := Plot(r)
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(PNGWidth, PNGHeight, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG renders the plot for r to a PNG file.
func SavePNG(path string, r session.Report) error {
	p, err := Plot(r)
	if err != nil {
		return err
	}
	return p.Save(PNGWidth, PNGHeight, path)
}

// RenderHTML writes an interactive chart page for r to w.
func RenderHTML(w io.Writer, r session.Report) error {
	timestamps, scores := r.Series()
	ratios := r.Ratios()

	x := make([]string, len(timestamps))
	focusData := make([]opts.LineData, len(scores))
	ratioData := make([]opts.LineData, len(ratios))
	for i := range timestamps {
		x[i] = strconv.FormatFloat(timestamps[i], 'f', 1, 64)
		focusData[i] = opts.LineData{Value: scores[i]}
		ratioData[i] = opts.LineData{Value: ratios[i]}
	}

	band := r.Band()
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Lizard Focus Report", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    ChartTitle,
			Subtitle: fmt.Sprintf("%.1f%% focused (%s): %s", r.FocusPercent, band, band.Message()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: ChartXLabel, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Focus / eye ratio", Min: 0}),
	)
	line.SetXAxis(x).
		AddSeries("focused", focusData).
		AddSeries("eye ratio", ratioData)

	page := components.NewPage()
	page.AddCharts(line)

	return page.Render(w)
}
