// Package render draws evaluated trajectories as PNG plots and exports
// them as CSV for offline analysis.
package render

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"harmonia/internal/dynamics"
)

// TargetOverlay adds the reference waveform amplitude*sin(frequency*t) to a
// trajectory plot as a dashed line.
type TargetOverlay struct {
	Amplitude float64
	Frequency float64
}

var (
	seriesColors = []color.RGBA{
		{R: 40, G: 140, B: 255, A: 255},
		{R: 240, G: 70, B: 70, A: 255},
		{R: 60, G: 180, B: 90, A: 255},
	}
	targetColor = color.RGBA{R: 120, G: 120, B: 120, A: 255}
)

// TrajectoryPlot draws every state component against time. Samples with a
// non-finite time or value are skipped; a trajectory without a single finite
// sample is an error.
func TrajectoryPlot(traj *dynamics.Trajectory, title string, overlay *TargetOverlay, path string) error {
	if traj == nil || traj.Len() == 0 {
		return errors.New("empty trajectory")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "t"
	p.Y.Label.Text = "state"

	drawn := 0
	for i := 0; i < traj.Dim(); i++ {
		pts := finiteSeries(traj.Times, traj.Component(i))
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = seriesColors[i%len(seriesColors)]
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("y_%d", i), line)
		drawn++
	}
	if drawn == 0 {
		return errors.New("trajectory has no finite samples")
	}

	if overlay != nil {
		pts := make(plotter.XYs, 0, traj.Len())
		for _, t := range traj.Times {
			if !isFinite(t) {
				continue
			}
			pts = append(pts, plotter.XY{X: t, Y: overlay.Amplitude * math.Sin(overlay.Frequency*t)})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.LineStyle.Width = vg.Points(1)
		line.LineStyle.Color = targetColor
		line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(line)
		p.Legend.Add("target", line)
	}

	p.Legend.Top = true
	p.Legend.Left = true

	return savePNG(p, path)
}

// PhasePortrait draws y_1 against y_0.
func PhasePortrait(traj *dynamics.Trajectory, title string, path string) error {
	if traj == nil || traj.Len() == 0 {
		return errors.New("empty trajectory")
	}
	if traj.Dim() < 2 {
		return errors.New("phase portrait needs two state components")
	}

	y0 := traj.Component(0)
	y1 := traj.Component(1)
	pts := make(plotter.XYs, 0, traj.Len())
	for k := range y0 {
		if !isFinite(y0[k]) || !isFinite(y1[k]) {
			continue
		}
		pts = append(pts, plotter.XY{X: y0[k], Y: y1[k]})
	}
	if len(pts) == 0 {
		return errors.New("trajectory has no finite samples")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "y_0"
	p.Y.Label.Text = "y_1"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = seriesColors[0]
	p.Add(line)

	return savePNG(p, path)
}

func savePNG(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create plot directory: %w", err)
	}

	canvas := vgimg.NewWith(
		vgimg.UseWH(8*vg.Inch, 6*vg.Inch),
		vgimg.UseDPI(300),
	)
	p.Draw(draw.New(canvas))

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}
	defer file.Close()

	buffered := bufio.NewWriter(file)
	defer buffered.Flush()

	png := vgimg.PngCanvas{Canvas: canvas}
	if _, err := png.WriteTo(buffered); err != nil {
		return fmt.Errorf("write plot png: %w", err)
	}
	return nil
}

func finiteSeries(ts, ys []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(ts))
	for i := range ts {
		if !isFinite(ts[i]) || !isFinite(ys[i]) {
			continue
		}
		pts = append(pts, plotter.XY{X: ts[i], Y: ys[i]})
	}
	return pts
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
