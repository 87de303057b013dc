package render

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"harmonia/internal/dynamics"
)

func sineTrajectory(n int) *dynamics.Trajectory {
	times := make([]float64, n)
	states := make([][]float64, n)
	for k := 0; k < n; k++ {
		t := float64(k) * 0.1
		times[k] = t
		states[k] = []float64{math.Sin(t), math.Cos(t)}
	}
	return &dynamics.Trajectory{Times: times, States: states}
}

func assertPNG(t *testing.T, path string) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read plot: %v", err)
	}
	if len(data) < 8 {
		t.Fatalf("plot too short: %d bytes", len(data))
	}
	if string(data[:8]) != "\x89PNG\r\n\x1a\n" {
		t.Fatalf("expected png signature, got % x", data[:8])
	}
}

func TestTrajectoryPlotWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trajectory.png")

	if err := TrajectoryPlot(sineTrajectory(100), "candidate", nil, path); err != nil {
		t.Fatalf("trajectory plot: %v", err)
	}
	assertPNG(t, path)
}

func TestTrajectoryPlotWithTargetOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trajectory.png")
	overlay := &TargetOverlay{Amplitude: 1, Frequency: 1}

	if err := TrajectoryPlot(sineTrajectory(100), "candidate", overlay, path); err != nil {
		t.Fatalf("trajectory plot with overlay: %v", err)
	}
	assertPNG(t, path)
}

func TestTrajectoryPlotSkipsNonFiniteSamples(t *testing.T) {
	traj := sineTrajectory(50)
	traj.States[10][0] = math.NaN()
	traj.States[20][1] = math.Inf(1)

	path := filepath.Join(t.TempDir(), "trajectory.png")
	if err := TrajectoryPlot(traj, "candidate", nil, path); err != nil {
		t.Fatalf("trajectory plot: %v", err)
	}
	assertPNG(t, path)
}

func TestTrajectoryPlotPoisonedTrajectory(t *testing.T) {
	traj := dynamics.Poisoned([]float64{0, 0.1, 0.2}, 2)

	path := filepath.Join(t.TempDir(), "trajectory.png")
	if err := TrajectoryPlot(traj, "candidate", nil, path); err == nil {
		t.Fatal("expected error for all-NaN trajectory")
	}
}

func TestTrajectoryPlotEmptyTrajectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trajectory.png")

	if err := TrajectoryPlot(nil, "candidate", nil, path); err == nil {
		t.Fatal("expected error for nil trajectory")
	}
	if err := TrajectoryPlot(&dynamics.Trajectory{}, "candidate", nil, path); err == nil {
		t.Fatal("expected error for empty trajectory")
	}
}

func TestPhasePortraitWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phase.png")

	if err := PhasePortrait(sineTrajectory(100), "candidate", path); err != nil {
		t.Fatalf("phase portrait: %v", err)
	}
	assertPNG(t, path)
}

func TestPhasePortraitNeedsTwoComponents(t *testing.T) {
	traj := &dynamics.Trajectory{
		Times:  []float64{0, 0.1},
		States: [][]float64{{1}, {2}},
	}

	path := filepath.Join(t.TempDir(), "phase.png")
	if err := PhasePortrait(traj, "candidate", path); err == nil {
		t.Fatal("expected error for one-dimensional trajectory")
	}
}
