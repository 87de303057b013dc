package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeExperimentConfig writes a config file with a short grid so the
// optimizer-heavy commands stay fast.
func writeExperimentConfig(t *testing.T, extra map[string]any) string {
	t.Helper()
	payload := map[string]any{
		"grid_stop":   20 * math.Pi,
		"grid_points": 400,
	}
	for key, value := range extra {
		payload[key] = value
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "experiment.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func captureStdout(fn func() error) (string, error) {
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}

	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		_ = r.Close()
		return "", err
	}
	_ = r.Close()
	return buf.String(), runErr
}

func TestRunRequiresCommand(t *testing.T) {
	err := run(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "usage:") {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"frobnicate"})
	if err == nil || !strings.Contains(err.Error(), "unknown command: frobnicate") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestEvaluateCommandPrintsSummary(t *testing.T) {
	cfg := writeExperimentConfig(t, nil)
	output, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"evaluate",
			"-config", cfg,
			"-expr", "mul(c, y_1)",
		})
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !strings.Contains(output, "candidate_id=") {
		t.Fatalf("expected candidate id in output, got %q", output)
	}
	if !strings.Contains(output, `expression="mul(c, y_1)"`) {
		t.Fatalf("expected expression in output, got %q", output)
	}
	if !strings.Contains(output, "penalized=false") {
		t.Fatalf("expected unpenalized candidate, got %q", output)
	}
}

func TestEvaluateCommandJSON(t *testing.T) {
	cfg := writeExperimentConfig(t, nil)
	output, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"evaluate",
			"-config", cfg,
			"-expr", "mul(c, y_1)",
			"-json",
		})
	})
	if err != nil {
		t.Fatalf("evaluate -json: %v", err)
	}

	var decoded struct {
		CandidateID    string    `json:"candidate_id"`
		Expression     string    `json:"expression"`
		Constants      []float64 `json:"constants"`
		AmplitudeError float64   `json:"amplitude_error"`
		Size           int       `json:"size"`
		Penalized      bool      `json:"penalized"`
	}
	if err := json.Unmarshal([]byte(output), &decoded); err != nil {
		t.Fatalf("decode output: %v\n%s", err, output)
	}
	if decoded.CandidateID == "" || decoded.Expression != "mul(c, y_1)" {
		t.Fatalf("unexpected identity fields: %+v", decoded)
	}
	if decoded.Size != 3 || decoded.Penalized {
		t.Fatalf("unexpected fitness shape: %+v", decoded)
	}
	if len(decoded.Constants) != 1 || math.Abs(decoded.Constants[0]-0.375) > 0.05 {
		t.Fatalf("expected fitted damper near 0.375, got %v", decoded.Constants)
	}
	if decoded.AmplitudeError > 0.05 {
		t.Fatalf("expected small amplitude error, got %g", decoded.AmplitudeError)
	}
}

func TestEvaluateCommandRequiresExpr(t *testing.T) {
	err := run(context.Background(), []string{"evaluate"})
	if err == nil || !strings.Contains(err.Error(), "requires -expr") {
		t.Fatalf("expected missing -expr error, got %v", err)
	}
}

func TestEvaluateCommandRejectsUnknownOperator(t *testing.T) {
	cfg := writeExperimentConfig(t, nil)
	err := run(context.Background(), []string{
		"evaluate",
		"-config", cfg,
		"-expr", "frob(y_0)",
	})
	if err == nil {
		t.Fatal("expected parse error for unknown operator")
	}
}

func TestBatchCommandReportsBestCandidate(t *testing.T) {
	cfg := writeExperimentConfig(t, nil)
	output, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"batch",
			"-config", cfg,
			"-workers", "2",
			"mul(c, y_1)",
			"y_0",
		})
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if !strings.Contains(output, "candidates=2") {
		t.Fatalf("expected two candidates, got %q", output)
	}
	if !strings.Contains(output, `best_expression="mul(c, y_1)"`) {
		t.Fatalf("expected fitted damper to win, got %q", output)
	}
	if !strings.Contains(output, "run_id=") {
		t.Fatalf("expected run id in output, got %q", output)
	}
}

func TestBatchCommandReadsExpressionsFile(t *testing.T) {
	cfg := writeExperimentConfig(t, nil)
	exprsPath := filepath.Join(t.TempDir(), "exprs.txt")
	content := "# candidates under test\nmul(c, y_1)\n\ny_0\n"
	if err := os.WriteFile(exprsPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write expressions: %v", err)
	}

	output, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"batch",
			"-config", cfg,
			"-exprs-file", exprsPath,
		})
	})
	if err != nil {
		t.Fatalf("batch from file: %v", err)
	}
	if !strings.Contains(output, "candidates=2") {
		t.Fatalf("expected two candidates from file, got %q", output)
	}
}

func TestBatchCommandRequiresExpressions(t *testing.T) {
	err := run(context.Background(), []string{"batch"})
	if err == nil || !strings.Contains(err.Error(), "requires expressions") {
		t.Fatalf("expected missing expressions error, got %v", err)
	}
}

func TestSimulateCommandPrintsFinalState(t *testing.T) {
	cfg := writeExperimentConfig(t, nil)
	output, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"simulate",
			"-config", cfg,
			"-expr", "mul(c, y_1)",
			"-constants", "0.375",
		})
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !strings.Contains(output, "samples=400") {
		t.Fatalf("expected 400 samples, got %q", output)
	}
	if !strings.Contains(output, "poisoned=false") {
		t.Fatalf("expected healthy trajectory, got %q", output)
	}
}

func TestSimulateCommandJSONPoisoned(t *testing.T) {
	cfg := writeExperimentConfig(t, nil)
	output, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"simulate",
			"-config", cfg,
			"-expr", "mul(1000.0, y_0)",
			"-json",
		})
	})
	if err != nil {
		t.Fatalf("simulate -json: %v", err)
	}

	var decoded struct {
		Times    []float64 `json:"times"`
		Poisoned bool      `json:"poisoned"`
	}
	if err := json.Unmarshal([]byte(output), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if !decoded.Poisoned {
		t.Fatal("expected runaway feedback to poison the trajectory")
	}
	if len(decoded.Times) != 400 {
		t.Fatalf("expected full grid in output, got %d samples", len(decoded.Times))
	}
}

func TestSimulateCommandRejectsBadConstant(t *testing.T) {
	err := run(context.Background(), []string{
		"simulate",
		"-expr", "mul(c, y_1)",
		"-constants", "not-a-number",
	})
	if err == nil || !strings.Contains(err.Error(), "parse constant") {
		t.Fatalf("expected constant parse error, got %v", err)
	}
}

func TestRenderCommandWritesArtifacts(t *testing.T) {
	cfg := writeExperimentConfig(t, nil)
	outDir := filepath.Join(t.TempDir(), "plots")
	output, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"render",
			"-config", cfg,
			"-expr", "mul(c, y_1)",
			"-constants", "0.375",
			"-out", outDir,
			"-overlay",
		})
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(output, "trajectory_png=") {
		t.Fatalf("expected artifact paths in output, got %q", output)
	}
	for _, name := range []string{"trajectory.png", "phase.png", "trajectory.csv"} {
		info, err := os.Stat(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if info.Size() == 0 {
			t.Fatalf("artifact %s is empty", name)
		}
	}
}

func TestTopCommandRejectsRunIDWithLatest(t *testing.T) {
	err := run(context.Background(), []string{"top", "-run-id", "run-1", "-latest"})
	if err == nil || !strings.Contains(err.Error(), "use either -run-id or -latest") {
		t.Fatalf("expected mutual exclusion error, got %v", err)
	}
}

func TestTopCommandEmptyArchive(t *testing.T) {
	output, err := captureStdout(func() error {
		return run(context.Background(), []string{"top"})
	})
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if !strings.Contains(output, "no candidates found") {
		t.Fatalf("expected empty archive message, got %q", output)
	}
}

func TestRunsCommandEmptyArchive(t *testing.T) {
	output, err := captureStdout(func() error {
		return run(context.Background(), []string{"runs"})
	})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(output, "no runs found") {
		t.Fatalf("expected empty archive message, got %q", output)
	}
}

func TestRunsCommandRejectsNonPositiveLimit(t *testing.T) {
	err := run(context.Background(), []string{"runs", "-limit", "0"})
	if err == nil || !strings.Contains(err.Error(), "limit must be > 0") {
		t.Fatalf("expected limit validation error, got %v", err)
	}
}
