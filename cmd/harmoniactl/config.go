package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"harmonia/internal/map2rec"
	"harmonia/pkg/harmonia"
)

// runtimeSettings collects everything a subcommand needs to construct a
// client: the experiment parameters plus the store and output knobs.
type runtimeSettings struct {
	experiment harmonia.ExperimentConfig
	storeKind  string
	dbPath     string
	plotsDir   string
	workers    int
}

// loadSettings returns the built-in defaults, optionally overlaid with an
// experiment config file. The file is a flat JSON object; unknown keys are
// ignored and malformed values fall back to the defaults.
func loadSettings(configPath string) (runtimeSettings, error) {
	settings := runtimeSettings{experiment: harmonia.DefaultExperiment()}
	if configPath == "" {
		return settings, nil
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		return runtimeSettings{}, fmt.Errorf("read config %s: %w", configPath, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return runtimeSettings{}, fmt.Errorf("parse config %s: %w", configPath, err)
	}

	rec := map2rec.ConvertExperiment(fields)
	settings.experiment = experimentFromRecord(rec)
	settings.storeKind = rec.Store
	settings.dbPath = rec.DBPath
	settings.plotsDir = rec.PlotsDir
	settings.workers = rec.Workers
	return settings, nil
}

// override applies flag values on top of whatever the config file set.
// Empty strings leave the loaded value in place.
func (s *runtimeSettings) override(storeKind, dbPath, plotsDir string) {
	if storeKind != "" {
		s.storeKind = storeKind
	}
	if dbPath != "" {
		s.dbPath = dbPath
	}
	if plotsDir != "" {
		s.plotsDir = plotsDir
	}
}

func experimentFromRecord(rec map2rec.ExperimentRecord) harmonia.ExperimentConfig {
	return harmonia.ExperimentConfig{
		Omega:           rec.Omega,
		Damping:         rec.Damping,
		Coupling:        rec.Coupling,
		Initial:         rec.Initial,
		GridStart:       rec.GridStart,
		GridStop:        rec.GridStop,
		GridPoints:      rec.GridPoints,
		TargetAmplitude: rec.TargetAmplitude,
		TargetFrequency: rec.TargetFrequency,
		NaNSentinel:     rec.NaNSentinel,
	}
}

// splitList splits a comma-separated flag value, trimming whitespace and
// dropping empty entries. An empty input yields nil so callers can fall
// back to their defaults.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func splitFloats(raw string) ([]float64, error) {
	parts := splitList(raw)
	if parts == nil {
		return nil, nil
	}
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("parse constant %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// readExpressionsFile loads one expression per line, skipping blank lines
// and lines starting with #.
func readExpressionsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read expressions %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan expressions %s: %w", path, err)
	}
	return out, nil
}
