package map2rec

import "math"

// ExperimentRecord mirrors the oscillator experiment configuration as loaded
// from loosely typed config data, plus the runtime knobs the CLI accepts
// alongside it.
type ExperimentRecord struct {
	Omega           float64
	Damping         float64
	Coupling        float64
	Initial         []float64
	GridStart       float64
	GridStop        float64
	GridPoints      int
	TargetAmplitude float64
	TargetFrequency float64
	NaNSentinel     float64

	Workers  int
	Store    string
	DBPath   string
	PlotsDir string
}

func defaultExperimentRecord() ExperimentRecord {
	return ExperimentRecord{
		Omega:           1,
		Damping:         3.0 / 8.0,
		Coupling:        1,
		Initial:         []float64{0, 1},
		GridStart:       0,
		GridStop:        50 * 2 * math.Pi,
		GridPoints:      2000,
		TargetAmplitude: 1,
		TargetFrequency: 1,
		NaNSentinel:     1e9,
		Workers:         4,
	}
}
