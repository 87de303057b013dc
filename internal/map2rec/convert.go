// Package map2rec converts loosely typed map data, usually the result of
// decoding a JSON config file, into typed experiment records. Unknown keys
// are ignored and malformed values keep their defaults, so older or partial
// config files stay loadable.
package map2rec

func Convert(kind string, in map[string]any) (any, error) {
	switch kind {
	case "experiment":
		return ConvertExperiment(in), nil
	default:
		return nil, ErrUnsupportedKind
	}
}

func ConvertExperiment(in map[string]any) ExperimentRecord {
	out := defaultExperimentRecord()
	for key, val := range in {
		switch key {
		case "omega":
			if f, ok := asFloat64(val); ok {
				out.Omega = f
			}
		case "damping":
			if f, ok := asFloat64(val); ok {
				out.Damping = f
			}
		case "coupling":
			if f, ok := asFloat64(val); ok {
				out.Coupling = f
			}
		case "initial":
			if xs, ok := asFloat64s(val); ok {
				out.Initial = xs
			}
		case "grid_start":
			if f, ok := asFloat64(val); ok {
				out.GridStart = f
			}
		case "grid_stop":
			if f, ok := asFloat64(val); ok {
				out.GridStop = f
			}
		case "grid_points":
			if n, ok := asInt(val); ok {
				out.GridPoints = n
			}
		case "target_amplitude":
			if f, ok := asFloat64(val); ok {
				out.TargetAmplitude = f
			}
		case "target_frequency":
			if f, ok := asFloat64(val); ok {
				out.TargetFrequency = f
			}
		case "nan_sentinel":
			if f, ok := asFloat64(val); ok {
				out.NaNSentinel = f
			}
		case "workers":
			if n, ok := asInt(val); ok {
				out.Workers = n
			}
		case "store":
			if s, ok := asString(val); ok {
				out.Store = s
			}
		case "db_path":
			if s, ok := asString(val); ok {
				out.DBPath = s
			}
		case "plots_dir":
			if s, ok := asString(val); ok {
				out.PlotsDir = s
			}
		}
	}
	return out
}
