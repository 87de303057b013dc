package render

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"harmonia/internal/dynamics"
)

// WriteTrajectoryCSV writes one row per grid sample with columns
// t, y_0, ..., y_{n-1}. Rows holding a non-finite value are skipped.
func WriteTrajectoryCSV(traj *dynamics.Trajectory, path string) error {
	if traj == nil || traj.Len() == 0 {
		return errors.New("empty trajectory")
	}

	finite := 0
	for k := 0; k < traj.Len(); k++ {
		if isFinite(traj.Times[k]) && allFinite(traj.At(k)) {
			finite++
		}
	}
	if finite == 0 {
		return errors.New("trajectory has no finite samples")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create csv directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := make([]string, 0, traj.Dim()+1)
	header = append(header, "t")
	for i := 0; i < traj.Dim(); i++ {
		header = append(header, fmt.Sprintf("y_%d", i))
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for k := 0; k < traj.Len(); k++ {
		state := traj.At(k)
		if !isFinite(traj.Times[k]) || !allFinite(state) {
			continue
		}
		row := make([]string, 0, len(state)+1)
		row = append(row, strconv.FormatFloat(traj.Times[k], 'f', -1, 64))
		for _, v := range state {
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if !isFinite(v) {
			return false
		}
	}
	return true
}
