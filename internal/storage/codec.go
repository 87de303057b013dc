package storage

import (
	"encoding/json"
	"errors"

	"harmonia/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Stamp returns the version pair written into newly created records.
func Stamp() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

func EncodeCandidate(c model.CandidateRecord) ([]byte, error) {
	return json.Marshal(c)
}

func DecodeCandidate(data []byte) (model.CandidateRecord, error) {
	var candidate model.CandidateRecord
	if err := json.Unmarshal(data, &candidate); err != nil {
		return model.CandidateRecord{}, err
	}
	if err := checkVersion(candidate.VersionedRecord); err != nil {
		return model.CandidateRecord{}, err
	}
	return candidate, nil
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
