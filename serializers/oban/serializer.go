// Package oban encodes generated jobs as Oban rows. Only the args column is
// JSON; the rest of the job maps onto plain columns.
package oban

import (
	"github.com/BranchIntl/jobforge/errors"
	"github.com/BranchIntl/jobforge/job"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ObanSerializer implements the Serializer interface for the args column
type ObanSerializer struct{}

// NewSerializer creates a new Oban serializer
func NewSerializer() *ObanSerializer {
	return &ObanSerializer{}
}

// Serialize encodes the job's args object
func (s *ObanSerializer) Serialize(j *job.Job) ([]byte, error) {
	args := j.Args
	if args == nil {
		args = map[string]interface{}{}
	}

	data, err := json.Marshal(args)
	if err != nil {
		return nil, errors.NewSerializationError(s.GetFormat(), err)
	}
	return data, nil
}

// Deserialize decodes an args column. Only Args is populated.
func (s *ObanSerializer) Deserialize(data []byte) (*job.Job, error) {
	var args map[string]interface{}
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, errors.NewSerializationError(s.GetFormat(), err)
	}
	return &job.Job{Args: args}, nil
}

// GetFormat returns the serialization format name
func (s *ObanSerializer) GetFormat() string {
	return "oban"
}

// Row serializes the args and builds the full row
func (s *ObanSerializer) Row(j *job.Job) (Row, error) {
	args, err := s.Serialize(j)
	if err != nil {
		return Row{}, err
	}
	return ConstructRow(j, args), nil
}
