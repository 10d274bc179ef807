package sneakers

import (
	"github.com/BranchIntl/jobforge/errors"
	"github.com/BranchIntl/jobforge/job"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SneakersSerializer implements the Serializer interface for Sneakers format
type SneakersSerializer struct{}

// NewSerializer creates a new Sneakers serializer
func NewSerializer() *SneakersSerializer {
	return &SneakersSerializer{}
}

// Serialize converts a job to JSON bytes
func (s *SneakersSerializer) Serialize(j *job.Job) ([]byte, error) {
	data, err := json.Marshal(ConstructMessage(j))
	if err != nil {
		return nil, errors.NewSerializationError(s.GetFormat(), err)
	}

	return data, nil
}

// Deserialize converts JSON bytes to a job
func (s *SneakersSerializer) Deserialize(data []byte) (*job.Job, error) {
	var message Message

	if err := json.Unmarshal(data, &message); err != nil {
		return nil, errors.NewSerializationError(s.GetFormat(), err)
	}

	return ConstructJob(message), nil
}

// GetFormat returns the serialization format name
func (s *SneakersSerializer) GetFormat() string {
	return "activejob"
}
