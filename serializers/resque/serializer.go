package resque

import (
	"github.com/BranchIntl/jobforge/errors"
	"github.com/BranchIntl/jobforge/job"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ResqueSerializer implements the Serializer interface for Resque format
type ResqueSerializer struct {
	useNumber bool
}

// NewSerializer creates a new Resque serializer
func NewSerializer() *ResqueSerializer {
	return &ResqueSerializer{
		useNumber: false,
	}
}

// Serialize converts a job to JSON bytes
func (s *ResqueSerializer) Serialize(j *job.Job) ([]byte, error) {
	data, err := json.Marshal(ConstructPayload(j))
	if err != nil {
		return nil, errors.NewSerializationError(s.GetFormat(), err)
	}

	return data, nil
}

// Deserialize converts JSON bytes to a job
func (s *ResqueSerializer) Deserialize(data []byte) (*job.Job, error) {
	var payload Payload

	api := json
	if s.useNumber {
		api = jsoniter.Config{UseNumber: true, EscapeHTML: true, SortMapKeys: true, ValidateJsonRawMessage: true}.Froze()
	}

	if err := api.Unmarshal(data, &payload); err != nil {
		return nil, errors.NewSerializationError(s.GetFormat(), err)
	}

	return ConstructJob(payload), nil
}

// GetFormat returns the serialization format name
func (s *ResqueSerializer) GetFormat() string {
	return "resque"
}

// UseNumber returns whether to use json.Number
func (s *ResqueSerializer) UseNumber() bool {
	return s.useNumber
}

// SetUseNumber sets whether to use json.Number
func (s *ResqueSerializer) SetUseNumber(useNumber bool) {
	s.useNumber = useNumber
}
