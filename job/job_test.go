package job

import (
	"testing"
	"time"

	"github.com/BranchIntl/jobforge/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	args := map[string]interface{}{"quality": 80}
	j := New("transcoding", "ImageResizer", args, WithMaxAttempts(3))

	_, err := uuid.Parse(j.ID)
	require.NoError(t, err)
	assert.Equal(t, "transcoding", j.Queue)
	assert.Equal(t, "ImageResizer", j.Class)
	assert.Equal(t, args, j.Args)
	assert.Equal(t, 3, j.MaxAttempts)
	assert.False(t, j.Scheduled())
	assert.False(t, j.EnqueuedAt.IsZero())
}

func TestRunAt(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	j := New("etl", "DataTransformer", nil, WithEnqueuedAt(now), WithScheduledIn(90*time.Second))

	assert.True(t, j.Scheduled())
	assert.Equal(t, now.Add(90*time.Second), j.RunAt())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		job     *Job
		wantErr bool
	}{
		{"immediate", New("inference", "SentimentAnalyzer", nil), false},
		{"lower bound", New("inference", "SentimentAnalyzer", nil, WithScheduledIn(time.Second)), false},
		{"upper bound", New("inference", "SentimentAnalyzer", nil, WithScheduledIn(MaxSchedule)), false},
		{"over bound", New("inference", "SentimentAnalyzer", nil, WithScheduledIn(MaxSchedule+time.Second)), true},
		{"sub second", New("inference", "SentimentAnalyzer", nil, WithScheduledIn(500*time.Millisecond)), true},
		{"fractional", New("inference", "SentimentAnalyzer", nil, WithScheduledIn(1500*time.Millisecond)), true},
		{"empty queue", New("", "SentimentAnalyzer", nil), true},
		{"negative attempts", New("etl", "DataTransformer", nil, WithMaxAttempts(-1)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidJob)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBatch(t *testing.T) {
	assert.ErrorIs(t, ValidateBatch(nil), errors.ErrEmptyBatch)

	good := New("webhooks", "WebhookDelivery", nil)
	bad := New("", "WebhookDelivery", nil)
	assert.NoError(t, ValidateBatch([]*Job{good}))
	assert.ErrorIs(t, ValidateBatch([]*Job{good, bad}), errors.ErrInvalidJob)
}
