package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStats_RecordSuccessAndFailure(t *testing.T) {
	s := NewStats()
	s.RecordSuccess(100)
	s.RecordSuccess(50)
	s.RecordFailure()

	snap := s.Snapshot()
	assert.Equal(t, int64(3), snap.RequestsTotal)
	assert.Equal(t, int64(2), snap.RequestsSuccess)
	assert.Equal(t, int64(1), snap.RequestsFailed)
	assert.Equal(t, int64(150), snap.BytesProcessed)
}

func TestStats_StartTimeIsSet(t *testing.T) {
	s := NewStats()
	snap := s.Snapshot()
	assert.NotEmpty(t, snap.StartTime)
}
