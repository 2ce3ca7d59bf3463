package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleLine_MalformedJSONDoesNotTouchStats(t *testing.T) {
	s := newTestServer()
	before := s.stats.Snapshot().RequestsTotal

	resp := s.handleLine([]byte("{not valid json"))
	assert.NotEmpty(t, resp.Error)

	after := s.stats.Snapshot().RequestsTotal
	assert.Equal(t, before, after)
}

func TestHandleLine_ValidRequestRecordsStats(t *testing.T) {
	s := newTestServer()
	before := s.stats.Snapshot().RequestsTotal

	resp := s.handleLine([]byte(`{"command":"ping"}`))
	assert.Empty(t, resp.Error)

	after := s.stats.Snapshot().RequestsTotal
	assert.Equal(t, before+1, after)
}
