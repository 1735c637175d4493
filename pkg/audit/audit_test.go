package audit

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_RecordsJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf)

	l.Record(EventSecurity, ActionReplayAttempt, "", 42, map[string]any{"source": "callback"})
	l.Record(EventMutation, "request.created", "alice", 43, nil)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first Event
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, EventSecurity, first.Type)
	assert.Equal(t, ActionReplayAttempt, first.Action)
	assert.Equal(t, uint64(42), first.RequestID)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.Timestamp.IsZero())

	var second Event
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "alice", second.Actor)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestLogger_NilWriterDefaultsToStdout(t *testing.T) {
	assert.NotNil(t, NewLoggerWithWriter(nil))
}
