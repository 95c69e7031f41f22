package eventlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlcraft/pkg/proto"
)

func TestWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir, "run-1")
	require.NoError(t, err)

	require.NoError(t, w.Append(proto.LogEvent{Message: "starting"}))
	require.NoError(t, w.Append(proto.ProgressEvent{Current: 1, Total: 4}))
	require.NoError(t, w.Append(proto.ExitEvent{Code: 0}))
	require.NoError(t, w.Close())

	entries, err := Read(dir, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, proto.EventLog, entries[0].Type)
	assert.Equal(t, proto.EventProgress, entries[1].Type)
	assert.Equal(t, proto.EventExit, entries[2].Type)
	assert.JSONEq(t, `{"current": 1, "total": 4}`, string(entries[1].Event))
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestReadMissingLog(t *testing.T) {
	_, err := Read(t.TempDir(), "nope")
	assert.Error(t, err)
}
