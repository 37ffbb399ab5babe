package trace

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ormasoftchile/labguide/pkg/guide/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvents() []events.Event {
	ts := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	return []events.Event{
		{Kind: events.KindGuideStarted, Timestamp: ts, GuideID: "g1", Index: -1},
		{Kind: events.KindStepActivated, Timestamp: ts, GuideID: "g1", StepID: "intro"},
		{Kind: events.KindRollback, Timestamp: ts, GuideID: "g1", StepID: "setup", Index: 1, RequestedIndex: 2, Forced: true, Reason: events.ReasonOrderingGuard},
	}
}

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf, "sess-1")
	for _, e := range sampleEvents() {
		tw.HandleEvent(e)
	}
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

	res, err := Verify(&buf)
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Error)
	require.Len(t, res.Records, 3)
	assert.Equal(t, Genesis, res.Records[0].PrevHash)
	assert.Equal(t, "sess-1", res.Records[2].SessionID)
	assert.Equal(t, 3, res.Records[2].Seq)
	assert.True(t, res.Records[2].Forced)
	assert.Equal(t, events.KindRollback, res.Records[2].Kind)
}

func TestVerifyDetectsTampering(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf, "s")
	for _, e := range sampleEvents() {
		require.NoError(t, tw.Emit(e))
	}
	tampered := strings.Replace(buf.String(), `"step_id":"intro"`, `"step_id":"setup"`, 1)

	res, err := Verify(strings.NewReader(tampered))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, 3, res.BrokenAt)
}

func TestVerifyDetectsDroppedLine(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf, "s")
	for _, e := range sampleEvents() {
		require.NoError(t, tw.Emit(e))
	}
	lines := strings.SplitAfter(buf.String(), "\n")
	res, err := Verify(strings.NewReader(lines[0] + lines[2]))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, 2, res.BrokenAt)
}

func TestVerifyInvalidJSON(t *testing.T) {
	res, err := Verify(strings.NewReader("{not json\n"))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Error, "invalid JSON")
}

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	tw, err := NewFileWriter(path, "s")
	require.NoError(t, err)
	for _, e := range sampleEvents() {
		require.NoError(t, tw.Emit(e))
	}
	require.NoError(t, tw.Close())
	require.NoError(t, tw.Close())

	res, err := VerifyFile(path)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Len(t, res.Records, 3)

	_, err = os.Stat(path)
	require.NoError(t, err)
}
