package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ormasoftchile/labguide/pkg/guide/exam"
	"github.com/ormasoftchile/labguide/pkg/guide/registry"
	"github.com/ormasoftchile/labguide/pkg/guide/schema"
	"github.com/ormasoftchile/labguide/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlers(t *testing.T) *Handlers {
	t.Helper()
	reg := registry.New()
	g := &schema.Guide{APIVersion: schema.APIVersionGuide, Meta: schema.GuideMeta{ID: "g1", Title: "Titration"}}
	for _, id := range []string{"intro", "setup", "finish"} {
		g.Steps = append(g.Steps, schema.Step{ID: id, Title: "Step " + id})
	}
	require.NoError(t, reg.Register(g))
	sess, err := session.New(reg, session.WithID("s-1"))
	require.NoError(t, err)
	return NewHandlers(sess, reg)
}

func call(t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := fn(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func decodeStatus(t *testing.T, result *mcp.CallToolResult) statusView {
	t.Helper()
	require.False(t, result.IsError, text(t, result))
	var v statusView
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &v))
	return v
}

func TestHandleValidate_ValidFile(t *testing.T) {
	result := call(t, HandleValidate, map[string]any{"path": "../guide/validate/testdata/valid.guide.yaml"})
	assert.False(t, result.IsError, text(t, result))
	assert.Contains(t, text(t, result), "is valid")
}

func TestHandleValidate_InvalidFile(t *testing.T) {
	result := call(t, HandleValidate, map[string]any{"path": "../guide/validate/testdata/duplicate_ids.guide.yaml"})
	assert.True(t, result.IsError)
}

func TestHandleValidate_MissingPath(t *testing.T) {
	result := call(t, HandleValidate, map[string]any{})
	assert.True(t, result.IsError)
}

func TestHandleSchema(t *testing.T) {
	for _, typ := range []string{"guide", "plan"} {
		result := call(t, HandleSchema, map[string]any{"type": typ})
		require.False(t, result.IsError, typ)
		assert.True(t, json.Valid([]byte(text(t, result))), typ)
	}
	result := call(t, HandleSchema, map[string]any{"type": "recipe"})
	assert.True(t, result.IsError)
}

func TestHandleList(t *testing.T) {
	h := newHandlers(t)
	result := call(t, h.HandleList, nil)
	require.False(t, result.IsError)
	assert.Contains(t, text(t, result), `"id": "g1"`)
	assert.Contains(t, text(t, result), `"steps": 3`)
}

func TestWalkThroughTools(t *testing.T) {
	h := newHandlers(t)

	v := decodeStatus(t, call(t, h.HandleLoad, map[string]any{"guide": "g1"}))
	assert.Equal(t, "intro", v.Current)
	assert.Equal(t, "Step intro", v.Steps[0].Title)

	// Jumping ahead lands on the earliest unfinished step.
	v = decodeStatus(t, call(t, h.HandleActivate, map[string]any{"step": "finish"}))
	assert.Equal(t, "intro", v.Current)

	v = decodeStatus(t, call(t, h.HandleComplete, map[string]any{}))
	assert.Equal(t, "setup", v.Current)
	assert.True(t, v.Steps[0].Completed)

	result := call(t, h.HandleComplete, map[string]any{"step": "finish"})
	assert.True(t, result.IsError)

	v = decodeStatus(t, call(t, h.HandleRollback, nil))
	assert.Equal(t, "intro", v.Current)

	v = decodeStatus(t, call(t, h.HandleActivate, map[string]any{"index": float64(0)}))
	assert.Equal(t, 0, v.Index)

	for _, id := range []string{"intro", "setup", "finish"} {
		decodeStatus(t, call(t, h.HandleComplete, map[string]any{"step": id}))
	}
	v = decodeStatus(t, call(t, h.HandleStatus, nil))
	assert.True(t, v.Finished)
	assert.Empty(t, v.Current)

	v = decodeStatus(t, call(t, h.HandleRestart, nil))
	assert.False(t, v.Finished)
	assert.Equal(t, "intro", v.Current)
}

func TestHandleLoad_Errors(t *testing.T) {
	h := newHandlers(t)
	assert.True(t, call(t, h.HandleLoad, map[string]any{}).IsError)
	assert.True(t, call(t, h.HandleLoad, map[string]any{"guide": "nope"}).IsError)
	assert.True(t, call(t, h.HandleRollback, nil).IsError)
	assert.True(t, call(t, h.HandleActivate, map[string]any{}).IsError)
}

func TestHandleActivate_FractionalIndex(t *testing.T) {
	h := newHandlers(t)
	decodeStatus(t, call(t, h.HandleLoad, map[string]any{"guide": "g1"}))
	decodeStatus(t, call(t, h.HandleComplete, map[string]any{"step": "intro"}))

	result := call(t, h.HandleActivate, map[string]any{"index": 0.7})
	require.True(t, result.IsError)
	assert.Contains(t, text(t, result), "whole number")

	v := decodeStatus(t, call(t, h.HandleStatus, nil))
	assert.Equal(t, "setup", v.Current, "a rejected index leaves the cursor alone")

	v = decodeStatus(t, call(t, h.HandleActivate, map[string]any{"index": 0.0}))
	assert.Equal(t, "intro", v.Current)
}

func TestExamAndSummary(t *testing.T) {
	h := newHandlers(t)

	result := call(t, h.HandleExam, map[string]any{"mode": "on"})
	require.False(t, result.IsError)
	assert.Equal(t, "exam mode: true", text(t, result))

	v := decodeStatus(t, call(t, h.HandleLoad, map[string]any{"guide": "g1"}))
	assert.True(t, v.Exam)
	assert.Empty(t, v.Steps[0].Title, "titles are withheld in exam mode")

	decodeStatus(t, call(t, h.HandleComplete, map[string]any{"step": "intro"}))
	assert.True(t, call(t, h.HandleComplete, map[string]any{"step": "finish"}).IsError)

	result = call(t, h.HandleSummary, nil)
	require.False(t, result.IsError, text(t, result))
	var sum exam.Summary
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &sum))
	assert.Equal(t, 3, sum.TotalSteps)
	assert.Equal(t, 1, sum.Completed)
	assert.Equal(t, 1, sum.TotalErrors)
	assert.False(t, sum.Passed)

	result = call(t, h.HandleExam, map[string]any{"mode": "off"})
	assert.Equal(t, "exam mode: false", text(t, result))
	assert.True(t, call(t, h.HandleExam, map[string]any{"mode": "maybe"}).IsError)
}

func TestNewServer(t *testing.T) {
	s := NewServer("test", newHandlers(t))
	require.NotNil(t, s)
}
