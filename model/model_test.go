package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrail/core"
)

func userReq(text string) Request {
	return Request{Contents: []core.Content{core.NewTextContent(core.RoleUser, text)}}
}

func TestMockModel_FallbackAndCannedResponses(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("hi", "hello there")

	resp, err := Collect(context.Background(), m, userReq("hi"), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content.Text())

	resp, err = Collect(context.Background(), m, userReq("other"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", resp.Content.Text())
	assert.Equal(t, 2, m.Calls())
}

func TestMockModel_ScriptedCalls(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.EnqueueCalls(core.FunctionCall{Name: "t1", Arguments: `{}`}, core.FunctionCall{ID: "x", Name: "t2"}).
		EnqueueText("done")

	resp, err := Collect(context.Background(), m, userReq("go"), nil)
	require.NoError(t, err)
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "call_0_0", calls[0].ID)
	assert.Equal(t, "x", calls[1].ID)
	assert.Equal(t, "tool_calls", resp.FinishReason)

	resp, err = Collect(context.Background(), m, userReq("go"), nil)
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content.Text())
}

func TestMockModel_StreamPartials(t *testing.T) {
	m := NewMockModel("mock", "mock").EnqueueText("abc")
	req := userReq("x")
	req.Stream = true

	var partials string
	resp, err := Collect(context.Background(), m, req, func(r Response) { partials += r.Content.Text() })
	require.NoError(t, err)
	assert.Equal(t, "abc", partials)
	assert.Equal(t, "abc", resp.Content.Text())
}

func TestCollect_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockModel("mock", "mock").Enqueue(MockStep{Err: boom})

	_, err := Collect(context.Background(), m, userReq("x"), nil)
	assert.ErrorIs(t, err, boom)
}

func TestCollect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMockModel("mock", "mock")
	_, err := Collect(ctx, m, userReq("x"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSettings_Parallel(t *testing.T) {
	assert.False(t, Settings{}.Parallel())
	assert.False(t, Settings{ParallelToolCalls: Bool(false)}.Parallel())
	assert.True(t, Settings{ParallelToolCalls: Bool(true)}.Parallel())
}
