package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockPlaysScriptInOrder(t *testing.T) {
	m := NewMock().
		ScriptToolCall("cpm_spike", map[string]string{"ad_id": "ad-1"}).
		ScriptText("done")

	resp, err := m.Chat(context.Background(), "sys", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StopReasonToolUse, resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "cpm_spike", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"ad_id":"ad-1"}`, string(resp.ToolCalls[0].Input))

	resp, err = m.Chat(context.Background(), "sys", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StopReasonEndTurn, resp.StopReason)
	assert.Equal(t, "done", resp.Content)

	// exhausted script ends the turn
	resp, err = m.Chat(context.Background(), "sys", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StopReasonEndTurn, resp.StopReason)
	assert.Empty(t, resp.Content)

	require.Len(t, m.Calls, 3)
	assert.Equal(t, "sys", m.Calls[0].SystemPrompt)
}

func TestMockReturnsScriptedError(t *testing.T) {
	m := NewMock()
	m.Err = errors.New("model down")

	_, err := m.Chat(context.Background(), "sys", nil, nil)
	assert.EqualError(t, err, "model down")
	assert.Len(t, m.Calls, 1)
}

func TestMockHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMock().ScriptText("never reached")
	_, err := m.Chat(ctx, "sys", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, m.Calls)
}
