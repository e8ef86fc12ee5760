package backend

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		wireType string
		want     MessageKind
	}{
		{"human", KindUser},
		{"HumanMessage", KindUser},
		{"ai", KindAssistant},
		{"AIMessageChunk", KindAssistant},
		{"tool", KindTool},
		{"ToolMessage", KindTool},
		{"system", KindOther},
		{"", KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.wireType, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseKind(tt.wireType))
		})
	}
}

func TestMessageUnmarshal(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		wantKind    MessageKind
		wantContent string
	}{
		{
			name:        "string content",
			payload:     `{"type":"ai","content":"Hello"}`,
			wantKind:    KindAssistant,
			wantContent: "Hello",
		},
		{
			name:        "content parts",
			payload:     `{"type":"AIMessageChunk","content":[{"type":"text","text":"Hel"},"lo",{"type":"tool_use","text":"x"}]}`,
			wantKind:    KindAssistant,
			wantContent: "Hello",
		},
		{
			name:        "null content",
			payload:     `{"type":"tool","content":null,"name":"search"}`,
			wantKind:    KindTool,
			wantContent: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &m))
			assert.Equal(t, tt.wantKind, m.Kind)
			assert.Equal(t, tt.wantContent, m.Content)
		})
	}
}

func TestMessageMarshalKeepsKind(t *testing.T) {
	data, err := json.Marshal(Message{Kind: KindUser, Content: "hi"})
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, KindUser, decoded.Kind)
	assert.Equal(t, "hi", decoded.Content)
}

func TestNewRunConfig(t *testing.T) {
	cfg := NewRunConfig("thread-1")

	assert.Equal(t, "thread-1", cfg.Configurable.ThreadID)
	assert.Equal(t, "thread-1", cfg.Metadata["thread_id"])
	assert.Equal(t, "chat_turn", cfg.RunName)
}

func TestIsBackendError(t *testing.T) {
	assert.True(t, IsBackendError(&StatusError{Op: "stream", StatusCode: 500}))
	assert.True(t, IsBackendError(fmt.Errorf("list threads: %w", ErrUnavailable)))
	assert.False(t, IsBackendError(fmt.Errorf("something else")))
}
