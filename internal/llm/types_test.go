package llm

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMessageOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Message{Role: RoleUser, Content: "hi"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, field := range []string{"tool_calls", "tool_call_id", "reasoning_content"} {
		if strings.Contains(string(data), field) {
			t.Errorf("empty %q should be omitted: %s", field, data)
		}
	}
}

func TestToolMessageCarriesCallID(t *testing.T) {
	msg := Message{
		Role:       RoleTool,
		Content:    `{"success": true}`,
		Name:       "Read",
		ToolCallID: "call_9",
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["tool_call_id"] != "call_9" {
		t.Errorf("tool_call_id = %v", got["tool_call_id"])
	}
	if got["name"] != "Read" {
		t.Errorf("name = %v", got["name"])
	}
}

func TestToolCallArgumentsStayRaw(t *testing.T) {
	raw := `{"id":"call_1","type":"function","function":{"name":"Edit","arguments":"{\"path\":\"a.go\"}"}}`
	var tc ToolCall
	if err := json.Unmarshal([]byte(raw), &tc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tc.Function.Name != "Edit" {
		t.Errorf("name = %q", tc.Function.Name)
	}
	// Arguments arrive as a JSON-encoded string and must stay one for
	// the tool layer to decode against its own schema.
	if tc.Function.Arguments != `{"path":"a.go"}` {
		t.Errorf("arguments = %q", tc.Function.Arguments)
	}
}

func TestChatResponseDecodesChoiceError(t *testing.T) {
	raw := `{
		"id": "r1",
		"choices": [{"index": 0, "message": {"role": "assistant"}, "error": {"code": 503, "message": "backend down"}}]
	}`
	var resp ChatResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	ce := resp.Choices[0].Error
	if ce == nil {
		t.Fatal("choice error not decoded")
	}
	if ce.Code != 503 || ce.Message != "backend down" {
		t.Errorf("choice error = %+v", ce)
	}
}
