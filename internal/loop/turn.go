package loop

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vinayprograms/taskforge/internal/llmjson"
)

// turn is the strict JSON shape requested from the model on every
// planning iteration.
type turn struct {
	Action    string                 `json:"action"`
	Reasoning string                 `json:"reasoning"`
	Complete  bool                   `json:"complete"`
	Tool      string                 `json:"tool,omitempty"`
	Params    map[string]interface{} `json:"params,omitempty"`
}

// parseTurn decodes a planning turn from model output. ok is false when
// no usable JSON was found; the loop substitutes a synthetic no-op in
// that case instead of aborting - one bad turn must not kill a run.
func parseTurn(content string) (turn, bool) {
	payload := llmjson.ExtractObject(content)
	if payload == "" {
		return turn{}, false
	}

	var t turn
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return turn{}, false
	}
	return t, true
}

// maxToolResultLen bounds the formatted tool turn so one verbose tool
// cannot flood the conversation.
const maxToolResultLen = 2000

// formatToolResult renders a tool result as a bounded human-readable
// turn. Maps surface well-known fields (url, title, content) as a
// preview; everything else is JSON-encoded and truncated.
func formatToolResult(name string, result interface{}) string {
	var body string

	switch v := result.(type) {
	case nil:
		body = "(no output)"
	case string:
		body = v
	case map[string]interface{}:
		var parts []string
		for _, key := range []string{"url", "title", "content"} {
			if s, ok := v[key].(string); ok && s != "" {
				parts = append(parts, fmt.Sprintf("%s: %s", key, s))
			}
		}
		if errStr, ok := v["error"].(string); ok && errStr != "" {
			parts = append(parts, "error: "+errStr)
		}
		if len(parts) > 0 {
			body = strings.Join(parts, "\n")
		} else {
			data, err := json.Marshal(v)
			if err != nil {
				body = fmt.Sprintf("%v", v)
			} else {
				body = string(data)
			}
		}
	default:
		data, err := json.Marshal(v)
		if err != nil {
			body = fmt.Sprintf("%v", v)
		} else {
			body = string(data)
		}
	}

	body = truncate(body, maxToolResultLen)
	return fmt.Sprintf("Tool %s result:\n%s", name, body)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
