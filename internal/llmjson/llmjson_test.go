package llmjson

import "testing"

func TestStripFences(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"no fences", `{"a": 1}`, `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  \n```json\n{}\n```\n  ", `{}`},
	}
	for _, tc := range cases {
		if got := StripFences(tc.in); got != tc.want {
			t.Errorf("%s: StripFences = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestExtractObject(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"bare object", `{"complete": true}`, `{"complete": true}`},
		{"leading prose", `Sure! Here is the plan: {"reasoning": "x"} hope that helps`, `{"reasoning": "x"}`},
		{"nested braces", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`},
		{"braces in strings", `{"msg": "use { and } freely"}`, `{"msg": "use { and } freely"}`},
		{"escaped quote in string", `{"msg": "she said \"hi\" {"}`, `{"msg": "she said \"hi\" {"}`},
		{"fenced with prose", "The result:\n```json\n{\"ok\": true}\n```", `{"ok": true}`},
		{"no object", "I could not produce a plan.", ""},
		{"unbalanced", `{"a": 1`, ""},
	}
	for _, tc := range cases {
		if got := ExtractObject(tc.in); got != tc.want {
			t.Errorf("%s: ExtractObject = %q, want %q", tc.name, got, tc.want)
		}
	}
}
