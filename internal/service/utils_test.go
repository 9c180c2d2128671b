package service

import "testing"

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "bare object",
			content: `{"a": 1}`,
			want:    `{"a": 1}`,
		},
		{
			name:    "json fence",
			content: "```json\n{\"a\": 1}\n```",
			want:    `{"a": 1}`,
		},
		{
			name:    "plain fence",
			content: "```\n{\"a\": 1}\n```",
			want:    `{"a": 1}`,
		},
		{
			name:    "surrounding commentary",
			content: "Here is the result you asked for:\n{\"a\": 1}\nLet me know if you need anything else.",
			want:    `{"a": 1}`,
		},
		{
			name:    "nested braces",
			content: `prefix {"a": {"b": 2}} suffix`,
			want:    `{"a": {"b": 2}}`,
		},
		{
			name:    "no object",
			content: "no json here",
			want:    "no json here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSONObject(tt.content); got != tt.want {
				t.Errorf("extractJSONObject(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid ascii", "hello", "hello"},
		{"valid multibyte", "кофе и круассан", "кофе и круассан"},
		{"invalid byte dropped", "caf\xffe", "cafe"},
		{"truncated sequence", "abc\xc3", "abc"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeUTF8(tt.input); got != tt.want {
				t.Errorf("sanitizeUTF8(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
