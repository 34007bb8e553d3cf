package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{
			name:    "plain object",
			content: `{"contract_type":"NDA"}`,
			want:    `{"contract_type":"NDA"}`,
		},
		{
			name:    "fenced json block",
			content: "```json\n{\"a\": 1}\n```",
			want:    `{"a": 1}`,
		},
		{
			name:    "bare fence",
			content: "```\n[1, 2]\n```",
			want:    `[1, 2]`,
		},
		{
			name:    "surrounding whitespace",
			content: "  \n {\"b\": true} \n",
			want:    `{"b": true}`,
		},
		{
			name:    "prose instead of json",
			content: "Sure! Here is the analysis you asked for.",
			wantErr: true,
		},
		{
			name:    "truncated object",
			content: `{"dispute_points": [{"title": "term`,
			wantErr: true,
		},
		{
			name:    "empty response",
			content: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON("test", tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error, got %s", got)
				}
				if IsTransient(err) {
					t.Error("Malformed output must not be transient")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	transport := &Error{Provider: "p", Op: "send request", Transient: true, Err: errors.New("connection refused")}
	if !IsTransient(transport) {
		t.Error("Transport error should be transient")
	}
	if !IsTransient(fmt.Errorf("wrapped: %w", transport)) {
		t.Error("Wrapped transport error should be transient")
	}

	malformed := &Error{Provider: "p", Op: "parse response", Err: errors.New("invalid JSON")}
	if IsTransient(malformed) {
		t.Error("Parse error should not be transient")
	}

	if IsTransient(errors.New("plain error")) {
		t.Error("Plain error should not be transient")
	}
}
