package llm

import "testing"

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string
		wantNil bool
	}{
		{
			name:    "plain JSON",
			input:   `{"sections": {}}`,
			wantKey: "sections",
		},
		{
			name:    "json fenced block",
			input:   "```json\n{\"sections\": {}}\n```",
			wantKey: "sections",
		},
		{
			name:    "bare fenced block",
			input:   "```\n{\"sections\": {}}\n```",
			wantKey: "sections",
		},
		{
			name:    "JSON embedded in prose",
			input:   "Here is the analysis you asked for:\n{\"sections\": {\"a\": [1, 2]}}\nLet me know if you need more.",
			wantKey: "sections",
		},
		{
			name:    "braces inside strings do not break the scan",
			input:   `prefix {"sections": {"note": "uses { and } inside"}} suffix`,
			wantKey: "sections",
		},
		{
			name:    "no JSON at all",
			input:   "I could not produce a response.",
			wantNil: true,
		},
		{
			name:    "truncated JSON",
			input:   `{"sections": {"major_developments": [`,
			wantNil: true,
		},
		{
			name:    "empty input",
			input:   "",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSON(tt.input)
			if tt.wantNil {
				if got != nil {
					t.Errorf("expected nil, got %v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a parsed object, got nil")
			}
			if _, ok := got[tt.wantKey]; !ok {
				t.Errorf("expected key %q in %v", tt.wantKey, got)
			}
		})
	}
}

func TestLooksTruncated(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "complete object", input: `{"a": 1}`, want: false},
		{name: "cut mid array", input: `{"a": [1, 2`, want: true},
		{name: "ends with comma", input: `{"a": 1,`, want: true},
		{name: "ends with colon", input: `{"a":`, want: true},
		{name: "complete inside fence", input: "```json\n{\"a\": 1}\n```", want: false},
		{name: "empty", input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksTruncated(tt.input); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain JSON unchanged",
			input: `{"summary":"test"}`,
			want:  `{"summary":"test"}`,
		},
		{
			name:  "strips json fenced block",
			input: "```json\n{\"summary\":\"test\"}\n```",
			want:  `{"summary":"test"}`,
		},
		{
			name:  "strips plain fenced block",
			input: "```\n{\"summary\":\"test\"}\n```",
			want:  `{"summary":"test"}`,
		},
		{
			name:  "trims surrounding whitespace",
			input: "  {\"summary\":\"test\"}  ",
			want:  `{"summary":"test"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleanJSONResponse(tt.input)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
