package ingest

import "testing"

func TestPlainText(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{
			name:   "plain_passthrough",
			markup: "The quick brown fox",
			want:   "The quick brown fox",
		},
		{
			name:   "heading_and_emphasis_stripped",
			markup: "# Title\n\nSome **bold** and *italic* text.",
			want:   "Title Some bold and italic text.",
		},
		{
			name:   "link_keeps_anchor_text",
			markup: "See [the docs](https://example.com) for details.",
			want:   "See the docs for details.",
		},
		{
			name:   "list_items_flatten",
			markup: "- first\n- second\n- third",
			want:   "first second third",
		},
		{
			name:   "inline_code_kept",
			markup: "Run `go run .` to start.",
			want:   "Run go run . to start.",
		},
		{
			name:   "whitespace_collapsed",
			markup: "a\n\n\nb    c",
			want:   "a b c",
		},
		{
			name:   "empty_input",
			markup: "",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.markup); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.markup, got, tt.want)
			}
		})
	}
}
