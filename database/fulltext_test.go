package database

import (
	"testing"

	"chunkstore/model"
)

func TestBuildTsQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "plain_terms_and_together",
			query: "brown fox",
			want:  "brown & fox",
		},
		{
			name:  "phrase_becomes_adjacency_chain",
			query: `"quick brown fox"`,
			want:  "quick & brown & fox & (quick <-> brown <-> fox)",
		},
		{
			name:  "negated_term_excluded",
			query: "fox -spam",
			want:  "fox & !spam",
		},
		{
			name:  "phrase_negation_and_residual",
			query: `"hello world" -spam foo`,
			want:  "hello & world & foo & (hello <-> world) & !spam",
		},
		{
			name:  "single_word_phrase_flattens",
			query: `"fox"`,
			want:  "fox & fox",
		},
		{
			name:  "punctuation_stripped",
			query: "fox! jumps?",
			want:  "fox & jumps",
		},
		{
			name:  "only_negations_yield_empty",
			query: "-spam -junk",
			want:  "",
		},
		{
			name:  "empty_query",
			query: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildTsQuery(model.ParseQuery(tt.query))
			if got != tt.want {
				t.Errorf("buildTsQuery(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestSanitizeLexeme(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Fox", "fox"},
		{"don't", "dont"},
		{"v1.2", "v12"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := sanitizeLexeme(tt.in); got != tt.want {
			t.Errorf("sanitizeLexeme(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
