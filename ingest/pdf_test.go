package ingest

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "basic_sentences",
			text: "First one. Second one. Third one.",
			want: []string{"First one.", "Second one.", "Third one."},
		},
		{
			name: "mixed_terminators",
			text: "Really? Yes! Good.",
			want: []string{"Really?", "Yes!", "Good."},
		},
		{
			name: "no_terminator",
			text: "just a fragment",
			want: []string{"just a fragment"},
		},
		{
			name: "empty",
			text: "   ",
			want: nil,
		},
		{
			name: "ellipsis_breaks_after_full_run",
			text: "Wait... what. Done.",
			want: []string{"Wait...", "what.", "Done."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitSentences(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitSentences(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestSplitText(t *testing.T) {
	t.Run("respects_max_chars", func(t *testing.T) {
		text := "One sentence here. Another sentence here. Third sentence here."
		pieces := SplitText(text, 40)
		if len(pieces) < 2 {
			t.Fatalf("expected multiple pieces, got %v", pieces)
		}
		for _, p := range pieces {
			if len(p) > 40 {
				t.Errorf("piece %q exceeds max chars", p)
			}
		}
	})

	t.Run("oversized_sentence_kept_whole", func(t *testing.T) {
		long := strings.Repeat("word ", 30) + "end."
		pieces := SplitText(long, 20)
		if len(pieces) != 1 {
			t.Fatalf("expected one oversized piece, got %d", len(pieces))
		}
	})

	t.Run("nothing_lost", func(t *testing.T) {
		text := "Alpha beta. Gamma delta. Epsilon zeta."
		joined := strings.Join(SplitText(text, 15), " ")
		for _, word := range strings.Fields(text) {
			if !strings.Contains(joined, strings.TrimSuffix(word, ".")) {
				t.Errorf("word %q missing from split output", word)
			}
		}
	})
}
