package phonetic_test

import (
	"testing"

	"github.com/rostrumlabs/rostrum/internal/transcript/phonetic"
)

var hesitations = []string{"um", "uh", "er", "ah", "erm", "ehm", "hmm", "mhm"}

func TestMatcher_DoubledLetterVariants(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	tests := []struct {
		variant string
		want    string
	}{
		{"umm", "um"},
		{"uhh", "uh"},
		{"hmmm", "hmm"},
	}
	for _, tc := range tests {
		canonical, conf, matched := m.Match(tc.variant, hesitations)
		if !matched {
			t.Errorf("Match(%q): matched=false, want true", tc.variant)
			continue
		}
		if canonical != tc.want {
			t.Errorf("Match(%q): canonical=%q, want %q", tc.variant, canonical, tc.want)
		}
		if conf < 0.82 {
			t.Errorf("Match(%q): confidence=%f, want >= 0.82", tc.variant, conf)
		}
	}
}

func TestMatcher_RealWordsStayBelowThreshold(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	// These share phonetic codes with hesitation sounds but must not be
	// counted as them.
	for _, word := range []string{"him", "ham", "hum", "hello", "me"} {
		canonical, conf, matched := m.Match(word, hesitations)
		if matched {
			t.Errorf("Match(%q): matched=true (as %q, conf=%f), want false", word, canonical, conf)
		}
	}
}

func TestMatcher_ExactTermHighConfidence(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	canonical, conf, matched := m.Match("um", hesitations)
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "um")
	}
	if canonical != "um" {
		t.Errorf("Match(%q): canonical=%q, want %q", "um", canonical, "um")
	}
	if conf < 0.9 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.9 for exact match", "um", conf)
	}
}

func TestMatcher_CaseInsensitivity(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	canonical, _, matched := m.Match("UMM", hesitations)
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "UMM")
	}
	if canonical != "um" {
		t.Errorf("Match(%q): canonical=%q, want %q", "UMM", canonical, "um")
	}
}

func TestMatcher_MultiWordTerm(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	terms := []string{"you know", "kind of"}

	tests := []string{"you now", "youknow"}
	for _, input := range tests {
		canonical, _, matched := m.Match(input, terms)
		if !matched {
			t.Errorf("Match(%q): matched=false, want true", input)
			continue
		}
		if canonical != "you know" {
			t.Errorf("Match(%q): canonical=%q, want %q", input, canonical, "you know")
		}
	}
}

func TestMatcher_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	// A maximal threshold rejects everything but identical strings.
	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.99),
		phonetic.WithFuzzyThreshold(0.99),
	)

	if _, _, matched := m.Match("umm", hesitations); matched {
		t.Fatal("Match with threshold=0.99 should reject variants, got matched=true")
	}
}

func TestMatcher_EmptyTerms(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	canonical, conf, matched := m.Match("umm", nil)
	if matched {
		t.Fatal("Match with nil terms should return matched=false")
	}
	if canonical != "umm" {
		t.Errorf("canonical=%q, want original", canonical)
	}
	if conf != 0 {
		t.Errorf("conf=%f, want 0", conf)
	}
}

func TestMatcher_EmptyWord(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	canonical, conf, matched := m.Match("", hesitations)
	if matched {
		t.Fatal("Match with empty word should return matched=false")
	}
	if canonical != "" {
		t.Errorf("canonical=%q, want empty string", canonical)
	}
	if conf != 0 {
		t.Errorf("conf=%f, want 0", conf)
	}
}
