package transcript_test

import (
	"math"
	"testing"

	"github.com/rostrumlabs/rostrum/internal/transcript"
)

func TestDetectorCountsCanonicalFillers(t *testing.T) {
	t.Parallel()

	d := transcript.NewDetector()
	stats := d.Analyze("So um I think, uh, the project was like really hard")

	if stats.TotalWords != 11 {
		t.Errorf("TotalWords = %d, want 11", stats.TotalWords)
	}
	if stats.Counts["um"] != 1 {
		t.Errorf("um count = %d, want 1", stats.Counts["um"])
	}
	if stats.Counts["uh"] != 1 {
		t.Errorf("uh count = %d, want 1", stats.Counts["uh"])
	}
	if stats.Counts["like"] != 1 {
		t.Errorf("like count = %d, want 1", stats.Counts["like"])
	}
	if stats.FillerWords != 3 {
		t.Errorf("FillerWords = %d, want 3", stats.FillerWords)
	}
	if want := 3.0 / 11.0; math.Abs(stats.Ratio-want) > 1e-9 {
		t.Errorf("Ratio = %v, want %v", stats.Ratio, want)
	}
}

func TestDetectorMatchesHesitationVariants(t *testing.T) {
	t.Parallel()

	d := transcript.NewDetector()
	stats := d.Analyze("Umm the deadline was uhh very tight hmmm")

	if stats.Counts["um"] != 1 {
		t.Errorf("um count = %d, want 1 (from 'Umm')", stats.Counts["um"])
	}
	if stats.Counts["uh"] != 1 {
		t.Errorf("uh count = %d, want 1 (from 'uhh')", stats.Counts["uh"])
	}
	if stats.Counts["hmm"] != 1 {
		t.Errorf("hmm count = %d, want 1 (from 'hmmm')", stats.Counts["hmm"])
	}
}

func TestDetectorPhrasesBeatComponentTokens(t *testing.T) {
	t.Parallel()

	d := transcript.NewDetector()
	stats := d.Analyze("It was you know kind of a stretch goal")

	if stats.Counts["you know"] != 1 {
		t.Errorf("'you know' count = %d, want 1", stats.Counts["you know"])
	}
	if stats.Counts["kind of"] != 1 {
		t.Errorf("'kind of' count = %d, want 1", stats.Counts["kind of"])
	}
	// Two phrases of two tokens each.
	if stats.FillerWords != 4 {
		t.Errorf("FillerWords = %d, want 4", stats.FillerWords)
	}
}

func TestDetectorIgnoresCleanSpeech(t *testing.T) {
	t.Parallel()

	d := transcript.NewDetector()
	stats := d.Analyze("We shipped the migration ahead of schedule and cut latency in half.")

	if stats.FillerWords != 0 {
		t.Errorf("FillerWords = %d for clean speech, want 0 (counts: %v)",
			stats.FillerWords, stats.Counts)
	}
	if stats.Ratio != 0 {
		t.Errorf("Ratio = %v, want 0", stats.Ratio)
	}
}

func TestDetectorDoesNotOvermatchRealWords(t *testing.T) {
	t.Parallel()

	d := transcript.NewDetector()
	// "him", "likes", "ham" neighbor fillers phonetically or textually but
	// are legitimate words.
	stats := d.Analyze("I told him she likes ham")

	if stats.FillerWords != 0 {
		t.Errorf("FillerWords = %d, want 0 (counts: %v)", stats.FillerWords, stats.Counts)
	}
}

func TestDetectorEmptyText(t *testing.T) {
	t.Parallel()

	d := transcript.NewDetector()
	stats := d.Analyze("   ")

	if stats.TotalWords != 0 || stats.FillerWords != 0 || stats.Ratio != 0 {
		t.Errorf("empty text produced %+v, want zeros", stats)
	}
}

func TestDetectorPunctuationStripped(t *testing.T) {
	t.Parallel()

	d := transcript.NewDetector()
	stats := d.Analyze("Um, well... the \"deliverable,\" um: done!")

	if stats.Counts["um"] != 2 {
		t.Errorf("um count = %d, want 2 despite punctuation", stats.Counts["um"])
	}
}

func TestDetectorCustomVocabulary(t *testing.T) {
	t.Parallel()

	d := transcript.NewDetector(
		transcript.WithLexicalFillers("right"),
		transcript.WithFillerPhrases(),
		transcript.WithHesitations("um"),
	)
	stats := d.Analyze("Right so the plan you know was um right")

	if stats.Counts["right"] != 2 {
		t.Errorf("right count = %d, want 2", stats.Counts["right"])
	}
	if stats.Counts["you know"] != 0 {
		t.Errorf("'you know' count = %d, want 0 with phrases disabled", stats.Counts["you know"])
	}
	if stats.Counts["um"] != 1 {
		t.Errorf("um count = %d, want 1", stats.Counts["um"])
	}
}
