package transcript

import (
	"strings"

	"github.com/rostrumlabs/rostrum/internal/transcript/phonetic"
)

// Default filler vocabulary. Hesitation sounds go through the phonetic
// matcher because STT engines spell them inconsistently; lexical fillers
// are real words the engine spells correctly, so they match exactly and
// nothing else does (fuzzy-matching "like" would swallow "likes").
var (
	defaultHesitations = []string{"um", "uh", "er", "ah", "erm", "ehm", "hmm", "mhm"}

	defaultLexical = []string{"like", "actually", "basically", "literally"}

	defaultPhrases = []string{"you know", "kind of", "sort of", "i mean"}
)

// maxHesitationLen bounds the token length considered for phonetic
// hesitation matching; longer tokens are real words.
const maxHesitationLen = 5

// FillerStats summarizes filler-word usage over a stretch of transcript.
type FillerStats struct {
	// TotalWords counts all tokens, fillers included.
	TotalWords int

	// FillerWords counts tokens consumed by filler matches. A two-word
	// phrase counts as two.
	FillerWords int

	// Ratio is FillerWords over TotalWords, 0 when nothing was said.
	Ratio float64

	// Counts maps each canonical filler to its number of occurrences.
	Counts map[string]int
}

// DetectorOption is a functional option for configuring a [Detector].
type DetectorOption func(*Detector)

// WithLexicalFillers replaces the single-word filler vocabulary.
func WithLexicalFillers(words ...string) DetectorOption {
	return func(d *Detector) { d.lexical = words }
}

// WithFillerPhrases replaces the multi-word filler vocabulary.
func WithFillerPhrases(phrases ...string) DetectorOption {
	return func(d *Detector) { d.phrasesRaw = phrases }
}

// WithHesitations replaces the hesitation-sound vocabulary matched
// phonetically.
func WithHesitations(sounds ...string) DetectorOption {
	return func(d *Detector) { d.hesitations = sounds }
}

// WithMatcher overrides the phonetic matcher used for hesitation variants.
func WithMatcher(m *phonetic.Matcher) DetectorOption {
	return func(d *Detector) {
		if m != nil {
			d.matcher = m
		}
	}
}

// Detector counts filler words in transcript text. It scans token windows
// longest-first so that a phrase match ("you know") takes precedence over
// its component tokens, then tests single tokens against the lexical set
// and, for short tokens, the phonetic hesitation matcher.
//
// A Detector is read-only after construction and safe for concurrent use.
type Detector struct {
	lexical     []string
	phrasesRaw  []string
	hesitations []string
	matcher     *phonetic.Matcher

	lexicalSet map[string]string
	phrases    map[string]string
	maxPhrase  int
}

// NewDetector builds a detector with the default filler vocabulary,
// overridable through options.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		lexical:     defaultLexical,
		phrasesRaw:  defaultPhrases,
		hesitations: defaultHesitations,
		matcher:     phonetic.New(),
	}
	for _, o := range opts {
		o(d)
	}

	d.lexicalSet = make(map[string]string, len(d.lexical)+len(d.hesitations))
	for _, w := range d.lexical {
		d.lexicalSet[strings.ToLower(w)] = strings.ToLower(w)
	}
	// Canonical hesitation spellings hit the fast exact path too.
	for _, h := range d.hesitations {
		d.lexicalSet[strings.ToLower(h)] = strings.ToLower(h)
	}

	d.phrases = make(map[string]string, len(d.phrasesRaw))
	d.maxPhrase = 1
	for _, p := range d.phrasesRaw {
		norm := strings.Join(strings.Fields(strings.ToLower(p)), " ")
		if norm == "" {
			continue
		}
		d.phrases[norm] = norm
		if n := len(strings.Fields(norm)); n > d.maxPhrase {
			d.maxPhrase = n
		}
	}
	return d
}

// Vocabulary returns the detector's filler vocabulary: hesitations, lexical
// fillers, and phrases. The capture pipeline boosts these as STT keywords so
// the engine does not silently drop the very words the detector counts.
func (d *Detector) Vocabulary() []string {
	out := make([]string, 0, len(d.hesitations)+len(d.lexical)+len(d.phrasesRaw))
	out = append(out, d.hesitations...)
	out = append(out, d.lexical...)
	out = append(out, d.phrasesRaw...)
	return out
}

// Analyze scans text and returns filler statistics. Tokens are lower-cased
// and stripped of surrounding punctuation before matching.
func (d *Detector) Analyze(text string) FillerStats {
	tokens := tokenize(text)
	stats := FillerStats{
		TotalWords: len(tokens),
		Counts:     make(map[string]int),
	}
	if len(tokens) == 0 {
		return stats
	}

	i := 0
	for i < len(tokens) {
		// Longest phrase window first so "you know" beats a lone "you".
		maxN := d.maxPhrase
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 2; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			if canon, ok := d.phrases[window]; ok {
				stats.Counts[canon]++
				stats.FillerWords += n
				i += n
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		tok := tokens[i]
		if canon, ok := d.lexicalSet[tok]; ok {
			stats.Counts[canon]++
			stats.FillerWords++
		} else if canon, ok := d.matchHesitation(tok); ok {
			stats.Counts[canon]++
			stats.FillerWords++
		}
		i++
	}

	stats.Ratio = float64(stats.FillerWords) / float64(stats.TotalWords)
	return stats
}

// matchHesitation tests a short token against the hesitation vocabulary
// through the phonetic matcher.
func (d *Detector) matchHesitation(tok string) (string, bool) {
	if len(tok) < 2 || len(tok) > maxHesitationLen {
		return "", false
	}
	canon, _, ok := d.matcher.Match(tok, d.hesitations)
	if !ok {
		return "", false
	}
	return strings.ToLower(canon), true
}

// tokenize lower-cases text, splits on whitespace, and trims surrounding
// punctuation from each token. Empty remnants are dropped.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := strings.Trim(f, ".,!?;:\"'()[]")
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
