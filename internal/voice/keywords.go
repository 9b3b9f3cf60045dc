package voice

import (
	"slices"
	"strings"
	"unicode"

	"github.com/alkime/onboard/internal/flow"
	"golang.org/x/text/cases"
)

// Keywords lists the phrases that trigger each intent. Multi-word phrases
// must appear as consecutive words.
type Keywords struct {
	Navigate []string `json:"navigate" yaml:"navigate"`
	Affirm   []string `json:"affirm" yaml:"affirm"`
	Save     []string `json:"save" yaml:"save"`
}

// DefaultKeywords returns the built-in command vocabulary.
func DefaultKeywords() Keywords {
	return Keywords{
		Navigate: []string{"dashboard", "let's go", "lets go"},
		Affirm:   []string{"yes", "please", "sure", "good", "okay", "ok", "ready"},
		Save:     []string{"save", "continue", "proceed"},
	}
}

type keywordSet struct {
	intent  flow.Intent
	phrases [][]string
	// lastStepOnly sets are skipped unless the wizard is on its final step.
	lastStepOnly bool
}

// Matcher classifies transcripts into intents. Sets are tried in a fixed
// order: navigate, affirm, save. The first set with a matching phrase wins,
// so "yes, save it" is an affirmation.
type Matcher struct {
	sets []keywordSet
}

// NewMatcher builds a matcher for kw.
func NewMatcher(kw Keywords) *Matcher {
	return &Matcher{
		sets: []keywordSet{
			{intent: flow.IntentNavigate, phrases: tokenizeAll(kw.Navigate), lastStepOnly: true},
			{intent: flow.IntentAffirm, phrases: tokenizeAll(kw.Affirm)},
			{intent: flow.IntentSave, phrases: tokenizeAll(kw.Save)},
		},
	}
}

// Classify returns the intent of transcript, or false when nothing matched.
func (m *Matcher) Classify(transcript string, onLastStep bool) (flow.Intent, bool) {
	words := tokenize(transcript)
	if len(words) == 0 {
		return "", false
	}

	for _, set := range m.sets {
		if set.lastStepOnly && !onLastStep {
			continue
		}

		for _, phrase := range set.phrases {
			if containsPhrase(words, phrase) {
				return set.intent, true
			}
		}
	}

	return "", false
}

func tokenizeAll(phrases []string) [][]string {
	out := make([][]string, 0, len(phrases))
	for _, p := range phrases {
		if words := tokenize(p); len(words) > 0 {
			out = append(out, words)
		}
	}

	return out
}

// tokenize case-folds s and splits it into words. Apostrophes inside a word
// are kept so "let's" stays distinct from "lets".
func tokenize(s string) []string {
	// Caser is stateful; one per call.
	folded := cases.Fold().String(s)
	folded = strings.NewReplacer("’", "'", "‘", "'").Replace(folded)

	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})

	out := words[:0]
	for _, w := range words {
		if w = strings.Trim(w, "'"); w != "" {
			out = append(out, w)
		}
	}

	return out
}

func containsPhrase(words, phrase []string) bool {
	if len(phrase) > len(words) {
		return false
	}

	for i := 0; i+len(phrase) <= len(words); i++ {
		if slices.Equal(words[i:i+len(phrase)], phrase) {
			return true
		}
	}

	return false
}
