package policy

import (
	"regexp"
	"strings"

	"github.com/convergeai/core/internal/vectorindex"
)

var sentenceSplit = regexp.MustCompile(`(?:[.!?]+\s+|\n+)`)
var wordSplit = regexp.MustCompile(`[a-z0-9]+`)
var citationMarker = regexp.MustCompile(`\[p\d+\]`)

// stopWords carries no informational content on its own; a sentence made
// up only of these (greetings, connectives) is skipped by the grounding
// check rather than counted against the answer.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "to": true, "of": true, "for": true, "and": true, "or": true,
	"in": true, "on": true, "at": true, "with": true, "this": true, "that": true,
	"it": true, "you": true, "your": true, "i": true, "we": true, "can": true,
	"will": true, "be": true, "if": true, "so": true, "but": true, "not": true,
}

// groundingScore is the fraction of the answer's informational sentences
// whose content words are substantially present in the retrieved corpus.
// This stands in for an NLI entailment model: cheap, deterministic, and
// conservative — a sentence with little lexical overlap with any retrieved
// chunk counts as unsupported, even if it happens to be true. Citation
// markers such as [p1] are removed first; they are not sentences.
func groundingScore(answer string, chunks []vectorindex.ScoredChunk) float64 {
	answer = citationMarker.ReplaceAllString(answer, "")
	corpus := make(map[string]bool)
	for _, c := range chunks {
		for _, w := range wordSplit.FindAllString(strings.ToLower(c.Content), -1) {
			if !stopWords[w] {
				corpus[w] = true
			}
		}
	}

	sentences := sentenceSplit.Split(strings.TrimSpace(answer), -1)
	var informational, entailed int
	for _, s := range sentences {
		words := contentWords(s)
		if len(words) == 0 {
			continue
		}
		informational++

		supported := 0
		for _, w := range words {
			if corpus[w] {
				supported++
			}
		}
		if float64(supported)/float64(len(words)) >= 0.5 {
			entailed++
		}
	}

	if informational == 0 {
		return 1.0 // nothing to check, e.g. a bare "I don't know" answer
	}
	return float64(entailed) / float64(informational)
}

func contentWords(sentence string) []string {
	words := wordSplit.FindAllString(strings.ToLower(sentence), -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}
