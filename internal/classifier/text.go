package classifier

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"mailcleaner/internal/model"
)

var (
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)
	whitespace = regexp.MustCompile(`\s+`)
	tokenRe    = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)
	lower      = cases.Lower(language.Und)
)

// PrepareText joins the sender address, subject, snippet and body preview,
// lowercases the result and reduces punctuation to single spaces.
func PrepareText(m *model.Message) string {
	return normalize(strings.Join([]string{m.SenderEmail, m.Subject, m.Snippet, m.BodyPreview}, " "))
}

// exampleText is the text a stored training example contributes.
func exampleText(ex model.TrainingExample) string {
	return normalize(ex.SenderEmail + " " + ex.Subject + " " + ex.Snippet)
}

func normalize(s string) string {
	s = lower.String(norm.NFKC.String(s))
	s = nonWord.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// tokenize splits prepared text into unigrams and bigrams, dropping stop words
// and single-character tokens first.
func tokenize(text string) []string {
	words := tokenRe.FindAllString(text, -1)
	kept := words[:0]
	for _, w := range words {
		if _, stop := stopWords[w]; !stop {
			kept = append(kept, w)
		}
	}
	terms := make([]string, 0, 2*len(kept))
	terms = append(terms, kept...)
	for i := 0; i+1 < len(kept); i++ {
		terms = append(terms, kept[i]+" "+kept[i+1])
	}
	return terms
}
