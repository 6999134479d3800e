package stanzapl

import "strings"

// DefaultLemmaOverrides patches past-tense forms of "dostać" which the
// Polish model lemmatizes incorrectly. Keys are lowercased surface forms.
var DefaultLemmaOverrides = map[string]string{
	"dostałem":    "dostać",
	"dostałeś":    "dostać",
	"dostaliśmy":  "dostać",
	"dostaliście": "dostać",
}

// DefaultConditionalEndings are the free-standing conditional mood markers
var DefaultConditionalEndings = []string{"by", "bym", "byś", "byśmy", "byście"}

// PrepareTokens flattens all sentences of doc into one token sequence.
// Surface forms and lemmas are lowercased; a lemma is replaced entirely
// when overrides has an entry for the lowercased surface form.
func PrepareTokens(doc *Document, overrides map[string]string) []Token {
	tokens := make([]Token, 0, doc.NumWords())
	if doc == nil {
		return tokens
	}
	for _, sentence := range doc.Sentences {
		for _, w := range sentence.Words {
			surface := strings.ToLower(w.Text)
			lemma, ok := overrides[surface]
			if !ok {
				lemma = strings.ToLower(w.Lemma)
			}
			tokens = append(tokens, Token{
				Surface: surface,
				Lemma:   lemma,
				POS:     w.UPOS,
			})
		}
	}
	return tokens
}
