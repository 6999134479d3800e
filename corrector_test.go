package stanzapl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fixtureTags() *TagTable {
	return NewTagTable(map[string]string{
		"zrobić":    "V",
		"ubrać się": "VREFL",
		"dom":       "N",
		"duży":      "ADJ",
		"dostać":    "V",
		"mieć":      "V",
	})
}

func tok(surface, lemma, pos string) Token {
	return Token{Surface: surface, Lemma: lemma, POS: pos}
}

func TestCorrectConditionalCollapse(t *testing.T) {
	c := NewCorrector(fixtureTags())
	ans := c.Correct([]Token{
		tok("zrobił", "zrobić", UPOSVerb),
		tok("bym", "bym", UPOSPart),
	})
	assert.Equal(t, []TaggedEntry{{Lemma: "zrobić", Tag: "V"}}, ans)
}

func TestCorrectAllConditionalEndings(t *testing.T) {
	c := NewCorrector(fixtureTags())
	for _, ending := range DefaultConditionalEndings {
		t.Run(ending, func(t *testing.T) {
			ans := c.Correct([]Token{
				tok("dom", "dom", "NOUN"),
				tok("zrobił", "zrobić", UPOSVerb),
				tok(ending, "być", UPOSAux),
			})
			// the marker is lemmatized as the copula, so elision wins
			assert.Equal(t, []TaggedEntry{{"dom", "N"}, {"zrobić", "V"}}, ans)

			ans = c.Correct([]Token{
				tok("dom", "dom", "NOUN"),
				tok("zrobił", "zrobić", UPOSVerb),
				tok(ending, ending, UPOSPart),
			})
			assert.Equal(t, []TaggedEntry{{"dom", "N"}, {"zrobić", "V"}}, ans)
		})
	}
}

func TestCorrectReflexiveMerge(t *testing.T) {
	c := NewCorrector(fixtureTags())
	ans := c.Correct([]Token{
		tok("ubrał", "ubrać", UPOSVerb),
		tok("się", "się", UPOSPart),
	})
	assert.Equal(t, []TaggedEntry{{Lemma: "ubrać się", Tag: "VREFL"}}, ans)
}

func TestCorrectReflexiveMergeUnknown(t *testing.T) {
	c := NewCorrector(fixtureTags())
	ans := c.Correct([]Token{
		tok("myje", "myć", UPOSVerb),
		tok("się", "się", "PRON"),
		tok("dom", "dom", "NOUN"),
	})
	assert.Equal(t, []TaggedEntry{{"myć się", UnknownTag}, {"dom", "N"}}, ans)
}

func TestCorrectReflexiveAfterNonVerb(t *testing.T) {
	c := NewCorrector(fixtureTags())
	ans := c.Correct([]Token{
		tok("dom", "dom", "NOUN"),
		tok("się", "się", "PRON"),
	})
	assert.Equal(t, []TaggedEntry{{"dom", "N"}, {"się", UnknownTag}}, ans)
}

func TestCorrectConditionalEndingFirst(t *testing.T) {
	c := NewCorrector(fixtureTags())
	ans := c.Correct([]Token{tok("by", "by", UPOSPart), tok("dom", "dom", "NOUN")})
	assert.Equal(t, []TaggedEntry{{"by", UnknownTag}, {"dom", "N"}}, ans)
}

func TestCorrectCopulaElision(t *testing.T) {
	c := NewCorrector(fixtureTags())
	ans := c.Correct([]Token{
		tok("dom", "dom", "NOUN"),
		tok("jest", "być", UPOSAux),
		tok("duży", "duży", "ADJ"),
		tok("był", "być", UPOSVerb),
	})
	assert.Equal(t, []TaggedEntry{{"dom", "N"}, {"duży", "ADJ"}}, ans)
	for _, e := range ans {
		assert.NotEqual(t, CopulaLemma, e.Lemma)
	}
}

func TestCorrectOverwritesUnrelatedEntry(t *testing.T) {
	tokens := []Token{
		tok("dom", "dom", "NOUN"),
		tok("był", "być", UPOSVerb),
		tok("by", "by", UPOSPart),
	}
	// the elided copula is still the preceding input token, so the
	// conditional rule replaces "dom"
	ans := NewCorrector(fixtureTags()).Correct(tokens)
	assert.Equal(t, []TaggedEntry{{"być", UnknownTag}}, ans)

	ans = NewCorrector(fixtureTags(), WithVerifiedOverwrite(true)).Correct(tokens)
	assert.Equal(t, []TaggedEntry{{"dom", "N"}, {"być", UnknownTag}}, ans)
}

func TestCorrectVerifiedOverwriteKeepsNormalMerges(t *testing.T) {
	c := NewCorrector(fixtureTags(), WithVerifiedOverwrite(true))
	ans := c.Correct([]Token{
		tok("ubrał", "ubrać", UPOSVerb),
		tok("się", "się", UPOSPart),
		tok("zrobił", "zrobić", UPOSVerb),
		tok("byś", "byś", UPOSPart),
	})
	assert.Equal(t, []TaggedEntry{{"ubrać się", "VREFL"}, {"zrobić", "V"}}, ans)
}

func TestCorrectMergeOnEmptyOutput(t *testing.T) {
	c := NewCorrector(fixtureTags())
	ans := c.Correct([]Token{
		tok("był", "być", UPOSVerb),
		tok("się", "się", UPOSPart),
	})
	assert.Equal(t, []TaggedEntry{{"być się", UnknownTag}}, ans)
}

func TestCorrectEmpty(t *testing.T) {
	c := NewCorrector(fixtureTags())
	assert.Empty(t, c.Correct(nil))
	assert.Empty(t, c.Correct([]Token{}))
}

func TestCorrectOutputLength(t *testing.T) {
	c := NewCorrector(fixtureTags())
	plain := []Token{
		tok("dom", "dom", "NOUN"),
		tok("duży", "duży", "ADJ"),
		tok("mam", "mieć", UPOSVerb),
		tok("kota", "kot", "NOUN"),
	}
	ans := c.Correct(plain)
	assert.Len(t, ans, len(plain))
	for i, e := range ans {
		assert.Equal(t, plain[i].Lemma, e.Lemma)
	}

	mixed := []Token{
		tok("ubrał", "ubrać", UPOSVerb),
		tok("się", "się", UPOSPart),
		tok("i", "i", "CCONJ"),
		tok("jest", "być", UPOSAux),
		tok("zrobił", "zrobić", UPOSVerb),
		tok("by", "by", UPOSPart),
		tok("dom", "dom", "NOUN"),
	}
	ans = c.Correct(mixed)
	assert.Less(t, len(ans), len(mixed))
	assert.Equal(
		t,
		[]TaggedEntry{{"ubrać się", "VREFL"}, {"i", UnknownTag}, {"zrobić", "V"}, {"dom", "N"}},
		ans,
	)
}

func TestCorrectDefaultLookup(t *testing.T) {
	tags := fixtureTags()
	c := NewCorrector(tags)
	for _, lemma := range []string{"dom", "duży", "kot", "zrobić", ""} {
		ans := c.Correct([]Token{tok(lemma, lemma, "X")})
		assert.Equal(t, tags.Lookup(lemma), ans[0].Tag)
	}
}

func TestCorrectCustomEndings(t *testing.T) {
	c := NewCorrector(fixtureTags(), WithConditionalEndings([]string{"bo"}))
	ans := c.Correct([]Token{
		tok("zrobił", "zrobić", UPOSVerb),
		tok("bym", "bym", UPOSPart),
		tok("mam", "mieć", UPOSVerb),
		tok("bo", "bo", UPOSPart),
	})
	assert.Equal(t, []TaggedEntry{{"zrobić", "V"}, {"bym", UnknownTag}, {"mieć", "V"}}, ans)
}

func TestCorrectorOptionsCopyTables(t *testing.T) {
	overrides := map[string]string{"poszedłem": "pójść"}
	c := NewCorrector(fixtureTags(), WithLemmaOverrides(overrides))
	overrides["poszedłem"] = "iść"
	tokens := c.Prepare(&Document{Sentences: []Sentence{{Words: []Word{{"Poszedłem", "poszedłem", UPOSVerb}}}}})
	assert.Equal(t, "pójść", tokens[0].Lemma)
}

func TestRulesIndividually(t *testing.T) {
	c := NewCorrector(fixtureTags())

	r := &reduction{tokens: []Token{tok("jest", "być", UPOSAux)}}
	assert.True(t, c.elideCopula(r))
	assert.False(t, c.collapseConditional(r))
	assert.False(t, c.mergeReflexive(r))
	assert.Empty(t, r.output)

	r = &reduction{
		tokens: []Token{tok("zrobił", "zrobić", UPOSVerb), tok("bym", "bym", UPOSPart)},
		output: []TaggedEntry{{"zrobić", "V"}},
		cursor: 1,
	}
	assert.False(t, c.elideCopula(r))
	assert.False(t, c.mergeReflexive(r))
	assert.True(t, c.collapseConditional(r))
	assert.Len(t, r.output, 1)

	r = &reduction{
		tokens: []Token{tok("ubrał", "ubrać", UPOSVerb), tok("się", "się", UPOSPart)},
		output: []TaggedEntry{{"ubrać", UnknownTag}},
		cursor: 1,
	}
	assert.False(t, c.collapseConditional(r))
	assert.True(t, c.mergeReflexive(r))
	assert.Equal(t, []TaggedEntry{{"ubrać się", "VREFL"}}, r.output)

	r = &reduction{tokens: []Token{tok("dom", "dom", "NOUN")}}
	assert.True(t, c.emitDefault(r))
	assert.Equal(t, []TaggedEntry{{"dom", "N"}}, r.output)
}

func TestReflexiveLemma(t *testing.T) {
	assert.Equal(t, "ubrać się", ReflexiveLemma("ubrać"))
}

func TestVerifiedReflexiveAcceptsCompound(t *testing.T) {
	c := NewCorrector(fixtureTags(), WithVerifiedOverwrite(true))
	r := &reduction{
		tokens: []Token{tok("ubrał", "ubrać", UPOSVerb), tok("się", "się", UPOSPart)},
		output: []TaggedEntry{{"ubrać się", "VREFL"}},
		cursor: 1,
	}
	assert.True(t, c.mergeReflexive(r))
	assert.Equal(t, []TaggedEntry{{"ubrać się", "VREFL"}}, r.output)

	r = &reduction{
		tokens: []Token{tok("ubrał", "ubrać", UPOSVerb), tok("się", "się", UPOSPart)},
		output: []TaggedEntry{{"dom", "N"}},
		cursor: 1,
	}
	assert.True(t, c.mergeReflexive(r))
	assert.Equal(t, []TaggedEntry{{"dom", "N"}, {"ubrać się", "VREFL"}}, r.output)
}
