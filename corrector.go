package stanzapl

import "slices"

// Corrector turns prepared tokens into tagged entries. It removes copulas
// the pipeline inserted, reduces conditional forms ("zrobił bym") to the
// base verb and joins reflexive verbs with "się" into one entry.
//
// All tables are copied at construction and never modified afterwards,
// so a single Corrector can serve concurrent requests.
type Corrector struct {
	tags               *TagTable
	overrides          map[string]string
	conditionalEndings map[string]struct{}
	verifiedOverwrite  bool
}

// CorrectorOption defines function signature for options to configure Corrector
type CorrectorOption func(*Corrector)

// WithLemmaOverrides replaces the default surface -> lemma corrections
func WithLemmaOverrides(overrides map[string]string) CorrectorOption {
	return func(c *Corrector) {
		c.overrides = make(map[string]string, len(overrides))
		for surface, lemma := range overrides {
			c.overrides[surface] = lemma
		}
	}
}

// WithConditionalEndings replaces the default set of conditional markers
func WithConditionalEndings(endings []string) CorrectorOption {
	return func(c *Corrector) {
		c.conditionalEndings = make(map[string]struct{}, len(endings))
		for _, e := range endings {
			c.conditionalEndings[e] = struct{}{}
		}
	}
}

// WithVerifiedOverwrite makes the conditional and reflexive rules check that
// the last emitted entry really belongs to the preceding verb before they
// replace it. When the check fails the new entry is appended instead.
// Disabled by default: the rules overwrite the last entry unconditionally.
func WithVerifiedOverwrite(verify bool) CorrectorOption {
	return func(c *Corrector) {
		c.verifiedOverwrite = verify
	}
}

// NewCorrector creates a Corrector using tags for all lookups
func NewCorrector(tags *TagTable, opts ...CorrectorOption) *Corrector {
	c := &Corrector{tags: tags}
	WithLemmaOverrides(DefaultLemmaOverrides)(c)
	WithConditionalEndings(DefaultConditionalEndings)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tags returns the table used for lookups
func (c *Corrector) Tags() *TagTable {
	return c.tags
}

// Prepare flattens doc into tokens using the corrector's lemma overrides
func (c *Corrector) Prepare(doc *Document) []Token {
	return PrepareTokens(doc, c.overrides)
}

// Correct runs the correction pass over tokens. The result never has more
// entries than there are tokens.
func (c *Corrector) Correct(tokens []Token) []TaggedEntry {
	r := &reduction{
		tokens: tokens,
		output: make([]TaggedEntry, 0, len(tokens)),
	}
	rules := [...]func(*reduction) bool{
		c.elideCopula,
		c.collapseConditional,
		c.mergeReflexive,
		c.emitDefault,
	}
	for r.cursor = 0; r.cursor < len(r.tokens); r.cursor++ {
		for _, apply := range rules {
			if apply(r) {
				break
			}
		}
	}
	return r.output
}

// reduction is the state of one correction pass. Conditions look back into
// the input tokens, while merges rewrite the output built so far.
type reduction struct {
	tokens []Token
	cursor int
	output []TaggedEntry
}

func (r *reduction) current() Token {
	return r.tokens[r.cursor]
}

// precedingVerb returns the input token right before the cursor if it is a verb
func (r *reduction) precedingVerb() (Token, bool) {
	if r.cursor == 0 {
		return Token{}, false
	}
	prev := r.tokens[r.cursor-1]
	return prev, prev.IsVerb()
}

func (c *Corrector) entry(lemma string) TaggedEntry {
	return TaggedEntry{Lemma: lemma, Tag: c.tags.Lookup(lemma)}
}

// replaceLast overwrites the last output entry with e. With verified
// overwrite enabled the replacement only happens when the last entry's
// lemma is one of expectLemmas. An empty output gets e appended.
func (c *Corrector) replaceLast(r *reduction, e TaggedEntry, expectLemmas ...string) {
	n := len(r.output)
	if n == 0 || c.verifiedOverwrite && !slices.Contains(expectLemmas, r.output[n-1].Lemma) {
		Logger.Trace().
			Str("lemma", e.Lemma).
			Int("position", r.cursor).
			Msg("No matching entry to replace, appending")
		r.output = append(r.output, e)
		return
	}
	r.output[n-1] = e
}

func (c *Corrector) elideCopula(r *reduction) bool {
	return r.current().Lemma == CopulaLemma
}

func (c *Corrector) collapseConditional(r *reduction) bool {
	if _, ok := c.conditionalEndings[r.current().Surface]; !ok {
		return false
	}
	verb, ok := r.precedingVerb()
	if !ok {
		return false
	}
	c.replaceLast(r, c.entry(verb.Lemma), verb.Lemma)
	return true
}

func (c *Corrector) mergeReflexive(r *reduction) bool {
	if r.current().Surface != ReflexiveParticle {
		return false
	}
	verb, ok := r.precedingVerb()
	if !ok {
		return false
	}
	compound := ReflexiveLemma(verb.Lemma)
	c.replaceLast(r, c.entry(compound), verb.Lemma, compound)
	return true
}

func (c *Corrector) emitDefault(r *reduction) bool {
	r.output = append(r.output, c.entry(r.current().Lemma))
	return true
}

// ReflexiveLemma returns the compound lemma of a reflexive verb, e.g.
// "ubrać" -> "ubrać się"
func ReflexiveLemma(verbLemma string) string {
	return verbLemma + reflexiveSeparator + ReflexiveParticle
}
