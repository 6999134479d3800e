package stanzapl

import "errors"

// UnknownTag is reported for every lemma the tag table does not know
const UnknownTag = "UNKNOWN"

const (
	// CopulaLemma is inserted by the pipeline in some constructions where the
	// input has no form of "to be"
	CopulaLemma = "być"

	// ReflexiveParticle combines with the preceding verb into one entry
	ReflexiveParticle = "się"

	reflexiveSeparator = " "
)

// Universal POS tags the correction pass cares about
const (
	UPOSVerb = "VERB"
	UPOSAux  = "AUX"
	UPOSPart = "PART"
)

// Stanza processors
const (
	ProcessorTokenize = "tokenize"
	ProcessorMWT      = "mwt"
	ProcessorPOS      = "pos"
	ProcessorLemma    = "lemma"
)

// DefaultProcessors is the processor chain requested from the Stanza service.
// The pos processor is required, the correction rules look at UPOS.
var DefaultProcessors = []string{ProcessorTokenize, ProcessorMWT, ProcessorPOS, ProcessorLemma}

var ErrServiceNotReady = errors.New("service not ready")

// Word is a single syntactic word as returned by the Stanza pipeline
type Word struct {
	Text  string `json:"text"`
	Lemma string `json:"lemma"`
	UPOS  string `json:"upos"`
}

// Sentence is an ordered list of words
type Sentence struct {
	Words []Word `json:"words"`
}

// Document is the pipeline output for one text
type Document struct {
	Sentences []Sentence `json:"sentences"`

	// Metadata
	ProcessingTime float64 `json:"processing_time_ms"`
}

// NumWords returns the number of words across all sentences
func (d *Document) NumWords() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, s := range d.Sentences {
		n += len(s.Words)
	}
	return n
}

// Token is a prepared (lowercased, override-corrected) word.
// Sentence boundaries are gone at this stage.
type Token struct {
	Surface string `json:"surface"`
	Lemma   string `json:"lemma"`
	POS     string `json:"pos"`
}

// IsVerb tells whether the pipeline marked the token as a full verb
func (t Token) IsVerb() bool {
	return t.POS == UPOSVerb
}

// TaggedEntry is one unit of the final output
type TaggedEntry struct {
	Lemma string `json:"lemma"`
	Tag   string `json:"tag"`
}

// IsUnknown tells whether the lemma was missing from the tag table
func (e TaggedEntry) IsUnknown() bool {
	return e.Tag == UnknownTag
}

// ProcessOptions controls a single call to the Stanza service
type ProcessOptions struct {
	Processors []string // Processors to run; the service default is used when empty
}

// TagResult contains the outcome of CorrectAndTag
type TagResult struct {
	Entries    []TaggedEntry // Corrected and tagged lemmas
	Tokens     []Token       // Prepared tokens the entries were derived from
	NumDropped int           // Tokens consumed by elision or merging

	// Metadata
	ProcessingTime float64 `json:"processing_time_ms"`
}
