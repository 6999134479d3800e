package stanzapl

import "golang.org/x/text/unicode/norm"

// Normalize returns the NFKC form of text. Combining marks are composed
// (e.g. "z" + U+0307 becomes "ż") and compatibility characters are folded,
// so that the pipeline and the tag table see one spelling of each word.
// Invalid UTF-8 is passed through.
func Normalize(text string) string {
	return norm.NFKC.String(text)
}

// IsNormalized reports whether Normalize would leave text unchanged
func IsNormalized(text string) bool {
	return norm.NFKC.IsNormalString(text)
}
