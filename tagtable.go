package stanzapl

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	tagTableWordColumn = "word"
	tagTableTagColumn  = "tag"

	utf8BOM = "\uFEFF"
)

// ErrMissingColumn is returned when the header lacks the word or tag column
var ErrMissingColumn = errors.New("tag table column not found")

// TagTable maps lemmas to tags. It is immutable once built and can be
// shared between goroutines without locking.
type TagTable struct {
	tags map[string]string
}

// tagTableKey is the case-normalized form under which lemmas are stored
// and looked up
func tagTableKey(lemma string) string {
	return strings.ToLower(Normalize(lemma))
}

// NewTagTable builds a table from an in-memory mapping. The map is copied.
func NewTagTable(entries map[string]string) *TagTable {
	t := &TagTable{tags: make(map[string]string, len(entries))}
	for word, tag := range entries {
		t.set(word, tag)
	}
	return t
}

func (t *TagTable) set(word, tag string) {
	if tag == "" {
		tag = UnknownTag
	}
	t.tags[tagTableKey(word)] = tag
}

// LoadTagTable reads a comma separated file with a header row containing
// at least the "word" and "tag" columns.
func LoadTagTable(path string) (*TagTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tag table: %w", err)
	}
	defer f.Close()
	t, err := ReadTagTable(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load tag table %s: %w", path, err)
	}
	Logger.Debug().Str("path", path).Int("size", t.Len()).Msg("Tag table loaded")
	return t, nil
}

// ReadTagTable parses tag table CSV data. Rows with an empty word are
// skipped, an empty tag is stored as UnknownTag and a repeated word
// overwrites the earlier row.
func ReadTagTable(r io.Reader) (*TagTable, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input: %w", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	wordIdx, tagIdx := -1, -1
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		switch strings.TrimSpace(name) {
		case tagTableWordColumn:
			wordIdx = i
		case tagTableTagColumn:
			tagIdx = i
		}
	}
	if wordIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, tagTableWordColumn)
	}
	if tagIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, tagTableTagColumn)
	}

	t := &TagTable{tags: make(map[string]string)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if record[wordIdx] == "" {
			continue
		}
		t.set(record[wordIdx], record[tagIdx])
	}
	return t, nil
}

// Lookup returns the tag of lemma or UnknownTag. A miss is a normal outcome.
func (t *TagTable) Lookup(lemma string) string {
	if tag, ok := t.Get(lemma); ok {
		return tag
	}
	return UnknownTag
}

// Get returns the tag of lemma and whether it was found
func (t *TagTable) Get(lemma string) (string, bool) {
	if t == nil {
		return "", false
	}
	tag, ok := t.tags[tagTableKey(lemma)]
	return tag, ok
}

// Len returns the number of distinct lemmas
func (t *TagTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.tags)
}
