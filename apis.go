package stanzapl

import (
	"context"
	"fmt"
	"time"
)

// Pipeline is the upstream NLP collaborator: it turns normalized text into
// sentences of lemmatized, POS-tagged words
type Pipeline interface {
	Process(ctx context.Context, text string) (*Document, error)
}

// Process runs the Stanza pipeline with the processors the service was started with
func (pm *StanzaManager) Process(ctx context.Context, text string) (*Document, error) {
	return pm.ProcessWithOptions(ctx, text, ProcessOptions{})
}

// ProcessWithOptions runs the Stanza pipeline with full options
func (pm *StanzaManager) ProcessWithOptions(ctx context.Context, text string, opts ProcessOptions) (*Document, error) {
	if !pm.IsReady() {
		return nil, ErrServiceNotReady
	}

	req := &ProcessRequest{
		Text:       text,
		Processors: opts.Processors,
	}

	resp, err := pm.client.Process(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("pipeline processing failed: %w", err)
	}

	var processingTime float64
	if v, ok := resp.Metadata["processing_time_ms"].(float64); ok {
		processingTime = v
	}

	return &Document{
		Sentences:      resp.Sentences,
		ProcessingTime: processingTime,
	}, nil
}

// GetVersion returns the Stanza version reported by the service
func (pm *StanzaManager) GetVersion(ctx context.Context) (string, error) {
	if !pm.IsReady() {
		return "", ErrServiceNotReady
	}

	health, err := pm.client.Health(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}

	return health.StanzaVersion, nil
}

// Tagger combines the upstream pipeline with the correction pass
type Tagger struct {
	pipeline  Pipeline
	corrector *Corrector
}

// NewTagger creates a Tagger. Both arguments are required.
func NewTagger(pipeline Pipeline, corrector *Corrector) *Tagger {
	return &Tagger{
		pipeline:  pipeline,
		corrector: corrector,
	}
}

// Corrector returns the correction pass used by the tagger
func (t *Tagger) Corrector() *Corrector {
	return t.corrector
}

// CorrectAndTag normalizes text, runs it through the pipeline and returns
// the corrected (lemma, tag) sequence
func (t *Tagger) CorrectAndTag(ctx context.Context, text string) ([]TaggedEntry, error) {
	result, err := t.CorrectAndTagWithDetails(ctx, text)
	if err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// CorrectAndTagWithDetails is CorrectAndTag which also returns the prepared
// tokens and timing
func (t *Tagger) CorrectAndTagWithDetails(ctx context.Context, text string) (*TagResult, error) {
	t0 := time.Now()
	text = Normalize(text)
	if text == "" {
		return &TagResult{Entries: []TaggedEntry{}, Tokens: []Token{}}, nil
	}

	doc, err := t.pipeline.Process(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("correct and tag failed: %w", err)
	}

	tokens := t.corrector.Prepare(doc)
	entries := t.corrector.Correct(tokens)

	Logger.Debug().
		Int("sentences", len(doc.Sentences)).
		Int("tokens", len(tokens)).
		Int("entries", len(entries)).
		Msg("Text tagged")

	return &TagResult{
		Entries:        entries,
		Tokens:         tokens,
		NumDropped:     len(tokens) - len(entries),
		ProcessingTime: float64(time.Since(t0).Microseconds()) / 1000,
	}, nil
}

// Package-level convenience functions

// Process runs the default instance's pipeline on text
func Process(text string) (*Document, error) {
	ctx := context.Background()
	mgr, err := getOrCreateDefaultManager(ctx)
	if err != nil {
		return nil, err
	}
	return mgr.Process(ctx, text)
}

// GetVersion returns the Stanza version of the default instance
func GetVersion() (string, error) {
	ctx := context.Background()
	mgr, err := getOrCreateDefaultManager(ctx)
	if err != nil {
		return "", err
	}
	return mgr.GetVersion(ctx)
}

// CorrectAndTag tags text with the default instance and the given table
func CorrectAndTag(text string, tags *TagTable, opts ...CorrectorOption) ([]TaggedEntry, error) {
	ctx := context.Background()
	mgr, err := getOrCreateDefaultManager(ctx)
	if err != nil {
		return nil, err
	}
	return NewTagger(mgr, NewCorrector(tags, opts...)).CorrectAndTag(ctx, text)
}
