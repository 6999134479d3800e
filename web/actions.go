// Package web provides the HTML form and the JSON API on top of
// the tagging pipeline.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/czcorpus/cnc-gokit/uniresp"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	stanzapl "github.com/tassa-yoniso-manasi-karoto/go-stanzapl"
)

const (
	IndexTemplate = "index.html"
	textFormField = "text"
)

//go:embed templates/*.html
var templateFiles embed.FS

var ErrTextTooLong = errors.New("text too long")

// LoadTemplates parses the embedded HTML templates
func LoadTemplates() (*template.Template, error) {
	return template.ParseFS(templateFiles, "templates/*.html")
}

// TextTagger is implemented by stanzapl.Tagger
type TextTagger interface {
	CorrectAndTagWithDetails(ctx context.Context, text string) (*stanzapl.TagResult, error)
}

// ServiceInfo is implemented by stanzapl.StanzaManager
type ServiceInfo interface {
	IsReady() bool
	GetVersion(ctx context.Context) (string, error)
}

// Actions holds the dependencies of the HTTP handlers
type Actions struct {
	tagger        TextTagger
	service       ServiceInfo
	tags          *stanzapl.TagTable
	maxTextLength int
}

// NewActions creates the handlers. A zero maxTextLength disables the limit.
func NewActions(tagger TextTagger, service ServiceInfo, tags *stanzapl.TagTable, maxTextLength int) *Actions {
	return &Actions{
		tagger:        tagger,
		service:       service,
		tags:          tags,
		maxTextLength: maxTextLength,
	}
}

type tagRequest struct {
	Text string `json:"text"`
}

type tagResponse struct {
	RequestID  string                 `json:"requestId"`
	Text       string                 `json:"text"`
	Entries    []stanzapl.TaggedEntry `json:"entries"`
	NumTokens  int                    `json:"numTokens"`
	NumUnknown int                    `json:"numUnknown"`
}

type lookupResponse struct {
	Lemma string `json:"lemma"`
	Tag   string `json:"tag"`
	Found bool   `json:"found"`
}

type healthResponse struct {
	Ready         bool   `json:"ready"`
	StanzaVersion string `json:"stanzaVersion,omitempty"`
	TagTableSize  int    `json:"tagTableSize"`
}

func (a *Actions) checkText(text string) error {
	if a.maxTextLength > 0 && len([]rune(text)) > a.maxTextLength {
		return fmt.Errorf("%w: limit is %d characters", ErrTextTooLong, a.maxTextLength)
	}
	return nil
}

func (a *Actions) tag(ctx *gin.Context, text string) (*stanzapl.TagResult, string, error) {
	reqID := uuid.New().String()
	result, err := a.tagger.CorrectAndTagWithDetails(ctx.Request.Context(), text)
	if err != nil {
		log.Error().Err(err).Str("requestId", reqID).Msg("failed to tag text")
		return nil, reqID, err
	}
	log.Debug().
		Str("requestId", reqID).
		Int("numTokens", len(result.Tokens)).
		Int("numEntries", len(result.Entries)).
		Float64("procTimeMs", result.ProcessingTime).
		Msg("text tagged")
	return result, reqID, nil
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrTextTooLong):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, stanzapl.ErrServiceNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// FormPage renders the empty input form
func (a *Actions) FormPage(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, IndexTemplate, gin.H{})
}

// FormSubmit tags the submitted text and renders it as a table
func (a *Actions) FormSubmit(ctx *gin.Context) {
	text := ctx.PostForm(textFormField)
	if err := a.checkText(text); err != nil {
		ctx.HTML(errorStatus(err), IndexTemplate, gin.H{"Text": text, "Error": err.Error()})
		return
	}
	result, _, err := a.tag(ctx, text)
	if err != nil {
		ctx.HTML(errorStatus(err), IndexTemplate, gin.H{"Text": text, "Error": err.Error()})
		return
	}
	ctx.HTML(http.StatusOK, IndexTemplate, gin.H{"Text": text, "Result": result.Entries})
}

// Tag is the JSON variant of FormSubmit
func (a *Actions) Tag(ctx *gin.Context) {
	var req tagRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		uniresp.RespondWithErrorJSON(ctx, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}
	if err := a.checkText(req.Text); err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, errorStatus(err))
		return
	}
	result, reqID, err := a.tag(ctx, req.Text)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, errorStatus(err))
		return
	}
	ans := tagResponse{
		RequestID: reqID,
		Text:      req.Text,
		Entries:   result.Entries,
		NumTokens: len(result.Tokens),
	}
	for _, e := range result.Entries {
		if e.IsUnknown() {
			ans.NumUnknown++
		}
	}
	uniresp.WriteJSONResponse(ctx.Writer, ans)
}

// Lookup returns the tag of a single lemma
func (a *Actions) Lookup(ctx *gin.Context) {
	lemma := strings.TrimSpace(ctx.Param("lemma"))
	if lemma == "" {
		uniresp.RespondWithErrorJSON(ctx, errors.New("missing lemma"), http.StatusBadRequest)
		return
	}
	tag, found := a.tags.Get(lemma)
	if !found {
		tag = stanzapl.UnknownTag
	}
	uniresp.WriteJSONResponse(ctx.Writer, lookupResponse{Lemma: lemma, Tag: tag, Found: found})
}

// Health reports whether the upstream pipeline can take requests
func (a *Actions) Health(ctx *gin.Context) {
	ans := healthResponse{
		Ready:        a.service.IsReady(),
		TagTableSize: a.tags.Len(),
	}
	if !ans.Ready {
		ctx.JSON(http.StatusServiceUnavailable, ans)
		return
	}
	version, err := a.service.GetVersion(ctx.Request.Context())
	if err != nil {
		log.Warn().Err(err).Msg("failed to get Stanza version")
	}
	ans.StanzaVersion = version
	uniresp.WriteJSONResponse(ctx.Writer, ans)
}

// RegisterRoutes attaches all actions to engine. The engine must have the
// templates from LoadTemplates set.
func (a *Actions) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/", a.FormPage)
	engine.POST("/", a.FormSubmit)

	api := engine.Group("/api")
	api.Use(uniresp.AlwaysJSONContentType())
	api.POST("/tag", a.Tag)
	api.GET("/tags/:lemma", a.Lookup)
	api.GET("/health", a.Health)
}
