package stanzapl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// newFakeService mimics service/server.py
func newFakeService(t *testing.T, sentences []Sentence) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(HealthResponse{
			Status:        "ready",
			Version:       "1.0.0",
			StanzaVersion: "1.9.2",
			Language:      "pl",
			Processors:    DefaultProcessors,
		})
	})
	mux.HandleFunc("/process", func(w http.ResponseWriter, r *http.Request) {
		var req ProcessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": ServiceError{Code: "INVALID_REQUEST", Message: err.Error()},
			})
			return
		}
		if req.Text == "fail" {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{
				"error": ServiceError{Code: "PIPELINE_ERROR", Message: "model crashed"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data":     map[string]any{"sentences": sentences},
			"metadata": map[string]any{"processing_time_ms": 12.5},
			"error":    nil,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientHealth(t *testing.T) {
	srv := newFakeService(t, nil)
	c := NewClient(srv.URL, time.Second)
	health, err := c.Health(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "ready", health.Status)
	assert.Equal(t, "1.9.2", health.StanzaVersion)
	assert.Equal(t, DefaultProcessors, health.Processors)
}

func TestClientProcess(t *testing.T) {
	sentences := []Sentence{{Words: []Word{{Text: "Ubrał", Lemma: "ubrać", UPOS: UPOSVerb}}}}
	srv := newFakeService(t, sentences)
	c := NewClient(srv.URL, time.Second)
	resp, err := c.Process(context.Background(), &ProcessRequest{Text: "Ubrał"})
	assert.NoError(t, err)
	assert.Equal(t, sentences, resp.Sentences)
	assert.Equal(t, 12.5, resp.Metadata["processing_time_ms"])
}

func TestClientServiceError(t *testing.T) {
	srv := newFakeService(t, nil)
	c := NewClient(srv.URL, time.Second)
	_, err := c.Process(context.Background(), &ProcessRequest{Text: "fail"})
	var svcErr *ServiceError
	assert.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "PIPELINE_ERROR", svcErr.Code)
	assert.Equal(t, "PIPELINE_ERROR: model crashed", err.Error())
}

func TestClientUnreachable(t *testing.T) {
	srv := newFakeService(t, nil)
	url := srv.URL
	srv.Close()
	c := NewClient(url, time.Second)
	_, err := c.Health(context.Background())
	assert.Error(t, err)
}

func TestManagerProcessNotReady(t *testing.T) {
	pm := &StanzaManager{}
	_, err := pm.Process(context.Background(), "dom")
	assert.ErrorIs(t, err, ErrServiceNotReady)
	_, err = pm.GetVersion(context.Background())
	assert.ErrorIs(t, err, ErrServiceNotReady)
}

func TestManagerProcess(t *testing.T) {
	sentences := []Sentence{
		{Words: []Word{{Text: "Dom", Lemma: "dom", UPOS: "NOUN"}}},
		{Words: []Word{{Text: "Kot", Lemma: "kot", UPOS: "NOUN"}}},
	}
	srv := newFakeService(t, sentences)
	pm := &StanzaManager{client: NewClient(srv.URL, time.Second), serviceReady: true}
	doc, err := pm.Process(context.Background(), "Dom. Kot.")
	assert.NoError(t, err)
	assert.Equal(t, 2, doc.NumWords())
	assert.Equal(t, 12.5, doc.ProcessingTime)

	version, err := pm.GetVersion(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "1.9.2", version)
	assert.True(t, pm.isServiceRunning(context.Background()))
}
