package stanzapl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client handles HTTP communication with the Python service
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new HTTP client for the Stanza service
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// ServiceError represents an error returned by the Python service
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ServiceResponse is the common response structure from all endpoints
type ServiceResponse struct {
	Data     json.RawMessage        `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
	Error    *ServiceError          `json:"error"`
}

// doRequest performs an HTTP request and handles the response
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*ServiceResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var serviceResp ServiceResponse
	if err := json.Unmarshal(respBody, &serviceResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response (status %d): %w", resp.StatusCode, err)
	}

	if serviceResp.Error != nil {
		return nil, serviceResp.Error
	}

	return &serviceResp, nil
}

// Health checks the service health status
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	// Health endpoint returns plain JSON, not wrapped
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthCheckPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}

	return &health, nil
}

// Process runs the Stanza pipeline on text
func (c *Client) Process(ctx context.Context, req *ProcessRequest) (*ProcessResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/process", req)
	if err != nil {
		return nil, err
	}

	var data struct {
		Sentences []Sentence `json:"sentences"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse process response: %w", err)
	}

	return &ProcessResponse{
		Sentences: data.Sentences,
		Metadata:  resp.Metadata,
	}, nil
}

// Request types

// ProcessRequest represents a pipeline request
type ProcessRequest struct {
	Text       string   `json:"text"`
	Processors []string `json:"processors,omitempty"`
}

// Response types

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string   `json:"status"`
	Version       string   `json:"version"`
	StanzaVersion string   `json:"stanza_version"`
	Language      string   `json:"language"`
	Processors    []string `json:"processors"`
}

// ProcessResponse represents a pipeline response
type ProcessResponse struct {
	Sentences []Sentence             `json:"sentences"`
	Metadata  map[string]interface{} `json:"metadata"`
}
