package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MariusDragic/RailwayRAG/internal/cli"
	"github.com/MariusDragic/RailwayRAG/internal/models"
)

// apiClient talks to a running railrag server.
type apiClient struct {
	http *resty.Client
}

type apiError struct {
	Message string `json:"error"`
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &apiClient{http: client}
}

// Search posts query to the server and decodes the response.
func (c *apiClient) Search(ctx context.Context, query models.SearchQuery) (*models.SearchResponse, error) {
	var out models.SearchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(query).
		SetResult(&out).
		SetError(&apiError{}).
		Post("/api/v1/search")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, responseError(resp)
	}
	return &out, nil
}

// Status fetches the server's view of the loaded generation.
func (c *apiClient) Status(ctx context.Context) (*cli.Status, error) {
	var out cli.Status
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&apiError{}).
		Get("/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, responseError(resp)
	}
	return &out, nil
}

// responseError rebuilds the error class from the status code so exit codes match local runs.
func responseError(resp *resty.Response) error {
	msg := resp.String()
	if apiErr, ok := resp.Error().(*apiError); ok && apiErr.Message != "" {
		msg = apiErr.Message
	}
	switch resp.StatusCode() {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: server returned %d: %s", models.ErrInvalidQuery, resp.StatusCode(), msg)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: server returned %d: %s", models.ErrEmbeddingUnavailable, resp.StatusCode(), msg)
	default:
		return fmt.Errorf("server returned %d: %s", resp.StatusCode(), msg)
	}
}
