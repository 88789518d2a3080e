package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethanbaker/api/pkg/api_types"
)

// Client wraps calls to the consultation backend
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

// Health checks that the backend is up
func (c *Client) Health(ctx context.Context) error {
	var out ApiResponse[any]
	if err := c.doJSON(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return err
	}
	return checkStatus("health check", out)
}

// StartConsultation opens a consultation with the patient's first message
func (c *Client) StartConsultation(ctx context.Context, complaint string) (*Consultation, error) {
	var out ApiResponse[Consultation]
	if err := c.doJSON(ctx, http.MethodPost, "/api/consultations", &StartConsultationRequest{Complaint: complaint}, &out); err != nil {
		return nil, err
	}
	if err := checkStatus("start consultation", out); err != nil {
		return nil, err
	}

	if out.Data.ID == "" {
		return nil, fmt.Errorf("no id returned")
	}

	return &out.Data, nil
}

// GetConsultation fetches a consultation by ID
func (c *Client) GetConsultation(ctx context.Context, id string) (*Consultation, error) {
	path := fmt.Sprintf("/api/consultations/%s", url.PathEscape(id))

	var out ApiResponse[Consultation]
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if err := checkStatus("get consultation", out); err != nil {
		return nil, err
	}

	return &out.Data, nil
}

// Answer sends the patient's reply to the outstanding question
func (c *Client) Answer(ctx context.Context, id, content string) (*Consultation, error) {
	path := fmt.Sprintf("/api/consultations/%s/answers", url.PathEscape(id))

	var out ApiResponse[Consultation]
	if err := c.doJSON(ctx, http.MethodPost, path, &AnswerRequest{Content: content}, &out); err != nil {
		return nil, err
	}
	if err := checkStatus("answer", out); err != nil {
		return nil, err
	}

	return &out.Data, nil
}

// CancelConsultation ends a consultation without a record
func (c *Client) CancelConsultation(ctx context.Context, id string) (*Consultation, error) {
	path := fmt.Sprintf("/api/consultations/%s", url.PathEscape(id))

	var out ApiResponse[Consultation]
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return nil, err
	}
	if err := checkStatus("cancel consultation", out); err != nil {
		return nil, err
	}

	return &out.Data, nil
}

// History lists up to limit past consultations, oldest first
func (c *Client) History(ctx context.Context, limit int) (*HistoryResponse, error) {
	path := "/api/consultations/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var out ApiResponse[HistoryResponse]
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if err := checkStatus("history", out); err != nil {
		return nil, err
	}

	return &out.Data, nil
}

// checkStatus turns a fail or error envelope into an error
func checkStatus[T any](op string, out ApiResponse[T]) error {
	switch out.Status {
	case api_types.StatusFail:
		return fmt.Errorf("%s failed: %s", op, out.Message)
	case api_types.StatusError:
		return fmt.Errorf("error during %s (%s): %v", op, out.Message, out.Error)
	}
	return nil
}

// doJSON is a helper to perform JSON requests to the backend
func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any) error {
	// Create request body if input is provided
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(b)
	}

	// Create the request
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	// Perform the request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(b)}
	}

	// If no output expected, return early
	if out == nil {
		return nil
	}

	// Decode the response body into the output struct
	dec := json.NewDecoder(resp.Body)
	return dec.Decode(out)
}

// StatusError is returned when the backend answers with a non-2xx status
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend '%s %s' failed: %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}
