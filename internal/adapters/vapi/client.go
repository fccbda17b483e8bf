package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.vapi.ai"

	defaultHTTPTimeout = 15 * time.Second
	maxErrorBodyBytes  = 1 << 16
)

// Client talks to the Vapi REST API and creates channels routed by a shared Router.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	router     *Router
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithBaseURL(u string) Option {
	return func(cl *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			cl.baseURL = u
		}
	}
}

func NewClient(apiKey string, router *Router, opts ...Option) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		router:     router,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type createCallRequest struct {
	WorkflowID        string            `json:"workflowId"`
	WorkflowOverrides workflowOverrides `json:"workflowOverrides"`
}

type workflowOverrides struct {
	VariableValues map[string]string `json:"variableValues,omitempty"`
}

type createCallResponse struct {
	ID      string `json:"id"`
	Monitor struct {
		ControlURL string `json:"controlUrl"`
	} `json:"monitor"`
}

type controlRequest struct {
	Type string `json:"type"`
}

func (c *Client) createCall(ctx context.Context, req createCallRequest) (createCallResponse, error) {
	var out createCallResponse
	if err := c.post(ctx, c.baseURL+"/call", req, &out); err != nil {
		return createCallResponse{}, fmt.Errorf("create call: %w", err)
	}
	if out.ID == "" {
		return createCallResponse{}, fmt.Errorf("create call: response has no call id")
	}
	return out, nil
}

func (c *Client) endCall(ctx context.Context, controlURL string) error {
	if err := c.post(ctx, controlURL, controlRequest{Type: "end-call"}, nil); err != nil {
		return fmt.Errorf("end call: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, url string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("vapi status=%d body=%q", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
