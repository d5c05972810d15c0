package pathstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dgallion1/tocindex/internal/doctree"
	"github.com/dgallion1/tocindex/internal/report"
)

// Client communicates with the pathstore HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	prefix     string
	httpClient *http.Client
}

// DefaultPrefix is the key root documents are published under.
const DefaultPrefix = "tocindex/documents"

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		prefix:  DefaultPrefix,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NodeRequest is the body for PUT /kv/{key}.
type NodeRequest struct {
	Value      any     `json:"value"`
	MergeMode  string  `json:"merge_mode,omitempty"`
	MemoryType string  `json:"memory_type,omitempty"`
	Salience   float64 `json:"salience,omitempty"`
	Source     string  `json:"source,omitempty"`
}

// LinkRequest is the body for PUT /links.
type LinkRequest struct {
	From          string  `json:"from_key"`
	To            string  `json:"to_key"`
	Weight        float64 `json:"weight"`
	Summary       string  `json:"summary,omitempty"`
	Bidirectional bool    `json:"bidirectional,omitempty"`
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	msg := e.Message
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, msg)
}

// DocumentKey is the key holding a document's metadata.
func (c *Client) DocumentKey(docID string) string {
	return c.prefix + "/" + docID
}

// SectionKey is the key of one section. Dots in identifiers are path
// separators on the server side, so they are rewritten.
func (c *Client) SectionKey(docID, sectionID string) string {
	return c.DocumentKey(docID) + "/sections/" + strings.ReplaceAll(sectionID, ".", "-")
}

// PublishDocument writes the summary and every listing entry, then links
// each entry to its parent when the parent exists.
func (c *Client) PublishDocument(ctx context.Context, s *report.Summary, entries []*doctree.SectionEntry) error {
	source := "tocindex:" + s.DocumentID
	err := c.PutNode(ctx, c.DocumentKey(s.DocumentID)+"/meta", NodeRequest{
		Value:      s,
		MemoryType: "metacognitive",
		Salience:   0.5,
		Source:     source,
	})
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(entries))
	for _, e := range entries {
		known[e.Identifier] = true
		err := c.PutNode(ctx, c.SectionKey(s.DocumentID, e.Identifier), NodeRequest{
			Value:      e,
			MemoryType: "semantic",
			Salience:   0.3,
			Source:     source,
		})
		if err != nil {
			return err
		}
	}
	for _, e := range entries {
		if e.ParentID == "" || !known[e.ParentID] {
			continue
		}
		err := c.PutLink(ctx, LinkRequest{
			From:    c.SectionKey(s.DocumentID, e.Identifier),
			To:      c.SectionKey(s.DocumentID, e.ParentID),
			Weight:  1,
			Summary: "parent",
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Unpublish removes a document and everything below it.
func (c *Client) Unpublish(ctx context.Context, docID string) error {
	return c.DeleteNode(ctx, c.DocumentKey(docID), true)
}

// PutNode stores or updates a node at the given path.
func (c *Client) PutNode(ctx context.Context, key string, req NodeRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/kv/"+key, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return c.do(httpReq, "put node "+key, http.StatusOK, http.StatusCreated)
}

// DeleteNode deletes a node and optionally its children.
func (c *Client) DeleteNode(ctx context.Context, key string, recursive bool) error {
	u := c.baseURL + "/kv/" + key
	if recursive {
		u += "?children=true"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(httpReq, "delete node "+key, http.StatusOK, http.StatusNoContent, http.StatusNotFound)
}

// PutLink creates or updates an edge between two nodes.
func (c *Client) PutLink(ctx context.Context, req LinkRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal link: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/links", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return c.do(httpReq, "put link", http.StatusOK, http.StatusCreated)
}

// do sends the request and maps the status. Rate limiting and server
// errors come back as *RetryableError.
func (c *Client) do(req *http.Request, what string, ok ...int) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	defer resp.Body.Close()
	for _, code := range ok {
		if resp.StatusCode == code {
			return nil
		}
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("%s: %w", what, &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)})
	}
	return fmt.Errorf("%s: status %d: %s", what, resp.StatusCode, string(respBody))
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
