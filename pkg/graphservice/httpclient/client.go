// Package httpclient is a thin graphservice.Service implementation over the
// REST surface of a hosted associative-graph backend: plain net/http and
// encoding/json, no retry or connection-pooling logic beyond what
// http.Client already provides.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lonniev/thebrain-mcp/pkg/graphservice"
)

// Client is a graphservice.Service backed by HTTP calls to a remote graph
// service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New returns a Client. timeout <= 0 selects a 30s default, matching the
// timeout the reference client uses.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

var _ graphservice.Service = (*Client)(nil)

// wireThought is the JSON shape of a node ("thought") over the wire.
type wireThought struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Label           string `json:"label,omitempty"`
	Kind            int    `json:"kind"`
	TypeID          string `json:"typeId,omitempty"`
	ForegroundColor string `json:"foregroundColor,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
}

type wireLink struct {
	ID          string `json:"id"`
	ThoughtIDA  string `json:"thoughtIdA"`
	ThoughtIDB  string `json:"thoughtIdB"`
	Relation    int    `json:"relation"`
}

type wireSearchResult struct {
	SourceThought *wireThought `json:"sourceThought"`
}

type wireThoughtGraph struct {
	ActiveThought wireThought   `json:"activeThought"`
	Parents       []wireThought `json:"parents"`
	Children      []wireThought `json:"children"`
	Jumps         []wireThought `json:"jumps"`
	Siblings      []wireThought `json:"siblings"`
	Links         []wireLink    `json:"links"`
}

func kindToString(k int) string {
	switch k {
	case 1:
		return "thought"
	case 2:
		return "type"
	case 3:
		return "event"
	case 4:
		return "tag"
	case 5:
		return "system"
	default:
		return "thought"
	}
}

func toNodeRecord(w wireThought) graphservice.NodeRecord {
	return graphservice.NodeRecord{
		ID:              w.ID,
		Name:            w.Name,
		TypeID:          w.TypeID,
		Label:           w.Label,
		ForegroundColor: w.ForegroundColor,
		BackgroundColor: w.BackgroundColor,
		Kind:            kindToString(w.Kind),
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// jsonPatchOp is a single JSON Patch operation, sent as a bare array with
// content type application/json-patch+json.
type jsonPatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

func (c *Client) patch(ctx context.Context, path string, ops []jsonPatchOp) error {
	buf, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build patch request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json-patch+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("patch request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("patch %s: HTTP %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) GetByName(ctx context.Context, activeGraphID, name string) (*graphservice.NodeRecord, error) {
	q := url.Values{"nameExact": {name}}
	data, status, err := c.do(ctx, http.MethodGet, "/thoughts/"+activeGraphID, q, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status >= 300 {
		return nil, fmt.Errorf("get-by-name: HTTP %d", status)
	}

	// The API returns either a single object or a list depending on version.
	var single wireThought
	if err := json.Unmarshal(data, &single); err == nil && single.ID != "" {
		n := toNodeRecord(single)
		return &n, nil
	}
	var list []wireThought
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode get-by-name response: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	n := toNodeRecord(list[0])
	return &n, nil
}

func (c *Client) Search(ctx context.Context, activeGraphID, queryText string) ([]graphservice.NodeRecord, error) {
	q := url.Values{
		"queryText":              {queryText},
		"maxResults":             {"50"},
		"onlySearchThoughtNames": {"true"},
	}
	data, status, err := c.do(ctx, http.MethodGet, "/search/"+activeGraphID, q, nil)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("search: HTTP %d", status)
	}
	var results []wireSearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	out := make([]graphservice.NodeRecord, 0, len(results))
	for _, r := range results {
		if r.SourceThought != nil {
			out = append(out, toNodeRecord(*r.SourceThought))
		}
	}
	return out, nil
}

func (c *Client) ListTypes(ctx context.Context, activeGraphID string) ([]graphservice.TypeRecord, error) {
	data, status, err := c.do(ctx, http.MethodGet, "/thoughts/"+activeGraphID+"/types", nil, nil)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("list-types: HTTP %d", status)
	}
	var list []wireThought
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode types response: %w", err)
	}
	out := make([]graphservice.TypeRecord, len(list))
	for i, t := range list {
		out[i] = graphservice.TypeRecord{ID: t.ID, Name: t.Name}
	}
	return out, nil
}

func (c *Client) Neighborhood(ctx context.Context, activeGraphID, nodeID string, relations []int) ([]graphservice.Neighbor, error) {
	data, status, err := c.do(ctx, http.MethodGet, "/thoughts/"+activeGraphID+"/"+nodeID+"/graph", url.Values{"includeSiblings": {"true"}}, nil)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("neighborhood: HTTP %d", status)
	}
	var g wireThoughtGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode graph response: %w", err)
	}

	want := map[int]bool{}
	for _, r := range relations {
		want[r] = true
	}

	edgeIDFor := func(otherID string, relation int) string {
		for _, l := range g.Links {
			if l.Relation != relation {
				continue
			}
			if l.ThoughtIDA == nodeID && l.ThoughtIDB == otherID {
				return l.ID
			}
			if l.ThoughtIDB == nodeID && l.ThoughtIDA == otherID {
				return l.ID
			}
		}
		return ""
	}

	var out []graphservice.Neighbor
	add := func(relation int, list []wireThought) {
		if !want[relation] {
			return
		}
		for _, t := range list {
			out = append(out, graphservice.Neighbor{
				Relation: relation,
				Node:     toNodeRecord(t),
				EdgeID:   edgeIDFor(t.ID, relation),
			})
		}
	}
	add(1, g.Children)
	add(2, g.Parents)
	add(3, g.Jumps)
	add(4, g.Siblings)
	return out, nil
}

func (c *Client) CreateNode(ctx context.Context, activeGraphID string, input graphservice.NewNodeInput) (string, error) {
	body := map[string]any{
		"name": input.Name,
		"kind": 1,
	}
	if input.TypeID != "" {
		body["typeId"] = input.TypeID
	}
	if input.Label != "" {
		body["label"] = input.Label
	}
	if input.ForegroundColor != "" {
		body["foregroundColor"] = input.ForegroundColor
	}
	if input.BackgroundColor != "" {
		body["backgroundColor"] = input.BackgroundColor
	}

	data, status, err := c.do(ctx, http.MethodPost, "/thoughts/"+activeGraphID, nil, body)
	if err != nil {
		return "", err
	}
	if status >= 300 {
		return "", fmt.Errorf("create-node: HTTP %d", status)
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode create-node response: %w", err)
	}
	return resp.ID, nil
}

func (c *Client) CreateEdge(ctx context.Context, activeGraphID, sourceID string, relation int, targetID string) (string, error) {
	body := map[string]any{
		"thoughtIdA": sourceID,
		"thoughtIdB": targetID,
		"relation":   relation,
	}
	data, status, err := c.do(ctx, http.MethodPost, "/links/"+activeGraphID, nil, body)
	if err != nil {
		return "", err
	}
	if status >= 300 {
		return "", fmt.Errorf("create-edge: HTTP %d", status)
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode create-edge response: %w", err)
	}
	return resp.ID, nil
}

func (c *Client) UpdateNode(ctx context.Context, activeGraphID, nodeID, property string, value *string) error {
	var v any
	if value != nil {
		v = *value
	}
	return c.patch(ctx, "/thoughts/"+activeGraphID+"/"+nodeID, []jsonPatchOp{
		{Op: "replace", Path: "/" + property, Value: v},
	})
}

func (c *Client) UpdateType(ctx context.Context, activeGraphID, nodeID, typeID string) error {
	return c.patch(ctx, "/thoughts/"+activeGraphID+"/"+nodeID, []jsonPatchOp{
		{Op: "replace", Path: "/typeId", Value: typeID},
	})
}

func (c *Client) DeleteNode(ctx context.Context, activeGraphID, nodeID string) error {
	_, status, err := c.do(ctx, http.MethodDelete, "/thoughts/"+activeGraphID+"/"+nodeID, nil, nil)
	if err != nil {
		return err
	}
	if status >= 300 && status != http.StatusNoContent {
		return fmt.Errorf("delete-node: HTTP %d", status)
	}
	return nil
}

func (c *Client) DeleteEdge(ctx context.Context, activeGraphID, edgeID string) error {
	_, status, err := c.do(ctx, http.MethodDelete, "/links/"+activeGraphID+"/"+edgeID, nil, nil)
	if err != nil {
		return err
	}
	if status >= 300 && status != http.StatusNoContent {
		return fmt.Errorf("delete-edge: HTTP %d", status)
	}
	return nil
}
