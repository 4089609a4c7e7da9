package mlmdqsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal mlmdq HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  30 * time.Second,
	}
}

// Artifact represents the API artifact model (partial).
type Artifact struct {
	ID               int64          `json:"id"`
	TypeID           int64          `json:"type_id"`
	Type             string         `json:"type"`
	URI              string         `json:"uri,omitempty"`
	Name             string         `json:"name,omitempty"`
	State            string         `json:"state"`
	CreateTime       time.Time      `json:"create_time"`
	UpdateTime       time.Time      `json:"update_time"`
	Properties       map[string]any `json:"properties,omitempty"`
	CustomProperties map[string]any `json:"custom_properties,omitempty"`
}

// Execution represents the API execution model (partial).
type Execution struct {
	ID         int64     `json:"id"`
	TypeID     int64     `json:"type_id"`
	Type       string    `json:"type"`
	Name       string    `json:"name,omitempty"`
	State      string    `json:"state"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
}

// Event links an artifact and an execution.
type Event struct {
	ArtifactID  int64     `json:"artifact_id"`
	ExecutionID int64     `json:"execution_id"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
}

// Filter mirrors the query parameters of list and count endpoints.
type Filter struct {
	IDs        []int64
	Types      []string
	URI        string
	Name       string
	Context    int64
	Artifacts  []int64
	Executions []int64
	EventTypes []string
	OrderBy    string
	Asc        bool
	Limit      int
	Offset     int
}

func (f Filter) values() url.Values {
	v := url.Values{}
	ints := func(key string, ids []int64) {
		if len(ids) == 0 {
			return
		}
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.FormatInt(id, 10)
		}
		v.Set(key, strings.Join(parts, ","))
	}
	ints("id", f.IDs)
	ints("artifact", f.Artifacts)
	ints("execution", f.Executions)
	if len(f.Types) > 0 {
		v.Set("type", strings.Join(f.Types, ","))
	}
	if f.URI != "" {
		v.Set("uri", f.URI)
	}
	if f.Name != "" {
		v.Set("name", f.Name)
	}
	if f.Context != 0 {
		v.Set("context", strconv.FormatInt(f.Context, 10))
	}
	if len(f.EventTypes) > 0 {
		v.Set("event_type", strings.Join(f.EventTypes, ","))
	}
	if f.OrderBy != "" {
		v.Set("order_by", f.OrderBy)
	}
	if f.Asc {
		v.Set("asc", "true")
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		v.Set("offset", strconv.Itoa(f.Offset))
	}
	return v
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// NotFound reports whether the API answered 404.
func (e *APIError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", nil, nil)
}

// Count counts entities of kind (e.g. "artifacts", "execution-types").
func (c *Client) Count(ctx context.Context, kind string, f Filter) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, kind+"/count", f.values(), &resp)
	return resp.Count, err
}

// GetRaw returns the JSON array of entities of kind.
func (c *Client) GetRaw(ctx context.Context, kind string, f Filter) (json.RawMessage, error) {
	var resp json.RawMessage
	err := c.do(ctx, kind, f.values(), &resp)
	return resp, err
}

func (c *Client) Artifacts(ctx context.Context, f Filter) ([]Artifact, error) {
	var resp []Artifact
	err := c.do(ctx, "artifacts", f.values(), &resp)
	return resp, err
}

func (c *Client) Executions(ctx context.Context, f Filter) ([]Execution, error) {
	var resp []Execution
	err := c.do(ctx, "executions", f.values(), &resp)
	return resp, err
}

func (c *Client) Events(ctx context.Context, f Filter) ([]Event, error) {
	var resp []Event
	err := c.do(ctx, "events", f.values(), &resp)
	return resp, err
}

// GraphOptions selects graph format and, for lineage, depth and direction.
type GraphOptions struct {
	Format    string
	Depth     *int
	Direction string
}

func (o GraphOptions) values() url.Values {
	v := url.Values{}
	if o.Format != "" {
		v.Set("format", o.Format)
	}
	if o.Depth != nil {
		v.Set("depth", strconv.Itoa(*o.Depth))
	}
	if o.Direction != "" {
		v.Set("direction", o.Direction)
	}
	return v
}

// LineageGraph returns the rendered lineage graph of an artifact.
func (c *Client) LineageGraph(ctx context.Context, artifactID int64, opts GraphOptions) (string, error) {
	return c.text(ctx, fmt.Sprintf("graph/lineage/%d", artifactID), opts.values())
}

// IOGraph returns the rendered input/output graph of an execution.
func (c *Client) IOGraph(ctx context.Context, executionID int64, opts GraphOptions) (string, error) {
	return c.text(ctx, fmt.Sprintf("graph/io/%d", executionID), opts.values())
}

// ContextGraph returns the rendered graph of a context.
func (c *Client) ContextGraph(ctx context.Context, contextID int64, opts GraphOptions) (string, error) {
	return c.text(ctx, fmt.Sprintf("graph/context/%d", contextID), opts.values())
}

func (c *Client) do(ctx context.Context, endpoint string, query url.Values, out any) error {
	resp, err := c.get(ctx, endpoint, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) text(ctx context.Context, endpoint string, query url.Values) (string, error) {
	resp, err := c.get(ctx, endpoint, query)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}

// get performs the request; on success the caller closes the body.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) (*http.Response, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return nil, apiErr
	}
	return resp, nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
