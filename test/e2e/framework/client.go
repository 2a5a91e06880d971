package framework

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"
)

// File is the wire shape of a file node.
type File struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsPublic bool   `json:"isPublic"`
	ParentID any    `json:"parentId"`
}

// Response is a raw API answer.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Error returns the "error" field of a JSON error body.
func (r *Response) Error() string {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(r.Body, &body)
	return body.Error
}

// Client calls the REST API of a TestServer.
type Client struct {
	t       testing.TB
	baseURL string
	http    *http.Client

	// Token is sent as X-Token when set.
	Token string
}

// NewClient returns an anonymous client for ts.
func NewClient(t testing.TB, ts *TestServer) *Client {
	return &Client{
		t:       t,
		baseURL: ts.BaseURL(),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Do sends a request and reads the whole answer. body is JSON-encoded
// unless nil.
func (c *Client) Do(method, path string, body any, headers map[string]string) *Response {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("Failed to encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		c.t.Fatalf("Failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("X-Token", c.Token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("Failed to read response: %v", err)
	}

	return &Response{Status: resp.StatusCode, ContentType: resp.Header.Get("Content-Type"), Body: data}
}

// expect fails the test unless r has the given status, then decodes the body
// into out when out is not nil.
func (c *Client) expect(r *Response, status int, out any) {
	c.t.Helper()
	if r.Status != status {
		c.t.Fatalf("status = %d, want %d (body: %s)", r.Status, status, r.Body)
	}
	if out != nil {
		if err := json.Unmarshal(r.Body, out); err != nil {
			c.t.Fatalf("Failed to decode %s: %v", r.Body, err)
		}
	}
}

// Register creates a user and returns its id.
func (c *Client) Register(email, password string) string {
	c.t.Helper()
	var user struct {
		ID string `json:"id"`
	}
	c.expect(c.Do(http.MethodPost, "/users", map[string]string{"email": email, "password": password}, nil), http.StatusCreated, &user)
	return user.ID
}

// Connect logs in with Basic credentials and keeps the token.
func (c *Client) Connect(email, password string) {
	c.t.Helper()
	basic := base64.StdEncoding.EncodeToString([]byte(email + ":" + password))

	var body struct {
		Token string `json:"token"`
	}
	c.expect(c.Do(http.MethodGet, "/connect", nil, map[string]string{"Authorization": "Basic " + basic}), http.StatusOK, &body)
	c.Token = body.Token
}

// Disconnect revokes the current token.
func (c *Client) Disconnect() {
	c.t.Helper()
	c.expect(c.Do(http.MethodGet, "/disconnect", nil, nil), http.StatusNoContent, nil)
}

// CreateFolder creates a folder under parentID ("" for the root).
func (c *Client) CreateFolder(name, parentID string) File {
	c.t.Helper()
	return c.create(map[string]any{"name": name, "type": "folder", "parentId": parentOrRoot(parentID)})
}

// Upload stores data as a file or image under parentID.
func (c *Client) Upload(name, kind, parentID string, data []byte) File {
	c.t.Helper()
	return c.create(map[string]any{
		"name":     name,
		"type":     kind,
		"parentId": parentOrRoot(parentID),
		"data":     base64.StdEncoding.EncodeToString(data),
	})
}

func (c *Client) create(body map[string]any) File {
	c.t.Helper()
	var f File
	c.expect(c.Do(http.MethodPost, "/files", body, nil), http.StatusCreated, &f)
	return f
}

// List returns one page of the caller's files under parentID.
func (c *Client) List(parentID string, page int) []File {
	c.t.Helper()
	q := url.Values{}
	if parentID != "" {
		q.Set("parentId", parentID)
	}
	q.Set("page", fmt.Sprint(page))

	var files []File
	c.expect(c.Do(http.MethodGet, "/files?"+q.Encode(), nil, nil), http.StatusOK, &files)
	return files
}

// Publish sets the visibility of a file.
func (c *Client) Publish(id string, public bool) File {
	c.t.Helper()
	action := "unpublish"
	if public {
		action = "publish"
	}
	var f File
	c.expect(c.Do(http.MethodPut, "/files/"+id+"/"+action, nil, nil), http.StatusOK, &f)
	return f
}

// Data fetches the content of a file; size 0 selects the original.
func (c *Client) Data(id string, size int) *Response {
	c.t.Helper()
	path := "/files/" + id + "/data"
	if size > 0 {
		path += fmt.Sprintf("?size=%d", size)
	}
	return c.Do(http.MethodGet, path, nil, nil)
}

func parentOrRoot(parentID string) any {
	if parentID == "" {
		return 0
	}
	return parentID
}
