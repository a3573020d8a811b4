package taskboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Taskboard HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "api/v1",
		Timeout:  10 * time.Second,
	}
}

// UserRef is an expanded user reference on a task.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Task represents the API task model.
type Task struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     string  `json:"due_date"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	AssignedTo  UserRef `json:"assigned_to"`
	CreatedBy   UserRef `json:"created_by"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Tasks       []Task `json:"tasks"`
	TotalPages  int    `json:"totalPages"`
	CurrentPage int    `json:"currentPage"`
	Total       int    `json:"total"`
}

// User represents a registered user.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// ListFilters narrows a task listing. Zero values impose no constraint.
type ListFilters struct {
	Status     string
	Priority   string
	AssignedTo string
	FromDate   string
	ToDate     string
	SortBy     string
	Page       int
	Limit      int
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// DevLogin mints a bearer token via the dev login endpoint and stores it on
// the client.
func (c *Client) DevLogin(ctx context.Context, email string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, c.apiPath("auth/dev/login"), map[string]any{"email": email}, &resp)
	if err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

// MyTasks lists tasks assigned to the authenticated user.
func (c *Client) MyTasks(ctx context.Context, f ListFilters) (TaskPage, error) {
	var resp TaskPage
	err := c.do(ctx, http.MethodGet, c.apiPath("tasks")+f.query(false), nil, &resp)
	return resp, err
}

// AllTasks lists every task, with the full filter and sort surface.
func (c *Client) AllTasks(ctx context.Context, f ListFilters) (TaskPage, error) {
	var resp TaskPage
	err := c.do(ctx, http.MethodGet, c.apiPath("tasks/all")+f.query(true), nil, &resp)
	return resp, err
}

// GetTask fetches one task by id.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, c.apiPath("tasks/"+url.PathEscape(id)), nil, &resp)
	return resp, err
}

// CreateTask creates a task. Optional fields may be empty.
func (c *Client) CreateTask(ctx context.Context, title, description, dueDate, priority, assignedTo string) (Task, error) {
	body := map[string]any{
		"title":       title,
		"description": description,
		"due_date":    dueDate,
	}
	if priority != "" {
		body["priority"] = priority
	}
	if assignedTo != "" {
		body["assigned_to"] = assignedTo
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, c.apiPath("tasks"), body, &resp)
	return resp, err
}

// UpdateTask applies a partial update; only the provided fields change.
func (c *Client) UpdateTask(ctx context.Context, id string, fields map[string]any) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, c.apiPath("tasks/"+url.PathEscape(id)), fields, &resp)
	return resp, err
}

// DeleteTask removes a task and returns the confirmation message.
func (c *Client) DeleteTask(ctx context.Context, id string) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodDelete, c.apiPath("tasks/"+url.PathEscape(id)), nil, &resp)
	return resp.Message, err
}

// Users lists registered users.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var resp []User
	err := c.do(ctx, http.MethodGet, c.apiPath("users"), nil, &resp)
	return resp, err
}

func (f ListFilters) query(all bool) string {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Priority != "" {
		q.Set("priority", f.Priority)
	}
	if all {
		if f.AssignedTo != "" {
			q.Set("assignedTo", f.AssignedTo)
		}
		if f.FromDate != "" {
			q.Set("fromDate", f.FromDate)
		}
		if f.ToDate != "" {
			q.Set("toDate", f.ToDate)
		}
		if f.SortBy != "" {
			q.Set("sortBy", f.SortBy)
		}
	}
	if f.Page > 0 {
		q.Set("page", fmt.Sprintf("%d", f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", f.Limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) apiPath(p string) string {
	base := strings.Trim(c.BasePath, "/")
	if base == "" {
		base = "api/v1"
	}
	return base + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
