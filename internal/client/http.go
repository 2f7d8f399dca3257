package client

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

	"github.com/alfredjeanlab/trackd/internal/model"
)

// ActorHeader names the acting user on every request. It matches the header
// the server reads.
const ActorHeader = "X-Trackd-User"

// HTTPClient implements Client using the trackd HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	actor      string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080") acting as the given user id. When token is
// non-empty, an Authorization header is set on every request.
func NewHTTPClient(baseURL, token, actor string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		actor:      actor,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func ticketsPath(scope model.Scope) string {
	return "/v1/projects/" + url.PathEscape(scope.ProjectID) + "/teams/" + url.PathEscape(scope.TeamID) + "/tickets"
}

func ticketPath(scope model.Scope, id string) string {
	return ticketsPath(scope) + "/" + url.PathEscape(id)
}

func renderQuery(render bool) string {
	if render {
		return "?render=html"
	}
	return ""
}

// --- Tickets ---

func (c *HTTPClient) CreateTicket(ctx context.Context, scope model.Scope, req *CreateTicketRequest) (*model.Ticket, error) {
	var t model.Ticket
	if err := c.doJSON(ctx, http.MethodPost, ticketsPath(scope), req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *HTTPClient) GetTicket(ctx context.Context, scope model.Scope, id string, render bool) (*model.Ticket, error) {
	var t model.Ticket
	if err := c.doJSON(ctx, http.MethodGet, ticketPath(scope, id)+renderQuery(render), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *HTTPClient) ListTickets(ctx context.Context, scope model.Scope, req *ListTicketsRequest) (*ListTicketsResponse, error) {
	q := url.Values{}
	if len(req.State) > 0 {
		q.Set("state", strings.Join(req.State, ","))
	}
	if len(req.Type) > 0 {
		q.Set("type", strings.Join(req.Type, ","))
	}
	for key, v := range map[string]string{
		"assignee": req.Assignee,
		"sprint":   req.Sprint,
		"release":  req.Release,
		"tag":      req.Tag,
		"search":   req.Search,
		"sort":     req.Sort,
	} {
		if v != "" {
			q.Set(key, v)
		}
	}
	if req.Deleted {
		q.Set("deleted", "true")
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}

	path := ticketsPath(scope)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListTicketsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateTicket(ctx context.Context, scope model.Scope, id string, req *UpdateTicketRequest) (*model.Ticket, error) {
	var t model.Ticket
	if err := c.doJSON(ctx, http.MethodPatch, ticketPath(scope, id), req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *HTTPClient) DeleteTicket(ctx context.Context, scope model.Scope, id string) error {
	return c.doJSON(ctx, http.MethodDelete, ticketPath(scope, id), nil, nil)
}

// --- Links ---

func (c *HTTPClient) SetLinks(ctx context.Context, scope model.Scope, id string, links model.DesiredLinks) (*model.Ticket, error) {
	if links == nil {
		links = model.DesiredLinks{}
	}
	body := map[string]any{"links": links}
	var t model.Ticket
	if err := c.doJSON(ctx, http.MethodPut, ticketPath(scope, id)+"/links", body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// --- Comments ---

func (c *HTTPClient) AddComment(ctx context.Context, scope model.Scope, ticketID, content string) (*model.Comment, error) {
	body := map[string]string{"content": content}
	var comment model.Comment
	if err := c.doJSON(ctx, http.MethodPost, ticketPath(scope, ticketID)+"/comments", body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *HTTPClient) ListComments(ctx context.Context, scope model.Scope, ticketID string, render bool) ([]*model.Comment, error) {
	var resp struct {
		Comments []*model.Comment `json:"comments"`
	}
	if err := c.doJSON(ctx, http.MethodGet, ticketPath(scope, ticketID)+"/comments"+renderQuery(render), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Comments, nil
}

// --- Events ---

func (c *HTTPClient) GetEvents(ctx context.Context, ticketID string) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/tickets/"+url.PathEscape(ticketID)+"/events", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// --- Notifications ---

func (c *HTTPClient) ListNotifications(ctx context.Context, unreadOnly bool) ([]*model.Notification, error) {
	path := "/v1/notifications"
	if unreadOnly {
		path += "?unread=true"
	}
	var resp struct {
		Notifications []*model.Notification `json:"notifications"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

func (c *HTTPClient) MarkNotificationRead(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.actor != "" {
		req.Header.Set(ActorHeader, c.actor)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
