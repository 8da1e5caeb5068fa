// Package client is an HTTP client for the field visit API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sharath018/field-visit-backend/internal/visit"
)

const (
	ReadTimeout     = 10 * time.Second
	MutationTimeout = 30 * time.Second
)

// ErrUnauthenticated is returned on HTTP 401: the token is missing, invalid
// or expired.
var ErrUnauthenticated = errors.New("not logged in or session expired")

// Client talks to the visit API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates an API client. Timeouts are applied per call.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// ListOptions filters ListVisits.
type ListOptions struct {
	PostedTo string
	Status   string
	Page     int
	PageSize int
}

// CreateRequest is the body of CreateVisit. Deadline is YYYY-MM-DD or RFC 3339.
type CreateRequest struct {
	Place        string `json:"place"`
	Location     string `json:"location"`
	PostedTo     string `json:"postedTo"`
	Deadline     string `json:"deadline"`
	Instructions string `json:"instructions,omitempty"`
}

// UpdateRequest is the body of UpdateVisit. Empty fields are left unchanged.
type UpdateRequest struct {
	Place        string  `json:"place,omitempty"`
	Location     string  `json:"location,omitempty"`
	PostedTo     string  `json:"postedTo,omitempty"`
	Deadline     string  `json:"deadline,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
}

// SubmitRequest is an officer's completion report with photo references.
type SubmitRequest struct {
	Report      string   `json:"report"`
	Photos      []string `json:"photos,omitempty"`
	SubmittedBy string   `json:"submittedBy,omitempty"`
	OfficerName string   `json:"officerName,omitempty"`
	EmployeeID  string   `json:"employeeId,omitempty"`
	// Location is where the officer reported from. Empty keeps the visit's location.
	Location    string   `json:"location,omitempty"`
}

// OverdueList is the response of ListOverdue.
type OverdueList struct {
	Visits []visit.View `json:"visits"`
	Total  int          `json:"total"`
}

func (c *Client) ListVisits(ctx context.Context, opts ListOptions) (*visit.Page, error) {
	q := url.Values{}
	if opts.PostedTo != "" {
		q.Set("posted_to", opts.PostedTo)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	var page visit.Page
	if err := c.get(ctx, "listVisits", withQuery("/api/v1/visits", q), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) ListOverdue(ctx context.Context) (*OverdueList, error) {
	var out OverdueList
	if err := c.get(ctx, "listOverdue", "/api/v1/visits/overdue", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetVisit(ctx context.Context, id string) (*visit.View, error) {
	var v visit.View
	if err := c.get(ctx, "getVisit", visitPath(id, ""), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) CreateVisit(ctx context.Context, req CreateRequest) (*visit.View, error) {
	var v visit.View
	if err := c.send(ctx, "createVisit", http.MethodPost, "/api/v1/visits", req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) UpdateVisit(ctx context.Context, id string, req UpdateRequest) (*visit.View, error) {
	var v visit.View
	if err := c.send(ctx, "updateVisit", http.MethodPut, visitPath(id, ""), req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SubmitVisit validates the report locally before any request is made.
func (c *Client) SubmitVisit(ctx context.Context, id string, req SubmitRequest) (*visit.View, error) {
	if err := visit.ValidateSubmission(visit.SubmitInput{Report: req.Report, Photos: req.Photos}); err != nil {
		return nil, err
	}
	var v visit.View
	if err := c.send(ctx, "submitVisit", http.MethodPost, visitPath(id, "submit"), req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) SetVisitStatus(ctx context.Context, id string, status visit.Status) (*visit.View, error) {
	body := map[string]string{"status": string(status)}
	var v visit.View
	if err := c.send(ctx, "setVisitStatus", http.MethodPatch, visitPath(id, "status"), body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// RequestRepost marks an overdue visit as awaiting repost.
func (c *Client) RequestRepost(ctx context.Context, id string) (*visit.View, error) {
	return c.SetVisitStatus(ctx, id, visit.StatusOverdue)
}

// RepostVisit reopens an overdue visit. An empty deadline means now + 7 days.
// Repeating the same request within visit.RepostReplayWindow of a successful
// repost returns the reposted visit unchanged, so a retry after a lost
// response is safe.
func (c *Client) RepostVisit(ctx context.Context, id, deadline string) (*visit.View, error) {
	body := map[string]string{}
	if deadline != "" {
		body["deadline"] = deadline
	}
	var v visit.View
	if err := c.send(ctx, "repostVisit", http.MethodPatch, visitPath(id, "repost"), body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) ApproveVisit(ctx context.Context, id string) (*visit.View, error) {
	var v visit.View
	if err := c.send(ctx, "approveVisit", http.MethodPost, visitPath(id, "approve"), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) RejectVisit(ctx context.Context, id, reason string) (*visit.View, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &visit.ValidationError{Field: "reason", Message: "is required"}
	}
	var v visit.View
	body := map[string]string{"reason": reason}
	if err := c.send(ctx, "rejectVisit", http.MethodPost, visitPath(id, "reject"), body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// VerifyEmployee runs the identity gate for visit id. A failed check is an
// *visit.AuthorizationError with Guard "identity" and the reason code.
func (c *Client) VerifyEmployee(ctx context.Context, id, employeeID string) error {
	q := url.Values{"employee_id": {employeeID}}
	return c.get(ctx, "verifyEmployee", withQuery(visitPath(id, "verify-employee"), q), nil)
}

func (c *Client) GetVisitCounts(ctx context.Context, designation string) (*visit.Counts, error) {
	q := url.Values{}
	if designation != "" {
		q.Set("designation", designation)
	}
	var counts visit.Counts
	if err := c.get(ctx, "getVisitCounts", withQuery("/api/v1/visits/counts", q), &counts); err != nil {
		return nil, err
	}
	return &counts, nil
}

// ExportVisit downloads the visit PDF.
func (c *Client) ExportVisit(ctx context.Context, id string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, ReadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+visitPath(id, "export"), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.do(ctx, "exportVisit", req)
}

func visitPath(id, action string) string {
	p := "/api/v1/visits/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func (c *Client) get(ctx context.Context, op, path string, result interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, ReadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.decode(ctx, op, req, result)
}

func (c *Client) send(ctx context.Context, op, method, path string, body, result interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, MutationTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.decode(ctx, op, req, result)
}

func (c *Client) decode(ctx context.Context, op string, req *http.Request, result interface{}) error {
	body, err := c.do(ctx, op, req)
	if err != nil {
		return err
	}
	if result == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

// do executes req and maps failures onto the visit error taxonomy.
func (c *Client) do(ctx context.Context, op string, req *http.Request) ([]byte, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &visit.TransientError{Op: op, Err: ctxErr}
		}
		return nil, &visit.TransientError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &visit.TransientError{Op: op, Err: err}
	}
	// The caller gave up while the body was in flight.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &visit.TransientError{Op: op, Err: ctxErr}
	}

	if resp.StatusCode >= 400 {
		return nil, statusError(op, req.URL.Path, resp.StatusCode, body)
	}
	return body, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Field   string `json:"field"`
	Guard   string `json:"guard"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func statusError(op, path string, code int, raw []byte) error {
	var body errorBody
	_ = json.Unmarshal(raw, &body)
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(code)
	}

	switch {
	case code == http.StatusBadRequest:
		if body.Field != "" {
			msg = strings.TrimPrefix(msg, body.Field+": ")
		}
		return &visit.ValidationError{Field: body.Field, Message: msg}
	case code == http.StatusUnauthorized:
		return ErrUnauthenticated
	case code == http.StatusForbidden:
		return &visit.AuthorizationError{Guard: body.Guard, Reason: body.Reason, Message: body.Message}
	case code == http.StatusNotFound:
		return &visit.NotFoundError{Kind: "visit", ID: idFromPath(path)}
	case code == http.StatusConflict:
		return &visit.TransientError{Op: op, Err: visit.ErrInFlight}
	case code == http.StatusTooManyRequests, code >= 500:
		return &visit.TransientError{Op: op, Err: fmt.Errorf("server returned %d: %s", code, msg)}
	}
	return fmt.Errorf("%s: server returned %d: %s", op, code, msg)
}

// idFromPath picks the visit id out of /api/v1/visits/{id}/...
func idFromPath(path string) string {
	rest := strings.TrimPrefix(path, "/api/v1/visits/")
	if rest == path {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	if unescaped, err := url.PathUnescape(id); err == nil {
		return unescaped
	}
	return id
}
