package client

import (
	"context"
	"net/http"
	"net/url"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
	"github.com/telekom/frontdesk/pkg/version"
)

type RequestService struct {
	client *Client
}

func (c *Client) Requests() *RequestService {
	return &RequestService{client: c}
}

// List returns help requests newest first, optionally restricted to one status.
func (r *RequestService) List(ctx context.Context, status frontdeskv1.EscalationStatus) ([]frontdeskv1.Escalation, error) {
	var query map[string]string
	if status != "" {
		query = map[string]string{"status": string(status)}
	}
	var out []frontdeskv1.Escalation
	if err := r.client.do(ctx, http.MethodGet, "/api/help-requests", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RequestService) Get(ctx context.Context, id string) (*frontdeskv1.Escalation, error) {
	var out frontdeskv1.Escalation
	if err := r.client.do(ctx, http.MethodGet, "/api/help-requests/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type CreateRequest struct {
	Question   string `json:"question"`
	CallerInfo string `json:"caller_info,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
}

func (r *RequestService) Create(ctx context.Context, req CreateRequest) (*frontdeskv1.Escalation, error) {
	var out frontdeskv1.Escalation
	if err := r.client.do(ctx, http.MethodPost, "/api/help-requests", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Resolve answers a pending help request. A 409 means it was already handled.
func (r *RequestService) Resolve(ctx context.Context, id, answer, answeredBy string) (*frontdeskv1.Escalation, error) {
	body := map[string]string{"answer": answer, "supervisor_name": answeredBy}
	var out frontdeskv1.Escalation
	if err := r.client.do(ctx, http.MethodPut, "/api/help-requests/"+url.PathEscape(id)+"/answer", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Stats(ctx context.Context) (*frontdeskv1.Stats, error) {
	var out frontdeskv1.Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ServerVersion returns the build info the server reports.
func (c *Client) ServerVersion(ctx context.Context) (*version.BuildInfo, error) {
	var out version.BuildInfo
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
