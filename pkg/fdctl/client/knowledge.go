package client

import (
	"context"
	"net/http"
	"net/url"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
)

type KnowledgeService struct {
	client *Client
}

func (c *Client) Knowledge() *KnowledgeService {
	return &KnowledgeService{client: c}
}

func (k *KnowledgeService) List(ctx context.Context) ([]frontdeskv1.KnowledgeEntry, error) {
	var out []frontdeskv1.KnowledgeEntry
	if err := k.client.do(ctx, http.MethodGet, "/api/knowledge-base", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (k *KnowledgeService) Get(ctx context.Context, id string) (*frontdeskv1.KnowledgeEntry, error) {
	var out frontdeskv1.KnowledgeEntry
	if err := k.client.do(ctx, http.MethodGet, "/api/knowledge-base/entries/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (k *KnowledgeService) Add(ctx context.Context, question, answer string) (*frontdeskv1.KnowledgeEntry, error) {
	body := map[string]string{"question": question, "answer": answer}
	var out frontdeskv1.KnowledgeEntry
	if err := k.client.do(ctx, http.MethodPost, "/api/knowledge-base", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Use records that the agent answered from the entry.
func (k *KnowledgeService) Use(ctx context.Context, id string) (*frontdeskv1.KnowledgeEntry, error) {
	var out frontdeskv1.KnowledgeEntry
	if err := k.client.do(ctx, http.MethodPost, "/api/knowledge-base/entries/"+url.PathEscape(id)+"/use", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export returns the knowledge base keyed by normalised question.
func (k *KnowledgeService) Export(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	if err := k.client.do(ctx, http.MethodGet, "/api/knowledge-base/export", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
