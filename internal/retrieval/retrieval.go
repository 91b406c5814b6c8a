// Package retrieval runs scoped similarity searches through the remote RAG
// service. Embedding and vector scoring happen on the remote side; this
// client validates arguments, builds the scope filter, and reshapes hits.
package retrieval

import (
	"context"

	"github.com/docbridge/docbridge/internal/mcp"
)

const (
	ModeSingleDocument = "single_document"
	ModeCollection     = "collection"
	ModeGlobal         = "global"

	DefaultLimit = 5
	MaxLimit     = 50
)

type toolCaller interface {
	CallTool(ctx context.Context, server, tool string, args map[string]any) mcp.Result
}

// Request describes one search. TargetID is required for single_document and
// collection modes and ignored for global mode.
type Request struct {
	Query          string
	Mode           string
	TargetID       string
	Limit          int
	ScoreThreshold float64
}

type Client struct {
	calls  toolCaller
	server string
}

func New(calls toolCaller, server string) *Client {
	return &Client{calls: calls, server: server}
}

// Search validates the request and invokes the remote search_documents tool.
// Validation failures come back as tagged error results, matching the policy
// for remote failures. The limit is clamped to MaxLimit silently.
func (c *Client) Search(ctx context.Context, req Request) mcp.Result {
	switch req.Mode {
	case ModeSingleDocument, ModeCollection:
		if req.TargetID == "" {
			return mcp.Errorf("target_id is required for %s mode", req.Mode)
		}
	case ModeGlobal:
	default:
		return mcp.Errorf("unknown search mode %q", req.Mode)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	args := map[string]any{
		"query":           req.Query,
		"mode":            req.Mode,
		"limit":           limit,
		"score_threshold": req.ScoreThreshold,
	}
	switch req.Mode {
	case ModeSingleDocument:
		args["target_id"] = req.TargetID
		args["filter"] = map[string]any{"field": "document_id", "value": req.TargetID}
	case ModeCollection:
		args["target_id"] = req.TargetID
		args["filter"] = map[string]any{"field": "collection_id", "value": req.TargetID}
	}

	res := c.calls.CallTool(ctx, c.server, "search_documents", args)
	if !res.OK {
		return res
	}
	return c.reshape(req, limit, res)
}

// reshape converts raw hits into {chunk_id, score, content, metadata}
// records, preserving the ordering the remote search returned.
func (c *Client) reshape(req Request, limit int, res mcp.Result) mcp.Result {
	rawHits, _ := res.Payload["results"].([]any)
	hits := make([]any, 0, len(rawHits))
	for _, raw := range rawHits {
		hit, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		// Already-shaped hits pass through; raw vector hits carry the chunk
		// text and metadata inside a payload object.
		if _, shaped := hit["chunk_id"]; shaped {
			hits = append(hits, hit)
			continue
		}
		payload, _ := hit["payload"].(map[string]any)
		content, _ := payload["chunk_content"].(string)
		metadata := map[string]any{}
		for _, key := range []string{"document_id", "collection_id", "doc_title", "chunk_index", "file_type", "upload_date"} {
			if v, ok := payload[key]; ok {
				metadata[key] = v
			}
		}
		hits = append(hits, map[string]any{
			"chunk_id": hit["id"],
			"score":    hit["score"],
			"content":  content,
			"metadata": metadata,
		})
	}

	out := map[string]any{
		"status":        "success",
		"query":         req.Query,
		"mode":          req.Mode,
		"total_results": len(hits),
		"results":       hits,
	}
	if req.TargetID != "" {
		out["target_id"] = req.TargetID
	}
	return mcp.Success(out)
}
