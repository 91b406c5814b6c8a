package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbridge/docbridge/internal/mcp"
)

type captureCaller struct {
	tool   string
	args   map[string]any
	result mcp.Result
	called bool
}

func (c *captureCaller) CallTool(ctx context.Context, server, tool string, args map[string]any) mcp.Result {
	c.called = true
	c.tool = tool
	c.args = args
	return c.result
}

func successResult(hits ...map[string]any) mcp.Result {
	raw := make([]any, len(hits))
	for i, h := range hits {
		raw[i] = any(h)
	}
	return mcp.Success(map[string]any{"status": "success", "results": raw})
}

func TestSearchRequiresTargetForScopedModes(t *testing.T) {
	for _, mode := range []string{ModeSingleDocument, ModeCollection} {
		caller := &captureCaller{}
		client := New(caller, "RAGService")

		res := client.Search(context.Background(), Request{Query: "q", Mode: mode})

		assert.False(t, res.OK, "mode %s", mode)
		assert.Contains(t, res.Err, "target_id")
		assert.False(t, caller.called, "remote search must not run on validation failure")
	}
}

func TestSearchGlobalNeedsNoTarget(t *testing.T) {
	caller := &captureCaller{result: successResult()}
	client := New(caller, "RAGService")

	res := client.Search(context.Background(), Request{Query: "q", Mode: ModeGlobal})

	require.True(t, res.OK, res.Err)
	assert.NotContains(t, caller.args, "filter")
	assert.NotContains(t, caller.args, "target_id")
}

func TestSearchRejectsUnknownMode(t *testing.T) {
	client := New(&captureCaller{}, "RAGService")
	res := client.Search(context.Background(), Request{Query: "q", Mode: "everywhere"})
	assert.False(t, res.OK)
	assert.Contains(t, res.Err, "unknown search mode")
}

func TestSearchClampsLimit(t *testing.T) {
	caller := &captureCaller{result: successResult()}
	client := New(caller, "RAGService")

	client.Search(context.Background(), Request{Query: "q", Mode: ModeGlobal, Limit: 1000})
	assert.Equal(t, MaxLimit, caller.args["limit"])

	client.Search(context.Background(), Request{Query: "q", Mode: ModeGlobal})
	assert.Equal(t, DefaultLimit, caller.args["limit"])
}

func TestSearchBuildsScopeFilter(t *testing.T) {
	caller := &captureCaller{result: successResult()}
	client := New(caller, "RAGService")

	client.Search(context.Background(), Request{Query: "q", Mode: ModeSingleDocument, TargetID: "doc-1"})
	require.Equal(t, "search_documents", caller.tool)
	assert.Equal(t, map[string]any{"field": "document_id", "value": "doc-1"}, caller.args["filter"])

	client.Search(context.Background(), Request{Query: "q", Mode: ModeCollection, TargetID: "col-9"})
	assert.Equal(t, map[string]any{"field": "collection_id", "value": "col-9"}, caller.args["filter"])
}

func TestSearchReshapesRawHits(t *testing.T) {
	caller := &captureCaller{result: successResult(
		map[string]any{
			"id":    "c1",
			"score": 0.92,
			"payload": map[string]any{
				"chunk_content": "first chunk",
				"document_id":   "doc-1",
				"chunk_index":   float64(0),
			},
		},
		map[string]any{
			"id":    "c2",
			"score": 0.41,
			"payload": map[string]any{
				"chunk_content": "second chunk",
				"document_id":   "doc-1",
			},
		},
	)}
	client := New(caller, "RAGService")

	res := client.Search(context.Background(), Request{Query: "q", Mode: ModeGlobal})
	require.True(t, res.OK, res.Err)

	assert.Equal(t, 2, res.Payload["total_results"])
	hits, ok := res.Payload["results"].([]any)
	require.True(t, ok)
	require.Len(t, hits, 2)

	first := hits[0].(map[string]any)
	assert.Equal(t, "c1", first["chunk_id"])
	assert.Equal(t, 0.92, first["score"])
	assert.Equal(t, "first chunk", first["content"])
	assert.Equal(t, "doc-1", first["metadata"].(map[string]any)["document_id"])

	// Ordering is whatever the remote search returned.
	second := hits[1].(map[string]any)
	assert.Equal(t, "c2", second["chunk_id"])
}

func TestSearchPropagatesRemoteError(t *testing.T) {
	caller := &captureCaller{result: mcp.Errorf("failed to call search_documents on RAGService: connection refused")}
	client := New(caller, "RAGService")

	res := client.Search(context.Background(), Request{Query: "q", Mode: ModeGlobal})
	assert.False(t, res.OK)
	assert.Contains(t, res.Err, "connection refused")
}
