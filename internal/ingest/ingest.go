// Package ingest forwards uploaded documents to the remote document service.
package ingest

import (
	"context"

	"github.com/docbridge/docbridge/internal/mcp"
)

// toolCaller is the slice of the session manager the client needs.
type toolCaller interface {
	CallTool(ctx context.Context, server, tool string, args map[string]any) mcp.Result
}

// Client invokes document-processing tools on one registered server.
type Client struct {
	calls  toolCaller
	server string
}

func New(calls toolCaller, server string) *Client {
	return &Client{calls: calls, server: server}
}

// ProcessDocument asks the remote service to extract, chunk, embed, and index
// the uploaded file. The tagged result is propagated unchanged.
func (c *Client) ProcessDocument(ctx context.Context, localPath, filename, documentID string) mcp.Result {
	return c.calls.CallTool(ctx, c.server, "process_document", map[string]any{
		"file_path":   localPath,
		"filename":    filename,
		"document_id": documentID,
	})
}

// StoreTextOnly stores the extracted text in the document database without
// vector indexing. Same argument shape and error semantics as
// ProcessDocument.
func (c *Client) StoreTextOnly(ctx context.Context, localPath, filename, documentID string) mcp.Result {
	return c.calls.CallTool(ctx, c.server, "upload_and_save_to_mongo", map[string]any{
		"file_path":   localPath,
		"filename":    filename,
		"document_id": documentID,
	})
}
