package ingest

import (
	"context"
	"testing"

	"github.com/docbridge/docbridge/internal/mcp"
)

type captureCaller struct {
	server string
	tool   string
	args   map[string]any
	result mcp.Result
}

func (c *captureCaller) CallTool(ctx context.Context, server, tool string, args map[string]any) mcp.Result {
	c.server = server
	c.tool = tool
	c.args = args
	return c.result
}

func TestProcessDocumentForwardsArguments(t *testing.T) {
	caller := &captureCaller{result: mcp.Success(map[string]any{"status": "success"})}
	client := New(caller, "DocumentService")

	res := client.ProcessDocument(context.Background(), "/tmp/id_report.pdf", "report.pdf", "id")
	if !res.OK {
		t.Fatalf("expected success, got %s", res.Err)
	}
	if caller.server != "DocumentService" || caller.tool != "process_document" {
		t.Errorf("wrong dispatch: %s/%s", caller.server, caller.tool)
	}
	if caller.args["file_path"] != "/tmp/id_report.pdf" ||
		caller.args["filename"] != "report.pdf" ||
		caller.args["document_id"] != "id" {
		t.Errorf("arguments not forwarded: %v", caller.args)
	}
}

func TestStoreTextOnlyUsesMongoTool(t *testing.T) {
	caller := &captureCaller{result: mcp.Errorf("mongo down")}
	client := New(caller, "DocumentService")

	res := client.StoreTextOnly(context.Background(), "/tmp/id_notes.txt", "notes.txt", "id")
	if res.OK {
		t.Fatal("expected tagged error to propagate unchanged")
	}
	if caller.tool != "upload_and_save_to_mongo" {
		t.Errorf("wrong tool: %s", caller.tool)
	}
}
