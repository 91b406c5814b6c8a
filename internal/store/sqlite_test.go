package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/docbridge/docbridge/internal/api"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertAndListDocuments(t *testing.T) {
	s := openTestStore(t)

	doc := api.DocumentRecord{
		DocumentID: "doc-1",
		Filename:   "report.pdf",
		Path:       "data/uploads/doc-1_report.pdf",
		SizeBytes:  1024,
		UploadedAt: time.Now().UTC(),
		Tool:       "process_document",
		Success:    true,
	}
	if err := s.InsertDocument(doc); err != nil {
		t.Fatalf("insert: %v", err)
	}

	docs, err := s.ListDocuments(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	got := docs[0]
	if got.DocumentID != "doc-1" || got.Filename != "report.pdf" || !got.Success {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestHistoryFiltersAndOrder(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC()
	items := []api.HistoryItem{
		{At: base, Server: "DocumentService", Tool: "process_document", Success: true, DurationMs: 12},
		{At: base.Add(time.Second), Server: "RAGService", Tool: "search_documents", Success: false, Error: "connection refused", DurationMs: 3,
			Args: map[string]any{"query": "budget"}},
		{At: base.Add(2 * time.Second), Server: "RAGService", Tool: "search_documents", Success: true, DurationMs: 40},
	}
	for _, item := range items {
		if err := s.InsertHistory(item); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	all, err := s.ListHistory("", "", 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 items, got %d", len(all))
	}
	if all[0].Tool != "process_document" {
		t.Errorf("expected oldest first, got %+v", all[0])
	}

	rag, err := s.ListHistory("RAGService", "", 50)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(rag) != 2 {
		t.Fatalf("expected 2 RAGService items, got %d", len(rag))
	}
	if rag[0].Error != "connection refused" {
		t.Errorf("expected error text preserved, got %+v", rag[0])
	}
	if rag[0].Args["query"] != "budget" {
		t.Errorf("expected args round-trip, got %+v", rag[0].Args)
	}
}
