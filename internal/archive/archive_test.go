package archive

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	a := New(path)

	first, err := a.Append("openai", "LinkedIn", "launch day", "We shipped it.")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first.ID == "" {
		t.Error("expected generated id")
	}

	if _, err := a.Append("anthropic", "Twitter", "retro", "What we learned."); err != nil {
		t.Fatalf("Append second: %v", err)
	}

	records, err := a.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2", len(records))
	}
	if records[0].Topic != "launch day" || records[1].Topic != "retro" {
		t.Errorf("records out of order: %+v", records)
	}
	if records[0].ID != first.ID {
		t.Errorf("first record id changed across rewrite")
	}
}

func TestListMissingFile(t *testing.T) {
	a := New(filepath.Join(t.TempDir(), "never-written.json"))
	records, err := a.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty archive, got %d records", len(records))
	}
}

func TestAppendSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")

	if _, err := New(path).Append("openai", "LinkedIn", "t1", "c1"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// A fresh Archive over the same file sees prior records.
	reopened := New(path)
	if _, err := reopened.Append("openai", "LinkedIn", "t2", "c2"); err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	records, err := reopened.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("len = %d, want 2", len(records))
	}
}

func TestCorruptFileReportsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	if err := os.WriteFile(path, []byte("{not json]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path).List(); err == nil {
		t.Error("expected decode error for corrupt archive")
	}
}
