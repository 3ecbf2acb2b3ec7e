package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"fbscraper/pkg/errors"
	"fbscraper/pkg/models"
)

func TestManagerCreateCommitsOnClose(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	target := filepath.Join(tempDir, "photo.jpg")
	w, err := manager.Create(target)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if _, err := w.Write([]byte("test photo data")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("Expected file to appear only after Close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	content, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if string(content) != "test photo data" {
		t.Error("File content does not match expected data")
	}
	if _, err := os.Stat(target + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temporary file should not exist after close")
	}
}

func TestManagerDiscard(t *testing.T) {
	tempDir := t.TempDir()
	manager, _ := NewManager(tempDir)

	target := filepath.Join(tempDir, "partial.mp4")
	w, err := manager.Create(target)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	w.Write([]byte("half"))

	d, ok := w.(interface{ Discard() error })
	if !ok {
		t.Fatal("Expected writer to support Discard")
	}
	if err := d.Discard(); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}

	entries, _ := os.ReadDir(tempDir)
	if len(entries) != 0 {
		t.Errorf("Expected empty directory after discard, found %d entries", len(entries))
	}
}

func TestASCIIName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Zoë Löwe", "Zoe Lowe"},
		{"Crème brûlée club", "Creme brulee club"},
		{"a/b\\c", "a_b_c"},
		{"日本", "__"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ASCIIName(tt.in); got != tt.want {
			t.Errorf("ASCIIName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrepareConversation(t *testing.T) {
	tempDir := t.TempDir()
	manager, _ := NewManager(tempDir)

	dir, err := manager.PrepareConversation(models.Conversation{ID: "42", Name: "José"}, "pictures", "files")
	if err != nil {
		t.Fatalf("PrepareConversation failed: %v", err)
	}
	if dir != filepath.Join(tempDir, "42 - Jose") {
		t.Errorf("Unexpected conversation dir %q", dir)
	}
	for _, sub := range []string{"pictures", "files"} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			t.Errorf("Expected %s subdirectory", sub)
		}
	}

	if FolderName(models.Conversation{ID: "7"}) != "7" {
		t.Error("Expected bare id for unnamed conversation")
	}
}

func TestDumpRoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	manager, _ := NewManager(tempDir)

	raw := `[{"thread_fbid":null,"other_user_fbid":"42","author":"fbid:42","body":"hé","timestamp":1000,"action_type":"ma-type:user-generated-message","attachments":[],"extra":{"kept":true}}]`
	var messages []models.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		t.Fatalf("Failed to decode fixture: %v", err)
	}

	paths, err := manager.WriteDump(tempDir, messages, DumpBoth)
	if err != nil {
		t.Fatalf("WriteDump failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("Expected 2 dump files, got %v", paths)
	}

	data, _ := os.ReadFile(filepath.Join(tempDir, "complete.json"))
	if string(data) != raw {
		t.Errorf("Raw dump changed the records:\n%s", data)
	}

	for _, p := range paths {
		id, loaded, err := LoadDump(p)
		if err != nil {
			t.Fatalf("LoadDump(%s) failed: %v", p, err)
		}
		if id != "42" || len(loaded) != 1 || loaded[0].Body != "hé" {
			t.Errorf("Unexpected dump content from %s: %s %+v", p, id, loaded)
		}
	}
}

func TestWriteDumpUnknownFormat(t *testing.T) {
	manager, _ := NewManager(t.TempDir())
	if _, err := manager.WriteDump(manager.GetOutputDir(), nil, "xml"); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestLoadDumpMalformed(t *testing.T) {
	tempDir := t.TempDir()
	cases := map[string]string{
		"broken.json": `[{"author":`,
		"empty.json":  `[]`,
		"noid.json":   `[{"thread_fbid":null,"other_user_fbid":null,"author":"fbid:1"}]`,
	}
	for name, content := range cases {
		path := filepath.Join(tempDir, name)
		os.WriteFile(path, []byte(content), 0644)

		_, _, err := LoadDump(path)
		if !errors.IsType(err, errors.ErrorTypeMalformedInput) {
			t.Errorf("%s: expected malformed input error, got %v", name, err)
		}
	}

	if _, _, err := LoadDump(filepath.Join(tempDir, "missing.json")); !errors.IsType(err, errors.ErrorTypeMalformedInput) {
		t.Errorf("Expected malformed input for missing file, got %v", err)
	}
}

func TestWriteReport(t *testing.T) {
	tempDir := t.TempDir()
	manager, _ := NewManager(tempDir)

	if err := manager.WriteReport(tempDir, "links", "https://example.com/x\n"); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(tempDir, "links.txt"))
	if err != nil || string(data) != "https://example.com/x\n" {
		t.Errorf("Unexpected report content %q (%v)", data, err)
	}
}
