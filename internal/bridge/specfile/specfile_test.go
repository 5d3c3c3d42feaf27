package specfile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSpec(t *testing.T, project, name, content string) {
	t.Helper()
	dir := filepath.Join(SpecsDir(project), name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "spec.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadRecord_ReadsContentAndMeta(t *testing.T) {
	project := t.TempDir()
	writeSpec(t, project, "001-auth", "# Auth\n")
	meta := Meta{Title: "Auth", Status: "planned", Priority: "high", Tags: []string{"core"}, DependsOn: []string{"000-base"}}
	if err := SaveMeta(project, "001-auth", meta); err != nil {
		t.Fatalf("SaveMeta: %v", err)
	}

	rec, err := LoadRecord(project, "001-auth")
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	if rec.Name != "001-auth" || rec.Title != "Auth" || rec.Status != "planned" {
		t.Errorf("record = %+v, want meta applied", rec)
	}
	if rec.Content != "# Auth\n" {
		t.Errorf("content = %q", rec.Content)
	}
	if rec.ContentHash != HashContent([]byte("# Auth\n")) {
		t.Errorf("hash = %q, want content hash", rec.ContentHash)
	}
	if rec.FilePath != filepath.Join("specs", "001-auth", "spec.md") {
		t.Errorf("filePath = %q", rec.FilePath)
	}
	if len(rec.DependsOn) != 1 || rec.DependsOn[0] != "000-base" {
		t.Errorf("dependsOn = %v", rec.DependsOn)
	}
}

func TestLoadRecord_SerializesOnlyPopulatedTimestamps(t *testing.T) {
	project := t.TempDir()
	writeSpec(t, project, "003-api", "body")

	rec, err := LoadRecord(project, "003-api")
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "0001-01-01") {
		t.Errorf("record carries a zero timestamp: %s", raw)
	}
	if !strings.Contains(string(raw), `"updatedAt"`) {
		t.Errorf("record missing updatedAt: %s", raw)
	}
}

func TestLoadRecord_MissingMetaDefaultsTitle(t *testing.T) {
	project := t.TempDir()
	writeSpec(t, project, "002-billing", "body")

	rec, err := LoadRecord(project, "002-billing")
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	if rec.Title != "002-billing" {
		t.Errorf("title = %q, want spec name fallback", rec.Title)
	}
}

func TestLoadRecord_NotFound(t *testing.T) {
	_, err := LoadRecord(t.TempDir(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListSpecs_SortedAndSkipsIncomplete(t *testing.T) {
	project := t.TempDir()
	writeSpec(t, project, "b-spec", "b")
	writeSpec(t, project, "a-spec", "a")
	// A directory without spec.md is not a spec yet.
	if err := os.MkdirAll(filepath.Join(SpecsDir(project), "draft"), 0o755); err != nil {
		t.Fatal(err)
	}
	// Stray files directly under specs/ are ignored.
	if err := os.WriteFile(filepath.Join(SpecsDir(project), "README.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	specs, err := ListSpecs(project)
	if err != nil {
		t.Fatalf("ListSpecs: %v", err)
	}
	if len(specs) != 2 || specs[0].Name != "a-spec" || specs[1].Name != "b-spec" {
		t.Errorf("specs = %+v, want [a-spec b-spec]", specs)
	}
}

func TestListSpecs_SkipsSpecWithCorruptMeta(t *testing.T) {
	project := t.TempDir()
	writeSpec(t, project, "001-good", "good")
	writeSpec(t, project, "002-bad", "bad")
	badMeta := filepath.Join(SpecsDir(project), "002-bad", "meta.json")
	if err := os.WriteFile(badMeta, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	specs, err := ListSpecs(project)
	if err != nil {
		t.Fatalf("ListSpecs: %v", err)
	}
	if len(specs) != 1 || specs[0].Name != "001-good" {
		t.Errorf("specs = %+v, want only 001-good", specs)
	}
}

func TestListSpecs_NoSpecsDirectory(t *testing.T) {
	specs, err := ListSpecs(t.TempDir())
	if err != nil {
		t.Fatalf("ListSpecs: %v", err)
	}
	if len(specs) != 0 {
		t.Errorf("specs = %d, want 0", len(specs))
	}
}

func TestSpecNameForPath(t *testing.T) {
	specsDir := filepath.Join("/work", "proj", "specs")
	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{filepath.Join(specsDir, "001-auth", "spec.md"), "001-auth", true},
		{filepath.Join(specsDir, "001-auth", "meta.json"), "001-auth", true},
		{filepath.Join(specsDir, "001-auth"), "001-auth", true},
		{filepath.Join(specsDir, "001-auth", "notes", "deep.md"), "001-auth", true},
		{specsDir, "", false},
		{filepath.Join("/work", "proj", "other.md"), "", false},
	}
	for _, tt := range tests {
		got, ok := SpecNameForPath(specsDir, tt.path)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("SpecNameForPath(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}
