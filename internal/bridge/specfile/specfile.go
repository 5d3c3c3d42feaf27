// Package specfile reads and writes the on-disk spec layout: each spec
// lives at <project>/specs/<name>/spec.md with its metadata beside it in
// meta.json. Content and metadata are deliberately separate files so a
// metadata update never rewrites the content the author is editing.
package specfile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"specsync/internal/registry/domain"
)

const (
	// SpecsDirName is the directory under a project root holding specs.
	SpecsDirName = "specs"

	specFileName = "spec.md"
	metaFileName = "meta.json"
)

// Meta is the sidecar metadata file for one spec.
type Meta struct {
	Title     string   `json:"title,omitempty"`
	Status    string   `json:"status,omitempty"`
	Priority  string   `json:"priority,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Assignee  string   `json:"assignee,omitempty"`
	Parent    string   `json:"parent,omitempty"`
	DependsOn []string `json:"dependsOn,omitempty"`
}

// ErrNotFound reports that a spec directory has no spec.md.
var ErrNotFound = errors.New("spec not found")

// SpecsDir returns the specs directory for a project root.
func SpecsDir(projectPath string) string {
	return filepath.Join(projectPath, SpecsDirName)
}

// HashContent returns the lowercase hex sha256 of content, the hash the
// server compares for optimistic concurrency.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// SpecNameForPath maps a filesystem path inside the specs directory back
// to the spec name (the first path segment under specs/). Returns false
// for paths outside the specs directory or the directory itself.
func SpecNameForPath(specsDir, path string) (string, bool) {
	rel, err := filepath.Rel(specsDir, path)
	if err != nil {
		return "", false
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if parts[0] == "" {
		return "", false
	}
	return parts[0], true
}

// LoadMeta reads the sidecar metadata for a spec. A missing file yields
// an empty Meta, not an error; authors often create spec.md first.
func LoadMeta(projectPath, name string) (Meta, error) {
	var meta Meta
	raw, err := os.ReadFile(filepath.Join(SpecsDir(projectPath), name, metaFileName))
	if errors.Is(err, os.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, fmt.Errorf("parse meta for %s: %w", name, err)
	}
	return meta, nil
}

// SaveMeta writes the sidecar metadata for a spec.
func SaveMeta(projectPath, name string, meta Meta) error {
	dir := filepath.Join(SpecsDir(projectPath), name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, metaFileName), raw, 0o644)
}

// LoadRecord reads one spec from disk into the record shape the server
// ingests. Returns ErrNotFound when spec.md does not exist.
func LoadRecord(projectPath, name string) (domain.SpecRecord, error) {
	specPath := filepath.Join(SpecsDir(projectPath), name, specFileName)
	content, err := os.ReadFile(specPath)
	if errors.Is(err, os.ErrNotExist) {
		return domain.SpecRecord{}, ErrNotFound
	}
	if err != nil {
		return domain.SpecRecord{}, err
	}
	meta, err := LoadMeta(projectPath, name)
	if err != nil {
		return domain.SpecRecord{}, err
	}
	updated := time.Now().UTC()
	if info, statErr := os.Stat(specPath); statErr == nil {
		updated = info.ModTime().UTC()
	}
	title := meta.Title
	if title == "" {
		title = name
	}
	return domain.SpecRecord{
		Name:        name,
		Title:       title,
		Status:      meta.Status,
		Priority:    meta.Priority,
		Tags:        append([]string(nil), meta.Tags...),
		Assignee:    meta.Assignee,
		Parent:      meta.Parent,
		DependsOn:   append([]string(nil), meta.DependsOn...),
		Content:     string(content),
		ContentHash: HashContent(content),
		FilePath:    filepath.Join(SpecsDirName, name, specFileName),
		UpdatedAt:   updated,
	}, nil
}

// ListSpecs walks the specs directory and loads every spec that has a
// spec.md. Entries that fail to load are skipped; a missing specs
// directory yields an empty snapshot.
func ListSpecs(projectPath string) ([]domain.SpecRecord, error) {
	entries, err := os.ReadDir(SpecsDir(projectPath))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var specs []domain.SpecRecord
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, err := LoadRecord(projectPath, entry.Name())
		if err != nil {
			// One unreadable spec must not block the rest of the
			// snapshot. The watcher picks it up once it is fixed.
			if !errors.Is(err, ErrNotFound) {
				log.Printf("specfile: skipping %s: %v", entry.Name(), err)
			}
			continue
		}
		specs = append(specs, rec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs, nil
}
