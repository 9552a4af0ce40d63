package docindex

import (
	"fmt"

	"github.com/spf13/afero"
)

// RawFile is a file's frontmatter map and body, prior to any Document
// derivation — the unit the field-level updater operates on. Writing it
// back keeps every key, value and the body, but keys are re-emitted in
// alphabetical order, so the file's original key order is not kept.
type RawFile struct {
	FrontMatter map[string]any
	Body        string
}

// ReadRawFile reads and splits absPath without deriving a full Document.
func ReadRawFile(fs afero.Fs, absPath string) (*RawFile, error) {
	raw, err := afero.ReadFile(fs, absPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", absPath, err)
	}
	fm, body, err := splitFrontmatter(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", absPath, err)
	}
	return &RawFile{FrontMatter: fm, Body: body}, nil
}

// WriteRawFile serializes fm+body back to absPath, creating parent
// directories as needed. Each write is a full overwrite (§5: "each write
// is a full overwrite ... the Watcher will re-pick the change").
func WriteRawFile(fs afero.Fs, absPath string, fm map[string]any, body string) error {
	dir := parentDir(absPath)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	out, err := renderFrontmatter(fm, body)
	if err != nil {
		return fmt.Errorf("render %s: %w", absPath, err)
	}
	if err := afero.WriteFile(fs, absPath, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", absPath, err)
	}
	return nil
}

// SetFederationField is the field-level updater's entry point for writing
// a document's federation block: it reads the file, replaces only
// frontmatter["federation"], and writes the file back with every sibling
// key's value and the body unchanged; the keys themselves come out in
// alphabetical order, not in their original order.
func SetFederationField(fs afero.Fs, absPath string, meta *FederationMeta) error {
	rf, err := ReadRawFile(fs, absPath)
	if err != nil {
		return err
	}
	rf.FrontMatter["federation"] = federationToMap(meta)
	return WriteRawFile(fs, absPath, rf.FrontMatter, rf.Body)
}

// SetBody rewrites only the body, preserving frontmatter verbatim.
func SetBody(fs afero.Fs, absPath string, body string) error {
	rf, err := ReadRawFile(fs, absPath)
	if err != nil {
		return err
	}
	return WriteRawFile(fs, absPath, rf.FrontMatter, body)
}

func parentDir(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i]
		}
	}
	return "."
}
