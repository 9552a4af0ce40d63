package docindex

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// ParseError distinguishes the two failure kinds named in spec §4.A.
type ParseError struct {
	Path string
	Kind string // "unreadable" | "malformed-frontmatter"
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var wikiLinkRe = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
var headingRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)
var fencedCodeRe = regexp.MustCompile("(?s)```.*?```")
var mdHeadingStripRe = regexp.MustCompile(`(?m)^#{1,6}\s+`)
var mdLinkRe = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
var emphasisRe = regexp.MustCompile(`(\*\*\*|\*\*|\*|___|__|_|~~)`)
var wsCollapseRe = regexp.MustCompile(`\s+`)

// Parser turns a single file's bytes into a Document.
type Parser struct {
	fs   afero.Fs
	root string
}

// NewParser builds a Parser rooted at the given workspace root on fs.
func NewParser(fs afero.Fs, root string) *Parser {
	return &Parser{fs: fs, root: root}
}

// ParseFile reads absPath (must live under p.root) and returns a Document.
func (p *Parser) ParseFile(absPath string) (*Document, error) {
	raw, err := afero.ReadFile(p.fs, absPath)
	if err != nil {
		return nil, &ParseError{Path: absPath, Kind: "unreadable", Err: err}
	}

	info, err := p.fs.Stat(absPath)
	if err != nil {
		return nil, &ParseError{Path: absPath, Kind: "unreadable", Err: err}
	}

	rel, err := relSlash(p.root, absPath)
	if err != nil {
		return nil, &ParseError{Path: absPath, Kind: "unreadable", Err: err}
	}

	fm, body, err := splitFrontmatter(raw)
	if err != nil {
		return nil, &ParseError{Path: absPath, Kind: "malformed-frontmatter", Err: err}
	}

	federation, err := extractFederation(fm)
	if err != nil {
		return nil, &ParseError{Path: absPath, Kind: "malformed-frontmatter", Err: err}
	}

	doc := &Document{
		Path:        rel,
		Type:        inferType(fm, rel),
		Tags:        extractTags(fm),
		FrontMatter: fm,
		Content:     body,
		Links:       extractLinks(body),
		Backlinks:   []string{},
		Updated:     info.ModTime(),
		Federation:  federation,
	}
	doc.Status, _ = fm["status"].(string)
	doc.Title = resolveTitle(fm, body, rel)
	doc.Created = resolveCreated(fm, info.ModTime())
	doc.Excerpt = buildExcerpt(body)

	return doc, nil
}

// relSlash is a small forward-slash-normalizing relative-path helper so the
// index never stores OS-specific separators in Document.Path (spec §3:
// "forward-slash normalized").
func relSlash(root, target string) (string, error) {
	root = filepath.ToSlash(root)
	target = filepath.ToSlash(target)
	root = strings.TrimSuffix(root, "/")
	if !strings.HasPrefix(target, root+"/") {
		if target == root {
			return "", nil
		}
		return "", fmt.Errorf("path %q is not under root %q", target, root)
	}
	return strings.TrimPrefix(target, root+"/"), nil
}

func inferType(fm map[string]any, relPath string) DocType {
	if t, ok := fm["type"].(string); ok && t != "" {
		return normalizeType(t)
	}
	segments := strings.Split(relPath, "/")
	if len(segments) > 0 {
		return normalizeType(segments[0])
	}
	return TypeOther
}

func normalizeType(t string) DocType {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "tag-index" {
		t = "tag"
	}
	switch DocType(t) {
	case TypeTask, TypeKnowledge, TypeInbox, TypeReminder, TypeProject, TypeTag:
		return DocType(t)
	default:
		return TypeOther
	}
}

func extractTags(fm map[string]any) []string {
	raw, ok := fm["tags"]
	if !ok {
		return []string{}
	}
	list, ok := raw.([]any)
	if !ok {
		return []string{}
	}
	tags := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}

// extractLinks recognizes [[target]] and [[target|alias]], trimming
// targets and deduplicating while preserving first-seen order (§4.A).
func extractLinks(body string) []string {
	matches := wikiLinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]bool, len(matches))
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		target := m[1]
		if idx := strings.Index(target, "|"); idx >= 0 {
			target = target[:idx]
		}
		target = strings.TrimSpace(target)
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		links = append(links, target)
	}
	return links
}

// resolveTitle follows front-matter title, then first level-1 heading,
// then filename-stem-as-title (§4.A).
func resolveTitle(fm map[string]any, body, relPath string) string {
	if t, ok := fm["title"].(string); ok && strings.TrimSpace(t) != "" {
		return t
	}
	if m := headingRe.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	stem := strings.TrimSuffix(path.Base(relPath), ".md")
	stem = strings.ReplaceAll(stem, "-", " ")
	return titleCase(stem)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func resolveCreated(fm map[string]any, mtime time.Time) time.Time {
	if c, ok := fm["created"]; ok {
		switch v := c.(type) {
		case string:
			if t, err := parseTimestamp(v); err == nil {
				return t
			}
		case time.Time:
			return v
		}
	}
	return mtime
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// buildExcerpt strips fenced code, headings, markdown link syntax and
// emphasis markers, collapses whitespace, and truncates on a word
// boundary at <=200 chars with a trailing ellipsis when truncated (§4.A).
func buildExcerpt(body string) string {
	s := fencedCodeRe.ReplaceAllString(body, " ")
	s = mdHeadingStripRe.ReplaceAllString(s, "")
	s = mdLinkRe.ReplaceAllString(s, "$1")
	s = wikiLinkRe.ReplaceAllStringFunc(s, func(m string) string {
		inner := wikiLinkRe.FindStringSubmatch(m)[1]
		if idx := strings.Index(inner, "|"); idx >= 0 {
			return inner[idx+1:]
		}
		return inner
	})
	s = emphasisRe.ReplaceAllString(s, "")
	s = wsCollapseRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	const limit = 200
	if len(s) <= limit {
		return s
	}
	truncated := s[:limit]
	if idx := strings.LastIndex(truncated, " "); idx > 0 {
		truncated = truncated[:idx]
	}
	return strings.TrimSpace(truncated) + "…"
}
