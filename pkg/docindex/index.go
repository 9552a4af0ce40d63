package docindex

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// skipDirs mirrors spec §4.B's excluded directory list.
var skipDirs = map[string]bool{
	"node_modules": true,
	"scratchpad":   true,
	"dist":         true,
	"build":        true,
	".git":         true,
}

// Index owns the authoritative path -> Document mapping for a workspace,
// plus the derived backlink map and a search index (spec §4.B).
type Index struct {
	fs     afero.Fs
	root   string
	logger hclog.Logger
	parser *Parser

	mu    sync.RWMutex
	docs  map[string]*Document
	order []string // stable iteration order, set on each full build

	search *searcher
}

// New creates an empty Index rooted at root on fs.
func New(fs afero.Fs, root string, logger hclog.Logger) *Index {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	idx := &Index{
		fs:     fs,
		root:   root,
		logger: logger.Named("docindex"),
		parser: NewParser(fs, root),
		docs:   make(map[string]*Document),
	}
	idx.search = newSearcher(idx.logger)
	return idx
}

// Build performs a full recursive scan of the workspace, per §4.B's rules:
// hidden entries and skipDirs are excluded; the top-level "projects"
// subtree only ingests CLAUDE.md/README.md per immediate subdirectory.
// Parse failures are logged and skipped, never fail the whole build.
func (idx *Index) Build() error {
	paths, err := idx.discoverFiles()
	if err != nil {
		return fmt.Errorf("discover files: %w", err)
	}

	docs := make(map[string]*Document, len(paths))
	order := make([]string, 0, len(paths))
	var buildErrs *multierror.Error

	for _, abs := range paths {
		doc, err := idx.parser.ParseFile(abs)
		if err != nil {
			idx.logger.Warn("skipping unparsable file", "path", abs, "error", err)
			buildErrs = multierror.Append(buildErrs, err)
			continue
		}
		docs[doc.Path] = doc
		order = append(order, doc.Path)
	}

	idx.mu.Lock()
	idx.docs = docs
	idx.order = order
	idx.mu.Unlock()

	idx.recomputeBacklinks()
	if err := idx.rebuildSearch(); err != nil {
		return fmt.Errorf("rebuild search index: %w", err)
	}

	if buildErrs != nil {
		idx.logger.Warn("index build completed with per-file errors", "count", len(buildErrs.Errors))
	}
	return nil
}

func (idx *Index) discoverFiles() ([]string, error) {
	var out []string

	var walk func(dir string, isProjectsRoot bool) error
	walk = func(dir string, isProjectsRoot bool) error {
		entries, err := afero.ReadDir(idx.fs, dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			name := e.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			full := path.Join(dir, name)
			if e.IsDir() {
				if skipDirs[name] {
					continue
				}
				rel, _ := relSlash(idx.root, full)
				if rel == "projects" {
					if err := walkProjectsRoot(idx.fs, full, &out); err != nil {
						return err
					}
					continue
				}
				if err := walk(full, false); err != nil {
					return err
				}
				continue
			}
			if strings.HasSuffix(strings.ToLower(name), ".md") {
				out = append(out, full)
			}
		}
		return nil
	}

	if err := walk(idx.root, false); err != nil {
		return nil, err
	}
	return out, nil
}

// walkProjectsRoot implements §4.B's special-cased "projects" subtree:
// for each immediate subdirectory, only CLAUDE.md and README.md are
// ingested; deeper markdown is ignored.
func walkProjectsRoot(fs afero.Fs, projectsDir string, out *[]string) error {
	entries, err := afero.ReadDir(fs, projectsDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		sub := path.Join(projectsDir, e.Name())
		for _, candidate := range []string{"CLAUDE.md", "README.md"} {
			p := path.Join(sub, candidate)
			if ok, _ := afero.Exists(fs, p); ok {
				*out = append(*out, p)
			}
		}
	}
	return nil
}

// Root returns the workspace root path the Index was built against, used
// by callers (internal/api, pkg/syncsvc) that need to resolve a
// workspace-relative path to an absolute one for raw file access.
func (idx *Index) Root() string { return idx.root }

// Fs returns the afero.Fs backing this Index.
func (idx *Index) Fs() afero.Fs { return idx.fs }

// Get returns the Document at path, if any.
func (idx *Index) Get(p string) (*Document, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	d, ok := idx.docs[p]
	return d, ok
}

// All returns a snapshot slice of every Document, in stable build order.
func (idx *Index) All() []*Document {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]*Document, 0, len(idx.order))
	for _, p := range idx.order {
		if d, ok := idx.docs[p]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Has reports whether path is currently indexed, used by pkg/watcher to
// classify a filesystem event as add vs change.
func (idx *Index) Has(p string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.docs[p]
	return ok
}

// Count returns the number of indexed documents.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// UpdateDocument reparses one file (by workspace-relative path) and
// triggers a full backlink recompute + search-index rebuild (§4.B).
func (idx *Index) UpdateDocument(relPath string) error {
	abs := path.Join(idx.root, relPath)
	doc, err := idx.parser.ParseFile(abs)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	if _, exists := idx.docs[doc.Path]; !exists {
		idx.order = append(idx.order, doc.Path)
	}
	idx.docs[doc.Path] = doc
	idx.mu.Unlock()

	idx.recomputeBacklinks()
	return idx.rebuildSearch()
}

// RemoveDocument deletes relPath from the index and rebuilds derived state.
func (idx *Index) RemoveDocument(relPath string) error {
	idx.mu.Lock()
	delete(idx.docs, relPath)
	for i, p := range idx.order {
		if p == relPath {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
	idx.mu.Unlock()

	idx.recomputeBacklinks()
	return idx.rebuildSearch()
}

// recomputeBacklinks rebuilds the link->documents map from scratch, per
// §4.B: for each Document D and raw link L, resolve L and append D.path to
// the resolved target's Backlinks, in iteration order over Documents.
func (idx *Index) recomputeBacklinks() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	backlinks := make(map[string][]string, len(idx.docs))
	for _, p := range idx.order {
		d, ok := idx.docs[p]
		if !ok {
			continue
		}
		for _, link := range d.Links {
			target, ok := idx.resolveLinkLocked(link)
			if !ok {
				continue
			}
			backlinks[target] = append(backlinks[target], d.Path)
		}
	}

	for _, p := range idx.order {
		d, ok := idx.docs[p]
		if !ok {
			continue
		}
		if bl, ok := backlinks[p]; ok {
			d.Backlinks = bl
		} else {
			d.Backlinks = []string{}
		}
	}
}

// ResolveLink runs the §4.B link resolution algorithm against the current
// index snapshot.
func (idx *Index) ResolveLink(raw string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.resolveLinkLocked(raw)
}

// resolveLinkLocked must be called with idx.mu held (read or write).
func (idx *Index) resolveLinkLocked(raw string) (string, bool) {
	if _, ok := idx.docs[raw]; ok {
		return raw, true
	}
	withExt := raw + ".md"
	if _, ok := idx.docs[withExt]; ok {
		return withExt, true
	}

	lower := strings.ToLower(raw)
	for _, p := range idx.order {
		d, ok := idx.docs[p]
		if !ok {
			continue
		}
		stem := strings.TrimSuffix(path.Base(d.Path), ".md")
		if strings.ToLower(stem) == lower {
			return d.Path, true
		}
	}
	for _, p := range idx.order {
		d, ok := idx.docs[p]
		if !ok {
			continue
		}
		if strings.ToLower(d.Title) == lower {
			return d.Path, true
		}
	}
	return "", false
}

// sortedKeys returns m's keys in ascending order, for deterministic map
// iteration.
func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
