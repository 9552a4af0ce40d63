package api

import (
	"net/http"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/vincitamore/vitrum/internal/apierr"
	"github.com/vincitamore/vitrum/pkg/docindex"
)

// handleProjects dispatches the /projects family: GET /projects, GET
// /projects/<name>/tree, GET|PUT /projects/<name>/file/<path>.
func (a *API) handleProjects(w http.ResponseWriter, r *http.Request, sub string) {
	if sub == "" {
		if r.Method != http.MethodGet {
			writeError(w, apierr.New(apierr.BadRequest, "method not allowed"))
			return
		}
		a.listProjects(w)
		return
	}

	parts := strings.SplitN(strings.TrimPrefix(sub, "/"), "/", 2)
	name := parts[0]
	if len(parts) == 1 {
		writeError(w, apierr.New(apierr.NotFound, "unknown project route"))
		return
	}
	rest := parts[1]

	switch {
	case rest == "tree":
		if r.Method != http.MethodGet {
			writeError(w, apierr.New(apierr.BadRequest, "method not allowed"))
			return
		}
		a.projectTree(w, name)
	case strings.HasPrefix(rest, "file/"):
		relPath := strings.TrimPrefix(rest, "file/")
		switch r.Method {
		case http.MethodGet:
			a.projectFile(w, name, relPath)
		case http.MethodPut:
			a.putProjectFile(w, r, name, relPath)
		default:
			writeError(w, apierr.New(apierr.BadRequest, "method not allowed"))
		}
	default:
		writeError(w, apierr.New(apierr.NotFound, "unknown project route"))
	}
}

const projectsRoot = "projects"

func (a *API) listProjects(w http.ResponseWriter) {
	entries, err := afero.ReadDir(a.srv.Index.Fs(), path.Join(a.srv.Index.Root(), projectsRoot))
	if err != nil {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, names)
}

type projectFileEntry struct {
	Path  string `json:"path"`
	IsDir bool   `json:"isDir"`
}

// projectTree lists every file under projects/<name> recursively — unlike
// the Document Index's special-cased CLAUDE.md/README.md-only ingestion,
// this is a raw filesystem listing for project file browsing.
func (a *API) projectTree(w http.ResponseWriter, name string) {
	root := path.Join(a.srv.Index.Root(), projectsRoot, name)
	out := []projectFileEntry{}
	_ = afero.Walk(a.srv.Index.Fs(), root, func(p string, info os.FileInfo, err error) error {
		if err != nil || p == root {
			return nil
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		out = append(out, projectFileEntry{Path: rel, IsDir: info.IsDir()})
		return nil
	})
	writeJSON(w, http.StatusOK, out)
}

func (a *API) projectFile(w http.ResponseWriter, name, relPath string) {
	abs := path.Join(a.srv.Index.Root(), projectsRoot, name, relPath)
	rf, err := docindex.ReadRawFile(a.srv.Index.Fs(), abs)
	if err != nil {
		writeError(w, apierr.New(apierr.NotFound, "no such project file"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"content": rf.Body})
}

type putProjectFileRequest struct {
	Content string `json:"content"`
}

func (a *API) putProjectFile(w http.ResponseWriter, r *http.Request, name, relPath string) {
	var req putProjectFileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	abs := path.Join(a.srv.Index.Root(), projectsRoot, name, relPath)
	if err := afero.WriteFile(a.srv.Index.Fs(), abs, []byte(req.Content), 0o644); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "write failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
