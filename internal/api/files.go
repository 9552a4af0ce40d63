package api

import (
	"net/http"
	"path"
	"strings"

	"github.com/vincitamore/vitrum/internal/apierr"
	"github.com/vincitamore/vitrum/pkg/docindex"
)

// fileListEntry is the shape of each item in GET /files.
type fileListEntry struct {
	Path    string   `json:"path"`
	Title   string   `json:"title"`
	Type    string   `json:"type"`
	Tags    []string `json:"tags"`
	Updated string   `json:"updated"`
}

// handleFiles dispatches GET /files[?type=&tag=&folder=], GET
// /files/<path>, and PUT /files/<path> per spec §6.
func (a *API) handleFiles(w http.ResponseWriter, r *http.Request, sub string) {
	if sub == "" {
		if r.Method != http.MethodGet {
			writeError(w, apierr.New(apierr.BadRequest, "method not allowed"))
			return
		}
		a.listFiles(w, r)
		return
	}

	relPath := strings.TrimPrefix(sub, "/")
	switch r.Method {
	case http.MethodGet:
		a.getFile(w, relPath)
	case http.MethodPut:
		a.putFile(w, r, relPath)
	default:
		writeError(w, apierr.New(apierr.BadRequest, "method not allowed"))
	}
}

func (a *API) listFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typeFilter := docindex.DocType(q.Get("type"))
	tagFilter := q.Get("tag")
	folderFilter := q.Get("folder")

	var out []fileListEntry
	for _, d := range a.srv.Index.All() {
		if typeFilter != "" && d.Type != typeFilter {
			continue
		}
		if tagFilter != "" && !containsFold(d.Tags, tagFilter) {
			continue
		}
		if folderFilter != "" && !strings.HasPrefix(d.Path, folderFilter) {
			continue
		}
		out = append(out, fileListEntry{
			Path: d.Path, Title: d.Title, Type: string(d.Type), Tags: d.Tags,
			Updated: d.Updated.Format(timeFormat),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getFile(w http.ResponseWriter, relPath string) {
	d, ok := a.srv.Index.Get(relPath)
	if !ok {
		writeError(w, apierr.New(apierr.NotFound, "no such document"))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type putFileRequest struct {
	FrontMatter map[string]any `json:"frontmatter"`
	Content     string         `json:"content"`
}

// putFile replaces a document's frontmatter+content; a no-op on not found
// (spec §6: "PUT /files/<path> -> {frontmatter, content} replace (no-op on
// not found)").
func (a *API) putFile(w http.ResponseWriter, r *http.Request, relPath string) {
	if _, ok := a.srv.Index.Get(relPath); !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "no-op"})
		return
	}

	var req putFileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	abs := path.Join(a.srv.Index.Root(), relPath)
	if err := docindex.WriteRawFile(a.srv.Index.Fs(), abs, req.FrontMatter, req.Content); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "write failed", err))
		return
	}
	if err := a.srv.Index.UpdateDocument(relPath); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "reindex failed", err))
		return
	}
	a.srv.Bus.Update(relPath)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}
