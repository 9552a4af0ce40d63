package api

import (
	"net/http"
	"strings"

	"github.com/vincitamore/vitrum/internal/apierr"
	"github.com/vincitamore/vitrum/pkg/docindex"
)

// handleGraph answers GET /graph[?folder=].
func (a *API) handleGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, apierr.New(apierr.BadRequest, "method not allowed"))
		return
	}

	g := a.srv.Index.Graph()
	if folder := r.URL.Query().Get("folder"); folder != "" {
		g = filterGraphByFolder(g, folder)
	}
	writeJSON(w, http.StatusOK, g)
}

// handleGraphNeighbors answers GET /graph/neighbors/<path>.
func (a *API) handleGraphNeighbors(w http.ResponseWriter, center string) {
	g, ok := a.srv.Index.Neighbors(center)
	if !ok {
		writeError(w, apierr.New(apierr.NotFound, "no such document"))
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// filterGraphByFolder restricts a full-workspace graph to nodes under
// folder, dropping edges whose source or target fell outside.
func filterGraphByFolder(g docindex.Graph, folder string) docindex.Graph {
	keep := make(map[string]bool, len(g.Nodes))
	out := docindex.Graph{Nodes: []docindex.GraphNode{}, Links: []docindex.GraphEdge{}}
	for _, n := range g.Nodes {
		if strings.HasPrefix(n.ID, folder) {
			keep[n.ID] = true
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, e := range g.Links {
		if keep[e.Source] && keep[e.Target] {
			out.Links = append(out.Links, e)
		}
	}
	return out
}
