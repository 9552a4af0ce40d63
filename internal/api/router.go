// Package api is the thin HTTP/JSON and WebSocket transport layer named in
// SPEC_FULL.md §1: every handler is a direct call into a core component or
// the Federation Query Surface, containing no business logic of its own.
// The dispatch style — a top-level path switch rather than a router
// framework — mirrors hermes's internal/api/v2/edge_sync.go.
package api

import (
	"net/http"
	"strings"

	"github.com/vincitamore/vitrum/internal/apierr"
	"github.com/vincitamore/vitrum/internal/server"
)

// API holds the Server reference every handler dispatches into.
type API struct {
	srv *server.Server
}

// NewRouter builds the full /api + /ws HTTP handler for srv.
func NewRouter(srv *server.Server) http.Handler {
	a := &API{srv: srv}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", a.handleWS)
	// Plain /health (outside /api) exists purely for the CLI's
	// waitForServer startup probe, mirroring hermes's serve command.
	mux.HandleFunc("/health", a.handleHealth)
	mux.HandleFunc("/api/", a.routeAPI)
	return mux
}

func (a *API) routeAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/")

	switch {
	case path == "health":
		a.handleHealth(w, r)
	case path == "files" || strings.HasPrefix(path, "files/"):
		a.handleFiles(w, r, strings.TrimPrefix(path, "files"))
	case path == "search":
		a.handleSearch(w, r)
	case path == "graph":
		a.handleGraph(w, r)
	case strings.HasPrefix(path, "graph/neighbors/"):
		a.handleGraphNeighbors(w, strings.TrimPrefix(path, "graph/neighbors/"))
	case path == "status":
		a.handleStatus(w, r)
	case path == "status/reindex":
		a.handleReindex(w, r)
	case path == "projects" || strings.HasPrefix(path, "projects/"):
		a.handleProjects(w, r, strings.TrimPrefix(path, "projects"))
	case strings.HasPrefix(path, "federation/peer/"):
		a.handlePeerFederation(w, r, strings.TrimPrefix(path, "federation/peer/"))
	case strings.HasPrefix(path, "federation/"):
		a.handleFederation(w, r, strings.TrimPrefix(path, "federation/"))
	default:
		writeError(w, apierr.New(apierr.NotFound, "unknown route"))
	}
}
