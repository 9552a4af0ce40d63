package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/vincitamore/vitrum/internal/apierr"
	"github.com/vincitamore/vitrum/pkg/docindex"
	"github.com/vincitamore/vitrum/pkg/federation"
)

// handlePeerFederation dispatches the peer-facing wire protocol under
// /api/federation/peer/<op>, answered entirely from federation.Surface and
// restricted to shared subtrees (spec §4.G "Peer-facing contracts").
func (a *API) handlePeerFederation(w http.ResponseWriter, r *http.Request, sub string) {
	switch {
	case sub == "hello" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, a.srv.Federation.Hello())
	case sub == "search" && r.Method == http.MethodGet:
		a.peerSearch(w, r)
	case sub == "files" && r.Method == http.MethodGet:
		a.peerFiles(w, r)
	case strings.HasPrefix(sub, "files/") && r.Method == http.MethodGet:
		a.peerFile(w, r, strings.TrimPrefix(sub, "files/"))
	case sub == "receive" && r.Method == http.MethodPost:
		a.peerReceive(w, r)
	case sub == "shared/respond" && r.Method == http.MethodPost:
		a.peerSharedRespond(w, r)
	default:
		writeError(w, apierr.New(apierr.NotFound, "unknown peer route"))
	}
}

func (a *API) peerSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 20
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = n
	}
	resp, err := a.srv.Federation.Search(q.Get("q"), docindex.DocType(q.Get("type")), q.Get("tag"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) peerFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, a.srv.Federation.Files(q.Get("folder"), q.Get("tag")))
}

func (a *API) peerFile(w http.ResponseWriter, r *http.Request, relPath string) {
	if decoded, err := url.PathUnescape(relPath); err == nil {
		relPath = decoded
	}
	checksumOnly := r.URL.Query().Get("checksumOnly") == "true"
	if checksumOnly {
		resp, err := a.srv.Federation.FileChecksum(relPath)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp, err := a.srv.Federation.FileFull(relPath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) peerReceive(w http.ResponseWriter, r *http.Request) {
	var req federation.ReceiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	relPath, err := a.srv.Federation.Receive(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": relPath})
}

func (a *API) peerSharedRespond(w http.ResponseWriter, r *http.Request) {
	var req federation.SharedRespondRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	relPath, err := a.srv.Federation.RespondShared(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": relPath})
}
