package api

import (
	"net/http"

	"github.com/vincitamore/vitrum/internal/apierr"
)

type statusResponse struct {
	Total        int            `json:"total"`
	ByType       map[string]int `json:"byType"`
	BySyncStatus map[string]int `json:"bySyncStatus"`
	PeersOnline  int            `json:"peersOnline"`
	Subscribers  int            `json:"subscribers"`
}

// handleStatus answers GET /status, reporting per-type and per-sync-status
// breakdowns — a natural consequence of the Document type and SyncStatus
// enums already existing (SPEC_FULL supplemental feature).
func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, apierr.New(apierr.BadRequest, "method not allowed"))
		return
	}

	docs := a.srv.Index.All()
	resp := statusResponse{
		Total:        len(docs),
		ByType:       make(map[string]int),
		BySyncStatus: make(map[string]int),
		PeersOnline:  len(a.srv.Peers.Online()),
		Subscribers:  a.srv.Bus.SubscriberCount(),
	}
	for _, d := range docs {
		resp.ByType[string(d.Type)]++
		if d.Federation != nil {
			resp.BySyncStatus[string(d.Federation.SyncStatus)]++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleReindex answers POST /status/reindex, forcing a full rebuild.
func (a *API) handleReindex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, apierr.New(apierr.BadRequest, "method not allowed"))
		return
	}
	if err := a.srv.Index.Build(); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "reindex failed", err))
		return
	}
	a.srv.Bus.Reload()
	writeJSON(w, http.StatusOK, map[string]int{"documentCount": a.srv.Index.Count()})
}

// handleHealth answers GET /health.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
